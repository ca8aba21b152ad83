package booking

import (
	"errors"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

// newValidator reports fields by their JSON names so errors line up with
// the request body.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldMessages is keyed by "<field>.<tag>".
var fieldMessages = map[string]string{
	"name.required":         "Name is required",
	"email.required":        "Email is required",
	"email.email":           "Email is not valid",
	"date.required":         "Pick a date",
	"date.datetime":         "Pick a date",
	"slot.required":         "Pick a time slot",
	"summary.required":      "Title is required",
	"startDate.required_if": "Start date is required",
	"endDate.datetime":      "End date is not valid",
	"start.required_if":     "Start time is required",
	"end.required_if":       "End time is required",
}

// validateStruct checks the validate tags of v. The result is never nil so
// callers can add their cross-field checks before calling orNil.
func validateStruct(v any) *ValidationError {
	verr := &ValidationError{}
	err := validate.Struct(v)
	if err == nil {
		return verr
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		verr.add("request", err.Error())
		return verr
	}
	for _, fe := range fieldErrs {
		msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]
		if !ok {
			msg = fe.Field() + " is not valid"
		}
		verr.add(fe.Field(), msg)
	}
	return verr
}
