package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/beekhof/admin-calendar/internal/events"
	"github.com/beekhof/admin-calendar/internal/inquiry"
	"github.com/beekhof/admin-calendar/internal/reminder"

	"google.golang.org/api/calendar/v3"
)

const (
	pathLocal  = "local"
	pathGoogle = "google"
)

// dateTimeLayouts are accepted for timed Google events. Zone-less values
// are read in the board's location.
var dateTimeLayouts = []string{
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
}

// LocalAppointment books a 30 minute slot into the inquiry table.
type LocalAppointment struct {
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Slot  string `json:"slot" validate:"required"` // HH:MM on the slot grid
}

func (a LocalAppointment) trimmed() LocalAppointment {
	a.Name = strings.TrimSpace(a.Name)
	a.Email = strings.TrimSpace(a.Email)
	a.Phone = strings.TrimSpace(a.Phone)
	a.Date = strings.TrimSpace(a.Date)
	a.Slot = strings.TrimSpace(a.Slot)
	return a
}

// GoogleAppointment creates an event on the Google calendar. All-day
// appointments take an inclusive EndDate; timed ones take Start and End.
type GoogleAppointment struct {
	Summary     string `json:"summary" validate:"required"`
	Description string `json:"description"`
	Location    string `json:"location"`
	AllDay      bool   `json:"allDay"`
	StartDate   string `json:"startDate" validate:"required_if=AllDay true"`
	EndDate     string `json:"endDate" validate:"omitempty,datetime=2006-01-02"`
	Start       string `json:"start" validate:"required_if=AllDay false"`
	End         string `json:"end" validate:"required_if=AllDay false"`
}

func (a GoogleAppointment) trimmed() GoogleAppointment {
	a.Summary = strings.TrimSpace(a.Summary)
	a.StartDate = strings.TrimSpace(a.StartDate)
	a.EndDate = strings.TrimSpace(a.EndDate)
	a.Start = strings.TrimSpace(a.Start)
	a.End = strings.TrimSpace(a.End)
	return a
}

// CreateLocalAppointment writes the appointment to the inquiry table and
// prepends it to the board without a re-fetch. The availability check and
// the insert are not atomic. A reminder is queued afterwards; its outcome
// never changes the result.
func (b *Board) CreateLocalAppointment(ctx context.Context, appt LocalAppointment) (*events.Event, error) {
	appt = appt.trimmed()
	start, err := b.validateLocal(appt)
	if err != nil {
		b.metrics.ObserveBooking(pathLocal, "invalid")
		return nil, err
	}
	end := start.Add(events.SlotDuration)

	if events.IsSlotBooked(b.Events(), start, appt.Slot, b.loc) {
		b.metrics.ObserveBooking(pathLocal, "conflict")
		return nil, ErrSlotBooked
	}

	row, ev, err := b.syncer.InsertInquiry(ctx, inquiry.NewRow{
		Name:  appt.Name,
		Email: appt.Email,
		Phone: appt.Phone,
		Start: start,
		End:   &end,
	})
	if err != nil {
		b.metrics.ObserveBooking(pathLocal, "failed")
		return nil, fmt.Errorf("failed to create appointment: %w", err)
	}

	b.mu.Lock()
	b.inquiries = append([]events.Event{*ev}, b.inquiries...)
	b.mu.Unlock()
	b.metrics.ObserveBooking(pathLocal, "created")
	b.logger.Info("appointment booked", "inquiry_id", row.ID, "start", row.Start)

	if b.reminders != nil {
		b.reminders.Enqueue(reminder.Task{
			InquiryID: row.ID,
			Name:      row.Name,
			Email:     row.Email,
			Phone:     row.Phone,
			StartTime: row.Start,
		})
	}
	return ev, nil
}

func (b *Board) validateLocal(appt LocalAppointment) (time.Time, error) {
	verr := validateStruct(appt)
	if !verr.has("slot") && !events.IsValidSlot(appt.Slot) {
		verr.add("slot", "Time slot is not on the booking grid")
	}
	if err := verr.orNil(); err != nil {
		return time.Time{}, err
	}

	day, err := time.ParseInLocation(dateLayout, appt.Date, b.loc)
	if err != nil {
		verr.add("date", "Pick a date")
		return time.Time{}, verr
	}
	start, err := events.SlotStart(day, appt.Slot, b.loc)
	if err != nil {
		verr.add("slot", "Time slot is not on the booking grid")
		return time.Time{}, verr
	}
	if end := start.Add(events.SlotDuration); !end.After(start) {
		verr.add("end", "End time must be after start time")
		return time.Time{}, verr
	}
	return start, nil
}

// CreateGoogleEvent inserts the appointment into Google Calendar as the
// signed-in admin. On success the refresh counter is bumped and Google
// events are fetched again; nothing is inserted locally.
func (b *Board) CreateGoogleEvent(ctx context.Context, appt GoogleAppointment) (*events.Event, error) {
	payload, err := BuildGoogleEvent(appt, b.loc)
	if err != nil {
		b.metrics.ObserveBooking(pathGoogle, "invalid")
		return nil, err
	}

	if b.session == nil {
		return nil, ErrAuthRequired
	}
	token, err := b.session.Token()
	if err != nil {
		b.metrics.ObserveBooking(pathGoogle, "unauthorized")
		return nil, fmt.Errorf("%w: %v", ErrAuthRequired, err)
	}
	if token == nil {
		b.metrics.ObserveBooking(pathGoogle, "unauthorized")
		return nil, ErrAuthRequired
	}

	created, err := b.syncer.InsertGoogle(ctx, token, payload)
	if err != nil {
		b.metrics.ObserveBooking(pathGoogle, "failed")
		return nil, fmt.Errorf("failed to create google event: %w", err)
	}
	b.metrics.ObserveBooking(pathGoogle, "created")
	b.logger.Info("google event created", "event_id", created.Id)

	b.Refresh(ctx)

	ev := events.FromGoogle(created)
	if ev == nil {
		return nil, errors.New("google returned an event without a start")
	}
	return ev, nil
}

// BuildGoogleEvent validates appt and builds the events.insert payload:
// {date} fields with an exclusive end for all-day events, {dateTime}
// fields otherwise.
func BuildGoogleEvent(appt GoogleAppointment, loc *time.Location) (*calendar.Event, error) {
	if loc == nil {
		loc = time.Local
	}
	appt = appt.trimmed()
	verr := validateStruct(appt)

	event := &calendar.Event{
		Summary:     appt.Summary,
		Description: appt.Description,
		Location:    appt.Location,
	}

	if appt.AllDay {
		startDay, err := time.ParseInLocation(dateLayout, appt.StartDate, loc)
		if err != nil {
			verr.add("startDate", "Start date is not valid")
		}
		lastDay := startDay
		if appt.EndDate != "" && !verr.has("endDate") {
			if lastDay, err = time.ParseInLocation(dateLayout, appt.EndDate, loc); err != nil {
				verr.add("endDate", "End date is not valid")
			}
		}
		exclusiveEnd := lastDay.AddDate(0, 0, 1)
		if !verr.has("startDate") && !verr.has("endDate") && !exclusiveEnd.After(startDay) {
			verr.add("endDate", "End date must not be before start date")
		}
		if err := verr.orNil(); err != nil {
			return nil, err
		}
		event.Start = &calendar.EventDateTime{Date: startDay.Format(dateLayout)}
		event.End = &calendar.EventDateTime{Date: exclusiveEnd.Format(dateLayout)}
		return event, nil
	}

	start, okStart := parseDateTime(appt.Start, loc)
	if !okStart {
		verr.add("start", "Start time is not valid")
	}
	end, okEnd := parseDateTime(appt.End, loc)
	if !okEnd {
		verr.add("end", "End time is not valid")
	}
	if okStart && okEnd && !end.After(start) {
		verr.add("end", "End time must be after start time")
	}
	if err := verr.orNil(); err != nil {
		return nil, err
	}

	event.Start = &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)}
	event.End = &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)}
	return event, nil
}

func parseDateTime(s string, loc *time.Location) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), true
	}
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
