// Package ics renders the merged admin calendar as an iCalendar feed.
package ics

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/beekhof/admin-calendar/internal/events"

	"github.com/emersion/go-ical"
)

const (
	ProductID  = "-//Concierge//Admin Calendar//EN"
	uidDomain  = "admin-calendar"
	dateLayout = "2006-01-02"
)

// ErrEmpty is returned when there is nothing to export. An iCalendar
// object needs at least one component.
var ErrEmpty = errors.New("ics: no events to export")

// Calendar converts evs into a VCALENDAR. Events without a resolvable
// start are skipped. stamp becomes every DTSTAMP.
func Calendar(evs []events.Event, stamp time.Time) (*ical.Calendar, error) {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, ev := range evs {
		if vevent := eventToICal(ev, stamp); vevent != nil {
			cal.Children = append(cal.Children, vevent)
		}
	}
	if len(cal.Children) == 0 {
		return nil, ErrEmpty
	}
	return cal, nil
}

// Write encodes evs to w.
func Write(w io.Writer, evs []events.Event, stamp time.Time) error {
	cal, err := Calendar(evs, stamp)
	if err != nil {
		return err
	}
	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode calendar: %w", err)
	}
	return nil
}

// eventToICal converts a canonical event to a VEVENT.
func eventToICal(ev events.Event, stamp time.Time) *ical.Component {
	vevent := ical.NewComponent(ical.CompEvent)
	vevent.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", ev.ID, uidDomain))
	vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())

	if !setTime(vevent, ical.PropDateTimeStart, ev.Start) {
		return nil
	}
	setTime(vevent, ical.PropDateTimeEnd, ev.End)

	if ev.Summary != "" {
		vevent.Props.SetText(ical.PropSummary, ev.Summary)
	}
	if ev.Description != "" {
		vevent.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		vevent.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.HTMLLink != "" {
		vevent.Props.SetText(ical.PropURL, ev.HTMLLink)
	}
	if ev.IsInquiry() {
		vevent.Props.SetText(ical.PropCategories, "INQUIRY")
	}
	return vevent
}

// setTime writes a DATE for all-day values and a UTC DATE-TIME otherwise.
func setTime(vevent *ical.Component, name string, t events.EventTime) bool {
	switch {
	case t.DateTime != "":
		ts, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return false
		}
		vevent.Props.SetDateTime(name, ts.UTC())
		return true
	case t.Date != "":
		d, err := time.Parse(dateLayout, t.Date)
		if err != nil {
			return false
		}
		prop := ical.NewProp(name)
		prop.SetDate(d)
		vevent.Props.Set(prop)
		return true
	}
	return false
}
