// Package events holds the canonical calendar event used by the admin board,
// the normalizers that produce it from each source, and the pure views
// (month grid, day list, upcoming list, slot availability) derived from it.
package events

import (
	"strings"
	"time"
)

const (
	dateLayout = "2006-01-02"

	// InquiryIDPrefix keeps inquiry ids from colliding with Google event ids.
	InquiryIDPrefix = "inquiry_"
)

// EventTime is either an all-day Date ("2006-01-02") or a DateTime (RFC 3339).
// All-day end dates are exclusive.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

// IsZero reports whether neither field is set.
func (t EventTime) IsZero() bool {
	return t.Date == "" && t.DateTime == ""
}

// IsAllDay reports whether t is a calendar-day value.
func (t EventTime) IsAllDay() bool {
	return t.DateTime == "" && t.Date != ""
}

// Instant resolves t in loc. Dates resolve to local midnight.
func (t EventTime) Instant(loc *time.Location) (time.Time, bool) {
	loc = orLocal(loc)
	if t.DateTime != "" {
		ts, err := time.Parse(time.RFC3339, t.DateTime)
		if err != nil {
			return time.Time{}, false
		}
		return ts.In(loc), true
	}
	if t.Date != "" {
		d, err := time.ParseInLocation(dateLayout, t.Date, loc)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}
	return time.Time{}, false
}

// Event is the canonical calendar entry. Nothing source specific survives
// normalization except the id prefix on inquiry events.
type Event struct {
	ID          string    `json:"id"`
	Summary     string    `json:"summary"`
	Description string    `json:"description,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
	Location    string    `json:"location,omitempty"`
	HTMLLink    string    `json:"htmlLink,omitempty"`
}

// IsAllDay reports whether the event is keyed by date only.
func (e Event) IsAllDay() bool {
	return e.Start.IsAllDay()
}

// IsInquiry reports whether the event came from the inquiry table.
func (e Event) IsInquiry() bool {
	return strings.HasPrefix(e.ID, InquiryIDPrefix)
}

// StartIn returns the start instant in loc.
func (e Event) StartIn(loc *time.Location) (time.Time, bool) {
	return e.Start.Instant(loc)
}

func orLocal(loc *time.Location) *time.Location {
	if loc == nil {
		return time.Local
	}
	return loc
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// sameDay compares calendar days in a's location.
func sameDay(a, b time.Time) bool {
	b = b.In(a.Location())
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
