package events

import (
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"

	"github.com/beekhof/admin-calendar/internal/inquiry"
)

// zoned layouts carry their own offset; local layouts are read in the
// display location.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05Z07",
	}
	localLayouts = []string{
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04",
	}
)

// FromGoogle converts a Google Calendar event. It returns nil when the event
// has no resolvable start.
func FromGoogle(ge *calendar.Event) *Event {
	if ge == nil || ge.Start == nil {
		return nil
	}
	start := EventTime{Date: ge.Start.Date, DateTime: ge.Start.DateTime}
	if _, ok := start.Instant(time.UTC); !ok {
		return nil
	}

	ev := &Event{
		ID:          ge.Id,
		Summary:     ge.Summary,
		Description: ge.Description,
		Start:       start,
		Location:    ge.Location,
		HTMLLink:    ge.HtmlLink,
	}
	if ge.End != nil {
		ev.End = EventTime{Date: ge.End.Date, DateTime: ge.End.DateTime}
	}
	return ev
}

// FromGoogleEvents converts a list, dropping events without a start.
func FromGoogleEvents(items []*calendar.Event) []Event {
	out := make([]Event, 0, len(items))
	for _, item := range items {
		if ev := FromGoogle(item); ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

// InquiryToCalendarEvent converts an inquiry row. It returns nil when the row
// has no id or no parseable start. Zone-less timestamps are read in loc.
func InquiryToCalendarEvent(row inquiry.Row, loc *time.Location) *Event {
	if strings.TrimSpace(row.ID) == "" {
		return nil
	}
	start, ok := parseInquiryTime(row.Start, loc)
	if !ok {
		return nil
	}

	name := strings.TrimSpace(row.Name)
	summary := "Appointment"
	if name != "" {
		summary = "Appointment: " + name
	}

	ev := &Event{
		ID:          InquiryIDPrefix + row.ID,
		Summary:     summary,
		Description: InquiryDescription(row),
		Start:       EventTime{DateTime: start.Format(time.RFC3339)},
	}
	if row.End != nil {
		if end, ok := parseInquiryTime(*row.End, loc); ok {
			ev.End = EventTime{DateTime: end.Format(time.RFC3339)}
		}
	}
	return ev
}

// InquiryRowsToEvents converts rows, dropping the ones that do not normalize.
func InquiryRowsToEvents(rows []inquiry.Row, loc *time.Location) []Event {
	out := make([]Event, 0, len(rows))
	for _, row := range rows {
		if ev := InquiryToCalendarEvent(row, loc); ev != nil {
			out = append(out, *ev)
		}
	}
	return out
}

// InquiryDescription renders the contact block shown in the event detail
// view. The format is line oriented and must stay stable:
//
//	Name: <name>
//	Email: <email>   (omitted when empty)
//	Phone: <phone>   (omitted when empty)
func InquiryDescription(row inquiry.Row) string {
	lines := []string{"Name: " + strings.TrimSpace(row.Name)}
	if email := strings.TrimSpace(row.Email); email != "" {
		lines = append(lines, "Email: "+email)
	}
	if phone := strings.TrimSpace(row.Phone); phone != "" {
		lines = append(lines, "Phone: "+phone)
	}
	return strings.Join(lines, "\n")
}

func parseInquiryTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range zonedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(orLocal(loc)), true
		}
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, s, orLocal(loc)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
