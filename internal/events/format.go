package events

import "time"

const (
	dayFormat      = "Mon, Jan 2, 2006"
	shortDayFormat = "Jan 2"
	longDayFormat  = "Jan 2, 2006"
	clockFormat    = "3:04 PM"
)

// InclusiveEndDate converts an exclusive all-day end date into the last day
// the event covers. Events whose end is missing or not after the start cover
// only their start day.
func InclusiveEndDate(start, end EventTime) (time.Time, bool) {
	s, err := time.Parse(dateLayout, start.Date)
	if err != nil {
		return time.Time{}, false
	}
	e, err := time.Parse(dateLayout, end.Date)
	if err != nil {
		return s, true
	}
	last := e.AddDate(0, 0, -1)
	if last.Before(s) {
		return s, true
	}
	return last, true
}

// FormatAllDayRange renders an all-day range with its inclusive last day,
// e.g. "Mar 1 - Mar 2, 2024" for start 2024-03-01 and exclusive end
// 2024-03-03.
func FormatAllDayRange(start, end EventTime) string {
	s, err := time.Parse(dateLayout, start.Date)
	if err != nil {
		return start.Date
	}
	last, _ := InclusiveEndDate(start, end)
	switch {
	case last.Equal(s):
		return s.Format(dayFormat)
	case last.Year() == s.Year():
		return s.Format(shortDayFormat) + " - " + last.Format(longDayFormat)
	default:
		return s.Format(longDayFormat) + " - " + last.Format(longDayFormat)
	}
}

// FormatTimedRange renders a timed range in loc.
func FormatTimedRange(start, end EventTime, loc *time.Location) string {
	s, ok := start.Instant(loc)
	if !ok {
		return start.DateTime
	}
	e, ok := end.Instant(loc)
	if !ok || end.DateTime == "" {
		return s.Format(dayFormat + " " + clockFormat)
	}
	if sameDay(s, e) {
		return s.Format(dayFormat+" "+clockFormat) + " - " + e.Format(clockFormat)
	}
	return s.Format(dayFormat+" "+clockFormat) + " - " + e.Format(dayFormat+" "+clockFormat)
}

// FormatWhen picks the all-day or timed rendering for ev.
func FormatWhen(ev Event, loc *time.Location) string {
	if ev.IsAllDay() {
		return FormatAllDayRange(ev.Start, ev.End)
	}
	return FormatTimedRange(ev.Start, ev.End, loc)
}
