package events

import (
	"sort"
	"time"
)

// UpcomingLimit caps the upcoming view.
const UpcomingLimit = 15

// Cell is one square of the month grid. Blank cells pad the first week so the
// first day lands under its weekday column.
type Cell struct {
	Date   time.Time `json:"date"`
	Blank  bool      `json:"blank,omitempty"`
	Events []Event   `json:"events,omitempty"`
}

// Merge concatenates the Google events and the inquiry events. Order is kept
// and nothing is de-duplicated.
func Merge(google, inquiries []Event) []Event {
	merged := make([]Event, 0, len(google)+len(inquiries))
	merged = append(merged, google...)
	return append(merged, inquiries...)
}

// FetchWindow returns the Google fetch range for the month containing anchor:
// from the first day of the previous month up to, but excluding, the first
// day of the month three months after anchor's month.
func FetchWindow(anchor time.Time, loc *time.Location) (time.Time, time.Time) {
	a := anchor.In(orLocal(loc))
	timeMin := time.Date(a.Year(), a.Month()-1, 1, 0, 0, 0, 0, a.Location())
	timeMax := time.Date(a.Year(), a.Month()+3, 1, 0, 0, 0, 0, a.Location())
	return timeMin, timeMax
}

// MonthGrid lays out the month containing anchor. Events are bucketed by the
// local calendar day of their start.
func MonthGrid(anchor time.Time, events []Event, loc *time.Location, weekStart time.Weekday) []Cell {
	loc = orLocal(loc)
	a := anchor.In(loc)
	first := time.Date(a.Year(), a.Month(), 1, 0, 0, 0, 0, loc)
	days := first.AddDate(0, 1, -1).Day()
	lead := (int(first.Weekday()) - int(weekStart) + 7) % 7

	buckets := make(map[string][]Event)
	for _, ev := range events {
		start, ok := ev.StartIn(loc)
		if !ok {
			continue
		}
		key := start.Format(dateLayout)
		buckets[key] = append(buckets[key], ev)
	}

	cells := make([]Cell, 0, lead+days)
	for i := 0; i < lead; i++ {
		cells = append(cells, Cell{Blank: true})
	}
	for d := 1; d <= days; d++ {
		day := time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, loc)
		cells = append(cells, Cell{Date: day, Events: buckets[day.Format(dateLayout)]})
	}
	return cells
}

// DayEvents returns the events whose start falls on day's local calendar day.
func DayEvents(events []Event, day time.Time, loc *time.Location) []Event {
	loc = orLocal(loc)
	target := day.In(loc)
	var out []Event
	for _, ev := range events {
		start, ok := ev.StartIn(loc)
		if ok && sameDay(start, target) {
			out = append(out, ev)
		}
	}
	return out
}

// Upcoming returns events that have not started yet, soonest first. Timed
// events count from now; all-day events count from the start of today, so
// today's all-day events stay listed for the whole day. limit <= 0 means no
// cap.
func Upcoming(events []Event, now time.Time, loc *time.Location, limit int) []Event {
	loc = orLocal(loc)
	now = now.In(loc)
	today := startOfDay(now)

	type dated struct {
		ev    Event
		start time.Time
	}
	var pending []dated
	for _, ev := range events {
		start, ok := ev.StartIn(loc)
		if !ok {
			continue
		}
		threshold := now
		if ev.IsAllDay() {
			threshold = today
		}
		if !start.Before(threshold) {
			pending = append(pending, dated{ev: ev, start: start})
		}
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].start.Before(pending[j].start)
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	out := make([]Event, len(pending))
	for i, p := range pending {
		out[i] = p.ev
	}
	return out
}
