package events

import (
	"fmt"
	"time"

	"github.com/teambition/rrule-go"
)

const (
	// SlotDuration is the length of one bookable slot.
	SlotDuration = 30 * time.Minute

	slotLayout  = "15:04"
	openingHour = 9
	closingHour = 17
)

// Slot is a bookable start time and whether something already occupies it.
type Slot struct {
	Time   string `json:"time"`
	Booked bool   `json:"booked"`
}

// TimeSlots returns the slot start times for day: 09:00 through 16:30.
func TimeSlots(day time.Time, loc *time.Location) []string {
	starts := slotStarts(day, loc)
	out := make([]string, len(starts))
	for i, s := range starts {
		out[i] = s.Format(slotLayout)
	}
	return out
}

func slotStarts(day time.Time, loc *time.Location) []time.Time {
	d := day.In(orLocal(loc))
	open := time.Date(d.Year(), d.Month(), d.Day(), openingHour, 0, 0, 0, d.Location())
	closing := time.Date(d.Year(), d.Month(), d.Day(), closingHour, 0, 0, 0, d.Location())

	rule, err := rrule.NewRRule(rrule.ROption{
		Freq:     rrule.MINUTELY,
		Interval: int(SlotDuration / time.Minute),
		Dtstart:  open,
		Until:    closing.Add(-SlotDuration),
	})
	if err != nil {
		return nil
	}
	return rule.All()
}

// IsValidSlot reports whether slot is one of the grid's start times.
func IsValidSlot(slot string) bool {
	for _, s := range TimeSlots(time.Date(2000, 1, 3, 0, 0, 0, 0, time.UTC), time.UTC) {
		if s == slot {
			return true
		}
	}
	return false
}

// SlotStart resolves an "HH:MM" slot on day's local calendar day.
func SlotStart(day time.Time, slot string, loc *time.Location) (time.Time, error) {
	hm, err := time.Parse(slotLayout, slot)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q: %w", slot, err)
	}
	d := day.In(orLocal(loc))
	return time.Date(d.Year(), d.Month(), d.Day(), hm.Hour(), hm.Minute(), 0, 0, d.Location()), nil
}

// IsSlotBooked reports whether [slotStart, slotStart+30m) overlaps a timed
// event starting on the same local day. Only events with both a dateTime
// start and end can conflict; all-day and end-less events never do. The
// overlap test is strict on both sides, so back-to-back bookings are allowed.
func IsSlotBooked(events []Event, day time.Time, slot string, loc *time.Location) bool {
	loc = orLocal(loc)
	slotStart, err := SlotStart(day, slot, loc)
	if err != nil {
		return false
	}
	slotEnd := slotStart.Add(SlotDuration)

	for _, ev := range events {
		if ev.Start.DateTime == "" || ev.End.DateTime == "" {
			continue
		}
		evStart, ok := ev.Start.Instant(loc)
		if !ok {
			continue
		}
		evEnd, ok := ev.End.Instant(loc)
		if !ok {
			continue
		}
		if !sameDay(evStart, slotStart) {
			continue
		}
		if slotStart.Before(evEnd) && slotEnd.After(evStart) {
			return true
		}
	}
	return false
}

// SlotAvailability lists every slot of day with its booked flag.
func SlotAvailability(events []Event, day time.Time, loc *time.Location) []Slot {
	slots := TimeSlots(day, loc)
	out := make([]Slot, len(slots))
	for i, s := range slots {
		out[i] = Slot{Time: s, Booked: IsSlotBooked(events, day, s, loc)}
	}
	return out
}
