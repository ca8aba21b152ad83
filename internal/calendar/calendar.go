// Package calendar wraps the Google Calendar v3 API for the admin board.
package calendar

import (
	"context"
	"errors"
	"time"

	"google.golang.org/api/calendar/v3"
)

// EventsScope is the OAuth scope needed to list and insert events.
const EventsScope = calendar.CalendarEventsScope

// ErrNotConfigured is returned when neither an API key nor a token is
// available to authorize requests.
var ErrNotConfigured = errors.New("google calendar: no API key or access token configured")

// CalendarClient is the subset of the Google Calendar API the board uses.
type CalendarClient interface {
	GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error)
	InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error)
}
