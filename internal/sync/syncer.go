// Package sync fetches both event sources and normalizes them for the board.
package sync

import (
	"context"
	"fmt"
	"time"

	calclient "github.com/beekhof/admin-calendar/internal/calendar"
	"github.com/beekhof/admin-calendar/internal/events"
	"github.com/beekhof/admin-calendar/internal/inquiry"
	"github.com/beekhof/admin-calendar/internal/observability/metrics"
	"github.com/beekhof/admin-calendar/pkg/logging"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

const (
	SourceGoogle  = "google"
	SourceInquiry = "inquiry"
)

// ClientProvider hands out a Google client for the session token.
type ClientProvider interface {
	ForToken(ctx context.Context, token *oauth2.Token) (calclient.CalendarClient, error)
}

// Syncer reads events from Google Calendar and the inquiry table.
type Syncer struct {
	clients    ClientProvider
	inquiries  inquiry.Repository
	calendarID string
	loc        *time.Location
	metrics    *metrics.CalendarMetrics
	logger     *logging.Logger
}

// NewSyncer creates a new Syncer instance. A nil loc means time.Local.
func NewSyncer(clients ClientProvider, inquiries inquiry.Repository, calendarID string, loc *time.Location, m *metrics.CalendarMetrics, logger *logging.Logger) *Syncer {
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Syncer{
		clients:    clients,
		inquiries:  inquiries,
		calendarID: calendarID,
		loc:        loc,
		metrics:    m,
		logger:     logger,
	}
}

// Location returns the display time zone.
func (s *Syncer) Location() *time.Location {
	return s.loc
}

// FetchGoogle lists the Google events around the month of anchor: from the
// first day of the previous month through the last day of the month after
// next. Only the first page of 250 results is read.
func (s *Syncer) FetchGoogle(ctx context.Context, anchor time.Time, token *oauth2.Token) ([]events.Event, error) {
	started := time.Now()
	items, err := s.listGoogle(ctx, anchor, token)
	if err != nil {
		s.metrics.ObserveFetch(SourceGoogle, 0, time.Since(started), err)
		s.logger.Warn("google calendar fetch failed", "error", err)
		return nil, err
	}

	evs := events.FromGoogleEvents(items)
	s.metrics.ObserveFetch(SourceGoogle, len(evs), time.Since(started), nil)
	s.logger.Debug("fetched google events", "count", len(evs), "dropped", len(items)-len(evs))
	return evs, nil
}

func (s *Syncer) listGoogle(ctx context.Context, anchor time.Time, token *oauth2.Token) ([]*calendar.Event, error) {
	if s.calendarID == "" {
		return nil, calclient.ErrNotConfigured
	}
	client, err := s.clients.ForToken(ctx, token)
	if err != nil {
		return nil, err
	}

	timeMin, timeMax := events.FetchWindow(anchor, s.loc)
	return client.GetEvents(ctx, s.calendarID, timeMin, timeMax)
}

// FetchInquiries returns the most recent inquiry rows as events. Failures
// are logged and yield an empty list; they never reach the admin.
func (s *Syncer) FetchInquiries(ctx context.Context) []events.Event {
	started := time.Now()
	rows, err := s.inquiries.ListRecent(ctx, inquiry.DefaultListLimit)
	if err != nil {
		s.metrics.ObserveFetch(SourceInquiry, 0, time.Since(started), err)
		s.logger.Error("inquiry fetch failed", "error", err)
		return nil
	}

	evs := events.InquiryRowsToEvents(rows, s.loc)
	s.metrics.ObserveFetch(SourceInquiry, len(evs), time.Since(started), nil)
	return evs
}

// InsertInquiry stores a locally booked appointment and returns it as an event.
func (s *Syncer) InsertInquiry(ctx context.Context, in inquiry.NewRow) (*inquiry.Row, *events.Event, error) {
	row, err := s.inquiries.Insert(ctx, in)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert inquiry: %w", err)
	}
	ev := events.InquiryToCalendarEvent(*row, s.loc)
	if ev == nil {
		return row, nil, fmt.Errorf("failed to normalize inquiry %s", row.ID)
	}
	return row, ev, nil
}

// InsertGoogle creates event on the configured calendar as the session user.
func (s *Syncer) InsertGoogle(ctx context.Context, token *oauth2.Token, event *calendar.Event) (*calendar.Event, error) {
	if s.calendarID == "" {
		return nil, calclient.ErrNotConfigured
	}
	client, err := s.clients.ForToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return client.InsertEvent(ctx, s.calendarID, event)
}
