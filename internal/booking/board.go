// Package booking holds the admin calendar board: the merged event state,
// the views derived from it and the two appointment write paths.
package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	calclient "github.com/beekhof/admin-calendar/internal/calendar"
	"github.com/beekhof/admin-calendar/internal/events"
	"github.com/beekhof/admin-calendar/internal/observability/metrics"
	"github.com/beekhof/admin-calendar/internal/reminder"
	calsync "github.com/beekhof/admin-calendar/internal/sync"
	"github.com/beekhof/admin-calendar/pkg/logging"

	"golang.org/x/oauth2"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// Session is the admin's Google session.
type Session interface {
	Token() (*oauth2.Token, error)
	Connected() bool
}

// ReminderQueue accepts reminder tasks without blocking.
type ReminderQueue interface {
	Enqueue(task reminder.Task) bool
}

// Options tunes a Board. Zero values are usable.
type Options struct {
	WeekStart time.Weekday
	Missing   []string // configuration values shown in the banner
	Metrics   *metrics.CalendarMetrics
	Logger    *logging.Logger
	Now       func() time.Time
}

// Board is the state behind the admin calendar page. Fetches are not
// sequenced: whichever completes last wins.
type Board struct {
	syncer    *calsync.Syncer
	session   Session
	reminders ReminderQueue
	loc       *time.Location
	weekStart time.Weekday
	missing   []string
	metrics   *metrics.CalendarMetrics
	logger    *logging.Logger
	now       func() time.Time

	mu           sync.Mutex
	anchor       time.Time
	google       []events.Event
	inquiries    []events.Event
	refreshCount int
	loading      bool
	dataErr      string
	authErr      string
}

// NewBoard creates a board anchored on the current month.
func NewBoard(syncer *calsync.Syncer, session Session, reminders ReminderQueue, opts Options) *Board {
	if opts.Logger == nil {
		opts.Logger = logging.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	b := &Board{
		syncer:    syncer,
		session:   session,
		reminders: reminders,
		loc:       syncer.Location(),
		weekStart: opts.WeekStart,
		missing:   opts.Missing,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Now,
	}
	b.anchor = firstOfMonth(b.now(), b.loc)
	return b
}

func firstOfMonth(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, loc)
}

// Load fetches both sources, as a page load does.
func (b *Board) Load(ctx context.Context) {
	inquiries := b.syncer.FetchInquiries(ctx)
	b.mu.Lock()
	b.inquiries = inquiries
	b.mu.Unlock()

	b.fetchGoogle(ctx)
}

// SetMonth moves the board to the month containing anchor and re-fetches
// Google events for the new window.
func (b *Board) SetMonth(ctx context.Context, anchor time.Time) {
	month := firstOfMonth(anchor, b.loc)
	b.mu.Lock()
	changed := !month.Equal(b.anchor)
	b.anchor = month
	b.mu.Unlock()

	if changed {
		b.fetchGoogle(ctx)
	}
}

// Refresh bumps the refresh counter and re-fetches Google events.
func (b *Board) Refresh(ctx context.Context) {
	b.mu.Lock()
	b.refreshCount++
	b.mu.Unlock()

	b.fetchGoogle(ctx)
}

// SessionChanged re-fetches Google events after the token changed.
func (b *Board) SessionChanged(ctx context.Context) {
	b.SetAuthError("")
	b.fetchGoogle(ctx)
}

// SetAuthError sets the auth banner. An empty message clears it.
func (b *Board) SetAuthError(message string) {
	b.mu.Lock()
	b.authErr = message
	b.mu.Unlock()
}

func (b *Board) fetchGoogle(ctx context.Context) {
	b.mu.Lock()
	anchor := b.anchor
	b.loading = true
	b.mu.Unlock()

	token := b.sessionToken()
	evs, err := b.syncer.FetchGoogle(ctx, anchor, token)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.loading = false
	switch {
	case errors.Is(err, calclient.ErrNotConfigured):
		// The configuration banner already explains why nothing is shown.
		b.google = nil
		b.dataErr = ""
	case err != nil:
		b.dataErr = fmt.Sprintf("Failed to load Google Calendar events: %v", err)
	default:
		b.google = evs
		b.dataErr = ""
	}
}

// sessionToken returns nil when signed out. A token that cannot be
// refreshed raises the auth banner and reads fall back to the API key.
func (b *Board) sessionToken() *oauth2.Token {
	if b.session == nil {
		return nil
	}
	token, err := b.session.Token()
	if err != nil {
		b.logger.Warn("google session token unavailable", "error", err)
		b.SetAuthError("Your Google session has expired. Connect again to manage events.")
		return nil
	}
	return token
}

// Events returns the merged view: Google events first, then inquiries.
func (b *Board) Events() []events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return events.Merge(b.google, b.inquiries)
}

// Location returns the display time zone.
func (b *Board) Location() *time.Location {
	return b.loc
}

// Slots returns the slot grid for day with booked flags.
func (b *Board) Slots(day time.Time) []events.Slot {
	return events.SlotAvailability(b.Events(), day, b.loc)
}

// Snapshot is everything the calendar page renders.
type Snapshot struct {
	Month         string         `json:"month"`
	Selected      string         `json:"selected"`
	ConfigMissing []string       `json:"configMissing,omitempty"`
	DataError     string         `json:"dataError,omitempty"`
	AuthError     string         `json:"authError,omitempty"`
	Connected     bool           `json:"connected"`
	Loading       bool           `json:"loading"`
	RefreshCount  int            `json:"refreshCount"`
	Cells         []events.Cell  `json:"cells"`
	DayEvents     []events.Event `json:"dayEvents"`
	Upcoming      []events.Event `json:"upcoming"`
}

// Snapshot derives the page views. A zero selected means today.
func (b *Board) Snapshot(selected time.Time) Snapshot {
	now := b.now().In(b.loc)
	if selected.IsZero() {
		selected = now
	}
	selected = selected.In(b.loc)

	b.mu.Lock()
	merged := events.Merge(b.google, b.inquiries)
	snap := Snapshot{
		Month:         b.anchor.Format(monthLayout),
		Selected:      selected.Format(dateLayout),
		ConfigMissing: b.missing,
		DataError:     b.dataErr,
		AuthError:     b.authErr,
		Loading:       b.loading,
		RefreshCount:  b.refreshCount,
	}
	anchor := b.anchor
	b.mu.Unlock()

	if b.session != nil {
		snap.Connected = b.session.Connected()
	}
	snap.Cells = events.MonthGrid(anchor, merged, b.loc, b.weekStart)
	snap.DayEvents = events.DayEvents(merged, selected, b.loc)
	snap.Upcoming = events.Upcoming(merged, now, b.loc, events.UpcomingLimit)
	return snap
}
