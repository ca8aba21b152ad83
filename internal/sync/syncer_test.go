package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	calclient "github.com/beekhof/admin-calendar/internal/calendar"
	"github.com/beekhof/admin-calendar/internal/inquiry"

	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

// mockCalendarClient is a mock implementation of CalendarClient for testing.
type mockCalendarClient struct {
	events         []*calendar.Event
	err            error
	calls          []listCall
	insertedEvents []*calendar.Event
}

type listCall struct {
	calendarID       string
	timeMin, timeMax time.Time
}

func (m *mockCalendarClient) GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	m.calls = append(m.calls, listCall{calendarID, timeMin, timeMax})
	return m.events, m.err
}

func (m *mockCalendarClient) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.insertedEvents = append(m.insertedEvents, event)
	created := *event
	created.Id = "created-1"
	return &created, nil
}

// mockProvider records which token each client was built for.
type mockProvider struct {
	client calclient.CalendarClient
	tokens []*oauth2.Token
	err    error
}

func (p *mockProvider) ForToken(ctx context.Context, token *oauth2.Token) (calclient.CalendarClient, error) {
	p.tokens = append(p.tokens, token)
	if p.err != nil {
		return nil, p.err
	}
	return p.client, nil
}

type failingRepository struct{}

func (failingRepository) ListRecent(ctx context.Context, limit int) ([]inquiry.Row, error) {
	return nil, errors.New("relation \"inquiries\" does not exist")
}

func (failingRepository) Insert(ctx context.Context, in inquiry.NewRow) (*inquiry.Row, error) {
	return nil, errors.New("insert failed")
}

var utc = time.UTC

func TestFetchGoogle_WindowAndNormalization(t *testing.T) {
	client := &mockCalendarClient{events: []*calendar.Event{
		{Id: "a", Summary: "Consult", Start: &calendar.EventDateTime{DateTime: "2024-03-05T10:00:00Z"}, End: &calendar.EventDateTime{DateTime: "2024-03-05T10:30:00Z"}},
		{Id: "broken", Summary: "No start", Start: &calendar.EventDateTime{}},
	}}
	provider := &mockProvider{client: client}
	s := NewSyncer(provider, inquiry.NewInMemoryRepository(), "clinic", utc, nil, nil)

	anchor := time.Date(2024, 3, 15, 0, 0, 0, 0, utc)
	token := &oauth2.Token{AccessToken: "tok"}
	evs, err := s.FetchGoogle(context.Background(), anchor, token)
	if err != nil {
		t.Fatalf("FetchGoogle() returned an error: %v", err)
	}

	if len(evs) != 1 || evs[0].ID != "a" {
		t.Fatalf("Expected only the event with a start, got %+v", evs)
	}
	if len(client.calls) != 1 {
		t.Fatalf("Expected one list call, got %d", len(client.calls))
	}
	call := client.calls[0]
	if call.calendarID != "clinic" {
		t.Errorf("Expected calendar id clinic, got %s", call.calendarID)
	}
	if !call.timeMin.Equal(time.Date(2024, 2, 1, 0, 0, 0, 0, utc)) {
		t.Errorf("Unexpected timeMin %v", call.timeMin)
	}
	if !call.timeMax.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, utc)) {
		t.Errorf("Unexpected timeMax %v", call.timeMax)
	}
	if provider.tokens[0] != token {
		t.Error("Expected the session token to be passed to the client provider")
	}
}

func TestFetchGoogle_NotConfigured(t *testing.T) {
	s := NewSyncer(&mockProvider{client: &mockCalendarClient{}}, inquiry.NewInMemoryRepository(), "", utc, nil, nil)
	if _, err := s.FetchGoogle(context.Background(), time.Now(), nil); !errors.Is(err, calclient.ErrNotConfigured) {
		t.Errorf("Expected ErrNotConfigured, got %v", err)
	}
}

func TestFetchGoogle_Error(t *testing.T) {
	client := &mockCalendarClient{err: errors.New("403 forbidden")}
	s := NewSyncer(&mockProvider{client: client}, inquiry.NewInMemoryRepository(), "clinic", utc, nil, nil)
	if _, err := s.FetchGoogle(context.Background(), time.Now(), nil); err == nil {
		t.Error("Expected the client error to be returned")
	}
}

func TestFetchInquiries(t *testing.T) {
	repo := inquiry.NewInMemoryRepository()
	start := time.Date(2024, 3, 5, 10, 0, 0, 0, utc)
	if _, err := repo.Insert(context.Background(), inquiry.NewRow{Name: "Ada", Email: "ada@example.com", Start: start}); err != nil {
		t.Fatalf("Insert() returned an error: %v", err)
	}

	s := NewSyncer(&mockProvider{}, repo, "clinic", utc, nil, nil)
	evs := s.FetchInquiries(context.Background())
	if len(evs) != 1 {
		t.Fatalf("Expected 1 inquiry event, got %d", len(evs))
	}
	if !evs[0].IsInquiry() || evs[0].Summary != "Appointment: Ada" {
		t.Errorf("Unexpected inquiry event %+v", evs[0])
	}
}

func TestFetchInquiries_FailureYieldsEmpty(t *testing.T) {
	s := NewSyncer(&mockProvider{}, failingRepository{}, "clinic", utc, nil, nil)
	if evs := s.FetchInquiries(context.Background()); len(evs) != 0 {
		t.Errorf("Expected no events on failure, got %d", len(evs))
	}
}

func TestInsertInquiry(t *testing.T) {
	s := NewSyncer(&mockProvider{}, inquiry.NewInMemoryRepository(), "clinic", utc, nil, nil)
	start := time.Date(2024, 3, 5, 9, 30, 0, 0, utc)
	end := start.Add(30 * time.Minute)

	row, ev, err := s.InsertInquiry(context.Background(), inquiry.NewRow{Name: "Grace", Email: "grace@example.com", Start: start, End: &end})
	if err != nil {
		t.Fatalf("InsertInquiry() returned an error: %v", err)
	}
	if ev.ID != "inquiry_"+row.ID {
		t.Errorf("Expected id inquiry_%s, got %s", row.ID, ev.ID)
	}
	if ev.End.DateTime == "" {
		t.Error("Expected the inserted event to carry an end time")
	}
}

func TestInsertGoogle(t *testing.T) {
	client := &mockCalendarClient{}
	s := NewSyncer(&mockProvider{client: client}, inquiry.NewInMemoryRepository(), "clinic", utc, nil, nil)

	created, err := s.InsertGoogle(context.Background(), &oauth2.Token{AccessToken: "tok"}, &calendar.Event{Summary: "Offsite"})
	if err != nil {
		t.Fatalf("InsertGoogle() returned an error: %v", err)
	}
	if created.Id != "created-1" || len(client.insertedEvents) != 1 {
		t.Errorf("Expected the event to be inserted, got %+v", created)
	}
}
