package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/beekhof/admin-calendar/internal/booking"
	calclient "github.com/beekhof/admin-calendar/internal/calendar"
	"github.com/beekhof/admin-calendar/internal/inquiry"
	calsync "github.com/beekhof/admin-calendar/internal/sync"
	"github.com/beekhof/admin-calendar/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"google.golang.org/api/calendar/v3"
)

const testSecret = "test-admin-secret"

type stubGoogle struct {
	items []*calendar.Event
}

func (g *stubGoogle) GetEvents(ctx context.Context, calendarID string, timeMin, timeMax time.Time) ([]*calendar.Event, error) {
	return g.items, nil
}

func (g *stubGoogle) InsertEvent(ctx context.Context, calendarID string, event *calendar.Event) (*calendar.Event, error) {
	return nil, errors.New("not used")
}

func (g *stubGoogle) ForToken(ctx context.Context, token *oauth2.Token) (calclient.CalendarClient, error) {
	return g, nil
}

type stubSession struct{}

func (stubSession) Token() (*oauth2.Token, error) { return nil, nil }
func (stubSession) Connected() bool { return false }

type stubOAuth struct {
	exchangeErr  error
	exchanged    bool
	disconnected bool
}

func (o *stubOAuth) AuthURL() (string, error) {
	return "https://accounts.google.com/o/oauth2/auth?state=abc", nil
}

func (o *stubOAuth) Exchange(ctx context.Context, state, code string) error {
	o.exchanged = true
	return o.exchangeErr
}

func (o *stubOAuth) Disconnect(ctx context.Context) error {
	o.disconnected = true
	return nil
}

func newTestServer(t *testing.T, items ...*calendar.Event) (*Server, *stubOAuth) {
	t.Helper()
	return newLoggingTestServer(t, nil, items...)
}

func newLoggingTestServer(t *testing.T, logger *logging.Logger, items ...*calendar.Event) (*Server, *stubOAuth) {
	t.Helper()
	syncer := calsync.NewSyncer(&stubGoogle{items: items}, inquiry.NewInMemoryRepository(), "clinic", time.UTC, nil, nil)
	board := booking.NewBoard(syncer, stubSession{}, nil, booking.Options{
		Now: func() time.Time { return time.Date(2024, 3, 5, 8, 0, 0, 0, time.UTC) },
	})
	board.Load(context.Background())

	oauth := &stubOAuth{}
	srv := NewServer(Config{
		Board:          board,
		OAuth:          oauth,
		Logger:         logger,
		AdminJWTSecret: testSecret,
		MetricsHandler: http.NotFoundHandler(),
	})
	return srv, oauth
}

func do(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, testSecret))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthIsPublic(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCalendarRequiresAdmin(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/calendar", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCalendarSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, &calendar.Event{
		Id:      "g1",
		Summary: "Consult",
		Start:   &calendar.EventDateTime{DateTime: "2024-03-05T10:00:00Z"},
		End:     &calendar.EventDateTime{DateTime: "2024-03-05T10:30:00Z"},
	})

	rec := do(t, srv, http.MethodGet, "/api/calendar?date=2024-03-05", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Month     string `json:"month"`
		Selected  string `json:"selected"`
		DayEvents []struct {
			ID   string `json:"id"`
			When string `json:"when"`
		} `json:"dayEvents"`
		Upcoming []json.RawMessage `json:"upcoming"`
		Cells    []json.RawMessage `json:"cells"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "2024-03", body.Month)
	assert.Equal(t, "2024-03-05", body.Selected)
	require.Len(t, body.DayEvents, 1)
	assert.Equal(t, "g1", body.DayEvents[0].ID)
	assert.Equal(t, "Tue, Mar 5, 2024 10:00 AM - 10:30 AM", body.DayEvents[0].When)
	assert.Len(t, body.Upcoming, 1)
	assert.Len(t, body.Cells, 5+31)
}

func TestCalendarRejectsBadMonth(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/calendar?month=March", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSlotsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/api/calendar/slots?date=2024-03-06", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Slots []struct {
			Time   string `json:"time"`
			Booked bool   `json:"booked"`
		} `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Slots, 16)
	assert.Equal(t, "09:00", body.Slots[0].Time)
	assert.Equal(t, "16:30", body.Slots[15].Time)

	rec = do(t, srv, http.MethodGet, "/api/calendar/slots", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateAppointmentFlow(t *testing.T) {
	srv, _ := newTestServer(t)
	appt := booking.LocalAppointment{Name: "Ada", Email: "ada@example.com", Date: "2024-03-06", Slot: "11:00"}

	rec := do(t, srv, http.MethodPost, "/api/appointments", appt)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"inquiry":true`)

	rec = do(t, srv, http.MethodPost, "/api/appointments", appt)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/appointments", booking.LocalAppointment{Date: "2024-03-06"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var verr validationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &verr))
	assert.Contains(t, verr.Fields, "name")

	rec = do(t, srv, http.MethodGet, "/api/calendar/slots?date=2024-03-06", nil)
	assert.Contains(t, rec.Body.String(), `{"time":"11:00","booked":true}`)
}

func TestCreateGoogleEventNeedsConsent(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/calendar/events", booking.GoogleAppointment{
		Summary: "Offsite", AllDay: true, StartDate: "2024-03-08",
	})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body authRequiredResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, strings.HasPrefix(body.AuthURL, "https://accounts.google.com/"))
}

func TestInvalidJSONBody(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/appointments", strings.NewReader("{"))
	req.Header.Set("Authorization", "Bearer "+signedAdminToken(t, testSecret))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOAuthCallbackConsentDenied(t *testing.T) {
	srv, oauth := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?error=access_denied", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, oauth.exchanged)
	assert.NotEmpty(t, srv.board.Snapshot(time.Time{}).AuthError)
}

func TestOAuthCallbackSuccess(t *testing.T) {
	srv, oauth := newTestServer(t)
	srv.board.SetAuthError("stale")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=abc&code=xyz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, oauth.exchanged)
	assert.Empty(t, srv.board.Snapshot(time.Time{}).AuthError)
}

func TestOAuthCallbackTimeout(t *testing.T) {
	srv, oauth := newTestServer(t)
	oauth.exchangeErr = context.DeadlineExceeded

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/callback?state=abc&code=xyz", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, srv.board.Snapshot(time.Time{}).AuthError, "timed out")
}

func TestDisconnect(t *testing.T) {
	srv, oauth := newTestServer(t)
	rec := do(t, srv, http.MethodPost, "/api/auth/disconnect", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, oauth.disconnected)
}

func TestICSExport(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := do(t, srv, http.MethodGet, "/calendar.ics", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, srv, http.MethodPost, "/api/appointments", booking.LocalAppointment{Name: "Ada", Email: "ada@example.com", Date: "2024-03-06", Slot: "09:00"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, srv, http.MethodGet, "/calendar.ics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/calendar; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), "SUMMARY:Appointment: Ada")
}

func TestCreateAppointmentLogsAdminSubject(t *testing.T) {
	var logs bytes.Buffer
	srv, _ := newLoggingTestServer(t, logging.NewWithWriter("info", &logs))

	rec := do(t, srv, http.MethodPost, "/api/appointments", booking.LocalAppointment{
		Name:  "Ada Lovelace",
		Email: "ada@example.com",
		Date:  "2024-03-06",
		Slot:  "10:00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, logs.String(), `"msg":"appointment created"`)
	assert.Contains(t, logs.String(), `"admin":"admin-user"`)
}
