package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"net/http"
	"time"

	"github.com/beekhof/admin-calendar/internal/auth"
	"github.com/beekhof/admin-calendar/internal/booking"
	"github.com/beekhof/admin-calendar/internal/events"
	"github.com/beekhof/admin-calendar/internal/ics"
)

const (
	monthLayout  = "2006-01"
	dateLayout   = "2006-01-02"
	maxBodyBytes = 64 << 10
)

// eventView adds the display string of an event.
type eventView struct {
	events.Event
	When    string `json:"when"`
	Inquiry bool   `json:"inquiry"`
}

type calendarResponse struct {
	booking.Snapshot
	DayEvents []eventView `json:"dayEvents"`
	Upcoming  []eventView `json:"upcoming"`
}

func (s *Server) views(evs []events.Event) []eventView {
	out := make([]eventView, len(evs))
	for i, ev := range evs {
		out[i] = eventView{
			Event:   ev,
			When:    events.FormatWhen(ev, s.board.Location()),
			Inquiry: ev.IsInquiry(),
		}
	}
	return out
}

func (s *Server) snapshotResponse(selected time.Time) calendarResponse {
	snap := s.board.Snapshot(selected)
	return calendarResponse{
		Snapshot:  snap,
		DayEvents: s.views(snap.DayEvents),
		Upcoming:  s.views(snap.Upcoming),
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCalendar serves the board. month moves the grid and re-fetches
// Google events; date picks the day list and defaults the month to its own.
func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	loc := s.board.Location()
	q := r.URL.Query()

	var selected time.Time
	if v := q.Get("date"); v != "" {
		d, err := time.ParseInLocation(dateLayout, v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
			return
		}
		selected = d
	}

	switch v := q.Get("month"); {
	case v != "":
		m, err := time.ParseInLocation(monthLayout, v, loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "month must be YYYY-MM")
			return
		}
		s.board.SetMonth(r.Context(), m)
	case !selected.IsZero():
		s.board.SetMonth(r.Context(), selected)
	}

	writeJSON(w, http.StatusOK, s.snapshotResponse(selected))
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.board.Refresh(r.Context())
	writeJSON(w, http.StatusOK, s.snapshotResponse(time.Time{}))
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	v := r.URL.Query().Get("date")
	day, err := time.ParseInLocation(dateLayout, v, s.board.Location())
	if err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"date":  day.Format(dateLayout),
		"slots": s.board.Slots(day),
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

type validationResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
}

// writeBookingError maps booking errors to responses. It reports false for
// errors it does not know.
func writeBookingError(w http.ResponseWriter, err error) bool {
	var verr *booking.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, validationResponse{Error: "validation failed", Fields: verr.Fields})
	case errors.Is(err, booking.ErrSlotBooked):
		writeError(w, http.StatusConflict, "That time slot is already booked. Please pick another.")
	default:
		return false
	}
	return true
}

func (s *Server) handleCreateAppointment(w http.ResponseWriter, r *http.Request) {
	var req booking.LocalAppointment
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := s.board.CreateLocalAppointment(r.Context(), req)
	if err != nil {
		if writeBookingError(w, err) {
			return
		}
		s.logger.Error("failed to create appointment", "admin", adminSubject(r), "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to create appointment")
		return
	}
	s.logger.Info("appointment created", "admin", adminSubject(r), "event_id", ev.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"event": s.views([]events.Event{*ev})[0]})
}

// adminSubject is the sub claim of the admin token on r.
func adminSubject(r *http.Request) string {
	claims, ok := AdminClaimsFromContext(r.Context())
	if !ok {
		return ""
	}
	return claims.Subject
}

type authRequiredResponse struct {
	Error   string `json:"error"`
	AuthURL string `json:"authUrl,omitempty"`
}

func (s *Server) handleCreateGoogleEvent(w http.ResponseWriter, r *http.Request) {
	var req booking.GoogleAppointment
	if !decodeBody(w, r, &req) {
		return
	}

	ev, err := s.board.CreateGoogleEvent(r.Context(), req)
	switch {
	case err == nil:
		s.logger.Info("google event created", "admin", adminSubject(r), "event_id", ev.ID)
		writeJSON(w, http.StatusCreated, map[string]any{"event": s.views([]events.Event{*ev})[0]})
	case errors.Is(err, booking.ErrAuthRequired):
		resp := authRequiredResponse{Error: "Connect Google Calendar to create events"}
		if s.oauth != nil {
			if url, urlErr := s.oauth.AuthURL(); urlErr == nil {
				resp.AuthURL = url
			}
		}
		writeJSON(w, http.StatusUnauthorized, resp)
	case writeBookingError(w, err):
	default:
		s.logger.Error("failed to create google event", "admin", adminSubject(r), "error", err)
		writeError(w, http.StatusBadGateway, "Failed to create Google Calendar event")
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	if s.oauth == nil {
		writeError(w, http.StatusServiceUnavailable, auth.ErrNotReady.Error())
		return
	}
	url, err := s.oauth.AuthURL()
	if err != nil {
		s.board.SetAuthError("Google sign-in is not available. Check the OAuth client configuration.")
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// handleOAuthCallback finishes the consent flow in the admin's browser.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if errMsg := q.Get("error"); errMsg != "" {
		s.board.SetAuthError(auth.ErrConsentDenied.Error())
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>Error: %s</p></body></html>", html.EscapeString(errMsg))
		return
	}
	if s.oauth == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "<html><body><h1>Google sign-in is not configured</h1></body></html>")
		return
	}

	if err := s.oauth.Exchange(r.Context(), q.Get("state"), q.Get("code")); err != nil {
		message := "Google sign-in failed. Please try again."
		if errors.Is(err, context.DeadlineExceeded) {
			message = "Google sign-in timed out. Please try again."
		}
		s.logger.Warn("oauth exchange failed", "error", err)
		s.board.SetAuthError(message)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "<html><body><h1>Authorization failed</h1><p>%s</p></body></html>", html.EscapeString(message))
		return
	}

	s.board.SessionChanged(r.Context())
	fmt.Fprint(w, "<html><body><h1>Authorization successful!</h1><p>You can close this window.</p></body></html>")
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	if s.oauth != nil {
		if err := s.oauth.Disconnect(r.Context()); err != nil {
			s.logger.Warn("token revocation failed", "error", err)
		}
	}
	s.board.SessionChanged(r.Context())
	writeJSON(w, http.StatusOK, map[string]bool{"connected": false})
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	err := ics.Write(&buf, s.board.Events(), time.Now())
	if errors.Is(err, ics.ErrEmpty) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err != nil {
		s.logger.Error("failed to export calendar", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to export calendar")
		return
	}
	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="calendar.ics"`)
	_, _ = w.Write(buf.Bytes())
}
