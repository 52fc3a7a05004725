package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alem-hub/advising-hub/internal/application/session"
	"github.com/alem-hub/advising-hub/internal/domain/content"
	"github.com/alem-hub/advising-hub/internal/domain/daterange"
	"github.com/alem-hub/advising-hub/internal/domain/shared"
	"github.com/alem-hub/advising-hub/pkg/logger"
	"github.com/alem-hub/advising-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":   "healthy",
		"uptime":   s.Uptime().String(),
		"version":  s.deps.Version,
		"sessions": s.deps.Sessions.Len(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		if status := s.deps.HealthChecker.Check(r.Context()); !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// VIEW & SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type viewInfo struct {
	Name      string `json:"name"`
	Title     string `json:"title"`
	PageSize  int    `json:"page_size"`
	SelectAll string `json:"select_all"`
	Source    string `json:"source"`
}

// handleListViews handles GET /api/v1/views
func (s *Server) handleListViews(w http.ResponseWriter, _ *http.Request) {
	views := s.deps.Sessions.Views()
	out := make([]viewInfo, 0, len(views))
	for _, v := range views {
		out = append(out, viewInfo{
			Name:      v.Name,
			Title:     v.Title,
			PageSize:  v.PageSize,
			SelectAll: v.SelectAll,
			Source:    v.Source.Kind,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// handleOpenSession handles POST /api/v1/views/{view}/sessions
func (s *Server) handleOpenSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.deps.Sessions.Open(r.PathValue("view"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := sess.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/api/v1/sessions/"+sess.ID().String())
	writeJSON(w, http.StatusCreated, snap)
}

// handleGetSession handles GET /api/v1/sessions/{id}. With ?wait=true it
// blocks until the current load settles.
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *session.Session) (session.Snapshot, error) {
		if r.URL.Query().Get("wait") == "true" {
			return sess.WaitReady(ctx)
		}
		return sess.Snapshot(ctx)
	})
}

// handleCloseSession handles DELETE /api/v1/sessions/{id}
func (s *Server) handleCloseSession(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ParseSessionID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.deps.Sessions.Close(id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type pageRequest struct {
	Page int `json:"page"`
}

// handleSetPage handles POST /api/v1/sessions/{id}/page
func (s *Server) handleSetPage(w http.ResponseWriter, r *http.Request) {
	var req pageRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withSession(w, r, func(ctx context.Context, sess *session.Session) (session.Snapshot, error) {
		return sess.SetPage(ctx, req.Page)
	})
}

// selectionRequest carries the raw selection event: an id list, a map of
// id to bool, or a single id.
type selectionRequest struct {
	Selection any `json:"selection"`
}

// handleSelect handles POST /api/v1/sessions/{id}/selection
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.withSession(w, r, func(ctx context.Context, sess *session.Session) (session.Snapshot, error) {
		return sess.Select(ctx, req.Selection)
	})
}

// handleSelectAll handles POST /api/v1/sessions/{id}/select-all
func (s *Server) handleSelectAll(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *session.Session) (session.Snapshot, error) {
		return sess.SelectAll(ctx)
	})
}

// handleClear handles POST /api/v1/sessions/{id}/clear
func (s *Server) handleClear(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *session.Session) (session.Snapshot, error) {
		return sess.ClearSelection(ctx)
	})
}

// handleReload handles POST /api/v1/sessions/{id}/reload
func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	s.withSession(w, r, func(ctx context.Context, sess *session.Session) (session.Snapshot, error) {
		return sess.Reload(ctx)
	})
}

// handleBulk handles POST /api/v1/sessions/{id}/bulk/{action}. A client that
// accepts text/csv gets the export body directly.
func (s *Server) handleBulk(w http.ResponseWriter, r *http.Request) {
	id, err := shared.ParseSessionID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.deps.Sessions.RunBulk(r.Context(), id, r.PathValue("action"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if res.ContentType != "" && strings.Contains(r.Header.Get("Accept"), res.ContentType) {
		w.Header().Set("Content-Type", res.ContentType+"; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", res.Action.String()+".csv"))
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, res.Body)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) withSession(w http.ResponseWriter, r *http.Request, fn func(context.Context, *session.Session) (session.Snapshot, error)) {
	id, err := shared.ParseSessionID(r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.deps.Sessions.Get(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := fn(r.Context(), sess)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTENT & WIDGET HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type recommendationsResponse struct {
	Outline string        `json:"outline"`
	Stats   content.Stats `json:"stats"`
}

// handleRecommendations handles GET /api/v1/recommendations
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.deps.Recommendations == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Recommendations are not configured")
		return
	}
	node, err := s.deps.Recommendations()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recommendationsResponse{
		Outline: content.Render(node),
		Stats:   content.Measure(node),
	})
}

type dateRangeRequest struct {
	// Picks are days in YYYY-MM-DD form or RFC 3339 timestamps.
	Picks []string `json:"picks"`

	// Timezone is an IANA zone name. Days are read and "now" is taken in
	// it; the server's reference zone is used when empty.
	Timezone string `json:"timezone,omitempty"`
}

type dateRangeResponse struct {
	Phase string           `json:"phase"`
	Range *daterange.Range `json:"range,omitempty"`
}

// handleDateRangeClose handles POST /api/v1/date-range/close. It replays the
// picks on a fresh picker and closes it, so a lone start gets an end of
// max(start, now).
func (s *Server) handleDateRangeClose(w http.ResponseWriter, r *http.Request) {
	var req dateRangeRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}

	clock := s.deps.Clock
	if req.Timezone != "" {
		zone, err := time.LoadLocation(req.Timezone)
		if err != nil {
			s.writeError(w, r, shared.NewDomainError("daterange", "Close", shared.ErrInvalidInput,
				fmt.Sprintf("unknown timezone %q", req.Timezone)))
			return
		}
		clock = timeutil.InZone(clock, zone)
	}

	loc := clock.Location()
	p := daterange.NewPicker(clock)
	for _, raw := range req.Picks {
		t, err := parseDay(raw, loc)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		p.Pick(t)
	}

	resp := dateRangeResponse{}
	if rng, ok := p.Close(); ok {
		resp.Range = &rng
	}
	resp.Phase = p.Phase().String()
	writeJSON(w, http.StatusOK, resp)
}

func parseDay(raw string, loc *time.Location) (time.Time, error) {
	if t, err := time.ParseInLocation(time.DateOnly, raw, loc); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, shared.NewDomainError("daterange", "Pick", shared.ErrInvalidInput,
			fmt.Sprintf("unparseable date %q", raw))
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST & ERROR HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return shared.WrapError("http", "Decode", shared.ErrInvalidInput, "malformed JSON body", err)
	}
	return nil
}

// statusFor maps an error to an HTTP status and a stable error code.
func statusFor(err error) (int, string) {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.Is(err, session.ErrTooManySessions):
		return http.StatusServiceUnavailable, "too_many_sessions"
	case errors.Is(err, shared.ErrSessionClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, shared.ErrLoadPending):
		return http.StatusConflict, "load_pending"
	case errors.Is(err, shared.ErrNoSelection):
		return http.StatusConflict, "no_selection"
	case shared.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case shared.IsValidation(err):
		return http.StatusBadRequest, "invalid_request"
	case errors.Is(err, shared.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, shared.ErrExternalService):
		return http.StatusBadGateway, "upstream_error"
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, shared.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		return 499, "client_closed_request"
	default:
		return http.StatusInternalServerError, "internal_server_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", logger.String("code", code), logger.Err(err))
	} else {
		log.Debug("request rejected", logger.String("code", code), logger.Err(err),
			logger.String("request_id", getRequestID(r.Context())))
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "An unexpected error occurred"
	}
	writeJSONError(w, status, code, msg)
}
