package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/application/command"
	"github.com/alem-hub/mentorship-hub/internal/application/query"
	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/internal/interface/http/handlers"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"healthy": true,
			"uptime":  s.Uptime().Round(time.Second).String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// MENTOR HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetSlots serves GET /api/v1/mentors/{id}/slots?start=&end=.
// Both bounds accept RFC 3339 timestamps or YYYY-MM-DD dates; a date end is
// inclusive.
func (s *Server) handleGetSlots(w http.ResponseWriter, r *http.Request) {
	loc := s.location()
	now := s.clock.Now().In(loc)

	from, err := parseTimeParam(r, "start", loc, false)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if from.IsZero() {
		from = now
	}
	to, err := parseTimeParam(r, "end", loc, true)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if to.IsZero() {
		to = from.Add(mentor.DefaultLookahead)
	}

	result, err := s.deps.GetAvailableSlots.Handle(r.Context(), query.GetAvailableSlotsQuery{
		MentorID: r.PathValue("id"),
		From:     from,
		To:       to,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

type createBookingRequest struct {
	ScheduledAt time.Time `json:"scheduled_at"`
	CareerID    string    `json:"career_id"`
	Message     string    `json:"message"`
}

type createBookingResponse struct {
	SessionID   string         `json:"session_id"`
	Status      session.Status `json:"status"`
	ScheduledAt time.Time      `json:"scheduled_at"`
	EndsAt      time.Time      `json:"ends_at"`
}

func (s *Server) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := decodeJSON(r, &req, true); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	result, err := s.deps.CreateBooking.Handle(r.Context(), command.CreateBookingRequestCommand{
		Caller:      handlers.CallerFromContext(r.Context()),
		MentorID:    r.PathValue("id"),
		ScheduledAt: req.ScheduledAt,
		CareerID:    req.CareerID,
		Message:     req.Message,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Location", "/api/v1/sessions/"+result.SessionID)
	writeJSON(w, r, http.StatusCreated, createBookingResponse{
		SessionID:   result.SessionID,
		Status:      result.Status,
		ScheduledAt: result.ScheduledAt,
		EndsAt:      result.EndsAt,
	})
}

func (s *Server) handleGetMentorProfile(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.GetMentorProfile.Handle(r.Context(), query.GetMentorProfileQuery{
		MentorID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	view, err := s.deps.GetSession.Handle(r.Context(), query.GetSessionQuery{
		Caller:    handlers.CallerFromContext(r.Context()),
		SessionID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, view)
}

// handleListSessions serves GET /api/v1/sessions?as=student|mentor&status=a,b.
func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	q := query.ListSessionsQuery{
		Caller: handlers.CallerFromContext(r.Context()),
		As:     query.ListAs(getQueryParam(r, "as", string(query.ListAsStudent))),
		Limit:  getQueryParamInt(r, "limit", 0),
		Offset: getQueryParamInt(r, "offset", 0),
	}
	for _, raw := range strings.Split(r.URL.Query().Get("status"), ",") {
		if raw = strings.TrimSpace(raw); raw != "" {
			q.Statuses = append(q.Statuses, session.Status(strings.ToLower(raw)))
		}
	}

	result, err := s.deps.ListSessions.Handle(r.Context(), q)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle transitions
// ─────────────────────────────────────────────────────────────────────────────

type transitionResponse struct {
	SessionID   string         `json:"session_id"`
	FromStatus  session.Status `json:"from_status"`
	Status      session.Status `json:"status"`
	CanComplete bool           `json:"can_complete"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func (s *Server) writeTransition(w http.ResponseWriter, r *http.Request, result *command.TransitionResult, err error) {
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, transitionResponse{
		SessionID:   result.SessionID,
		FromStatus:  result.From,
		Status:      result.Status,
		CanComplete: result.CanComplete,
		UpdatedAt:   result.UpdatedAt,
	})
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.ApproveBooking.Handle(r.Context(), command.ApproveBookingCommand{
		Caller:    handlers.CallerFromContext(r.Context()),
		SessionID: r.PathValue("id"),
	})
	s.writeTransition(w, r, result, err)
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	var req rejectRequest
	if err := decodeJSON(r, &req, false); err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	result, err := s.deps.RejectBooking.Handle(r.Context(), command.RejectBookingCommand{
		Caller:    handlers.CallerFromContext(r.Context()),
		SessionID: r.PathValue("id"),
		Reason:    req.Reason,
	})
	s.writeTransition(w, r, result, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.CancelSession.Handle(r.Context(), command.CancelSessionCommand{
		Caller:    handlers.CallerFromContext(r.Context()),
		SessionID: r.PathValue("id"),
	})
	s.writeTransition(w, r, result, err)
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.CompleteSession.Handle(r.Context(), command.CompleteSessionCommand{
		Caller:    handlers.CallerFromContext(r.Context()),
		SessionID: r.PathValue("id"),
	})
	s.writeTransition(w, r, result, err)
}

func (s *Server) handleNoShow(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.MarkNoShow.Handle(r.Context(), command.MarkNoShowCommand{
		Caller:    handlers.CallerFromContext(r.Context()),
		SessionID: r.PathValue("id"),
	})
	s.writeTransition(w, r, result, err)
}

// ─────────────────────────────────────────────────────────────────────────────
// Ratings
// ─────────────────────────────────────────────────────────────────────────────

type ratingRequest struct {
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

type ratingResponse struct {
	SessionID     string  `json:"session_id"`
	MentorID      string  `json:"mentor_id"`
	Rating        *int    `json:"rating"`
	MentorRating  float64 `json:"mentor_rating"`
	RatedSessions int     `json:"rated_sessions"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	s.handleRating(w, r, shared.RatingSubmitted, http.StatusCreated)
}

func (s *Server) handleUpdateRating(w http.ResponseWriter, r *http.Request) {
	s.handleRating(w, r, shared.RatingUpdated, http.StatusOK)
}

func (s *Server) handleDeleteRating(w http.ResponseWriter, r *http.Request) {
	s.handleRating(w, r, shared.RatingDeleted, http.StatusOK)
}

func (s *Server) handleRating(w http.ResponseWriter, r *http.Request, action shared.RatingAction, okStatus int) {
	var req ratingRequest
	if action != shared.RatingDeleted {
		if err := decodeJSON(r, &req, true); err != nil {
			s.writeDomainError(w, r, err)
			return
		}
	}

	result, err := s.deps.RateSession.Handle(r.Context(), command.RateSessionCommand{
		Caller:    handlers.CallerFromContext(r.Context()),
		SessionID: r.PathValue("id"),
		Action:    action,
		Rating:    req.Rating,
		Feedback:  req.Feedback,
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	resp := ratingResponse{
		SessionID:     result.SessionID,
		MentorID:      result.MentorID,
		MentorRating:  result.MentorRating,
		RatedSessions: result.RatedSessions,
	}
	if result.Rating != nil {
		v := int(*result.Rating)
		resp.Rating = &v
	}
	writeJSON(w, r, okStatus, resp)
}

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

type recalculateResponse struct {
	MentorID string          `json:"mentor_id"`
	Stats    query.StatsView `json:"stats"`
	Changed  bool            `json:"changed"`
}

func (s *Server) handleRecalculate(w http.ResponseWriter, r *http.Request) {
	result, err := s.deps.RecalculateStats.Handle(r.Context(), command.RecalculateMentorStatsCommand{
		MentorID: r.PathValue("id"),
	})
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, recalculateResponse{
		MentorID: result.MentorID,
		Stats:    query.NewStatsView(result.Stats),
		Changed:  result.Changed,
	})
}

type mentorResponse struct {
	ID              string                `json:"id"`
	UserID          string                `json:"user_id"`
	DisplayName     string                `json:"display_name"`
	IsApproved      bool                  `json:"is_approved"`
	RatePerChat     int64                 `json:"rate_per_chat"`
	CareerIDs       []string              `json:"career_ids"`
	Availability    []mentor.WeeklyWindow `json:"availability"`
	DurationMinutes int                   `json:"duration_minutes"`
	Stats           query.StatsView       `json:"stats"`
	Created         bool                  `json:"created"`
}

// handleUpsertMentor serves PUT /api/v1/admin/mentors/{id}. The body id, when
// present, must match the path.
func (s *Server) handleUpsertMentor(w http.ResponseWriter, r *http.Request) {
	var cmd command.UpsertMentorProfileCommand
	if err := decodeJSON(r, &cmd, true); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	id := r.PathValue("id")
	if cmd.ID != "" && cmd.ID != id {
		s.writeDomainError(w, r, shared.NewDomainError("mentor", "Upsert", shared.ErrValidation, "body id does not match path"))
		return
	}
	cmd.ID = id

	result, err := s.deps.UpsertMentor.Handle(r.Context(), cmd)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	p := result.Profile
	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	writeJSON(w, r, status, mentorResponse{
		ID:              p.ID,
		UserID:          p.UserID,
		DisplayName:     p.DisplayName,
		IsApproved:      p.IsApproved,
		RatePerChat:     p.RatePerChat,
		CareerIDs:       p.CareerIDs,
		Availability:    p.Availability,
		DurationMinutes: int(p.SlotDuration() / time.Minute),
		Stats:           query.NewStatsView(p.Stats),
		Created:         result.Created,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeDomainError maps an error kind to its HTTP status. Unknown errors are
// logged and reported as 500 without details.
func (s *Server) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}

	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		writeJSONError(w, r, http.StatusUnauthorized, "unauthenticated", message)
	case shared.IsUnauthorized(err):
		writeJSONError(w, r, http.StatusForbidden, "forbidden", message)
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", message)
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", message)
	case shared.IsInvalidTransition(err):
		writeJSONError(w, r, http.StatusConflict, "invalid_transition", message)
	case shared.IsInvalidState(err):
		writeJSONError(w, r, http.StatusConflict, "invalid_state", message)
	case shared.IsConflict(err), errors.Is(err, shared.ErrConcurrentModification):
		writeJSONError(w, r, http.StatusConflict, "conflict", message)
	case errors.Is(err, errBodyTooLarge):
		writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
	default:
		logger.FromContext(r.Context()).Error("request failed",
			logger.String("path", r.URL.Path),
			logger.Err(err),
		)
		writeJSONError(w, r, http.StatusInternalServerError, "internal_server_error", "An unexpected error occurred")
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

var errBodyTooLarge = errors.New("request body too large")

// decodeJSON reads the request body into dst. An empty body is an error only
// when required is set.
func decodeJSON(r *http.Request, dst any, required bool) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	err := dec.Decode(dst)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		if required {
			return shared.NewDomainError("request", "Decode", shared.ErrValidation, "request body is required")
		}
		return nil
	default:
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return shared.WrapError("request", "Decode", shared.ErrInvalidFormat, "malformed JSON body", err)
	}
}

// parseTimeParam reads an RFC 3339 timestamp or a YYYY-MM-DD date in loc.
// With endOfDay a date resolves to the following midnight.
func parseTimeParam(r *http.Request, key string, loc *time.Location, endOfDay bool) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, shared.WrapError("request", "Parse", shared.ErrInvalidFormat, key+" must be RFC 3339 or YYYY-MM-DD", err)
	}
	if endOfDay {
		d = d.AddDate(0, 0, 1)
	}
	return d, nil
}

func getQueryParam(r *http.Request, key, defaultValue string) string {
	if value := r.URL.Query().Get(key); value != "" {
		return value
	}
	return defaultValue
}

func getQueryParamInt(r *http.Request, key string, defaultValue int) int {
	value, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return defaultValue
	}
	return value
}

func (s *Server) location() *time.Location {
	if s.config.Location != nil {
		return s.config.Location
	}
	return time.UTC
}
