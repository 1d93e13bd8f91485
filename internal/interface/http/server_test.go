package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/application/command"
	"github.com/alem-hub/mentorship-hub/internal/application/query"
	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/persistence/sqlite"
	"github.com/alem-hub/mentorship-hub/internal/interface/http/handlers"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

const (
	testSecret = "test-secret"
	adminKey   = "admin-key"
)

var (
	almaty = timeutil.AlmatyTZ

	studentA   = shared.Caller{UserID: "student-a", Role: shared.RoleStudent}
	studentB   = shared.Caller{UserID: "student-b", Role: shared.RoleStudent}
	mentorUser = shared.Caller{UserID: "mentor-user", Role: shared.RoleMentor}

	slot = time.Date(2025, 11, 5, 14, 0, 0, 0, almaty)
)

type apiEnv struct {
	handler http.Handler
	auth    *handlers.JWTAuth
	clock   *timeutil.FixedClock
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "booking.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := timeutil.NewFixedClock(time.Date(2025, 11, 1, 10, 0, 0, 0, almaty))
	deps := command.Deps{
		Tx:       store,
		Sessions: store.Sessions(),
		Mentors:  store.Mentors(),
		Clock:    clock,
		Location: almaty,
	}

	_, err = command.NewUpsertMentorProfileHandler(deps).Handle(context.Background(), command.UpsertMentorProfileCommand{
		ID:          "m1",
		UserID:      mentorUser.UserID,
		DisplayName: "Aigerim",
		RatePerChat: 5000,
		IsApproved:  true,
		Availability: []mentor.WeeklyWindow{
			{Weekday: time.Wednesday, StartTime: "14:00", EndTime: "16:00"},
		},
	})
	require.NoError(t, err)

	hash, err := handlers.HashAPIKey(adminKey)
	require.NoError(t, err)

	auth := handlers.NewJWTAuth(testSecret, "")
	cfg := DefaultConfig()
	cfg.Location = almaty
	cfg.RateLimit = 0

	srv := NewServer(cfg, Dependencies{
		CreateBooking:     command.NewCreateBookingRequestHandler(deps),
		ApproveBooking:    command.NewApproveBookingHandler(deps),
		RejectBooking:     command.NewRejectBookingHandler(deps),
		CancelSession:     command.NewCancelSessionHandler(deps),
		CompleteSession:   command.NewCompleteSessionHandler(deps),
		MarkNoShow:        command.NewMarkNoShowHandler(deps),
		RateSession:       command.NewRateSessionHandler(deps),
		RecalculateStats:  command.NewRecalculateMentorStatsHandler(deps),
		UpsertMentor:      command.NewUpsertMentorProfileHandler(deps),
		GetAvailableSlots: query.NewGetAvailableSlotsHandler(store.Mentors(), store.Sessions(), clock, almaty, 0),
		GetMentorProfile:  query.NewGetMentorProfileHandler(store.Mentors(), store.Sessions(), nil, nil),
		GetSession:        query.NewGetSessionHandler(store.Sessions(), clock),
		ListSessions:      query.NewListSessionsHandler(store.Sessions(), store.Mentors(), clock),
		Auth:              auth,
		AdminAuth:         handlers.NewAPIKeyAuth("X-API-Key", []string{hash}),
		Logger:            logger.Nop(),
		Clock:             clock,
	})

	return &apiEnv{handler: srv.Handler(), auth: auth, clock: clock}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
}

func (e *apiEnv) do(t *testing.T, method, path string, caller *shared.Caller, body any, headers ...string) (int, envelope) {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if caller != nil {
		token, err := e.auth.Issue(*caller, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v))
	return v
}

// ══════════════════════════════════════════════════════════════════════════════
// Booking flow
// ══════════════════════════════════════════════════════════════════════════════

func TestBookingFlowOverHTTP(t *testing.T) {
	e := newAPIEnv(t)

	code, env := e.do(t, http.MethodPost, "/api/v1/mentors/m1/bookings", &studentA, map[string]any{
		"scheduled_at": slot.Format(time.RFC3339),
		"message":      "career advice",
	})
	require.Equal(t, http.StatusCreated, code, env.Error)
	booking := decodeData[createBookingResponse](t, env)
	require.NotEmpty(t, booking.SessionID)
	assert.Equal(t, "pending", string(booking.Status))

	sessionPath := "/api/v1/sessions/" + booking.SessionID

	// Only the mentor can approve.
	code, env = e.do(t, http.MethodPost, sessionPath+"/approve", &studentA, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "forbidden", env.Error.Code)

	code, env = e.do(t, http.MethodPost, sessionPath+"/approve", &mentorUser, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	tr := decodeData[transitionResponse](t, env)
	assert.Equal(t, "pending", string(tr.FromStatus))
	assert.Equal(t, "confirmed", string(tr.Status))

	code, env = e.do(t, http.MethodPost, sessionPath+"/approve", &mentorUser, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", env.Error.Code)

	// The slot is taken for everyone else.
	code, env = e.do(t, http.MethodPost, "/api/v1/mentors/m1/bookings", &studentB, map[string]any{
		"scheduled_at": slot.Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "conflict", env.Error.Code)

	// Parties read the session; strangers do not.
	code, env = e.do(t, http.MethodGet, sessionPath, &studentA, nil)
	require.Equal(t, http.StatusOK, code)
	view := decodeData[query.SessionView](t, env)
	assert.Equal(t, "confirmed", string(view.Status))
	assert.False(t, view.CanComplete)

	code, _ = e.do(t, http.MethodGet, sessionPath, &studentB, nil)
	assert.Equal(t, http.StatusForbidden, code)

	// Complete after the slot, then rate.
	e.clock.Set(slot.Add(time.Hour))
	code, env = e.do(t, http.MethodPost, sessionPath+"/complete", &mentorUser, nil)
	require.Equal(t, http.StatusOK, code, env.Error)

	code, env = e.do(t, http.MethodPost, sessionPath+"/rating", &studentA, map[string]any{"rating": 4, "feedback": "helpful"})
	require.Equal(t, http.StatusCreated, code, env.Error)
	rating := decodeData[ratingResponse](t, env)
	require.NotNil(t, rating.Rating)
	assert.Equal(t, 4, *rating.Rating)
	assert.InDelta(t, 4.0, rating.MentorRating, 1e-9)

	code, env = e.do(t, http.MethodPost, sessionPath+"/rating", &studentA, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_state", env.Error.Code)

	code, env = e.do(t, http.MethodPut, sessionPath+"/rating", &studentA, map[string]any{"rating": 5})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.InDelta(t, 5.0, decodeData[ratingResponse](t, env).MentorRating, 1e-9)

	code, env = e.do(t, http.MethodDelete, sessionPath+"/rating", &studentA, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	deleted := decodeData[ratingResponse](t, env)
	assert.Nil(t, deleted.Rating)
	assert.Equal(t, 0, deleted.RatedSessions)

	// The mentor sees it in their list.
	code, env = e.do(t, http.MethodGet, "/api/v1/sessions?as=mentor&status=completed", &mentorUser, nil)
	require.Equal(t, http.StatusOK, code)
	list := decodeData[query.ListSessionsResult](t, env)
	require.Len(t, list.Sessions, 1)
	assert.Equal(t, booking.SessionID, list.Sessions[0].ID)
}

func TestRejectWithReason(t *testing.T) {
	e := newAPIEnv(t)

	_, env := e.do(t, http.MethodPost, "/api/v1/mentors/m1/bookings", &studentA, map[string]any{
		"scheduled_at": slot.Format(time.RFC3339),
	})
	id := decodeData[createBookingResponse](t, env).SessionID

	code, env := e.do(t, http.MethodPost, "/api/v1/sessions/"+id+"/reject", &mentorUser, map[string]any{"reason": "busy"})
	require.Equal(t, http.StatusOK, code, env.Error)
	assert.Equal(t, "rejected", string(decodeData[transitionResponse](t, env).Status))

	_, env = e.do(t, http.MethodGet, "/api/v1/sessions/"+id, &studentA, nil)
	assert.Equal(t, "busy", decodeData[query.SessionView](t, env).RejectionReason)
}

// ══════════════════════════════════════════════════════════════════════════════
// Reads
// ══════════════════════════════════════════════════════════════════════════════

func TestGetSlotsAndProfile(t *testing.T) {
	e := newAPIEnv(t)

	code, env := e.do(t, http.MethodGet, "/api/v1/mentors/m1/slots?start=2025-11-03&end=2025-11-09", nil, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	slots := decodeData[query.GetAvailableSlotsResult](t, env)
	assert.Equal(t, 4, slots.TotalSlots)
	assert.Equal(t, 30, slots.DurationMinutes)

	code, env = e.do(t, http.MethodGet, "/api/v1/mentors/m1/slots?start=tomorrow", nil, nil)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "validation_error", env.Error.Code)

	code, env = e.do(t, http.MethodGet, "/api/v1/mentors/m1", nil, nil)
	require.Equal(t, http.StatusOK, code)
	profile := decodeData[query.MentorProfileView](t, env)
	assert.Equal(t, "Aigerim", profile.DisplayName)

	code, env = e.do(t, http.MethodGet, "/api/v1/mentors/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error.Code)
}

func TestGetSlotsDefaultRangeFollowsClock(t *testing.T) {
	e := newAPIEnv(t)

	code, env := e.do(t, http.MethodGet, "/api/v1/mentors/m1/slots", nil, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	slots := decodeData[query.GetAvailableSlotsResult](t, env)
	now := e.clock.Now()
	assert.True(t, slots.From.Equal(now), "from %s", slots.From)
	assert.True(t, slots.To.Equal(now.Add(mentor.DefaultLookahead)), "to %s", slots.To)
	assert.Equal(t, 8, slots.TotalSlots)

	e.clock.Set(time.Date(2025, 11, 13, 10, 0, 0, 0, almaty))
	code, env = e.do(t, http.MethodGet, "/api/v1/mentors/m1/slots", nil, nil)
	require.Equal(t, http.StatusOK, code, env.Error)
	slots = decodeData[query.GetAvailableSlotsResult](t, env)
	require.Len(t, slots.Days, 2)
	assert.Equal(t, "2025-11-19", slots.Days[0].Date)
	assert.Equal(t, "2025-11-26", slots.Days[1].Date)
}

// ══════════════════════════════════════════════════════════════════════════════
// Authentication
// ══════════════════════════════════════════════════════════════════════════════

func TestAuthentication(t *testing.T) {
	e := newAPIEnv(t)

	t.Run("missing token", func(t *testing.T) {
		code, env := e.do(t, http.MethodPost, "/api/v1/mentors/m1/bookings", nil, map[string]any{
			"scheduled_at": slot.Format(time.RFC3339),
		})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "unauthenticated", env.Error.Code)
	})

	t.Run("bad signature", func(t *testing.T) {
		other := handlers.NewJWTAuth("other-secret", "")
		token, err := other.Issue(studentA, time.Hour)
		require.NoError(t, err)

		code, env := e.do(t, http.MethodGet, "/api/v1/sessions", nil, nil, "Authorization", "Bearer "+token)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "invalid_token", env.Error.Code)
	})

	t.Run("malformed body", func(t *testing.T) {
		code, env := e.do(t, http.MethodPost, "/api/v1/mentors/m1/bookings", &studentA, "{not json")
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "validation_error", env.Error.Code)
	})
}

func TestAdminRoutes(t *testing.T) {
	e := newAPIEnv(t)

	code, env := e.do(t, http.MethodPost, "/api/v1/admin/mentors/m1/recalculate", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "missing_api_key", env.Error.Code)

	code, env = e.do(t, http.MethodPost, "/api/v1/admin/mentors/m1/recalculate", nil, nil, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "invalid_api_key", env.Error.Code)

	code, env = e.do(t, http.MethodPost, "/api/v1/admin/mentors/m1/recalculate", nil, nil, "X-API-Key", adminKey)
	require.Equal(t, http.StatusOK, code, env.Error)
	recalc := decodeData[recalculateResponse](t, env)
	assert.Equal(t, "m1", recalc.MentorID)
	assert.False(t, recalc.Changed)

	code, env = e.do(t, http.MethodPut, "/api/v1/admin/mentors/m2", nil, map[string]any{
		"user_id":      "mentor-two",
		"display_name": "Dias",
		"is_approved":  true,
	}, "X-API-Key", adminKey)
	require.Equal(t, http.StatusCreated, code, env.Error)
	created := decodeData[mentorResponse](t, env)
	assert.True(t, created.Created)
	assert.InDelta(t, mentor.DefaultRating, created.Stats.Rating, 1e-9)

	code, env = e.do(t, http.MethodPut, "/api/v1/admin/mentors/m2", nil, map[string]any{
		"id":      "other",
		"user_id": "mentor-two",
	}, "X-API-Key", adminKey)
	assert.Equal(t, http.StatusBadRequest, code)
}

// ══════════════════════════════════════════════════════════════════════════════
// Infrastructure
// ══════════════════════════════════════════════════════════════════════════════

func TestHealthEndpoints(t *testing.T) {
	checker := handlers.NewCompositeHealthChecker("test")
	checker.AddCheck("database", func(context.Context) error { return nil })
	srv := NewServer(DefaultConfig(), Dependencies{HealthChecker: checker, Logger: logger.Nop()})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	checker.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "redis"))

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMemoryRateLimiter(t *testing.T) {
	rl := NewMemoryRateLimiter(2, time.Minute)
	now := time.Date(2025, 11, 1, 10, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := rl.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)

	ok, _ = rl.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are limited independently")

	now = now.Add(time.Minute + time.Second)
	ok, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
}

func TestRateLimitMiddleware(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimit = 1
	srv := NewServer(cfg, Dependencies{Logger: logger.Nop()})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
}
