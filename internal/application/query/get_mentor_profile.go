package query

import (
	"context"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET MENTOR PROFILE QUERY
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRecentReviews is the number of reviews shown on a profile.
const DefaultRecentReviews = 5

// ProfileCache stores rendered profile views. Any error from Get is a miss.
type ProfileCache interface {
	Get(ctx context.Context, mentorID string, dest any) error
	Set(ctx context.Context, mentorID string, view any) error
}

// ReviewView is one rated session shown on a profile.
type ReviewView struct {
	SessionID   string    `json:"session_id"`
	Rating      int       `json:"rating"`
	Feedback    string    `json:"feedback,omitempty"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// MentorProfileView is the public profile of a mentor.
type MentorProfileView struct {
	ID                 string                `json:"id"`
	UserID             string                `json:"user_id"`
	DisplayName        string                `json:"display_name"`
	Company            string                `json:"company,omitempty"`
	JobTitle           string                `json:"job_title,omitempty"`
	Bio                string                `json:"bio,omitempty"`
	YearsExperience    int                   `json:"years_experience"`
	RatePerChat        int64                 `json:"rate_per_chat"`
	IsApproved         bool                  `json:"is_approved"`
	CareerIDs          []string              `json:"career_ids"`
	Availability       []mentor.WeeklyWindow `json:"availability"`
	SessionMinutes     int                   `json:"session_minutes"`
	Stats              StatsView             `json:"stats"`
	RatingDistribution map[int]int           `json:"rating_distribution"`
	RecentReviews      []ReviewView          `json:"recent_reviews"`
}

// GetMentorProfileQuery asks for one mentor's profile.
type GetMentorProfileQuery struct {
	MentorID string
}

// GetMentorProfileHandler handles GetMentorProfileQuery.
type GetMentorProfileHandler struct {
	mentors  mentor.Repository
	sessions session.Repository
	cache    ProfileCache
	reviews  int
	log      *logger.Logger
}

// NewGetMentorProfileHandler creates a new GetMentorProfileHandler.
// cache may be nil.
func NewGetMentorProfileHandler(
	mentors mentor.Repository,
	sessions session.Repository,
	cache ProfileCache,
	log *logger.Logger,
) *GetMentorProfileHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &GetMentorProfileHandler{
		mentors:  mentors,
		sessions: sessions,
		cache:    cache,
		reviews:  DefaultRecentReviews,
		log:      log,
	}
}

// WithRecentReviews sets how many reviews a profile shows.
func (h *GetMentorProfileHandler) WithRecentReviews(n int) *GetMentorProfileHandler {
	if n >= 0 {
		h.reviews = n
	}
	return h
}

// Handle returns the profile view, reading through the cache.
func (h *GetMentorProfileHandler) Handle(ctx context.Context, q GetMentorProfileQuery) (*MentorProfileView, error) {
	if q.MentorID == "" {
		return nil, shared.NewDomainError("mentor", "GetProfile", shared.ErrValidation, "mentor id is required")
	}

	if h.cache != nil {
		var cached MentorProfileView
		if err := h.cache.Get(ctx, q.MentorID, &cached); err == nil {
			return &cached, nil
		}
	}

	view, err := h.load(ctx, q.MentorID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, q.MentorID, view); err != nil {
			h.log.Warn("failed to cache mentor profile",
				logger.MentorID(q.MentorID),
				logger.Err(err),
			)
		}
	}
	return view, nil
}

func (h *GetMentorProfileHandler) load(ctx context.Context, mentorID string) (*MentorProfileView, error) {
	p, err := h.mentors.GetByID(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	completed, err := h.sessions.ListCompleted(ctx, mentorID)
	if err != nil {
		return nil, err
	}

	rated, err := h.sessions.List(ctx, session.ListFilter{
		MentorID:    mentorID,
		OnlyRated:   true,
		NewestFirst: true,
		Limit:       h.reviews,
	})
	if err != nil {
		return nil, err
	}

	view := &MentorProfileView{
		ID:                 p.ID,
		UserID:             p.UserID,
		DisplayName:        p.DisplayName,
		Company:            p.Company,
		JobTitle:           p.JobTitle,
		Bio:                p.Bio,
		YearsExperience:    p.YearsExperience,
		RatePerChat:        p.RatePerChat,
		IsApproved:         p.IsApproved,
		CareerIDs:          nonNil(p.CareerIDs),
		Availability:       p.Availability,
		SessionMinutes:     int(p.SlotDuration() / time.Minute),
		Stats:              NewStatsView(p.Stats),
		RatingDistribution: mentor.ComputeDistribution(completed).Map(),
		RecentReviews:      make([]ReviewView, 0, len(rated)),
	}
	if view.Availability == nil {
		view.Availability = []mentor.WeeklyWindow{}
	}
	for _, s := range rated {
		view.RecentReviews = append(view.RecentReviews, ReviewView{
			SessionID:   s.ID,
			Rating:      int(*s.Rating),
			Feedback:    s.Feedback,
			ScheduledAt: s.ScheduledAt,
		})
	}
	return view, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

// clockOrSystem returns c, or the system clock when c is nil.
func clockOrSystem(c timeutil.Clock) timeutil.Clock {
	if c == nil {
		return timeutil.SystemClock{}
	}
	return c
}
