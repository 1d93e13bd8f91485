// Package query contains the read operations of the booking engine.
// Queries never write; derived values such as can_complete and the rating
// distribution are computed on every call.
package query

import (
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
)

// SessionView is the read model of a session returned to its parties.
type SessionView struct {
	ID              string     `json:"id"`
	StudentID       string     `json:"student_id"`
	MentorID        string     `json:"mentor_id"`
	MentorUserID    string     `json:"mentor_user_id"`
	CareerID        string     `json:"career_id,omitempty"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	EndsAt          time.Time  `json:"ends_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Status          string     `json:"status"`
	Phase           string     `json:"phase"`
	StudentMessage  string     `json:"student_message,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
	CancelledBy     string     `json:"cancelled_by,omitempty"`
	RequestedAt     time.Time  `json:"requested_at"`
	RespondedAt     *time.Time `json:"responded_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Rating          *int       `json:"rating,omitempty"`
	Feedback        string     `json:"feedback,omitempty"`
	CanComplete     bool       `json:"can_complete"`
}

// NewSessionView builds the view of s as seen at now.
func NewSessionView(s *session.Session, now time.Time) SessionView {
	v := SessionView{
		ID:              s.ID,
		StudentID:       s.StudentID,
		MentorID:        s.MentorID,
		MentorUserID:    s.MentorUserID,
		CareerID:        s.CareerID,
		ScheduledAt:     s.ScheduledAt,
		EndsAt:          s.EndsAt(),
		DurationMinutes: int(s.Duration / time.Minute),
		Status:          s.Status.String(),
		Phase:           s.Status.Phase().String(),
		StudentMessage:  s.StudentMessage,
		RejectionReason: s.RejectionReason,
		CancelledBy:     s.CancelledBy,
		RequestedAt:     s.RequestedAt,
		RespondedAt:     s.RespondedAt,
		CompletedAt:     s.CompletedAt,
		Feedback:        s.Feedback,
		CanComplete:     s.CanComplete(now),
	}
	if s.Rating != nil {
		r := int(*s.Rating)
		v.Rating = &r
	}
	return v
}

// StatsView is the public form of mentor stats.
type StatsView struct {
	Rating            float64    `json:"rating"`
	RatedSessions     int        `json:"rated_sessions"`
	ChatsCompleted    int        `json:"chats_completed"`
	TotalEarnings     int64      `json:"total_earnings"`
	EarningsThisMonth int64      `json:"earnings_this_month"`
	EarningsLastMonth int64      `json:"earnings_last_month"`
	RecalculatedAt    *time.Time `json:"recalculated_at,omitempty"`
}

// NewStatsView converts domain stats.
func NewStatsView(s mentor.Stats) StatsView {
	return StatsView{
		Rating:            s.Rating,
		RatedSessions:     s.RatedSessions,
		ChatsCompleted:    s.ChatsCompleted,
		TotalEarnings:     s.TotalEarnings,
		EarningsThisMonth: s.EarningsThisMonth,
		EarningsLastMonth: s.EarningsLastMonth,
		RecalculatedAt:    s.RecalculatedAt,
	}
}
