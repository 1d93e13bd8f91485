package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SESSION AGGREGATE
// ══════════════════════════════════════════════════════════════════════════════

// MaxMessageLength bounds free-text fields written by participants.
const MaxMessageLength = 1000

// Session is one scheduled mentoring engagement between a student and a mentor.
type Session struct {
	ID           string
	StudentID    string
	MentorID     string // mentor profile ID
	MentorUserID string // user owning the mentor profile
	CareerID     string // optional topic

	ScheduledAt time.Time
	Duration    time.Duration
	Status      Status

	StudentMessage  string
	RejectionReason string
	CancelledBy     string

	RequestedAt time.Time
	RespondedAt *time.Time
	CompletedAt *time.Time

	Rating   *Rating
	Feedback string

	UpdatedAt time.Time
}

// NewSessionParams contains the fields needed to open a booking request.
type NewSessionParams struct {
	ID             string
	StudentID      string
	MentorID       string
	MentorUserID   string
	CareerID       string
	ScheduledAt    time.Time
	Duration       time.Duration
	StudentMessage string
	RequestedAt    time.Time
}

// NewSession creates a session in StatusPending.
func NewSession(params NewSessionParams) (*Session, error) {
	var errs []error
	if params.ID == "" {
		errs = append(errs, errors.New("id is required"))
	}
	if params.StudentID == "" {
		errs = append(errs, errors.New("student id is required"))
	}
	if params.MentorID == "" || params.MentorUserID == "" {
		errs = append(errs, errors.New("mentor is required"))
	}
	if params.ScheduledAt.IsZero() {
		errs = append(errs, errors.New("scheduled time is required"))
	}
	if params.Duration <= 0 {
		errs = append(errs, errors.New("duration must be positive"))
	}
	if len(params.StudentMessage) > MaxMessageLength {
		errs = append(errs, fmt.Errorf("message exceeds %d characters", MaxMessageLength))
	}
	if len(errs) > 0 {
		return nil, shared.WrapError("session", "New", shared.ErrValidation, "invalid session", errors.Join(errs...))
	}

	requestedAt := params.RequestedAt.UTC()
	return &Session{
		ID:             params.ID,
		StudentID:      params.StudentID,
		MentorID:       params.MentorID,
		MentorUserID:   params.MentorUserID,
		CareerID:       params.CareerID,
		ScheduledAt:    params.ScheduledAt.UTC(),
		Duration:       params.Duration,
		Status:         StatusPending,
		StudentMessage: strings.TrimSpace(params.StudentMessage),
		RequestedAt:    requestedAt,
		UpdatedAt:      requestedAt,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// EndsAt returns the end of the booked slot.
func (s *Session) EndsAt() time.Time {
	return s.ScheduledAt.Add(s.Duration)
}

// CanComplete reports whether the session may be marked completed at now.
// It is recomputed on every call and never stored.
func (s *Session) CanComplete(now time.Time) bool {
	return s.Status.IsAwaiting() && !now.Before(s.ScheduledAt)
}

// IsStudent reports whether userID is the attending student.
func (s *Session) IsStudent(userID string) bool {
	return userID != "" && userID == s.StudentID
}

// IsMentor reports whether userID owns the mentor profile.
func (s *Session) IsMentor(userID string) bool {
	return userID != "" && userID == s.MentorUserID
}

// IsParticipant reports whether userID is either party.
func (s *Session) IsParticipant(userID string) bool {
	return s.IsStudent(userID) || s.IsMentor(userID)
}

// Overlaps reports whether the session's slot intersects [start, start+d).
func (s *Session) Overlaps(start time.Time, d time.Duration) bool {
	return s.ScheduledAt.Before(start.Add(d)) && start.Before(s.EndsAt())
}

// ─────────────────────────────────────────────────────────────────────────────
// Lifecycle
// ─────────────────────────────────────────────────────────────────────────────

// Approve moves a pending request to confirmed.
func (s *Session) Approve(caller shared.Caller, now time.Time) error {
	if err := s.apply(caller, ActionApprove, now); err != nil {
		return err
	}
	t := now.UTC()
	s.RespondedAt = &t
	return nil
}

// Reject declines a pending request with an optional reason.
func (s *Session) Reject(caller shared.Caller, reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if len(reason) > MaxMessageLength {
		return shared.NewDomainError("session", "Reject", shared.ErrValidation, "reason is too long")
	}
	if err := s.apply(caller, ActionReject, now); err != nil {
		return err
	}
	t := now.UTC()
	s.RespondedAt = &t
	s.RejectionReason = reason
	return nil
}

// Cancel withdraws a pending or awaiting session.
func (s *Session) Cancel(caller shared.Caller, now time.Time) error {
	if err := s.apply(caller, ActionCancel, now); err != nil {
		return err
	}
	s.CancelledBy = caller.UserID
	return nil
}

// Complete marks an awaiting session as held. completedAt is written here
// and nowhere else.
func (s *Session) Complete(caller shared.Caller, now time.Time) error {
	if err := s.apply(caller, ActionComplete, now); err != nil {
		return err
	}
	if s.CompletedAt == nil {
		t := now.UTC()
		s.CompletedAt = &t
	}
	return nil
}

// MarkNoShow records that the student did not attend.
func (s *Session) MarkNoShow(caller shared.Caller, now time.Time) error {
	return s.apply(caller, ActionMarkNoShow, now)
}

func (s *Session) apply(caller shared.Caller, action Action, now time.Time) error {
	to, err := Decide(s, caller, action, now)
	if err != nil {
		return err
	}
	s.Status = to
	s.UpdatedAt = now.UTC()
	return nil
}

// Clone returns a deep copy of the session.
func (s *Session) Clone() *Session {
	c := *s
	if s.RespondedAt != nil {
		t := *s.RespondedAt
		c.RespondedAt = &t
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	if s.Rating != nil {
		r := *s.Rating
		c.Rating = &r
	}
	return &c
}

// String returns a short description for logs.
func (s *Session) String() string {
	return fmt.Sprintf("Session{%s %s mentor=%s student=%s at=%s}",
		s.ID, s.Status, s.MentorID, s.StudentID, s.ScheduledAt.Format(time.RFC3339))
}
