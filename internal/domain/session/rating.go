package session

import (
	"strings"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

// Rating is a 1-5 star score left by the student after a completed session.
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

// IsValid checks the rating bounds.
func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

// HasRating reports whether a rating is attached.
func (s *Session) HasRating() bool {
	return s.Rating != nil
}

// SubmitRating attaches the first rating to a completed session.
func (s *Session) SubmitRating(caller shared.Caller, r Rating, feedback string, now time.Time) error {
	if err := s.checkRatingWrite(caller, r, feedback); err != nil {
		return err
	}
	if s.HasRating() {
		return shared.ErrAlreadyRated
	}
	s.setRating(r, feedback, now)
	return nil
}

// UpdateRating overwrites an existing rating.
func (s *Session) UpdateRating(caller shared.Caller, r Rating, feedback string, now time.Time) error {
	if err := s.checkRatingWrite(caller, r, feedback); err != nil {
		return err
	}
	if !s.HasRating() {
		return shared.ErrNotRated
	}
	s.setRating(r, feedback, now)
	return nil
}

// DeleteRating clears the rating and its feedback.
func (s *Session) DeleteRating(caller shared.Caller, now time.Time) error {
	if err := s.checkRater(caller); err != nil {
		return err
	}
	if s.Status != StatusCompleted {
		return shared.ErrRatingNotOpen
	}
	if !s.HasRating() {
		return shared.ErrNotRated
	}
	s.Rating = nil
	s.Feedback = ""
	s.UpdatedAt = now.UTC()
	return nil
}

func (s *Session) checkRater(caller shared.Caller) error {
	if !s.IsParticipant(caller.UserID) {
		return shared.ErrNotParticipant
	}
	if !s.IsStudent(caller.UserID) {
		return shared.ErrNotSessionStudent
	}
	return nil
}

func (s *Session) checkRatingWrite(caller shared.Caller, r Rating, feedback string) error {
	if err := s.checkRater(caller); err != nil {
		return err
	}
	if !r.IsValid() {
		return shared.ErrInvalidRating
	}
	if len(feedback) > MaxMessageLength {
		return shared.NewDomainError("rating", "Validate", shared.ErrValidation, "feedback is too long")
	}
	if s.Status != StatusCompleted {
		return shared.ErrRatingNotOpen
	}
	return nil
}

func (s *Session) setRating(r Rating, feedback string, now time.Time) {
	s.Rating = &r
	s.Feedback = strings.TrimSpace(feedback)
	s.UpdatedAt = now.UTC()
}
