package command

import (
	"context"
	"errors"

	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATE SESSION COMMAND
// Submit, update and delete of a session rating. Each write recalculates the
// mentor's stats in the same transaction, so the aggregate is always the mean
// of the stored ratings.
// ══════════════════════════════════════════════════════════════════════════════

// RateSessionCommand changes the rating of a completed session.
type RateSessionCommand struct {
	Caller    shared.Caller       `json:"-"`
	SessionID string              `json:"session_id" validate:"required"`
	Action    shared.RatingAction `json:"action" validate:"required,oneof=submitted updated deleted"`

	// Rating and Feedback are ignored for deletes.
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback" validate:"max=1000"`
}

// RateSessionResult reports the mentor aggregate after the write.
type RateSessionResult struct {
	SessionID     string
	MentorID      string
	Rating        *session.Rating
	MentorRating  float64
	RatedSessions int
}

// RateSessionHandler handles RateSessionCommand.
type RateSessionHandler struct {
	deps         Deps
	recalculator *StatsRecalculator
}

// NewRateSessionHandler creates a new RateSessionHandler.
func NewRateSessionHandler(deps Deps) *RateSessionHandler {
	deps = deps.withDefaults()
	return &RateSessionHandler{
		deps:         deps,
		recalculator: NewStatsRecalculator(deps.Mentors, deps.Sessions, deps.Clock, deps.Location),
	}
}

// Handle applies the rating action.
func (h *RateSessionHandler) Handle(ctx context.Context, cmd RateSessionCommand) (*RateSessionResult, error) {
	if err := requireCaller("rating", string(cmd.Action), cmd.Caller); err != nil {
		return nil, err
	}
	if err := validateCommand("rating", string(cmd.Action), cmd); err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	var (
		s   *session.Session
		rec Recalculation
	)

	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		s, err = h.deps.Sessions.GetByID(ctx, cmd.SessionID)
		if err != nil {
			return err
		}

		hadRating := s.HasRating()
		switch cmd.Action {
		case shared.RatingSubmitted:
			err = s.SubmitRating(cmd.Caller, session.Rating(cmd.Rating), cmd.Feedback, now)
		case shared.RatingUpdated:
			err = s.UpdateRating(cmd.Caller, session.Rating(cmd.Rating), cmd.Feedback, now)
		case shared.RatingDeleted:
			err = s.DeleteRating(cmd.Caller, now)
		}
		if err != nil {
			return err
		}

		if err := h.deps.Sessions.UpdateRating(ctx, s, hadRating); err != nil {
			if errors.Is(err, shared.ErrConcurrentModification) {
				return shared.ErrStaleRating
			}
			return err
		}

		rec, err = h.recalculator.Recalculate(ctx, s.MentorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	h.deps.Logger.Info("session rating changed",
		logger.SessionID(s.ID),
		logger.MentorID(s.MentorID),
		logger.String("action", string(cmd.Action)),
		logger.Float64("mentor_rating", rec.Stats.Rating),
	)

	invalidateProfile(ctx, h.deps.Profiles, h.deps.Logger, s.MentorID)

	ratingEvent := shared.RatingChangedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventRatingChanged, s.ID, now),
		MentorID:     s.MentorID,
		MentorUserID: s.MentorUserID,
		StudentID:    s.StudentID,
		Action:       cmd.Action,
	}
	if s.Rating != nil {
		ratingEvent.Rating = int(*s.Rating)
	}
	publishEvents(h.deps.Publisher, h.deps.Logger, ratingEvent, rec.Event())

	return &RateSessionResult{
		SessionID:     s.ID,
		MentorID:      s.MentorID,
		Rating:        s.Rating,
		MentorRating:  rec.Stats.Rating,
		RatedSessions: rec.Stats.RatedSessions,
	}, nil
}
