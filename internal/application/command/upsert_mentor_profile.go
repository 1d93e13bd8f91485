package command

import (
	"context"
	"errors"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// UPSERT MENTOR PROFILE COMMAND
// Sync entrypoint for the collaborator that owns mentor records. Derived stats
// are never taken from input; they are recomputed after every write because a
// new rate changes the earnings.
// ══════════════════════════════════════════════════════════════════════════════

// UpsertMentorProfileCommand carries the collaborator-owned profile fields.
type UpsertMentorProfileCommand struct {
	ID              string                `json:"id" validate:"required,max=64"`
	UserID          string                `json:"user_id" validate:"required,max=64"`
	DisplayName     string                `json:"display_name" validate:"max=200"`
	Company         string                `json:"company" validate:"max=200"`
	JobTitle        string                `json:"job_title" validate:"max=200"`
	Bio             string                `json:"bio" validate:"max=5000"`
	YearsExperience int                   `json:"years_experience" validate:"min=0,max=80"`
	RatePerChat     int64                 `json:"rate_per_chat" validate:"min=0"`
	IsApproved      bool                  `json:"is_approved"`
	CareerIDs       []string              `json:"career_ids" validate:"max=50,dive,required,max=64"`
	Availability    []mentor.WeeklyWindow `json:"availability" validate:"max=100"`
	SessionMinutes  int                   `json:"session_minutes" validate:"min=0,max=480"`
}

// UpsertMentorProfileResult describes the stored profile.
type UpsertMentorProfileResult struct {
	Profile *mentor.Profile
	Created bool
}

// UpsertMentorProfileHandler handles UpsertMentorProfileCommand.
type UpsertMentorProfileHandler struct {
	deps         Deps
	recalculator *StatsRecalculator
}

// NewUpsertMentorProfileHandler creates a new UpsertMentorProfileHandler.
func NewUpsertMentorProfileHandler(deps Deps) *UpsertMentorProfileHandler {
	deps = deps.withDefaults()
	return &UpsertMentorProfileHandler{
		deps:         deps,
		recalculator: NewStatsRecalculator(deps.Mentors, deps.Sessions, deps.Clock, deps.Location),
	}
}

// Handle creates or replaces the profile and refreshes its stats.
func (h *UpsertMentorProfileHandler) Handle(ctx context.Context, cmd UpsertMentorProfileCommand) (*UpsertMentorProfileResult, error) {
	if err := validateCommand("mentor", "Upsert", cmd); err != nil {
		return nil, err
	}

	now := h.deps.Clock.Now()
	profile, err := mentor.NewProfile(mentor.NewProfileParams{
		ID:              cmd.ID,
		UserID:          cmd.UserID,
		DisplayName:     cmd.DisplayName,
		Company:         cmd.Company,
		JobTitle:        cmd.JobTitle,
		Bio:             cmd.Bio,
		YearsExperience: cmd.YearsExperience,
		RatePerChat:     cmd.RatePerChat,
		IsApproved:      cmd.IsApproved,
		CareerIDs:       cmd.CareerIDs,
		Availability:    cmd.Availability,
		SessionDuration: time.Duration(cmd.SessionMinutes) * time.Minute,
		Now:             now,
	})
	if err != nil {
		return nil, err
	}

	created := false
	var rec Recalculation
	err = h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := h.deps.Mentors.GetByID(ctx, cmd.ID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			created = true
		case err != nil:
			return err
		default:
			profile.CreatedAt = existing.CreatedAt
		}

		if err := h.deps.Mentors.Upsert(ctx, profile); err != nil {
			return err
		}
		rec, err = h.recalculator.Recalculate(ctx, profile.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	profile.Stats = rec.Stats

	h.deps.Logger.Info("mentor profile upserted",
		logger.MentorID(profile.ID),
		logger.UserID(profile.UserID),
		logger.Bool("created", created),
		logger.Bool("approved", profile.IsApproved),
	)
	invalidateProfile(ctx, h.deps.Profiles, h.deps.Logger, profile.ID)
	publishEvents(h.deps.Publisher, h.deps.Logger, rec.Event())

	return &UpsertMentorProfileResult{Profile: profile, Created: created}, nil
}
