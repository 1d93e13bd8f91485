package command

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS RECALCULATOR
// The only writer of mentor statistics. Callers run it inside the same
// transaction as the session write that changed the inputs.
// ══════════════════════════════════════════════════════════════════════════════

// StatsRecalculator rewrites a mentor's derived stats from its completed sessions.
type StatsRecalculator struct {
	mentors  mentor.Repository
	sessions session.Repository
	clock    timeutil.Clock
	loc      *time.Location
}

// NewStatsRecalculator creates a StatsRecalculator.
func NewStatsRecalculator(mentors mentor.Repository, sessions session.Repository, clock timeutil.Clock, loc *time.Location) *StatsRecalculator {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if loc == nil {
		loc = timeutil.AlmatyTZ
	}
	return &StatsRecalculator{mentors: mentors, sessions: sessions, clock: clock, loc: loc}
}

// Recalculation is the outcome of one recomputation.
type Recalculation struct {
	MentorID string
	Previous mentor.Stats
	Stats    mentor.Stats
}

// Changed reports whether the stored values differed from the recomputed ones.
func (r Recalculation) Changed() bool {
	return !r.Previous.Equal(r.Stats)
}

// Event returns the event announcing the new stats.
func (r Recalculation) Event() shared.MentorStatsRecalculatedEvent {
	at := time.Time{}
	if r.Stats.RecalculatedAt != nil {
		at = *r.Stats.RecalculatedAt
	}
	return shared.MentorStatsRecalculatedEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventMentorStatsRecalculated, r.MentorID, at),
		Rating:         r.Stats.Rating,
		ChatsCompleted: r.Stats.ChatsCompleted,
		TotalEarnings:  r.Stats.TotalEarnings,
	}
}

// Recalculate recomputes and stores the stats of mentorID. It joins the
// transaction carried by ctx. The mentor row is locked before the sessions
// are read, so a concurrent writer for the same mentor recomputes after this
// transaction commits and sees its session write.
func (r *StatsRecalculator) Recalculate(ctx context.Context, mentorID string) (Recalculation, error) {
	profile, err := r.mentors.GetForUpdate(ctx, mentorID)
	if err != nil {
		return Recalculation{}, err
	}
	completed, err := r.sessions.ListCompleted(ctx, mentorID)
	if err != nil {
		return Recalculation{}, fmt.Errorf("load completed sessions: %w", err)
	}

	stats := mentor.ComputeStats(profile.RatePerChat, completed, r.clock.Now(), r.loc)
	if err := r.mentors.SaveStats(ctx, mentorID, stats); err != nil {
		return Recalculation{}, fmt.Errorf("save stats: %w", err)
	}
	return Recalculation{MentorID: mentorID, Previous: profile.Stats, Stats: stats}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// RECALCULATE MENTOR STATS COMMAND
// Repair entrypoint: admin route, worker flag and the periodic reconcile job.
// ══════════════════════════════════════════════════════════════════════════════

// RecalculateMentorStatsCommand asks for one mentor's stats to be rebuilt.
type RecalculateMentorStatsCommand struct {
	MentorID string `json:"mentor_id" validate:"required"`
}

// RecalculateMentorStatsResult reports the rebuilt stats.
type RecalculateMentorStatsResult struct {
	MentorID string
	Stats    mentor.Stats
	Changed  bool
}

// ReconcileResult summarises a pass over every mentor.
type ReconcileResult struct {
	Checked int
	Changed int
	Failed  []string
}

// RecalculateMentorStatsHandler handles RecalculateMentorStatsCommand.
type RecalculateMentorStatsHandler struct {
	deps         Deps
	recalculator *StatsRecalculator
}

// NewRecalculateMentorStatsHandler creates a new RecalculateMentorStatsHandler.
func NewRecalculateMentorStatsHandler(deps Deps) *RecalculateMentorStatsHandler {
	deps = deps.withDefaults()
	return &RecalculateMentorStatsHandler{
		deps:         deps,
		recalculator: NewStatsRecalculator(deps.Mentors, deps.Sessions, deps.Clock, deps.Location),
	}
}

// Handle rebuilds the stats of one mentor.
func (h *RecalculateMentorStatsHandler) Handle(ctx context.Context, cmd RecalculateMentorStatsCommand) (*RecalculateMentorStatsResult, error) {
	if err := validateCommand("mentor", "Recalculate", cmd); err != nil {
		return nil, err
	}

	var rec Recalculation
	err := h.deps.Tx.WithinTx(ctx, func(ctx context.Context) error {
		var err error
		rec, err = h.recalculator.Recalculate(ctx, cmd.MentorID)
		return err
	})
	if err != nil {
		return nil, err
	}

	invalidateProfile(ctx, h.deps.Profiles, h.deps.Logger, cmd.MentorID)
	publishEvents(h.deps.Publisher, h.deps.Logger, rec.Event())

	if rec.Changed() {
		h.deps.Logger.Warn("mentor stats drift repaired",
			logger.MentorID(cmd.MentorID),
			logger.Float64("rating_before", rec.Previous.Rating),
			logger.Float64("rating_after", rec.Stats.Rating),
			logger.Int("chats_before", rec.Previous.ChatsCompleted),
			logger.Int("chats_after", rec.Stats.ChatsCompleted),
		)
	}

	return &RecalculateMentorStatsResult{
		MentorID: cmd.MentorID,
		Stats:    rec.Stats,
		Changed:  rec.Changed(),
	}, nil
}

// ReconcileAll rebuilds the stats of every mentor. A failure for one mentor
// is recorded and the pass continues.
func (h *RecalculateMentorStatsHandler) ReconcileAll(ctx context.Context) (*ReconcileResult, error) {
	ids, err := h.deps.Mentors.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mentors: %w", err)
	}

	result := &ReconcileResult{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++

		res, err := h.Handle(ctx, RecalculateMentorStatsCommand{MentorID: id})
		if err != nil {
			result.Failed = append(result.Failed, id)
			h.deps.Logger.Error("mentor stats reconcile failed", logger.MentorID(id), logger.Err(err))
			continue
		}
		if res.Changed {
			result.Changed++
		}
	}
	return result, nil
}
