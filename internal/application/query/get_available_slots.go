package query

import (
	"context"
	"fmt"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/mentor"
	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET AVAILABLE SLOTS QUERY
// Expands a mentor's weekly windows into bookable slots, minus the slots held
// by confirmed, scheduled or completed sessions.
// ══════════════════════════════════════════════════════════════════════════════

// busyStatuses are the statuses whose slot is no longer offered.
var busyStatuses = []session.Status{
	session.StatusConfirmed,
	session.StatusScheduled,
	session.StatusCompleted,
}

// GetAvailableSlotsQuery asks for slots starting in [From, To).
type GetAvailableSlotsQuery struct {
	MentorID string
	From     time.Time
	To       time.Time
}

// GetAvailableSlotsResult contains slots grouped by civil date.
type GetAvailableSlotsResult struct {
	MentorID        string            `json:"mentor_id"`
	Timezone        string            `json:"timezone"`
	From            time.Time         `json:"from"`
	To              time.Time         `json:"to"`
	DurationMinutes int               `json:"duration_minutes"`
	Days            []mentor.DaySlots `json:"days"`
	TotalSlots      int               `json:"total_slots"`
}

// GetAvailableSlotsHandler handles GetAvailableSlotsQuery.
type GetAvailableSlotsHandler struct {
	mentors   mentor.Repository
	sessions  session.Repository
	clock     timeutil.Clock
	loc       *time.Location
	lookahead time.Duration
}

// NewGetAvailableSlotsHandler creates a new GetAvailableSlotsHandler.
func NewGetAvailableSlotsHandler(
	mentors mentor.Repository,
	sessions session.Repository,
	clock timeutil.Clock,
	loc *time.Location,
	lookahead time.Duration,
) *GetAvailableSlotsHandler {
	if loc == nil {
		loc = timeutil.AlmatyTZ
	}
	if lookahead <= 0 {
		lookahead = mentor.DefaultLookahead
	}
	return &GetAvailableSlotsHandler{
		mentors:   mentors,
		sessions:  sessions,
		clock:     clockOrSystem(clock),
		loc:       loc,
		lookahead: lookahead,
	}
}

// Handle computes the available slots. The range is clamped to
// [now, now+lookahead]; a mentor without availability yields no days.
func (h *GetAvailableSlotsHandler) Handle(ctx context.Context, q GetAvailableSlotsQuery) (*GetAvailableSlotsResult, error) {
	if q.MentorID == "" {
		return nil, shared.NewDomainError("mentor", "ComputeSlots", shared.ErrValidation, "mentor id is required")
	}
	if q.From.IsZero() || q.To.IsZero() {
		return nil, shared.NewDomainError("mentor", "ComputeSlots", shared.ErrValidation, "range start and end are required")
	}
	if q.To.Before(q.From) {
		return nil, shared.ErrInvalidSlotRange
	}

	profile, err := h.mentors.GetByID(ctx, q.MentorID)
	if err != nil {
		return nil, err
	}

	now := h.clock.Now()
	from, to := q.From, q.To
	if from.Before(now) {
		from = now
	}
	if horizon := now.Add(h.lookahead); to.After(horizon) {
		to = horizon
	}

	result := &GetAvailableSlotsResult{
		MentorID:        profile.ID,
		Timezone:        h.loc.String(),
		From:            from.UTC(),
		To:              to.UTC(),
		DurationMinutes: int(profile.SlotDuration() / time.Minute),
		Days:            []mentor.DaySlots{},
	}
	if !profile.HasAvailability() || !from.Before(to) {
		return result, nil
	}

	busy, err := h.busyIntervals(ctx, profile.ID, from, to)
	if err != nil {
		return nil, err
	}

	slots := mentor.ExpandSlots(profile.SlotParams(h.loc, from, to, busy))
	result.Days = mentor.GroupByDate(slots)
	result.TotalSlots = len(slots)
	return result, nil
}

func (h *GetAvailableSlotsHandler) busyIntervals(ctx context.Context, mentorID string, from, to time.Time) ([]mentor.Interval, error) {
	var (
		busy   []mentor.Interval
		offset int
	)
	for {
		page, err := h.sessions.List(ctx, session.ListFilter{
			MentorID:      mentorID,
			Statuses:      busyStatuses,
			ScheduledFrom: from.Add(-mentor.MaxSessionDuration),
			ScheduledTo:   to,
			Limit:         session.DefaultListLimit,
			Offset:        offset,
		})
		if err != nil {
			return nil, fmt.Errorf("load busy sessions: %w", err)
		}
		for _, s := range page {
			busy = append(busy, mentor.Interval{Start: s.ScheduledAt, End: s.EndsAt()})
		}
		if len(page) < session.DefaultListLimit {
			return busy, nil
		}
		offset += len(page)
	}
}
