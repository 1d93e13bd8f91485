package mentor

import (
	"math"
	"time"

	"github.com/alem-hub/mentorship-hub/internal/domain/session"
	"github.com/alem-hub/mentorship-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATS
// Stats are a pure function of the mentor's completed sessions. They are never
// incremented in place; every write that can change them recomputes them.
// ══════════════════════════════════════════════════════════════════════════════

// DefaultRating is shown when no completed session carries a rating.
const DefaultRating = 5.0

// Stats are the derived aggregates stored on a mentor profile.
type Stats struct {
	Rating            float64
	RatedSessions     int
	ChatsCompleted    int
	TotalEarnings     int64
	EarningsThisMonth int64
	EarningsLastMonth int64
	RecalculatedAt    *time.Time
}

// EmptyStats returns the aggregates of a mentor with no sessions.
func EmptyStats() Stats {
	return Stats{Rating: DefaultRating}
}

// Equal compares the derived values, ignoring RecalculatedAt.
func (s Stats) Equal(o Stats) bool {
	return s.Rating == o.Rating &&
		s.RatedSessions == o.RatedSessions &&
		s.ChatsCompleted == o.ChatsCompleted &&
		s.TotalEarnings == o.TotalEarnings &&
		s.EarningsThisMonth == o.EarningsThisMonth &&
		s.EarningsLastMonth == o.EarningsLastMonth
}

// ComputeStats derives the aggregates of a mentor charging ratePerChat from
// the given sessions. Sessions other than completed ones are ignored, and
// each completed session contributes its earnings exactly once. Month
// buckets use completedAt in loc relative to now.
func ComputeStats(ratePerChat int64, sessions []*session.Session, now time.Time, loc *time.Location) Stats {
	if loc == nil {
		loc = timeutil.AlmatyTZ
	}
	thisStart, thisEnd := timeutil.MonthBounds(now, loc, 0)
	lastStart, lastEnd := timeutil.MonthBounds(now, loc, -1)

	var (
		completed, rated     int
		ratingSum            int
		thisMonth, lastMonth int
	)
	seen := make(map[string]struct{}, len(sessions))

	for _, s := range sessions {
		if s == nil || s.Status != session.StatusCompleted {
			continue
		}
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}

		completed++
		if s.Rating != nil {
			rated++
			ratingSum += int(*s.Rating)
		}
		if s.CompletedAt != nil {
			switch {
			case timeutil.InRange(*s.CompletedAt, thisStart, thisEnd):
				thisMonth++
			case timeutil.InRange(*s.CompletedAt, lastStart, lastEnd):
				lastMonth++
			}
		}
	}

	stats := Stats{
		Rating:            DefaultRating,
		RatedSessions:     rated,
		ChatsCompleted:    completed,
		TotalEarnings:     ratePerChat * int64(completed),
		EarningsThisMonth: ratePerChat * int64(thisMonth),
		EarningsLastMonth: ratePerChat * int64(lastMonth),
	}
	if rated > 0 {
		stats.Rating = roundRating(float64(ratingSum) / float64(rated))
	}
	recalculated := now.UTC()
	stats.RecalculatedAt = &recalculated
	return stats
}

// roundRating keeps two decimals, the precision the profile displays.
func roundRating(v float64) float64 {
	return math.Round(v*100) / 100
}

// ─────────────────────────────────────────────────────────────────────────────
// Distribution
// ─────────────────────────────────────────────────────────────────────────────

// RatingDistribution counts rated completed sessions per star, 1 to 5.
type RatingDistribution [5]int

// Count returns the number of ratings equal to stars.
func (d RatingDistribution) Count(stars int) int {
	if stars < 1 || stars > 5 {
		return 0
	}
	return d[stars-1]
}

// Total returns the number of ratings.
func (d RatingDistribution) Total() int {
	n := 0
	for _, c := range d {
		n += c
	}
	return n
}

// Map returns the distribution keyed by star value.
func (d RatingDistribution) Map() map[int]int {
	m := make(map[int]int, 5)
	for i, c := range d {
		m[i+1] = c
	}
	return m
}

// ComputeDistribution derives the rating histogram from the session set.
func ComputeDistribution(sessions []*session.Session) RatingDistribution {
	var d RatingDistribution
	for _, s := range sessions {
		if s == nil || s.Status != session.StatusCompleted || s.Rating == nil {
			continue
		}
		if r := int(*s.Rating); r >= 1 && r <= 5 {
			d[r-1]++
		}
	}
	return d
}
