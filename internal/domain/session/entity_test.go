package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

func TestNewSession(t *testing.T) {
	s := newTestSession(t, StatusPending)
	assert.Equal(t, StatusPending, s.Status)
	assert.Equal(t, slotAt.Add(30*time.Minute), s.EndsAt())
	assert.Nil(t, s.CompletedAt)
	assert.Nil(t, s.Rating)

	_, err := NewSession(NewSessionParams{
		ID:             "s2",
		StudentID:      "st",
		MentorID:       "m1",
		MentorUserID:   "mu",
		ScheduledAt:    slotAt,
		Duration:       30 * time.Minute,
		StudentMessage: strings.Repeat("a", MaxMessageLength+1),
	})
	assert.True(t, shared.IsValidation(err))

	_, err = NewSession(NewSessionParams{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "student id is required")
}

func TestSessionOverlaps(t *testing.T) {
	s := newTestSession(t, StatusConfirmed)

	assert.True(t, s.Overlaps(slotAt, 30*time.Minute))
	assert.True(t, s.Overlaps(slotAt.Add(15*time.Minute), 30*time.Minute))
	assert.False(t, s.Overlaps(slotAt.Add(30*time.Minute), 30*time.Minute))
	assert.False(t, s.Overlaps(slotAt.Add(-30*time.Minute), 30*time.Minute))
}

func TestStatusPhases(t *testing.T) {
	assert.True(t, StatusConfirmed.IsAwaiting())
	assert.True(t, StatusScheduled.IsAwaiting())
	assert.False(t, StatusPending.IsAwaiting())

	assert.True(t, StatusCompleted.OccupiesSlot())
	assert.True(t, StatusScheduled.OccupiesSlot())
	assert.False(t, StatusPending.OccupiesSlot())
	assert.False(t, StatusCancelled.OccupiesSlot())

	assert.False(t, Status("archived").IsValid())
	for _, st := range AllStatuses {
		assert.True(t, st.IsValid(), st)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := completedSession(t)
	r := Rating(3)
	s.Rating = &r

	c := s.Clone()
	*c.Rating = 5
	*c.CompletedAt = c.CompletedAt.Add(time.Hour)

	assert.Equal(t, Rating(3), *s.Rating)
	assert.NotEqual(t, *s.CompletedAt, *c.CompletedAt)
}

func TestListFilterNormalize(t *testing.T) {
	f := ListFilter{Limit: 0, Offset: -3}.Normalize()
	assert.Equal(t, DefaultListLimit, f.Limit)
	assert.Zero(t, f.Offset)

	assert.Equal(t, 50, ListFilter{Limit: 50}.Normalize().Limit)
	assert.Equal(t, DefaultListLimit, ListFilter{Limit: 5000}.Normalize().Limit)
}
