package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

func completedSession(t *testing.T) *Session {
	t.Helper()
	s := newTestSession(t, StatusConfirmed)
	require.NoError(t, s.Complete(mentor, slotAt.Add(30*time.Minute)))
	return s
}

func TestRatingBounds(t *testing.T) {
	for r := Rating(-1); r <= 7; r++ {
		assert.Equal(t, r >= 1 && r <= 5, r.IsValid(), "rating %d", r)
	}
}

func TestSubmitUpdateDeleteRating(t *testing.T) {
	s := completedSession(t)
	now := slotAt.Add(2 * time.Hour)

	require.NoError(t, s.SubmitRating(student, 4, " helpful ", now))
	require.NotNil(t, s.Rating)
	assert.Equal(t, Rating(4), *s.Rating)
	assert.Equal(t, "helpful", s.Feedback)

	assert.ErrorIs(t, s.SubmitRating(student, 5, "", now), shared.ErrAlreadyRated)

	require.NoError(t, s.UpdateRating(student, 5, "great", now))
	assert.Equal(t, Rating(5), *s.Rating)

	require.NoError(t, s.DeleteRating(student, now))
	assert.Nil(t, s.Rating)
	assert.Empty(t, s.Feedback)

	assert.ErrorIs(t, s.DeleteRating(student, now), shared.ErrNotRated)
	assert.ErrorIs(t, s.UpdateRating(student, 3, "", now), shared.ErrNotRated)
	assert.True(t, shared.IsInvalidState(s.DeleteRating(student, now)))
}

func TestRatingRules(t *testing.T) {
	now := slotAt.Add(2 * time.Hour)

	t.Run("only the student", func(t *testing.T) {
		s := completedSession(t)
		assert.ErrorIs(t, s.SubmitRating(mentor, 5, "", now), shared.ErrNotSessionStudent)
		assert.ErrorIs(t, s.SubmitRating(outside, 5, "", now), shared.ErrNotParticipant)
	})

	t.Run("out of range", func(t *testing.T) {
		s := completedSession(t)
		err := s.SubmitRating(student, 6, "", now)
		assert.ErrorIs(t, err, shared.ErrInvalidRating)
		assert.True(t, shared.IsValidation(err))
		assert.Nil(t, s.Rating)
	})

	t.Run("not completed", func(t *testing.T) {
		for _, st := range []Status{StatusPending, StatusConfirmed, StatusCancelled, StatusNoShow} {
			s := newTestSession(t, st)
			assert.ErrorIs(t, s.SubmitRating(student, 5, "", now), shared.ErrRatingNotOpen, st)
		}
	})

	t.Run("feedback too long", func(t *testing.T) {
		s := completedSession(t)
		err := s.SubmitRating(student, 5, strings.Repeat("x", MaxMessageLength+1), now)
		assert.True(t, shared.IsValidation(err))
	})
}
