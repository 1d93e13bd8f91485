package mentor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
)

func TestNewProfile(t *testing.T) {
	now := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)

	p, err := NewProfile(NewProfileParams{
		ID:           "m1",
		UserID:       "mentor-user",
		DisplayName:  "  Aigerim  ",
		RatePerChat:  5000,
		IsApproved:   true,
		CareerIDs:    []string{"backend"},
		Availability: wednesdayAfternoon(),
		Now:          now,
	})
	require.NoError(t, err)
	assert.Equal(t, "Aigerim", p.DisplayName)
	assert.Equal(t, DefaultSessionDuration, p.SlotDuration())
	assert.Equal(t, DefaultRating, p.Stats.Rating)
	assert.True(t, p.IsOwnedBy("mentor-user"))
	assert.False(t, p.IsOwnedBy(""))
	assert.True(t, p.HasAvailability())
}

func TestNewProfileCollectsErrors(t *testing.T) {
	_, err := NewProfile(NewProfileParams{
		RatePerChat:     -1,
		SessionDuration: 90 * time.Second,
		Availability:    []WeeklyWindow{{Weekday: time.Monday, StartTime: "12:00", EndTime: "10:00"}},
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
	for _, part := range []string{"id is required", "user id is required", "rate per chat", "session duration", "availability[0]"} {
		assert.Contains(t, err.Error(), part)
	}
}

func TestProfileCloneIsDeep(t *testing.T) {
	p := &Profile{ID: "m1", CareerIDs: []string{"a"}, Availability: wednesdayAfternoon()}
	c := p.Clone()
	c.CareerIDs[0] = "b"
	c.Availability[0].StartTime = "09:00"
	assert.Equal(t, "a", p.CareerIDs[0])
	assert.Equal(t, "14:00", p.Availability[0].StartTime)
}
