package notification

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIntent(t *testing.T) {
	at := time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)

	t.Run("defaults priority from type", func(t *testing.T) {
		intent, err := NewIntent(NewIntentParams{
			ID:          "n1",
			Type:        TypeBookingRequested,
			RecipientID: "mentor-user",
			SessionID:   "s1",
			CreatedAt:   at,
		})
		require.NoError(t, err)
		assert.Equal(t, PriorityHigh, intent.Priority)
		assert.Equal(t, at, intent.CreatedAt)
		assert.NotNil(t, intent.Data)
	})

	t.Run("explicit priority wins", func(t *testing.T) {
		low := PriorityLow
		intent, err := NewIntent(NewIntentParams{
			ID:          "n1",
			Type:        TypeBookingApproved,
			RecipientID: "student",
			SessionID:   "s1",
			Priority:    &low,
		})
		require.NoError(t, err)
		assert.Equal(t, PriorityLow, intent.Priority)
	})

	t.Run("copies data", func(t *testing.T) {
		data := map[string]string{"reason": "busy"}
		intent, err := NewIntent(NewIntentParams{
			ID:          "n1",
			Type:        TypeBookingRejected,
			RecipientID: "student",
			SessionID:   "s1",
			Data:        data,
		})
		require.NoError(t, err)
		data["reason"] = "changed"
		assert.Equal(t, "busy", intent.Data["reason"])
	})

	tests := []struct {
		name   string
		params NewIntentParams
		want   error
	}{
		{"missing id", NewIntentParams{Type: TypeSessionNoShow, RecipientID: "u", SessionID: "s"}, ErrInvalidIntentID},
		{"unknown type", NewIntentParams{ID: "n", Type: "rank_up", RecipientID: "u", SessionID: "s"}, ErrInvalidType},
		{"missing recipient", NewIntentParams{ID: "n", Type: TypeSessionNoShow, SessionID: "s"}, ErrInvalidRecipient},
		{"missing session", NewIntentParams{ID: "n", Type: TypeSessionNoShow, RecipientID: "u"}, ErrMissingSession},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewIntent(tt.params)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestIntentJSONUsesPriorityNames(t *testing.T) {
	intent, err := NewIntent(NewIntentParams{
		ID:          "n1",
		Type:        TypeReviewReceived,
		RecipientID: "mentor-user",
		SessionID:   "s1",
	})
	require.NoError(t, err)

	data, err := json.Marshal(intent)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"priority":"low"`)

	var decoded Intent
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, PriorityLow, decoded.Priority)
}
