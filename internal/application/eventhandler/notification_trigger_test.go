package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-hub/internal/domain/notification"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/internal/infrastructure/messaging"
)

var at = time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC)

type recordingNotifier struct {
	intents []*notification.Intent
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, intent *notification.Intent) error {
	if n.err != nil {
		return n.err
	}
	n.intents = append(n.intents, intent)
	return nil
}

func sessionEvent(t shared.EventType, actor string) shared.SessionEvent {
	return shared.SessionEvent{
		BaseEvent:    shared.NewBaseEvent(t, "s-1", at),
		StudentID:    "student-a",
		MentorID:     "m1",
		MentorUserID: "mentor-user",
		ActorID:      actor,
		ToStatus:     "confirmed",
		ScheduledAt:  at,
	}
}

func TestNotificationTriggerRecipients(t *testing.T) {
	tests := []struct {
		name      string
		event     shared.Event
		wantType  notification.Type
		recipient string
	}{
		{"requested goes to mentor", sessionEvent(shared.EventSessionRequested, "student-a"), notification.TypeBookingRequested, "mentor-user"},
		{"approved goes to student", sessionEvent(shared.EventSessionApproved, "mentor-user"), notification.TypeBookingApproved, "student-a"},
		{"rejected goes to student", sessionEvent(shared.EventSessionRejected, "mentor-user"), notification.TypeBookingRejected, "student-a"},
		{"student cancel goes to mentor", sessionEvent(shared.EventSessionCancelled, "student-a"), notification.TypeSessionCancelled, "mentor-user"},
		{"mentor cancel goes to student", sessionEvent(shared.EventSessionCancelled, "mentor-user"), notification.TypeSessionCancelled, "student-a"},
		{"completed goes to student", sessionEvent(shared.EventSessionCompleted, "mentor-user"), notification.TypeSessionCompleted, "student-a"},
		{"no-show goes to student", sessionEvent(shared.EventSessionNoShow, "mentor-user"), notification.TypeSessionNoShow, "student-a"},
		{
			"review goes to mentor",
			shared.RatingChangedEvent{
				BaseEvent:    shared.NewBaseEvent(shared.EventRatingChanged, "s-1", at),
				MentorID:     "m1",
				MentorUserID: "mentor-user",
				StudentID:    "student-a",
				Action:       shared.RatingSubmitted,
				Rating:       4,
			},
			notification.TypeReviewReceived,
			"mentor-user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &recordingNotifier{}
			require.NoError(t, NewNotificationTrigger(n, nil).Handle(tt.event))
			require.Len(t, n.intents, 1)

			intent := n.intents[0]
			assert.Equal(t, tt.wantType, intent.Type)
			assert.Equal(t, tt.recipient, intent.RecipientID)
			assert.Equal(t, "s-1", intent.SessionID)
			assert.Equal(t, "m1", intent.MentorID)
			assert.Equal(t, tt.wantType.DefaultPriority(), intent.Priority)
			assert.NotEmpty(t, intent.ID)
			assert.True(t, intent.CreatedAt.Equal(at))
		})
	}
}

func TestNotificationTriggerIgnores(t *testing.T) {
	n := &recordingNotifier{}
	trigger := NewNotificationTrigger(n, nil)

	require.NoError(t, trigger.Handle(shared.RatingChangedEvent{
		BaseEvent:    shared.NewBaseEvent(shared.EventRatingChanged, "s-1", at),
		MentorUserID: "mentor-user",
		Action:       shared.RatingDeleted,
	}))
	require.NoError(t, trigger.Handle(shared.MentorStatsRecalculatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventMentorStatsRecalculated, "m1", at),
	}))
	assert.Empty(t, n.intents)
}

func TestNotificationTriggerIncludesReason(t *testing.T) {
	n := &recordingNotifier{}
	e := sessionEvent(shared.EventSessionRejected, "mentor-user")
	e.FromStatus = "pending"
	e.ToStatus = "rejected"
	e.Reason = "fully booked"

	require.NoError(t, NewNotificationTrigger(n, nil).Handle(e))
	require.Len(t, n.intents, 1)
	assert.Equal(t, map[string]string{
		"status":      "rejected",
		"from_status": "pending",
		"reason":      "fully booked",
	}, n.intents[0].Data)
	require.NotNil(t, n.intents[0].ScheduledAt)
}

func TestNotificationTriggerNotifierFailure(t *testing.T) {
	n := &recordingNotifier{err: errors.New("redis down")}
	err := NewNotificationTrigger(n, nil).Handle(sessionEvent(shared.EventSessionApproved, "mentor-user"))
	assert.ErrorContains(t, err, "redis down")
}

func TestNotificationTriggerRegister(t *testing.T) {
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	defer bus.Close()

	n := &recordingNotifier{}
	require.NoError(t, NewNotificationTrigger(n, nil).Register(bus))

	require.NoError(t, bus.Publish(sessionEvent(shared.EventSessionApproved, "mentor-user")))
	require.NoError(t, bus.Publish(shared.MentorStatsRecalculatedEvent{
		BaseEvent: shared.NewBaseEvent(shared.EventMentorStatsRecalculated, "m1", at),
	}))

	require.Len(t, n.intents, 1)
	assert.Equal(t, notification.TypeBookingApproved, n.intents[0].Type)
}

func TestLogNotifier(t *testing.T) {
	intent, err := notification.NewIntent(notification.NewIntentParams{
		ID:          "n-1",
		Type:        notification.TypeBookingApproved,
		RecipientID: "student-a",
		SessionID:   "s-1",
		CreatedAt:   at,
	})
	require.NoError(t, err)
	assert.NoError(t, LogNotifier{}.Notify(context.Background(), intent))
}
