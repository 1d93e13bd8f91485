// Package eventhandler contains reactions to committed booking events.
// Handlers run after the owning transaction and never affect its outcome.
package eventhandler

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/mentorship-hub/internal/domain/notification"
	"github.com/alem-hub/mentorship-hub/internal/domain/shared"
	"github.com/alem-hub/mentorship-hub/pkg/logger"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFICATION TRIGGER
// Turns session and rating events into notification intents for the party
// that did not act. Delivery belongs to a separate consumer.
// ═══════════════════════════════════════════════════════════════════════════

// Notifier hands an intent to the delivery side.
type Notifier interface {
	Notify(ctx context.Context, intent *notification.Intent) error
}

// LogNotifier only logs intents. It is used when Redis is disabled.
type LogNotifier struct {
	Log *logger.Logger
}

// Notify implements Notifier.
func (n LogNotifier) Notify(_ context.Context, intent *notification.Intent) error {
	log := n.Log
	if log == nil {
		log = logger.Nop()
	}
	log.Info("notification intent",
		logger.String("type", intent.Type.String()),
		logger.String("priority", intent.Priority.String()),
		logger.UserID(intent.RecipientID),
		logger.SessionID(intent.SessionID),
	)
	return nil
}

// NotificationTrigger subscribes to the event bus and emits intents.
type NotificationTrigger struct {
	notifier Notifier
	log      *logger.Logger
	timeout  time.Duration
	newID    func() string
}

// NewNotificationTrigger creates a trigger writing to notifier.
func NewNotificationTrigger(notifier Notifier, log *logger.Logger) *NotificationTrigger {
	if log == nil {
		log = logger.Nop()
	}
	return &NotificationTrigger{
		notifier: notifier,
		log:      log.With(logger.Component("notification_trigger")),
		timeout:  5 * time.Second,
		newID:    uuid.NewString,
	}
}

// Register subscribes the trigger to every event it reacts to.
func (t *NotificationTrigger) Register(bus shared.EventSubscriber) error {
	for _, et := range []shared.EventType{
		shared.EventSessionRequested,
		shared.EventSessionApproved,
		shared.EventSessionRejected,
		shared.EventSessionCancelled,
		shared.EventSessionCompleted,
		shared.EventSessionNoShow,
		shared.EventRatingChanged,
	} {
		if err := bus.Subscribe(et, t.Handle); err != nil {
			return fmt.Errorf("subscribe %s: %w", et, err)
		}
	}
	return nil
}

// Handle implements shared.EventHandler.
func (t *NotificationTrigger) Handle(event shared.Event) error {
	params, ok := t.intentFor(event)
	if !ok {
		return nil
	}
	params.ID = t.newID()
	params.CreatedAt = event.OccurredAt()

	intent, err := notification.NewIntent(params)
	if err != nil {
		t.log.Warn("dropping notification intent",
			logger.String("event_type", string(event.EventType())),
			logger.Err(err),
		)
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), t.timeout)
	defer cancel()

	if err := t.notifier.Notify(ctx, intent); err != nil {
		return fmt.Errorf("notify %s: %w", intent.Type, err)
	}
	t.log.Debug("notification intent emitted",
		logger.String("type", intent.Type.String()),
		logger.UserID(intent.RecipientID),
	)
	return nil
}

func (t *NotificationTrigger) intentFor(event shared.Event) (notification.NewIntentParams, bool) {
	switch e := event.(type) {
	case shared.SessionEvent:
		return sessionIntent(e)
	case *shared.SessionEvent:
		return sessionIntent(*e)
	case shared.RatingChangedEvent:
		return ratingIntent(e)
	case *shared.RatingChangedEvent:
		return ratingIntent(*e)
	default:
		return notification.NewIntentParams{}, false
	}
}

// sessionIntent picks the recipient: the mentor for new requests, the
// other party for cancellations, the student otherwise.
func sessionIntent(e shared.SessionEvent) (notification.NewIntentParams, bool) {
	var (
		typ       notification.Type
		recipient string
	)
	switch e.EventType() {
	case shared.EventSessionRequested:
		typ, recipient = notification.TypeBookingRequested, e.MentorUserID
	case shared.EventSessionApproved:
		typ, recipient = notification.TypeBookingApproved, e.StudentID
	case shared.EventSessionRejected:
		typ, recipient = notification.TypeBookingRejected, e.StudentID
	case shared.EventSessionCancelled:
		typ, recipient = notification.TypeSessionCancelled, e.MentorUserID
		if e.ActorID == e.MentorUserID {
			recipient = e.StudentID
		}
	case shared.EventSessionCompleted:
		typ, recipient = notification.TypeSessionCompleted, e.StudentID
	case shared.EventSessionNoShow:
		typ, recipient = notification.TypeSessionNoShow, e.StudentID
	default:
		return notification.NewIntentParams{}, false
	}

	data := map[string]string{"status": e.ToStatus}
	if e.FromStatus != "" {
		data["from_status"] = e.FromStatus
	}
	if e.Reason != "" {
		data["reason"] = e.Reason
	}
	scheduledAt := e.ScheduledAt
	return notification.NewIntentParams{
		Type:        typ,
		RecipientID: recipient,
		SessionID:   e.AggregateID(),
		MentorID:    e.MentorID,
		ScheduledAt: &scheduledAt,
		Data:        data,
	}, true
}

// ratingIntent notifies the mentor of new and edited reviews. Deletions are
// silent.
func ratingIntent(e shared.RatingChangedEvent) (notification.NewIntentParams, bool) {
	if e.Action == shared.RatingDeleted {
		return notification.NewIntentParams{}, false
	}
	return notification.NewIntentParams{
		Type:        notification.TypeReviewReceived,
		RecipientID: e.MentorUserID,
		SessionID:   e.AggregateID(),
		MentorID:    e.MentorID,
		Data: map[string]string{
			"action": string(e.Action),
			"rating": strconv.Itoa(e.Rating),
		},
	}, true
}
