package redis

import (
	"context"
	"fmt"

	"github.com/alem-hub/mentorship-hub/internal/domain/notification"
)

// ChannelNotifications carries notification intents for delivery workers.
const ChannelNotifications = "notifications"

// NotificationPublisher publishes notification intents on a Redis channel
// for delivery workers.
type NotificationPublisher struct {
	cache   *Cache
	channel string
}

// NewNotificationPublisher creates a publisher on pubsub:notifications.
func NewNotificationPublisher(cache *Cache) *NotificationPublisher {
	return &NotificationPublisher{
		cache:   cache,
		channel: PubSubChannel(ChannelNotifications),
	}
}

// Channel returns the full channel name.
func (p *NotificationPublisher) Channel() string {
	return p.channel
}

// Notify publishes one intent.
func (p *NotificationPublisher) Notify(ctx context.Context, intent *notification.Intent) error {
	if intent == nil {
		return ErrCacheNilValue
	}
	if err := p.cache.Publish(ctx, p.channel, intent); err != nil {
		return fmt.Errorf("publish notification %s: %w", intent.ID, err)
	}
	return nil
}
