// ABOUTME: In-memory fan-out of sync status changes to UI subscribers
// ABOUTME: Publishes StatusEvents per user without ever blocking the sync path

package syncengine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sestako/eunio-app-sub019/internal/settings"
)

// subscriberBufferSize is the channel buffer for each subscriber.
const subscriberBufferSize = 64

// StatusEvent reports a change in a user's sync state.
type StatusEvent struct {
	UserID  string
	Status  settings.SyncStatus
	OpID    string // push operation, empty for activation events
	Attempt int    // attempts made so far by OpID
	Err     error  // last error for Failed or retrying events
	At      time.Time
}

// StatusBroadcaster provides in-memory pub/sub for StatusEvents keyed by user.
type StatusBroadcaster struct {
	mu          sync.RWMutex
	subscribers map[string]map[string]chan StatusEvent // userID -> subID -> ch
	logger      *slog.Logger
}

// NewStatusBroadcaster creates a broadcaster. Pass nil logger for default.
func NewStatusBroadcaster(logger *slog.Logger) *StatusBroadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatusBroadcaster{
		subscribers: make(map[string]map[string]chan StatusEvent),
		logger:      logger.With("component", "broadcaster"),
	}
}

// Subscribe registers for events about userID. The subscription is removed
// and its channel closed when ctx is cancelled.
func (b *StatusBroadcaster) Subscribe(ctx context.Context, userID string) (<-chan StatusEvent, string) {
	subID := uuid.New().String()
	ch := make(chan StatusEvent, subscriberBufferSize)

	b.mu.Lock()
	if _, ok := b.subscribers[userID]; !ok {
		b.subscribers[userID] = make(map[string]chan StatusEvent)
	}
	b.subscribers[userID][subID] = ch
	b.mu.Unlock()

	b.logger.Debug("subscriber added", "user_id", userID, "sub_id", subID)

	go func() {
		<-ctx.Done()
		b.Unsubscribe(userID, subID)
	}()

	return ch, subID
}

// Publish delivers event to every subscriber of event.UserID.
// Non-blocking: events are dropped for subscribers whose channels are full.
func (b *StatusBroadcaster) Publish(event StatusEvent) {
	// Sends happen under the read lock so Unsubscribe cannot close a channel
	// mid-send; they never block, so the lock is held briefly.
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subscribers[event.UserID] {
		select {
		case ch <- event:
		default:
			b.logger.Debug("dropped status event for slow subscriber",
				"user_id", event.UserID,
				"status", event.Status)
		}
	}
}

// Unsubscribe removes a subscription and closes its channel.
func (b *StatusBroadcaster) Unsubscribe(userID, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs, ok := b.subscribers[userID]
	if !ok {
		return
	}
	ch, exists := subs[subID]
	if !exists {
		return
	}

	delete(subs, subID)
	close(ch)
	if len(subs) == 0 {
		delete(b.subscribers, userID)
	}

	b.logger.Debug("subscriber removed", "user_id", userID, "sub_id", subID)
}

// Close closes every subscriber channel.
func (b *StatusBroadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for userID, subs := range b.subscribers {
		for subID, ch := range subs {
			close(ch)
			delete(subs, subID)
		}
		delete(b.subscribers, userID)
	}
}
