// Package events provides the publish/subscribe bus through which the cache
// and the sync engine report changes to the application layer.
package events

import (
	"sync"
	"time"

	"github.com/treestash/treesync/models"
)

// Event kinds emitted by the core.
const (
	KindChange         = "change"
	KindSyncDone       = "sync-done"
	KindSyncReqDone    = "sync-req-done"
	KindNetworkOnline  = "network-online"
	KindNetworkOffline = "network-offline"
	KindError          = "error"
)

// Event is one bus message. Change carries the document delta for
// KindChange events; Err carries the failure for KindError events.
type Event struct {
	Kind      string
	Change    *models.ChangeEvent
	Err       error
	Timestamp int64 // epoch ms
}

// Bus manages subscribers and publishes events to all of them.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Subscribe adds a new subscriber and returns its event channel.
// The caller must call Unsubscribe when done.
func (b *Bus) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Bus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subscribers, ch)
	close(ch)
	b.mu.Unlock()
}

// Publish sends an event to all subscribers. Non-blocking: drops events
// for slow consumers.
func (b *Bus) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().UnixMilli()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			// Drop event for slow consumer
		}
	}
}

// PublishChange wraps a document change in a KindChange event.
func (b *Bus) PublishChange(change models.ChangeEvent) {
	b.Publish(Event{Kind: KindChange, Change: &change})
}

// PublishError wraps a failure in a KindError event.
func (b *Bus) PublishError(err error) {
	b.Publish(Event{Kind: KindError, Err: err})
}

// Count returns the current number of subscribers.
func (b *Bus) Count() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
