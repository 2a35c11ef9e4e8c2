// Package bus is a small in-process event emitter that decouples the sync
// pipeline from its notification sinks (badge, sound, panel refresh).
package bus

import (
	"log/slog"
	"sync"
)

// Topic identifies the kind of event published.
type Topic string

const (
	// TopicSnapshotUpdated fires when the persisted channel list changed.
	TopicSnapshotUpdated Topic = "snapshot-updated"
	// TopicBadgeCountChanged fires when the live-channel count changed.
	TopicBadgeCountChanged Topic = "badge-count-changed"
	// TopicNewLiveArrival fires when a channel went live that was not live in
	// the previous snapshot.
	TopicNewLiveArrival Topic = "new-live-arrival"
)

// Event is one published notification. LiveCount is only meaningful for
// TopicBadgeCountChanged.
type Event struct {
	Topic     Topic `json:"topic"`
	LiveCount int   `json:"liveCount,omitempty"`
}

type subscriber struct {
	id int
	ch chan Event
}

// Bus fans published events out to all subscribers. Publish never blocks: a
// subscriber whose buffer is full misses the event and a warning is logged.
type Bus struct {
	mu     sync.Mutex
	nextID int
	subs   []subscriber
}

// New returns an empty Bus.
func New() *Bus { return &Bus{} }

// Subscribe registers a listener with the given channel buffer and returns the
// event channel plus an unsubscribe func. Unsubscribing closes the channel.
func (b *Bus) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	b.mu.Lock()
	b.nextID++
	sub := subscriber{id: b.nextID, ch: make(chan Event, buffer)}
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == sub.id {
				b.subs = append(b.subs[:i], b.subs[i+1:]...)
				close(s.ch)
				return
			}
		}
	}
	return sub.ch, cancel
}

// Publish delivers evt to every subscriber without blocking.
func (b *Bus) Publish(evt Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		select {
		case s.ch <- evt:
		default:
			slog.Warn("event dropped: slow subscriber", slog.String("topic", string(evt.Topic)))
		}
	}
}

// The Bus doubles as the scheduler's Notifier.

// SnapshotUpdated publishes a snapshot-updated event.
func (b *Bus) SnapshotUpdated() { b.Publish(Event{Topic: TopicSnapshotUpdated}) }

// BadgeCountChanged publishes the new live-channel count.
func (b *Bus) BadgeCountChanged(live int) {
	b.Publish(Event{Topic: TopicBadgeCountChanged, LiveCount: live})
}

// NewLiveArrival publishes a new-live-arrival event.
func (b *Bus) NewLiveArrival() { b.Publish(Event{Topic: TopicNewLiveArrival}) }
