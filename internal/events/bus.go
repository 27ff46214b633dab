// SPDX-License-Identifier: MIT

// Package events broadcasts directory refresh outcomes to interested
// subsystems (the WebSocket server, the TUI, metrics).
package events

import (
	"time"

	"github.com/kelindar/event"
)

// Event type constants for kelindar/event.
const (
	TypeSnapshotRefreshed uint32 = iota + 1
	TypeRefreshFailed
)

// Event is what kelindar/event dispatches on.
type Event interface {
	Type() uint32
}

// SnapshotRefreshedEvent is published after a new snapshot is live.
type SnapshotRefreshedEvent struct {
	Generation uint64        `json:"generation"`
	Backend    string        `json:"backend"`
	Devices    int           `json:"devices"`
	Input      int           `json:"input"`
	Output     int           `json:"output"`
	Skipped    int           `json:"skipped"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

func (e SnapshotRefreshedEvent) Type() uint32 { return TypeSnapshotRefreshed }

// RefreshFailedEvent is published when a refresh kept the old snapshot.
type RefreshFailedEvent struct {
	Generation uint64    `json:"generation"`
	Backend    string    `json:"backend"`
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e RefreshFailedEvent) Type() uint32 { return TypeRefreshFailed }

// Bus wraps a kelindar/event dispatcher. Handlers run asynchronously.
type Bus struct {
	dispatcher *event.Dispatcher
}

func New() *Bus {
	return &Bus{dispatcher: event.NewDispatcher()}
}

// Publish broadcasts ev to the subscribers of its concrete type.
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case SnapshotRefreshedEvent:
		event.Publish(b.dispatcher, e)
	case RefreshFailedEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers handler, whose parameter type selects the events it
// receives. It returns the unsubscribe function. Unknown handler types get a
// no-op.
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(SnapshotRefreshedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RefreshFailedEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}

// Close stops the dispatcher's delivery goroutines.
func (b *Bus) Close() error {
	return b.dispatcher.Close()
}

// SubscribeToChannel forwards events of type T to ch, dropping them when ch
// is full.
func SubscribeToChannel[T Event](bus *Bus, ch chan<- any) func() {
	return event.Subscribe(bus.dispatcher, func(e T) {
		select {
		case ch <- e:
		default:
		}
	})
}
