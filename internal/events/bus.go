/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package events

import "sync"

// EventType enumerates event categories.
type EventType string

const (
	EventShiftStarted  EventType = "shift.started"
	EventShiftClosed   EventType = "shift.closed"
	EventBreakStarted  EventType = "break.started"
	EventBreakEnded    EventType = "break.ended"
	EventOvertimeStart EventType = "overtime.started"
	EventJobStarted    EventType = "job.started"
	EventJobCompleted  EventType = "job.completed"

	// Cache invalidation events
	EventBlocksChanged EventType = "cache.blocks_changed"
	EventWorkerUpdated EventType = "cache.worker_updated"
)

// EventForAction maps a tracker action name to its event type.
func EventForAction(action string) EventType {
	switch action {
	case "clock_in":
		return EventShiftStarted
	case "clock_out":
		return EventShiftClosed
	case "start_break":
		return EventBreakStarted
	case "end_break":
		return EventBreakEnded
	case "start_overtime":
		return EventOvertimeStart
	case "start_job":
		return EventJobStarted
	case "complete_job":
		return EventJobCompleted
	default:
		return EventType("tracker." + action)
	}
}

// Payload generic event payload.
type Payload map[string]any

// Subscriber receives event payloads.
type Subscriber chan Payload

// Bus implements a simple in-process pubsub.
type Bus struct {
	mu   sync.RWMutex
	subs map[EventType][]Subscriber
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[EventType][]Subscriber)}
}

// Subscribe registers a subscriber for event type.
func (b *Bus) Subscribe(eventType EventType) Subscriber {
	ch := make(Subscriber, 8)
	b.mu.Lock()
	b.subs[eventType] = append(b.subs[eventType], ch)
	b.mu.Unlock()
	return ch
}

// Publish sends payload to subscribers. A slow subscriber drops the
// event rather than blocking the publisher.
func (b *Bus) Publish(eventType EventType, payload Payload) {
	b.mu.RLock()
	subs := append([]Subscriber(nil), b.subs[eventType]...)
	b.mu.RUnlock()
	for _, sub := range subs {
		select {
		case sub <- payload:
		default:
		}
	}
}

// Unsubscribe removes the subscriber.
func (b *Bus) Unsubscribe(eventType EventType, sub Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[eventType]
	for i, candidate := range subs {
		if candidate == sub {
			subs = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	b.subs[eventType] = subs
}
