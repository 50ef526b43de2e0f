// Package notify provides logmate.Notifier implementations: an in-process
// fan-out hub, a Redis pub/sub bridge, and a recorder for tests.
package notify

import (
	"context"
	"sync"

	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/pkg/logmate"
)

// DefaultBuffer is the per-subscriber queue length used by NewHub when none
// is given.
const DefaultBuffer = 256

// Hub fans events out to in-process subscribers. Each subscriber receives
// events in publish order. A subscriber whose buffer is full is dropped
// rather than allowed to stall publishers.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
	closed bool
}

// Subscription is a live feed of events from a Hub.
type Subscription struct {
	hub    *Hub
	group  string
	ch     chan logmate.Event
	closed bool
}

// NewHub creates a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[*Subscription]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a subscriber for group. An empty group receives every
// group's events.
func (h *Hub) Subscribe(group string) *Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	s := &Subscription{
		hub:   h,
		group: group,
		ch:    make(chan logmate.Event, h.buffer),
	}
	if h.closed {
		s.closed = true
		close(s.ch)
		return s
	}
	h.subs[s] = struct{}{}
	return s
}

// Publish delivers ev to every subscriber of group without blocking.
func (h *Hub) Publish(_ context.Context, group string, ev logmate.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for s := range h.subs {
		if s.group != "" && s.group != group {
			continue
		}
		select {
		case s.ch <- ev:
		default:
			zlog.Warn().
				Str("component", "hub").
				Str("group", s.group).
				Msg("subscriber too slow, dropping")
			h.removeLocked(s)
		}
	}
	return nil
}

// Len reports the number of active subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close ends every subscription. Later subscriptions are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true
	for s := range h.subs {
		h.removeLocked(s)
	}
}

func (h *Hub) removeLocked(s *Subscription) {
	if s.closed {
		return
	}
	s.closed = true
	delete(h.subs, s)
	close(s.ch)
}

// Events returns the channel events arrive on. It is closed when the
// subscription ends.
func (s *Subscription) Events() <-chan logmate.Event {
	return s.ch
}

// Close unsubscribes. It is safe to call more than once.
func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}
