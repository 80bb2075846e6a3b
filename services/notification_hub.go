package services

import (
	"context"
	"errors"
	"log"
	"sync"
)

// NotificationHub fans notifications out to live subscribers of a user
// (the SSE stream). Slow subscribers lose notifications instead of blocking.
type NotificationHub struct {
	mu     sync.RWMutex
	subs   map[string]map[chan Notification]struct{}
	buffer int
}

func NewNotificationHub(buffer int) *NotificationHub {
	if buffer < 1 {
		buffer = 16
	}
	return &NotificationHub{
		subs:   make(map[string]map[chan Notification]struct{}),
		buffer: buffer,
	}
}

// Subscribe registers a listener for userID. Call the returned func to detach.
func (h *NotificationHub) Subscribe(userID string) (<-chan Notification, func()) {
	ch := make(chan Notification, h.buffer)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Notification]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Subscribers returns the number of live listeners for userID.
func (h *NotificationHub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}

// Send delivers n to every listener of userID without blocking.
func (h *NotificationHub) Send(_ context.Context, userID string, n Notification) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[userID] {
		select {
		case ch <- n:
		default:
			log.Printf("⚠️ [NOTIFY] SSE listener for %s is full, dropped %s", userID, n.Type)
		}
	}
	return nil
}

// LogDispatcher writes notifications to the log.
type LogDispatcher struct{}

func (LogDispatcher) Send(_ context.Context, userID string, n Notification) error {
	log.Printf("🔔 [NOTIFY] %s → %s: %s", n.Type, userID, n.Message)
	return nil
}

// MultiDispatcher sends to every dispatcher; one failing does not stop the others.
type MultiDispatcher []NotificationDispatcher

func (m MultiDispatcher) Send(ctx context.Context, userID string, n Notification) error {
	var errs []error
	for _, d := range m {
		if err := d.Send(ctx, userID, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
