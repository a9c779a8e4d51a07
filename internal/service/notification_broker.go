package service

import (
	"sync"

	"github.com/noah-isme/gema-tracker-api/internal/dto"
)

const subscriberBuffer = 16

// subscriberHub fans notifications out to the live streams of each user. Slow
// subscribers drop messages instead of blocking publishers.
type subscriberHub struct {
	mu      sync.RWMutex
	streams map[string]map[chan dto.NotificationResponse]struct{}
}

func newSubscriberHub() *subscriberHub {
	return &subscriberHub{streams: make(map[string]map[chan dto.NotificationResponse]struct{})}
}

func (h *subscriberHub) add(userID string) chan dto.NotificationResponse {
	ch := make(chan dto.NotificationResponse, subscriberBuffer)

	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.streams[userID]; !ok {
		h.streams[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	h.streams[userID][ch] = struct{}{}
	return ch
}

func (h *subscriberHub) remove(userID string, ch chan dto.NotificationResponse) {
	h.mu.Lock()
	defer h.mu.Unlock()

	streams, ok := h.streams[userID]
	if !ok {
		return
	}
	if _, ok := streams[ch]; !ok {
		return
	}
	delete(streams, ch)
	close(ch)
	if len(streams) == 0 {
		delete(h.streams, userID)
	}
}

// deliver reports how many streams accepted the notification.
func (h *subscriberHub) deliver(notification dto.NotificationResponse) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for ch := range h.streams[notification.UserID] {
		select {
		case ch <- notification:
			delivered++
		default:
		}
	}
	return delivered
}

func (h *subscriberHub) count(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[userID])
}
