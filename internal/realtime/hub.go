// internal/realtime/hub.go
package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Event names pushed over the realtime channel.
const (
	EventNewNotification       = "new_notification"
	EventNewMessage            = "new_message"
	EventOpponentTypingStarted = "opponent_typing_started"
	EventOpponentTypingStopped = "opponent_typing_stopped"
)

type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
}

// Publisher decouples components that raise realtime events from the
// transport. Delivery is best-effort: the persisted store stays authoritative
// and a failed push is never retried in a way that could duplicate state.
type Publisher interface {
	Publish(channel string, event Event)
}

// UserChannel is the per-user fanout channel for notifications and messages.
func UserChannel(userID uuid.UUID) string {
	return "user:" + userID.String()
}

// RequestChannel is the per-request room for ephemeral typing signals.
func RequestChannel(requestID uuid.UUID) string {
	return "request:" + requestID.String()
}

// Hub is an in-memory Publisher delivering each published event to every live
// subscriber of the channel. One user may hold several subscriptions (one per
// connected session).
type Hub struct {
	mtx         sync.RWMutex
	subscribers map[string]map[chan Event]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[string]map[chan Event]struct{}),
	}
}

// Subscribe registers ch on a channel and returns a cancel func. The caller
// owns ch and must keep draining it until cancel returns.
func (h *Hub) Subscribe(channel string, ch chan Event) func() {
	h.mtx.Lock()
	defer h.mtx.Unlock()

	if h.subscribers[channel] == nil {
		h.subscribers[channel] = make(map[chan Event]struct{})
	}
	h.subscribers[channel][ch] = struct{}{}

	return func() {
		h.mtx.Lock()
		defer h.mtx.Unlock()

		if subs, ok := h.subscribers[channel]; ok {
			delete(subs, ch)
			if len(subs) == 0 {
				delete(h.subscribers, channel)
			}
		}
	}
}

// Publish delivers event to every subscriber of channel without blocking; a
// subscriber with a full buffer misses the push and recovers via the pull
// path.
func (h *Hub) Publish(channel string, event Event) {
	h.mtx.RLock()
	defer h.mtx.RUnlock()

	for ch := range h.subscribers[channel] {
		select {
		case ch <- event:
		default:
			logrus.WithFields(logrus.Fields{
				"channel": channel,
				"event":   event.Type,
			}).Debug("Dropping realtime event for slow subscriber")
		}
	}
}
