// internal/realtime/hub_test.go
package realtime

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestHubFanoutToAllSubscribers(t *testing.T) {
	hub := NewHub()
	channel := UserChannel(uuid.New())

	first := make(chan Event, 1)
	second := make(chan Event, 1)
	cancelFirst := hub.Subscribe(channel, first)
	defer cancelFirst()
	cancelSecond := hub.Subscribe(channel, second)
	defer cancelSecond()

	hub.Publish(channel, Event{Type: EventNewNotification})

	assert.Len(t, first, 1)
	assert.Len(t, second, 1)
}

func TestHubDoesNotDeliverAcrossChannels(t *testing.T) {
	hub := NewHub()

	ch := make(chan Event, 1)
	cancel := hub.Subscribe(UserChannel(uuid.New()), ch)
	defer cancel()

	hub.Publish(UserChannel(uuid.New()), Event{Type: EventNewMessage})

	assert.Empty(t, ch)
}

func TestHubPublishWithoutSubscribersDoesNotBlock(t *testing.T) {
	hub := NewHub()

	hub.Publish(RequestChannel(uuid.New()), Event{Type: EventOpponentTypingStarted})
}

func TestHubDropsEventForFullSubscriber(t *testing.T) {
	hub := NewHub()
	channel := UserChannel(uuid.New())

	ch := make(chan Event, 1)
	cancel := hub.Subscribe(channel, ch)
	defer cancel()

	hub.Publish(channel, Event{Type: EventNewMessage})
	hub.Publish(channel, Event{Type: EventNewMessage})

	// Second publish is dropped, not queued or blocked on.
	assert.Len(t, ch, 1)
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	hub := NewHub()
	channel := UserChannel(uuid.New())

	ch := make(chan Event, 1)
	cancel := hub.Subscribe(channel, ch)
	cancel()

	hub.Publish(channel, Event{Type: EventNewNotification})

	assert.Empty(t, ch)
}
