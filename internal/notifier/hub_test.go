package notifier

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestHubPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	matchID := primitive.NewObjectID()

	ch, unsubscribe := h.Watch(matchID)
	defer unsubscribe()

	h.Publish(matchID)

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("expected a notification, got none")
	}
}

func TestHubPublishIgnoresOtherMatches(t *testing.T) {
	h := NewHub()
	watched := primitive.NewObjectID()
	other := primitive.NewObjectID()

	ch, unsubscribe := h.Watch(watched)
	defer unsubscribe()

	h.Publish(other)

	select {
	case <-ch:
		t.Fatal("did not expect a notification for a different match")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	matchID := primitive.NewObjectID()

	ch, unsubscribe := h.Watch(matchID)
	unsubscribe()

	h.Publish(matchID)

	select {
	case _, ok := <-ch:
		require.False(t, ok, "channel should not deliver after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubPublishWithNoSubscribersDoesNotPanic(t *testing.T) {
	h := NewHub()
	require.NotPanics(t, func() {
		h.Publish(primitive.NewObjectID())
	})
}

func TestHubSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub()
	matchID := primitive.NewObjectID()

	ch, unsubscribe := h.Watch(matchID)
	defer unsubscribe()

	// Fill the subscriber's buffer (capacity 1), then publish again: the
	// second publish must not block even though the first event is unread.
	done := make(chan struct{})
	go func() {
		h.Publish(matchID)
		h.Publish(matchID)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}

	<-ch
}
