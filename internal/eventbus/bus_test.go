package eventbus

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sommetlabs/sommet/internal/domain"
)

func TestBusPublishSubscribe(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(EntitlementsChanged)
	defer bus.Unsubscribe(ch)

	userID := uuid.New()
	bus.Publish(Event{
		Type:   EntitlementsChanged,
		UserID: userID,
		Plan:   domain.PlanBase,
		Action: domain.ActionGeneration,
	})

	select {
	case e := <-ch:
		assert.Equal(t, EntitlementsChanged, e.Type)
		assert.Equal(t, userID, e.UserID)
		assert.Equal(t, domain.ActionGeneration, e.Action)
		assert.False(t, e.Timestamp.IsZero())
	case <-time.After(time.Second):
		t.Fatal("expected event was not delivered")
	}
}

func TestBusTypeFilter(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(PlanChanged)
	defer bus.Unsubscribe(ch)

	bus.Publish(Event{Type: EntitlementsChanged, UserID: uuid.New()})

	select {
	case e := <-ch:
		t.Fatalf("unexpected event delivered: %v", e.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestBusSubscribeAll(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	defer bus.Unsubscribe(ch)

	bus.Publish(Event{Type: EntitlementsChanged, UserID: uuid.New()})
	bus.Publish(Event{Type: PlanChanged, UserID: uuid.New()})

	require.Equal(t, EntitlementsChanged, (<-ch).Type)
	require.Equal(t, PlanChanged, (<-ch).Type)
}

func TestBusSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	bus := New()
	ch := bus.Subscribe(EntitlementsChanged)
	defer bus.Unsubscribe(ch)

	// Overfill the subscriber buffer; publish must never block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			bus.Publish(Event{Type: EntitlementsChanged, UserID: uuid.New()})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestBusUnsubscribeClosesChannel(t *testing.T) {
	bus := New()
	ch := bus.Subscribe()
	bus.Unsubscribe(ch)

	_, open := <-ch
	assert.False(t, open)

	// Unsubscribing twice is a no-op.
	bus.Unsubscribe(ch)
}
