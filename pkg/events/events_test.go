package events

import (
	"testing"
	"time"

	"github.com/sanyaade-teachings/ganeti/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub Subscriber) *Event {
	t.Helper()
	select {
	case ev := <-sub:
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestBrokerPublishSubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub1 := b.Subscribe()
	sub2 := b.Subscribe()
	assert.Equal(t, 2, b.SubscriberCount())

	b.PublishJob(EventJobChanged, types.JobID(12), "status running")

	for _, sub := range []Subscriber{sub1, sub2} {
		ev := receive(t, sub)
		require.NotNil(t, ev)
		assert.Equal(t, EventJobChanged, ev.Type)
		assert.Equal(t, types.JobID(12), ev.JobID)
		assert.Equal(t, "status running", ev.Message)
		assert.False(t, ev.Timestamp.IsZero())
	}
}

func TestBrokerUnsubscribe(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	sub := b.Subscribe()
	b.Unsubscribe(sub)
	assert.Equal(t, 0, b.SubscriberCount())

	_, open := <-sub
	assert.False(t, open)

	// A second unsubscribe is harmless
	b.Unsubscribe(sub)
}

func TestBrokerFullSubscriberDoesNotBlock(t *testing.T) {
	b := NewBroker()
	b.Start()
	defer b.Stop()

	slow := b.Subscribe()
	for i := 0; i < 200; i++ {
		b.PublishJob(EventJobSubmitted, types.JobID(i), "")
	}

	// The subscriber got at most its buffer's worth
	time.Sleep(50 * time.Millisecond)
	assert.LessOrEqual(t, len(slow), cap(slow))
}

func TestBrokerPublishAfterStop(t *testing.T) {
	b := NewBroker()
	b.Stop()
	b.Stop()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 150; i++ {
			b.Publish(&Event{Type: EventDrainFlag})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stopped broker")
	}
}
