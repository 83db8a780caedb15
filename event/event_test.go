package event

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBus_PublishDeliversToSubscriber(t *testing.T) {
	b := NewBus[string]()
	ch, unsubscribe := b.Subscribe(4)
	defer unsubscribe()

	b.Publish("hello")

	select {
	case got := <-ch:
		require.Equal(t, "hello", got)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_PublishFansOutToAllSubscribers(t *testing.T) {
	b := NewBus[int]()
	ch1, unsub1 := b.Subscribe(1)
	ch2, unsub2 := b.Subscribe(1)
	defer unsub1()
	defer unsub2()

	b.Publish(42)

	require.Equal(t, 42, <-ch1)
	require.Equal(t, 42, <-ch2)
}

func TestBus_PublishWithNoSubscribersIsNoop(t *testing.T) {
	b := NewBus[int]()
	require.NotPanics(t, func() { b.Publish(1) })
}

func TestBus_PublishDropsOnFullBuffer(t *testing.T) {
	b := NewBus[int]()
	ch, unsubscribe := b.Subscribe(1)
	defer unsubscribe()

	b.Publish(1)
	b.Publish(2) // buffer full, dropped rather than blocking

	require.Equal(t, 1, <-ch)
	select {
	case v := <-ch:
		t.Fatalf("expected no further event, got %d", v)
	default:
	}
}

func TestBus_UnsubscribeClosesChannelAndStopsDelivery(t *testing.T) {
	b := NewBus[int]()
	ch, unsubscribe := b.Subscribe(1)

	unsubscribe()
	require.Equal(t, 0, b.Len())

	_, open := <-ch
	require.False(t, open)

	require.NotPanics(t, func() { b.Publish(1) })
}

func TestBus_Len(t *testing.T) {
	b := NewBus[int]()
	require.Equal(t, 0, b.Len())

	_, unsub1 := b.Subscribe(1)
	_, unsub2 := b.Subscribe(1)
	require.Equal(t, 2, b.Len())

	unsub1()
	require.Equal(t, 1, b.Len())
	unsub2()
	require.Equal(t, 0, b.Len())
}
