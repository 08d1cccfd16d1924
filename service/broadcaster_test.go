package service

import (
	"testing"

	"masterserver/domain"
	"masterserver/interfaces/mock"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEvent(t domain.EventType, mode string) domain.Event {
	return domain.Event{
		Type: t,
		Entry: domain.ServerEntry{
			Identity: "1.2.3.4/a",
			Metadata: domain.Metadata{"mode": domain.StringValue(mode)},
		},
	}
}

func TestNewBroadcaster_Panics(t *testing.T) {
	assert.PanicsWithValue(t, "service.broadcaster.go: logger is required", func() {
		NewBroadcaster(1, nil)
	})
}

func TestBroadcaster_FilteredDelivery(t *testing.T) {
	b := NewBroadcaster(4, log.NewNopLogger())
	all := b.Subscribe(nil)
	ctf := b.Subscribe(domain.Filter{{Field: "mode", Op: domain.OpEq, Value: domain.StringValue("ctf")}})
	assert.Equal(t, 2, b.Len())

	b.Notify(testEvent(domain.EventRegistered, "ctf"))
	b.Notify(testEvent(domain.EventUpdated, "dm"))

	require.Len(t, all.Events(), 2)
	require.Len(t, ctf.Events(), 1)
	ev := <-ctf.Events()
	assert.Equal(t, domain.EventRegistered, ev.Type)
}

func TestBroadcaster_SlowWatcherDropsEvents(t *testing.T) {
	b := NewBroadcaster(1, log.NewNopLogger())
	s := b.Subscribe(nil)

	b.Notify(testEvent(domain.EventRegistered, "ctf"))
	b.Notify(testEvent(domain.EventUpdated, "ctf"))
	b.Notify(testEvent(domain.EventExpired, "ctf"))

	assert.Equal(t, 2, s.Dropped())
	ev := <-s.Events()
	assert.Equal(t, domain.EventRegistered, ev.Type)
}

func TestSubscription_Close(t *testing.T) {
	b := NewBroadcaster(0, log.NewNopLogger())
	s := b.Subscribe(nil)
	s.Close()
	s.Close()
	assert.Equal(t, 0, b.Len())

	_, open := <-s.Events()
	assert.False(t, open)
	assert.NotPanics(t, func() { b.Notify(testEvent(domain.EventRegistered, "ctf")) })
}

func TestMultiSink(t *testing.T) {
	first := &mock.EventSinkMock{}
	second := &mock.EventSinkMock{}
	MultiSink{first, second}.Notify(testEvent(domain.EventRegistered, "ctf"))
	assert.Len(t, first.NotifyCalls(), 1)
	assert.Len(t, second.NotifyCalls(), 1)
}
