package service

import (
	"sync"

	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/interfaces"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// Broadcaster fans registry events out to watchers. Publishing never blocks: a watcher whose buffer is full
// misses the event.
type Broadcaster struct {
	buffer int
	logger log.Logger

	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]*Subscription
}

// Subscription receives the events accepted by its filter until Close.
type Subscription struct {
	id     uint64
	filter domain.Filter
	events chan domain.Event
	owner  *Broadcaster
	once   sync.Once

	mu      sync.Mutex
	dropped int
}

var _ interfaces.EventSink = (*Broadcaster)(nil)

// NewBroadcaster creates a broadcaster whose subscriptions buffer up to buffer events. Panics on nil logger.
func NewBroadcaster(buffer int, logger log.Logger) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{
		buffer: buffer,
		logger: log.With(helpers.NilPanic(logger, "service.broadcaster.go: logger is required"), "component", "broadcaster"),
		subs:   make(map[uint64]*Subscription),
	}
}

// Subscribe registers a watcher for events whose entry matches filter. The empty filter matches everything.
func (b *Broadcaster) Subscribe(filter domain.Filter) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	s := &Subscription{
		id:     b.nextID,
		filter: filter,
		events: make(chan domain.Event, b.buffer),
		owner:  b,
	}
	b.subs[s.id] = s
	return s
}

// Notify implements interfaces.EventSink.
func (b *Broadcaster) Notify(ev domain.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		if !s.filter.Matches(ev.Entry.Metadata) {
			continue
		}
		select {
		case s.events <- ev:
		default:
			s.mu.Lock()
			s.dropped++
			s.mu.Unlock()
			level.Debug(b.logger).Log("msg", "watcher too slow, event dropped", "subscription", s.id, "event", ev.Type)
		}
	}
}

// Len returns the number of active subscriptions.
func (b *Broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Events is closed once the subscription is closed.
func (s *Subscription) Events() <-chan domain.Event {
	return s.events
}

// Dropped returns how many events the subscription missed because its buffer was full.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close unsubscribes. Safe to call more than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		b := s.owner
		b.mu.Lock()
		delete(b.subs, s.id)
		close(s.events)
		b.mu.Unlock()
	})
}

// MultiSink forwards every event to each of its sinks in order.
type MultiSink []interfaces.EventSink

// Notify implements interfaces.EventSink.
func (m MultiSink) Notify(ev domain.Event) {
	for _, sink := range m {
		sink.Notify(ev)
	}
}
