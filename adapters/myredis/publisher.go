// Package myredis mirrors registry events to Redis pub/sub so other processes can follow the directory.
package myredis

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/interfaces"
	"masterserver/service"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/go-redis/redis/v8"
)

const publishTimeout = 2 * time.Second

// EventMessage is the JSON published for each registry event.
type EventMessage struct {
	Type       string         `json:"type"`
	Identity   string         `json:"identity"`
	Address    string         `json:"address"`
	Port       int            `json:"port"`
	Generation uint64         `json:"generation"`
	Metadata   map[string]any `json:"metadata"`
	At         time.Time      `json:"at"`
}

// EventPublisher implements interfaces.EventSink by publishing events to a Redis channel. Notify only queues; a
// single goroutine publishes, so the registry never waits on Redis. Events that do not fit the queue are dropped.
type EventPublisher struct {
	client  redis.UniversalClient
	channel string
	logger  log.Logger

	mu      sync.Mutex
	queue   chan domain.Event
	closed  bool
	dropped int
	done    chan struct{}
}

var _ interfaces.EventSink = (*EventPublisher)(nil)

// NewEventPublisher creates a publisher and starts its goroutine. Panics on nil client or logger and on an empty
// channel.
func NewEventPublisher(client redis.UniversalClient, channel string, buffer int, logger log.Logger) *EventPublisher {
	if buffer <= 0 {
		buffer = 256
	}
	p := &EventPublisher{
		client:  helpers.NilPanic(client, "myredis.publisher.go: client is required"),
		channel: helpers.StrPanic(channel, "myredis.publisher.go: channel is required"),
		logger:  log.With(helpers.NilPanic(logger, "myredis.publisher.go: logger is required"), "component", "redis-publisher"),
		queue:   make(chan domain.Event, buffer),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Notify queues ev for publishing.
func (p *EventPublisher) Notify(ev domain.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	select {
	case p.queue <- ev:
	default:
		p.dropped++
		level.Warn(p.logger).Log("msg", "event queue full, event dropped", "event", ev.Type, "identity", ev.Entry.Identity, "dropped", p.dropped)
	}
}

// Dropped returns the number of events that did not fit the queue.
func (p *EventPublisher) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Close stops accepting events and waits until the queued ones are published or ctx is done.
func (p *EventPublisher) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *EventPublisher) run() {
	defer close(p.done)
	for ev := range p.queue {
		if err := p.publish(ev); err != nil {
			level.Warn(p.logger).Log("msg", "failed to publish registry event", "event", ev.Type, "err", err)
		}
	}
}

func (p *EventPublisher) publish(ev domain.Event) error {
	bytes, err := json.Marshal(toEventMessage(ev))
	if err != nil {
		return service.NewInternalServerError("Redis marshal event error", fmt.Errorf("can't marshal %s event, err: %w", ev.Type, err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, bytes).Err(); err != nil {
		return service.NewInternalServerError("Redis publish error", fmt.Errorf("can't publish to redis (channel='%s'), err: %w", p.channel, err))
	}
	return nil
}

func toEventMessage(ev domain.Event) EventMessage {
	return EventMessage{
		Type:       string(ev.Type),
		Identity:   string(ev.Entry.Identity),
		Address:    ev.Entry.AdvertisedAddress,
		Port:       ev.Entry.AdvertisedPort,
		Generation: uint64(ev.Entry.Generation),
		Metadata:   ev.Entry.Metadata.Plain(),
		At:         ev.At,
	}
}
