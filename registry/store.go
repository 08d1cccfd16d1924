// Package registry holds the in-memory directory of live servers and the sweeper that evicts expired entries.
//
// The directory is split into shards keyed by a hash of the identity. Every operation on one identity runs under
// that identity's shard lock, so operations on the same identity are linearizable while different shards proceed
// in parallel. No lock is held while events are delivered or while callers perform network I/O.
package registry

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"masterserver/domain"
	"masterserver/helpers"
	"masterserver/interfaces"
	"masterserver/service"

	"github.com/cespare/xxhash/v2"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

// DefaultShards is used when Options.Shards is not set.
const DefaultShards = 32

// Options tunes the store.
type Options struct {
	// TTL is the longest gap between heartbeats before an entry is dead.
	TTL time.Duration
	// TombstoneRetention is how long the last generation of a removed identity is remembered. Defaults to 10×TTL.
	TombstoneRetention time.Duration
	// Shards is the number of independently locked partitions. Defaults to DefaultShards.
	Shards int
}

// Store implements interfaces.Registry.
type Store struct {
	shards []*shard
	opts   Options
	clock  interfaces.TimeProvider
	sink   interfaces.EventSink
	logger log.Logger
}

type shard struct {
	mu         sync.RWMutex
	entries    map[domain.Identity]domain.ServerEntry
	tombstones map[domain.Identity]tombstone

	// Events are queued under mu in mutation order and delivered by one goroutine at a time, so the sink sees
	// the changes of a shard in the order they were applied.
	pendingMu  sync.Mutex
	pending    []domain.Event
	delivering atomic.Bool
}

// enqueueLocked queues events for delivery. Caller must hold sh.mu for writing.
func (sh *shard) enqueueLocked(events ...domain.Event) {
	sh.pendingMu.Lock()
	sh.pending = append(sh.pending, events...)
	sh.pendingMu.Unlock()
}

func (sh *shard) takePending() []domain.Event {
	sh.pendingMu.Lock()
	defer sh.pendingMu.Unlock()
	events := sh.pending
	sh.pending = nil
	return events
}

func (sh *shard) hasPending() bool {
	sh.pendingMu.Lock()
	defer sh.pendingMu.Unlock()
	return len(sh.pending) > 0
}

// tombstone keeps the last generation of a removed identity so a later registration continues the sequence.
type tombstone struct {
	generation domain.Generation
	removedAt  time.Time
}

var _ interfaces.Registry = (*Store)(nil)

// NewStore creates an empty store. Panics on nil clock, sink or logger, or on a non-positive TTL.
func NewStore(opts Options, clock interfaces.TimeProvider, sink interfaces.EventSink, logger log.Logger) *Store {
	if opts.TTL <= 0 {
		panic("registry.store.go: ttl must be positive")
	}
	if opts.Shards <= 0 {
		opts.Shards = DefaultShards
	}
	if opts.TombstoneRetention <= 0 {
		opts.TombstoneRetention = 10 * opts.TTL
	}
	s := &Store{
		shards: make([]*shard, opts.Shards),
		opts:   opts,
		clock:  helpers.NilPanic(clock, "registry.store.go: clock is required"),
		sink:   helpers.NilPanic(sink, "registry.store.go: sink is required"),
		logger: log.With(helpers.NilPanic(logger, "registry.store.go: logger is required"), "component", "registry"),
	}
	for i := range s.shards {
		s.shards[i] = &shard{
			entries:    make(map[domain.Identity]domain.ServerEntry),
			tombstones: make(map[domain.Identity]tombstone),
		}
	}
	return s
}

// TTL returns the liveness window of entries.
func (s *Store) TTL() time.Duration {
	return s.opts.TTL
}

func (s *Store) shardFor(id domain.Identity) *shard {
	return s.shards[xxhash.Sum64String(string(id))%uint64(len(s.shards))]
}

// Upsert creates or replaces the entry for reg.Identity. RegisteredAt survives a re-registration of a live entry;
// the generation always moves past every generation the identity had before, including removed ones still
// remembered by a tombstone.
func (s *Store) Upsert(reg domain.Registration) (domain.ServerEntry, error) {
	if reg.Identity == "" {
		return domain.ServerEntry{}, service.NewMalformedError("identity is required", nil)
	}
	now := s.clock.Now()
	entry := domain.ServerEntry{
		Identity:          reg.Identity,
		InstanceID:        reg.InstanceID,
		AdvertisedAddress: reg.Address,
		AdvertisedPort:    reg.Port,
		Metadata:          reg.Metadata.Clone(),
		LastHeartbeat:     now,
		RegisteredAt:      now,
		Generation:        1,
	}
	if entry.Metadata == nil {
		entry.Metadata = domain.Metadata{}
	}

	sh := s.shardFor(reg.Identity)
	sh.mu.Lock()
	prev, existed := sh.entries[reg.Identity]
	switch {
	case existed && prev.Identity != reg.Identity:
		sh.mu.Unlock()
		err := service.NewInvariantViolationError(fmt.Sprintf("entry %q stored under key %q", prev.Identity, reg.Identity), nil)
		level.Error(s.logger).Log("msg", "registry invariant violated", "err", err)
		return domain.ServerEntry{}, err
	case existed && !prev.Expired(now, s.opts.TTL):
		entry.RegisteredAt = prev.RegisteredAt
		entry.Generation = prev.Generation + 1
	case existed:
		entry.Generation = prev.Generation + 1
		sh.enqueueLocked(domain.Event{Type: domain.EventExpired, Entry: prev, At: now})
	default:
		if ts, ok := sh.tombstones[reg.Identity]; ok {
			entry.Generation = ts.generation + 1
			delete(sh.tombstones, reg.Identity)
		}
	}
	sh.entries[reg.Identity] = entry
	sh.enqueueLocked(domain.Event{Type: domain.EventRegistered, Entry: entry, At: now})
	sh.mu.Unlock()

	s.publish(sh)
	return entry, nil
}

// Refresh stamps the heartbeat of id. A generation other than the current one is stale; a logically expired entry
// is evicted on the spot and reported unknown.
func (s *Store) Refresh(id domain.Identity, gen domain.Generation) domain.RefreshStatus {
	return s.touch(id, gen, nil, false)
}

// Update is Refresh plus replacement of the entry's metadata.
func (s *Store) Update(id domain.Identity, gen domain.Generation, metadata domain.Metadata) domain.RefreshStatus {
	return s.touch(id, gen, metadata, true)
}

func (s *Store) touch(id domain.Identity, gen domain.Generation, metadata domain.Metadata, replace bool) domain.RefreshStatus {
	now := s.clock.Now()
	sh := s.shardFor(id)
	sh.mu.Lock()
	e, ok := sh.entries[id]
	if !ok {
		sh.mu.Unlock()
		return domain.RefreshUnknown
	}
	if e.Expired(now, s.opts.TTL) {
		s.evictLocked(sh, e, now)
		sh.enqueueLocked(domain.Event{Type: domain.EventExpired, Entry: e, At: now})
		sh.mu.Unlock()
		s.publish(sh)
		return domain.RefreshUnknown
	}
	if gen != e.Generation {
		sh.mu.Unlock()
		return domain.RefreshStale
	}
	// Heartbeats never move the stamp backwards.
	if now.After(e.LastHeartbeat) {
		e.LastHeartbeat = now
	}
	if replace {
		e.Metadata = metadata.Clone()
		if e.Metadata == nil {
			e.Metadata = domain.Metadata{}
		}
	}
	sh.entries[id] = e
	if !replace {
		sh.mu.Unlock()
		return domain.RefreshOK
	}
	sh.enqueueLocked(domain.Event{Type: domain.EventUpdated, Entry: e, At: now})
	sh.mu.Unlock()

	s.publish(sh)
	return domain.RefreshOK
}

// Remove deletes the entry for id when gen is current. A mismatch leaves the entry untouched, so a lingering old
// connection cannot unregister a newer registration.
func (s *Store) Remove(id domain.Identity, gen domain.Generation) domain.RemoveStatus {
	now := s.clock.Now()
	sh := s.shardFor(id)
	sh.mu.Lock()
	e, ok := sh.entries[id]
	if !ok {
		sh.mu.Unlock()
		return domain.RemoveUnknown
	}
	if e.Expired(now, s.opts.TTL) {
		s.evictLocked(sh, e, now)
		sh.enqueueLocked(domain.Event{Type: domain.EventExpired, Entry: e, At: now})
		sh.mu.Unlock()
		s.publish(sh)
		return domain.RemoveUnknown
	}
	if gen != e.Generation {
		sh.mu.Unlock()
		return domain.RemoveStale
	}
	s.evictLocked(sh, e, now)
	sh.enqueueLocked(domain.Event{Type: domain.EventUnregistered, Entry: e, At: now})
	sh.mu.Unlock()

	s.publish(sh)
	return domain.RemoveOK
}

// evictLocked deletes e and leaves a tombstone. Caller must hold sh.mu for writing.
func (s *Store) evictLocked(sh *shard, e domain.ServerEntry, now time.Time) {
	delete(sh.entries, e.Identity)
	sh.tombstones[e.Identity] = tombstone{generation: e.Generation, removedAt: now}
}

// Get returns the live entry for id.
func (s *Store) Get(id domain.Identity) (domain.ServerEntry, bool) {
	now := s.clock.Now()
	sh := s.shardFor(id)
	sh.mu.RLock()
	e, ok := sh.entries[id]
	sh.mu.RUnlock()
	if !ok || e.Expired(now, s.opts.TTL) {
		return domain.ServerEntry{}, false
	}
	return e, true
}

// Snapshot returns the live entries accepted by keep, ordered by identity. keep runs under a shard read lock and
// must be a pure predicate. A nil keep accepts everything.
//
// Shards are read one after another: each returned entry was live when its shard was read, but entries of
// different shards may be observed at slightly different instants.
func (s *Store) Snapshot(keep func(domain.ServerEntry) bool) []domain.ServerEntry {
	now := s.clock.Now()
	out := make([]domain.ServerEntry, 0)
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			if e.Expired(now, s.opts.TTL) {
				continue
			}
			if keep != nil && !keep(e) {
				continue
			}
			out = append(out, e)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out
}

// List returns the page of the filtered snapshot that follows query.Cursor. A non-positive limit returns the rest
// of the snapshot in one page.
func (s *Store) List(query domain.Query) (domain.Page, error) {
	after, err := query.Cursor.After()
	if err != nil {
		return domain.Page{}, service.NewMalformedError("invalid cursor", err)
	}
	all := s.Snapshot(query.Filter.Predicate())
	start := sort.Search(len(all), func(i int) bool { return all[i].Identity > after })
	rest := all[start:]
	if query.Limit > 0 && len(rest) > query.Limit {
		page := rest[:query.Limit]
		return domain.Page{Entries: page, NextCursor: domain.CursorAfter(page[len(page)-1].Identity)}, nil
	}
	return domain.Page{Entries: rest}, nil
}

// Len returns the number of stored entries, including expired ones not yet swept.
func (s *Store) Len() int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.RLock()
		n += len(sh.entries)
		sh.mu.RUnlock()
	}
	return n
}

// Sweep evicts every entry whose heartbeat deadline has passed and forgets tombstones older than the retention.
// A shard that reports an inconsistency is logged and skipped; the sweep carries on with the next one.
// Returns the number of evicted entries.
func (s *Store) Sweep() int {
	now := s.clock.Now()
	removed := 0
	for i, sh := range s.shards {
		n, err := s.sweepShard(sh, now)
		if err != nil {
			level.Error(s.logger).Log("msg", "sweep found inconsistent shard", "shard", i, "err", err)
		}
		s.publish(sh)
		removed += n
	}
	return removed
}

func (s *Store) sweepShard(sh *shard, now time.Time) (int, error) {
	var (
		expired int
		err     error
	)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	for id, e := range sh.entries {
		if e.Identity != id {
			err = service.NewInvariantViolationError(fmt.Sprintf("entry %q stored under key %q", e.Identity, id), nil)
			continue
		}
		if e.Expired(now, s.opts.TTL) {
			s.evictLocked(sh, e, now)
			sh.enqueueLocked(domain.Event{Type: domain.EventExpired, Entry: e, At: now})
			expired++
		}
	}
	for id, ts := range sh.tombstones {
		if now.Sub(ts.removedAt) > s.opts.TombstoneRetention {
			delete(sh.tombstones, id)
		}
	}
	return expired, err
}

// publish delivers the queued events of sh. Whoever finds the shard idle becomes its deliverer and drains the
// queue, including events queued by others meanwhile; everyone else returns at once. No lock is held while the sink
// runs, so a sink may read or even mutate the store.
func (s *Store) publish(sh *shard) {
	for sh.delivering.CompareAndSwap(false, true) {
		for events := sh.takePending(); len(events) > 0; events = sh.takePending() {
			for _, ev := range events {
				s.sink.Notify(ev)
			}
		}
		sh.delivering.Store(false)
		// An event queued between the last drain and the release would otherwise wait for the next mutation.
		if !sh.hasPending() {
			return
		}
	}
}
