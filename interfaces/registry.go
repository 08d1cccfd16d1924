package interfaces

import "masterserver/domain"

// Directory is the read-only view of the registry served to discovery clients.
// Implementations never mutate entries while answering.
type Directory interface {
	// Snapshot returns every live entry accepted by keep, ordered by identity.
	// Entries whose last heartbeat is older than the TTL are excluded even if not yet swept.
	Snapshot(keep func(domain.ServerEntry) bool) []domain.ServerEntry

	// List returns one page of the filtered, ordered snapshot.
	// Returns:
	// 1) (page, nil) on success; an empty page has no entries and an empty NextCursor;
	// 2) (zero, malformed) when the cursor cannot be decoded.
	List(query domain.Query) (domain.Page, error)

	// Get returns the live entry for id.
	Get(id domain.Identity) (domain.ServerEntry, bool)
}

// Registry is the mutable directory of live servers used by the registration listener.
//
//go:generate moq -stub -out mock/registry.go -pkg mock . Registry
type Registry interface {
	Directory

	// Upsert creates or replaces the entry for reg.Identity, stamps its heartbeat and bumps its generation.
	// Returns:
	// 1) (entry, nil) with the generation the caller must present on later heartbeats;
	// 2) (zero, malformed) when the registration has no identity;
	// 3) (zero, invariant_violation) when the store detects an internal inconsistency.
	Upsert(reg domain.Registration) (domain.ServerEntry, error)

	// Refresh stamps the heartbeat of id if gen is its current generation.
	Refresh(id domain.Identity, gen domain.Generation) domain.RefreshStatus

	// Update behaves like Refresh and also replaces the metadata of the entry.
	Update(id domain.Identity, gen domain.Generation, metadata domain.Metadata) domain.RefreshStatus

	// Remove deletes the entry for id if gen is its current generation; a mismatch is a no-op.
	Remove(id domain.Identity, gen domain.Generation) domain.RemoveStatus
}

// EventSink receives registry changes. Notify is called without any registry lock held and must not block for long.
//
//go:generate moq -stub -out mock/event_sink.go -pkg mock . EventSink
type EventSink interface {
	Notify(event domain.Event)
}
