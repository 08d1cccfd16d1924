package handlers

import (
	"time"

	"masterserver/domain"
)

// toRegisterResponse converts a registered entry to the API response.
func toRegisterResponse(e domain.ServerEntry, ttl, heartbeatInterval time.Duration) RegisterResponse {
	return RegisterResponse{
		Identity:            string(e.Identity),
		Generation:          int64(e.Generation),
		TtlMs:               ttl.Milliseconds(),
		HeartbeatIntervalMs: heartbeatInterval.Milliseconds(),
	}
}

// toServerInfo converts an entry to its discovery view as of now.
func toServerInfo(e domain.ServerEntry, now time.Time) ServerInfo {
	return ServerInfo{
		Address:  e.AdvertisedAddress,
		Port:     e.AdvertisedPort,
		Metadata: e.Metadata.Plain(),
		AgeMs:    e.Age(now).Milliseconds(),
	}
}

// toServersResponse converts a page of entries to the API response.
func toServersResponse(page domain.Page, now time.Time) ServersResponse {
	out := make([]ServerInfo, 0, len(page.Entries))
	for _, e := range page.Entries {
		out = append(out, toServerInfo(e, now))
	}
	resp := ServersResponse{Servers: out, End: page.End()}
	if !page.End() {
		next := string(page.NextCursor)
		resp.NextCursor = &next
	}
	return resp
}

// toSchemaResponse converts the metadata schema to the API response.
func toSchemaResponse(schema domain.Schema) SchemaResponse {
	fields := make(map[string]string, len(schema))
	for k, kind := range schema {
		fields[k] = string(kind)
	}
	return SchemaResponse{Fields: fields}
}

// toEventFrame converts a registry event to the frame pushed to watchers.
func toEventFrame(ev domain.Event) EventFrame {
	return EventFrame{
		V:          DiscoveryProtocolVersion,
		Type:       FrameEvent,
		Event:      string(ev.Type),
		Generation: int64(ev.Entry.Generation),
		Server:     toServerInfo(ev.Entry, ev.At),
	}
}
