package handlers

import (
	"encoding/json"

	"masterserver/service"
)

// Protocol versions evolve independently so registration and discovery clients can be upgraded separately.
const (
	RegistrationProtocolVersion = 1
	DiscoveryProtocolVersion    = 1
)

// maxFrameBytes bounds a single inbound WebSocket frame.
const maxFrameBytes = 16 << 10

// Frame types of the WebSocket sessions.
const (
	FrameWelcome     = "welcome"
	FrameReply       = "reply"
	FrameRegister    = "register"
	FrameHeartbeat   = "heartbeat"
	FrameUnregister  = "unregister"
	FrameQuery       = "query"
	FrameServers     = "servers"
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameEvent       = "event"
)

// StatusOK is the reply status of an accepted frame. Rejected frames carry the error code as status.
const StatusOK = "ok"

// WelcomeFrame is the first frame the server sends on a session.
type WelcomeFrame struct {
	V                   int    `json:"v"`
	Type                string `json:"type"`
	Session             string `json:"session"`
	TtlMs               int64  `json:"ttl_ms,omitempty"`
	HeartbeatIntervalMs int64  `json:"heartbeat_interval_ms,omitempty"`
}

// RegistrationFrame is a client frame of a registration session.
type RegistrationFrame struct {
	V    int    `json:"v"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`

	InstanceId string    `json:"instance_id,omitempty"`
	Address    *string   `json:"address,omitempty"`
	Port       int       `json:"port,omitempty"`
	Identity   string    `json:"identity,omitempty"`
	Generation int64     `json:"generation,omitempty"`
	Metadata   *Metadata `json:"metadata,omitempty"`
}

// RegistrationReply answers one RegistrationFrame.
type RegistrationReply struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Seq     uint64 `json:"seq"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`

	Identity            string `json:"identity,omitempty"`
	Generation          int64  `json:"generation,omitempty"`
	TtlMs               int64  `json:"ttl_ms,omitempty"`
	HeartbeatIntervalMs int64  `json:"heartbeat_interval_ms,omitempty"`
	// Removal is the outcome of an unregister: removed, stale or unknown.
	Removal string `json:"removal,omitempty"`
}

// DiscoveryFrame is a client frame of a discovery session.
type DiscoveryFrame struct {
	V    int    `json:"v"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`

	Filters []string `json:"filters,omitempty"`
	Cursor  string   `json:"cursor,omitempty"`
	Limit   *int     `json:"limit,omitempty"`
}

// DiscoveryReply acknowledges or rejects a DiscoveryFrame.
type DiscoveryReply struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Seq     uint64 `json:"seq"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// ServersFrame answers a query frame with one page.
type ServersFrame struct {
	V    int    `json:"v"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
	ServersResponse
}

// EventFrame pushes one registry change to a subscribed discovery session. Events of one server arrive in the
// order they happened; Generation tells a re-registration apart from an update of the same incarnation.
type EventFrame struct {
	V          int        `json:"v"`
	Type       string     `json:"type"`
	Event      string     `json:"event"`
	Generation int64      `json:"generation"`
	Server     ServerInfo `json:"server"`
}

// frameHeader is decoded first to check the version before the body is interpreted.
type frameHeader struct {
	V    int    `json:"v"`
	Type string `json:"type"`
	Seq  uint64 `json:"seq"`
}

// decodeFrame unmarshals data into dst after checking that it carries the wanted protocol version. The returned
// header is filled as far as it could be read, so rejections can still echo the sequence number.
func decodeFrame(data []byte, version int, dst any) (frameHeader, error) {
	var h frameHeader
	if err := json.Unmarshal(data, &h); err != nil {
		return h, service.NewMalformedError("frame is not a JSON object", err)
	}
	if h.V != version {
		return h, service.NewUnsupportedVersionError(h.V, version)
	}
	if h.Type == "" {
		return h, service.NewMalformedError("frame type is required", nil)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return h, service.NewMalformedError("invalid "+h.Type+" frame", err)
	}
	return h, nil
}

// replyStatus returns the status and message reported for err.
func replyStatus(err error) (string, string) {
	if err == nil {
		return StatusOK, ""
	}
	myErr := service.ToMyError(err)
	if myErr == nil {
		return service.ErrInternalServerError, "an internal server error has occurred"
	}
	return myErr.Code, myErr.Message
}

// isViolation reports whether err counts against the session's allowance of protocol violations.
func isViolation(err error) bool {
	return service.IsMalformedError(err) || service.IsMyError(err, service.ErrUnsupportedVersion)
}
