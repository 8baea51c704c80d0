package proto

import "encoding/json"

// Inbound is the envelope for messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

const (
	InboundTypeHello = "hello"
	InboundTypeOink  = "oink"

	OutboundTypeConnected = "connected"
	OutboundTypeEvent     = "event"
	OutboundTypeError     = "error"

	EventUserConnected    = "user_connected"
	EventUserDisconnected = "user_disconnected"
	EventUserList         = "user_list"
	EventOink             = "oink"

	ErrCodeUnauthorized = "unauthorized"
	ErrCodeBadRequest   = "bad_request"

	// Refusal reasons sent when the handshake credential is rejected.
	ReasonNoToken      = "No token provided!"
	ReasonInvalidToken = "Invalid token!"
)

// HelloData carries the session credential presented at handshake.
type HelloData struct {
	Token string `json:"token"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// RawOutbound is Outbound with the payload left undecoded, for readers.
type RawOutbound struct {
	Type  string          `json:"type"`
	Event string          `json:"event,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error *Error          `json:"error,omitempty"`
}

// User is the public user record as seen on the wire.
type User struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name,omitempty"`
	Avatar     string `json:"avatar,omitempty"`
}

// Connected acknowledges a successful handshake.
type Connected struct {
	User     User   `json:"user"`
	Instance string `json:"instance"`
}

// Pig describes the floating pig spawned by an oink.
type Pig struct {
	ID       int64   `json:"id"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Turn     float64 `json:"turn"`
	Distance float64 `json:"distance"`
}

// EventOinkData is broadcast to every member of an instance when someone oinks.
type EventOinkData struct {
	UserID string `json:"user_id"`
	Sound  int    `json:"sound"`
	Pig    Pig    `json:"pig"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
