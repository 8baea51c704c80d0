package core

// EventKind is a notification the core emits to clients.
type EventKind int

const (
	// EventUserConnected notifies instance members that a user joined.
	EventUserConnected EventKind = iota
	// EventUserDisconnected notifies the remaining members that a user left.
	EventUserDisconnected
	// EventUserList delivers the current membership to a newly joined client.
	EventUserList
	// EventAction carries a server-generated action payload.
	EventAction
	// EventError notifies a client about a domain error.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventUserConnected:
		return "user_connected"
	case EventUserDisconnected:
		return "user_disconnected"
	case EventUserList:
		return "user_list"
	case EventAction:
		return "oink"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is sent to clients to describe what happened in an instance.
type Event struct {
	Kind     EventKind
	Instance string
	User     *User   // EventUserConnected
	UserID   string  // EventUserDisconnected
	Users    []User  // EventUserList
	Action   *Action // EventAction
	Error    *CoreError
}
