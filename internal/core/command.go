package core

// CommandKind describes what the client wants to do.
type CommandKind int

const (
	// CommandAction asks the hub to broadcast a freshly randomized action to the instance.
	// It carries no client-supplied parameters.
	CommandAction CommandKind = iota
)

// Command represents an action requested by a client.
type Command struct {
	Kind CommandKind
}
