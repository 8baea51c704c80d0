// Package client implements the client side of an instance connection: the
// connection lifecycle state machine, the websocket transport that drives it
// and the code exchange that unlocks it.
package client

import (
	"fmt"
	"sync"
)

// State is the connection lifecycle state.
type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DisconnectReason says why an established connection ended.
type DisconnectReason string

const (
	// ReasonServerDisconnect means the server closed the connection on purpose.
	ReasonServerDisconnect DisconnectReason = "server disconnect"
	// ReasonClientClose means the local side called Close.
	ReasonClientClose DisconnectReason = "client close"
	// ReasonTransportClose means the connection dropped without a close handshake.
	ReasonTransportClose DisconnectReason = "transport close"
	// ReasonTransportError means the connection failed with a protocol or I/O error.
	ReasonTransportError DisconnectReason = "transport error"
)

// Status is a read-only snapshot of the machine.
type Status struct {
	State     State
	LastError error
}

// Connected reports whether the snapshot is in StateConnected.
func (s Status) Connected() bool { return s.State == StateConnected }

// Connecting reports whether the snapshot is in StateConnecting.
func (s Status) Connecting() bool { return s.State == StateConnecting }

// Machine tracks the connection lifecycle. It is safe for concurrent use;
// subscribers are notified outside the lock, in transition order per caller.
type Machine struct {
	mu     sync.Mutex
	status Status
	subs   map[int]func(Status)
	nextID int
}

// NewMachine returns a machine in StateDisconnected with no error.
func NewMachine() *Machine {
	return &Machine{subs: make(map[int]func(Status))}
}

// Begin moves Disconnected to Connecting. It returns false and changes
// nothing when a connection is already in progress or established.
func (m *Machine) Begin() bool {
	m.mu.Lock()
	if m.status.State != StateDisconnected {
		m.mu.Unlock()
		return false
	}
	m.status.State = StateConnecting
	m.unlockAndNotify()
	return true
}

// Connected moves Connecting to Connected and clears the last error.
func (m *Machine) Connected() {
	m.mu.Lock()
	if m.status.State != StateConnecting {
		m.mu.Unlock()
		return
	}
	m.status = Status{State: StateConnected}
	m.unlockAndNotify()
}

// ConnectFailed records err and returns to Disconnected.
func (m *Machine) ConnectFailed(err error) {
	m.mu.Lock()
	m.status = Status{State: StateDisconnected, LastError: err}
	m.unlockAndNotify()
}

// Disconnected returns to Disconnected. The error is kept unless the server
// or the local side ended the connection deliberately.
func (m *Machine) Disconnected(reason DisconnectReason, err error) {
	m.mu.Lock()
	m.status.State = StateDisconnected
	switch reason {
	case ReasonServerDisconnect, ReasonClientClose:
	default:
		m.status.LastError = &TransportError{Op: "disconnect", Reason: reason, Err: err}
	}
	m.unlockAndNotify()
}

// Status returns the current snapshot.
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Subscribe registers fn to be called with every new snapshot and returns a
// function that removes it.
func (m *Machine) Subscribe(fn func(Status)) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// unlockAndNotify must be called with mu held.
func (m *Machine) unlockAndNotify() {
	status := m.status
	subs := make([]func(Status), 0, len(m.subs))
	for _, fn := range m.subs {
		subs = append(subs, fn)
	}
	m.mu.Unlock()

	for _, fn := range subs {
		fn(status)
	}
}
