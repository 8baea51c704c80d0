package client

import (
	"errors"
	"testing"
)

func TestMachineHappyPath(t *testing.T) {
	m := NewMachine()
	if st := m.Status(); st.State != StateDisconnected || st.LastError != nil {
		t.Fatalf("unexpected initial status: %+v", st)
	}

	if !m.Begin() {
		t.Fatal("Begin from disconnected should succeed")
	}
	if !m.Status().Connecting() {
		t.Fatalf("expected connecting, got %s", m.Status().State)
	}

	m.Connected()
	if st := m.Status(); !st.Connected() || st.LastError != nil {
		t.Fatalf("expected connected without error, got %+v", st)
	}
}

func TestMachineBeginIsLatched(t *testing.T) {
	m := NewMachine()
	m.Begin()
	if m.Begin() {
		t.Fatal("Begin while connecting should be a no-op")
	}
	m.Connected()
	if m.Begin() {
		t.Fatal("Begin while connected should be a no-op")
	}
	if !m.Status().Connected() {
		t.Fatalf("Begin changed state: %s", m.Status().State)
	}
}

func TestMachineConnectFailedRecordsError(t *testing.T) {
	m := NewMachine()
	m.Begin()

	refused := &TransportError{Op: "handshake", Err: &ServerError{Code: "unauthorized", Msg: "Invalid token!"}}
	m.ConnectFailed(refused)

	st := m.Status()
	if st.State != StateDisconnected {
		t.Fatalf("expected disconnected, got %s", st.State)
	}
	var serverErr *ServerError
	if !errors.As(st.LastError, &serverErr) || serverErr.Msg != "Invalid token!" {
		t.Fatalf("expected server refusal in last error, got %v", st.LastError)
	}

	// A later successful connection clears the error.
	if !m.Begin() {
		t.Fatal("Begin after failure should succeed")
	}
	if m.Status().LastError == nil {
		t.Fatal("Begin should keep the previous error until connected")
	}
	m.Connected()
	if m.Status().LastError != nil {
		t.Fatalf("Connected should clear the error, got %v", m.Status().LastError)
	}
}

func TestMachineDisconnectReasons(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name      string
		reason    DisconnectReason
		err       error
		wantError bool
	}{
		{name: "server disconnect", reason: ReasonServerDisconnect, wantError: false},
		{name: "client close", reason: ReasonClientClose, wantError: false},
		{name: "transport close", reason: ReasonTransportClose, err: cause, wantError: true},
		{name: "transport error", reason: ReasonTransportError, err: cause, wantError: true},
		{name: "transport close without cause", reason: ReasonTransportClose, wantError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine()
			m.Begin()
			m.Connected()
			m.Disconnected(tt.reason, tt.err)

			st := m.Status()
			if st.State != StateDisconnected {
				t.Fatalf("expected disconnected, got %s", st.State)
			}
			if (st.LastError != nil) != tt.wantError {
				t.Fatalf("last error = %v, want error %v", st.LastError, tt.wantError)
			}
			if !tt.wantError {
				return
			}
			var transportErr *TransportError
			if !errors.As(st.LastError, &transportErr) || transportErr.Reason != tt.reason {
				t.Fatalf("expected transport error with reason %q, got %v", tt.reason, st.LastError)
			}
			if tt.err != nil && !errors.Is(st.LastError, tt.err) {
				t.Fatalf("expected cause to be wrapped, got %v", st.LastError)
			}
		})
	}
}

func TestMachineServerDisconnectKeepsPriorError(t *testing.T) {
	m := NewMachine()
	m.Begin()
	m.ConnectFailed(errors.New("boom"))
	m.Disconnected(ReasonServerDisconnect, nil)

	if m.Status().LastError == nil {
		t.Fatal("server disconnect should not overwrite the previous error")
	}
}

func TestMachineSubscribe(t *testing.T) {
	m := NewMachine()

	var seen []State
	unsubscribe := m.Subscribe(func(st Status) {
		seen = append(seen, st.State)
	})

	m.Begin()
	m.Begin() // no-op, no notification
	m.Connected()
	m.Disconnected(ReasonClientClose, nil)

	want := []State{StateConnecting, StateConnected, StateDisconnected}
	if len(seen) != len(want) {
		t.Fatalf("expected %v, got %v", want, seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, seen)
		}
	}

	unsubscribe()
	m.Begin()
	if len(seen) != len(want) {
		t.Fatalf("notified after unsubscribe: %v", seen)
	}
}

func TestMachineConnectedOnlyFromConnecting(t *testing.T) {
	m := NewMachine()
	m.Connected()
	if m.Status().State != StateDisconnected {
		t.Fatalf("Connected from disconnected should be ignored, got %s", m.Status().State)
	}
}

func TestStateString(t *testing.T) {
	if StateConnecting.String() != "connecting" || State(9).String() != "state(9)" {
		t.Fatalf("unexpected names: %s %s", StateConnecting, State(9))
	}
}
