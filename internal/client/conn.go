package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/proto"
)

const eventBuffer = 64

// Event is a decoded server message. Name is one of the proto.Event* names,
// or proto.OutboundTypeError for error envelopes; only the matching field is set.
type Event struct {
	Name   string
	User   *proto.User
	UserID string
	Users  []proto.User
	Oink   *proto.EventOinkData
	Err    *ServerError
}

// Conn is a single-use websocket connection to an instance. It stays idle
// until OnAuthorized hands it a credential, then drives its Machine through
// the connection lifecycle.
type Conn struct {
	url      string
	dialOpts *websocket.DialOptions
	machine  *Machine
	log      *zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	events     chan Event
	eventsOnce sync.Once

	mu       sync.Mutex
	used     bool
	closing  bool
	ws       *websocket.Conn
	identity proto.Connected
}

// NewConn creates a connection to the websocket endpoint at url.
// A nil machine is replaced by a fresh one.
func NewConn(url string, machine *Machine, dialOpts *websocket.DialOptions, logger *zerolog.Logger) *Conn {
	if machine == nil {
		machine = NewMachine()
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Conn{
		url:      url,
		dialOpts: dialOpts,
		machine:  machine,
		log:      logger,
		ctx:      ctx,
		cancel:   cancel,
		events:   make(chan Event, eventBuffer),
	}
}

// Machine returns the lifecycle machine the connection drives.
func (c *Conn) Machine() *Machine {
	return c.machine
}

// Events yields decoded server events. The channel is closed when the
// connection ends. Events are dropped when the buffer is full.
func (c *Conn) Events() <-chan Event {
	return c.events
}

// Identity returns the user and instance acknowledged by the server.
func (c *Conn) Identity() (proto.Connected, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity, c.ws != nil
}

// OnAuthorized starts connecting with the grant's credential. Only the first
// call while the machine is Disconnected has any effect.
func (c *Conn) OnAuthorized(grant *Grant) {
	if grant == nil {
		return
	}

	c.mu.Lock()
	if c.used || c.closing {
		c.mu.Unlock()
		return
	}
	c.used = true
	c.wg.Add(1)
	c.mu.Unlock()

	if !c.machine.Begin() {
		c.mu.Lock()
		c.used = false
		c.mu.Unlock()
		c.wg.Done()
		return
	}
	go c.run(grant.Credential)
}

// Trigger sends a parameterless action. The server generates its payload.
func (c *Conn) Trigger(ctx context.Context) error {
	c.mu.Lock()
	ws, closing := c.ws, c.closing
	c.mu.Unlock()

	if closing {
		return ErrClosed
	}
	if ws == nil || !c.machine.Status().Connected() {
		return ErrNotConnected
	}
	if err := wsjson.Write(ctx, ws, proto.Inbound{Type: proto.InboundTypeOink}); err != nil {
		return &TransportError{Op: "trigger", Err: err}
	}
	return nil
}

// Close ends the connection, or abandons a pending one, and waits for the
// read loop to finish.
func (c *Conn) Close() {
	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		return
	}
	c.closing = true
	ws := c.ws
	c.mu.Unlock()

	if ws != nil {
		if err := ws.Close(websocket.StatusNormalClosure, "bye"); err != nil {
			c.log.Debug().Err(err).Msg("close websocket")
		}
	}
	c.cancel()
	c.wg.Wait()
	c.closeEvents()
}

func (c *Conn) run(token string) {
	defer c.wg.Done()
	defer c.closeEvents()

	ws, identity, err := c.dial(token)
	if err != nil {
		if c.isClosing() {
			c.machine.Disconnected(ReasonClientClose, nil)
			return
		}
		c.log.Warn().Err(err).Str("url", c.url).Msg("connect failed")
		c.machine.ConnectFailed(err)
		return
	}

	c.mu.Lock()
	if c.closing {
		c.mu.Unlock()
		ws.Close(websocket.StatusNormalClosure, "bye")
		c.machine.Disconnected(ReasonClientClose, nil)
		return
	}
	c.ws = ws
	c.identity = identity
	c.mu.Unlock()

	c.log.Info().
		Str("user_id", identity.User.ID).
		Str("instance", identity.Instance).
		Msg("connected")
	c.machine.Connected()

	reason, err := c.readLoop(ws)
	c.log.Info().Err(err).Str("reason", string(reason)).Msg("disconnected")
	c.machine.Disconnected(reason, err)
}

// dial opens the websocket and completes the hello handshake.
func (c *Conn) dial(token string) (*websocket.Conn, proto.Connected, error) {
	ws, _, err := websocket.Dial(c.ctx, c.url, c.dialOpts)
	if err != nil {
		return nil, proto.Connected{}, &TransportError{Op: "dial", Err: err}
	}

	hello, err := json.Marshal(proto.HelloData{Token: token})
	if err != nil {
		ws.CloseNow()
		return nil, proto.Connected{}, &TransportError{Op: "handshake", Err: err}
	}
	if err := wsjson.Write(c.ctx, ws, proto.Inbound{Type: proto.InboundTypeHello, Data: hello}); err != nil {
		ws.CloseNow()
		return nil, proto.Connected{}, &TransportError{Op: "handshake", Err: err}
	}

	var ack proto.RawOutbound
	if err := wsjson.Read(c.ctx, ws, &ack); err != nil {
		ws.CloseNow()
		return nil, proto.Connected{}, &TransportError{Op: "handshake", Err: err}
	}

	switch ack.Type {
	case proto.OutboundTypeConnected:
		var identity proto.Connected
		if err := json.Unmarshal(ack.Data, &identity); err != nil {
			ws.CloseNow()
			return nil, proto.Connected{}, &TransportError{Op: "handshake", Err: fmt.Errorf("decode ack: %w", err)}
		}
		return ws, identity, nil
	case proto.OutboundTypeError:
		ws.CloseNow()
		serverErr := &ServerError{}
		if ack.Error != nil {
			serverErr.Code, serverErr.Msg = ack.Error.Code, ack.Error.Msg
		}
		return nil, proto.Connected{}, &TransportError{Op: "handshake", Err: serverErr}
	default:
		ws.CloseNow()
		return nil, proto.Connected{}, &TransportError{Op: "handshake", Err: fmt.Errorf("unexpected message type %q", ack.Type)}
	}
}

func (c *Conn) readLoop(ws *websocket.Conn) (DisconnectReason, error) {
	for {
		var out proto.RawOutbound
		if err := wsjson.Read(c.ctx, ws, &out); err != nil {
			return c.classify(err)
		}

		ev, err := decodeEvent(out)
		if err != nil {
			c.log.Warn().Err(err).Msg("skip undecodable message")
			continue
		}

		select {
		case c.events <- ev:
		default:
			c.log.Warn().Str("event", ev.Name).Msg("event buffer full, dropping")
		}
	}
}

func (c *Conn) classify(err error) (DisconnectReason, error) {
	if c.isClosing() {
		return ReasonClientClose, nil
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return ReasonServerDisconnect, nil
	case -1:
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return ReasonTransportClose, err
		}
		return ReasonTransportError, err
	default:
		return ReasonTransportError, err
	}
}

func (c *Conn) isClosing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closing
}

func (c *Conn) closeEvents() {
	c.eventsOnce.Do(func() { close(c.events) })
}

func decodeEvent(out proto.RawOutbound) (Event, error) {
	switch out.Type {
	case proto.OutboundTypeError:
		ev := Event{Name: proto.OutboundTypeError}
		if out.Error != nil {
			ev.Err = &ServerError{Code: out.Error.Code, Msg: out.Error.Msg}
		}
		return ev, nil
	case proto.OutboundTypeEvent:
	default:
		return Event{}, fmt.Errorf("unexpected message type %q", out.Type)
	}

	ev := Event{Name: out.Event}
	var err error
	switch out.Event {
	case proto.EventUserConnected:
		ev.User = &proto.User{}
		err = json.Unmarshal(out.Data, ev.User)
	case proto.EventUserDisconnected:
		err = json.Unmarshal(out.Data, &ev.UserID)
	case proto.EventUserList:
		err = json.Unmarshal(out.Data, &ev.Users)
	case proto.EventOink:
		ev.Oink = &proto.EventOinkData{}
		err = json.Unmarshal(out.Data, ev.Oink)
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s: %w", out.Event, err)
	}
	return ev, nil
}
