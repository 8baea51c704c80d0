package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	stdhttp "net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/auth"
	"github.com/vovakirdan/oinkroom/internal/config"
	"github.com/vovakirdan/oinkroom/internal/core"
	"github.com/vovakirdan/oinkroom/internal/proto"
)

var errHandshakeTimeout = errors.New("handshake timed out")

// Verifier checks a session credential and returns the binding it carries.
type Verifier interface {
	Verify(token string) (core.Session, error)
}

// WSHandler upgrades HTTP connections, runs the handshake guard and bridges
// authenticated connections to core.Client.
type WSHandler struct {
	hub      *core.Hub
	verifier Verifier
	cfg      *config.Config
	log      *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(hub *core.Hub, verifier Verifier, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{hub: hub, verifier: verifier, cfg: cfg, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:     h.cfg.AllowedOrigins,
		InsecureSkipVerify: len(h.cfg.AllowedOrigins) == 0,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}
	defer conn.Close(websocket.StatusInternalError, "internal error")

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	session, err := h.handshake(ctx, conn)
	if err != nil {
		h.refuse(ctx, conn, err)
		return
	}

	client := core.NewClient(uuid.NewString(), session)
	user := session.User()

	if err := h.hub.RegisterClient(client); err != nil {
		h.log.Info().Err(err).Str("client_id", client.ID).Msg("hub unavailable, closing")
		conn.Close(websocket.StatusGoingAway, "server shutdown")
		return
	}
	defer h.hub.UnregisterClient(client)

	if err := wsjson.Write(ctx, conn, proto.Outbound{
		Type: proto.OutboundTypeConnected,
		Data: proto.Connected{User: userToProto(user), Instance: session.Instance()},
	}); err != nil {
		h.log.Warn().Err(err).Str("client_id", client.ID).Msg("write connect ack")
		return
	}

	h.log.Info().
		Str("client_id", client.ID).
		Str("user_id", user.ID).
		Str("instance", session.Instance()).
		Msg("handshake accepted")

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)
	go func() {
		errCh <- h.readLoop(ctx, conn, client)
	}()
	go func() {
		errCh <- h.writeLoop(ctx, conn, client)
	}()

	err = <-errCh

	status := websocket.StatusNormalClosure
	reason := "closing"
	switch {
	case err == nil:
		// The hub closed the event stream: it is shutting down.
		status = websocket.StatusGoingAway
		reason = "server shutdown"
	case errors.Is(err, context.Canceled), errors.Is(err, io.EOF):
	default:
		switch s := websocket.CloseStatus(err); s {
		case websocket.StatusNormalClosure, websocket.StatusGoingAway:
			status = s
		default:
			status = websocket.StatusInternalError
			reason = "internal error"
			h.log.Warn().Err(err).Str("client_id", client.ID).Msg("ws connection closed with error")
		}
	}

	// Close before cancelling so the peer sees our status, not a read timeout.
	conn.Close(status, reason)
	cancel()
	<-errCh
}

type helloFrame struct {
	data []byte
	err  error
}

// handshake reads the hello frame and verifies its credential.
// It is the only place a connection's session is established.
// A peer that stays silent past HandshakeTimeout, or whose first frame
// cannot be read, is treated as presenting no credential.
func (h *WSHandler) handshake(ctx context.Context, conn *websocket.Conn) (core.Session, error) {
	// Cancelling a Read closes the connection, so the deadline is enforced
	// outside of it to keep the refusal writable.
	frames := make(chan helloFrame, 1)
	go func() {
		_, data, err := conn.Read(ctx)
		frames <- helloFrame{data: data, err: err}
	}()

	var expired <-chan time.Time
	if h.cfg.HandshakeTimeout > 0 {
		timer := time.NewTimer(h.cfg.HandshakeTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	var data []byte
	select {
	case frame := <-frames:
		if frame.err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(frame.err) != -1 {
				return core.Session{}, fmt.Errorf("read hello: %w", frame.err)
			}
			return core.Session{}, &auth.AuthenticationError{Kind: auth.ErrNoToken, Cause: frame.err}
		}
		data = frame.data
	case <-expired:
		return core.Session{}, &auth.AuthenticationError{Kind: auth.ErrNoToken, Cause: errHandshakeTimeout}
	case <-ctx.Done():
		return core.Session{}, fmt.Errorf("read hello: %w", ctx.Err())
	}

	var inbound proto.Inbound
	if err := json.Unmarshal(data, &inbound); err != nil || inbound.Type != proto.InboundTypeHello {
		return h.verifier.Verify("")
	}

	var hello proto.HelloData
	if len(inbound.Data) > 0 {
		if err := json.Unmarshal(inbound.Data, &hello); err != nil {
			return core.Session{}, &auth.AuthenticationError{Kind: auth.ErrInvalidToken, Cause: err}
		}
	}
	return h.verifier.Verify(hello.Token)
}

// refuse reports a failed handshake to the peer and closes the connection.
func (h *WSHandler) refuse(ctx context.Context, conn *websocket.Conn, err error) {
	var reason string
	switch {
	case errors.Is(err, auth.ErrNoToken):
		reason = proto.ReasonNoToken
	case errors.Is(err, auth.ErrInvalidToken):
		reason = proto.ReasonInvalidToken
	default:
		h.log.Debug().Err(err).Msg("handshake aborted")
		return
	}

	h.log.Info().Err(err).Str("reason", reason).Msg("handshake refused")

	if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
		Type:  proto.OutboundTypeError,
		Error: &proto.Error{Code: proto.ErrCodeUnauthorized, Msg: reason},
	}); writeErr != nil {
		h.log.Debug().Err(writeErr).Msg("write handshake refusal")
	}
	conn.Close(websocket.StatusPolicyViolation, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		var inbound proto.Inbound
		if err := wsjson.Read(ctx, conn, &inbound); err != nil {
			h.log.Debug().Err(err).Str("client_id", client.ID).Msg("read ws inbound")
			return err
		}

		cmd, protoErr := inboundToCommand(inbound)
		if protoErr != nil {
			if writeErr := wsjson.Write(ctx, conn, proto.Outbound{
				Type:  proto.OutboundTypeError,
				Error: protoErr,
			}); writeErr != nil {
				return writeErr
			}
			continue
		}

		select {
		case client.Commands <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (h *WSHandler) writeLoop(ctx context.Context, conn *websocket.Conn, client *core.Client) error {
	for {
		select {
		case event, ok := <-client.Events:
			if !ok {
				return nil
			}
			if err := wsjson.Write(ctx, conn, outboundFromEvent(event)); err != nil {
				h.log.Error().Err(err).Str("client_id", client.ID).Msg("write ws event")
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
