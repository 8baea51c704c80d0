package core

import (
	"context"

	"github.com/rs/zerolog"
)

type clientCommand struct {
	client *Client
	cmd    *Command
}

// Hub relays presence and action events between clients sharing an instance.
// All registry and room mutations happen on the Run goroutine, one event at a time,
// so events within an instance reach members in the order the hub processed them.
type Hub struct {
	registry *Registry
	actions  *ActionGenerator
	log      *zerolog.Logger

	register   chan *Client
	unregister chan *Client
	commands   chan clientCommand
	queries    chan func()
	done       chan struct{}

	clients map[*Client]*Room
	rooms   map[string]*Room
}

// NewHub creates a hub around the given registry and action generator.
// Nil arguments fall back to an empty registry, a default generator and a disabled logger.
func NewHub(registry *Registry, actions *ActionGenerator, logger *zerolog.Logger) *Hub {
	if registry == nil {
		registry = NewRegistry()
	}
	if actions == nil {
		actions = NewActionGenerator(DefaultActionVariants, nil)
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Hub{
		registry:   registry,
		actions:    actions,
		log:        logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		commands:   make(chan clientCommand, 64),
		queries:    make(chan func()),
		done:       make(chan struct{}),
		clients:    make(map[*Client]*Room),
		rooms:      make(map[string]*Room),
	}
}

// Run processes hub events until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			return
		case c := <-h.register:
			h.handleRegister(c)
		case c := <-h.unregister:
			h.handleUnregister(c)
		case cc := <-h.commands:
			h.handleCommand(cc)
		case fn := <-h.queries:
			fn()
		}
	}
}

// RegisterClient joins an authenticated client to its instance.
// It returns once the join and its notifications have been processed, or
// ErrHubStopped if the hub is no longer running.
func (h *Hub) RegisterClient(c *Client) error {
	select {
	case h.register <- c:
		return nil
	case <-h.done:
		return ErrHubStopped
	}
}

// UnregisterClient removes a client from its instance and closes its event channel.
func (h *Hub) UnregisterClient(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Members returns the users currently present in instance.
func (h *Hub) Members(ctx context.Context, instance string) ([]User, error) {
	reply := make(chan []User, 1)
	if err := h.query(ctx, func() { reply <- h.registry.ListUsers(instance) }); err != nil {
		return nil, err
	}
	return <-reply, nil
}

// Instances returns the ids of all populated instances.
func (h *Hub) Instances(ctx context.Context) ([]string, error) {
	reply := make(chan []string, 1)
	if err := h.query(ctx, func() { reply <- h.registry.Instances() }); err != nil {
		return nil, err
	}
	return <-reply, nil
}

func (h *Hub) query(ctx context.Context, fn func()) error {
	select {
	case h.queries <- fn:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) handleRegister(c *Client) {
	if _, ok := h.clients[c]; ok {
		return
	}

	instance := c.session.Instance()
	user := c.session.User()

	room, ok := h.rooms[instance]
	if !ok {
		room = NewRoom(instance)
		h.rooms[instance] = room
	}
	room.AddClient(c)
	h.clients[c] = room

	if h.registry.AddUser(instance, user) {
		h.broadcast(room, &Event{Kind: EventUserConnected, Instance: instance, User: &user})
	}
	h.send(c, &Event{Kind: EventUserList, Instance: instance, Users: h.registry.ListUsers(instance)})

	h.log.Info().
		Str("client_id", c.ID).
		Str("user_id", user.ID).
		Str("instance", instance).
		Int("members", room.Len()).
		Msg("client joined instance")

	go h.pump(c)
}

func (h *Hub) handleUnregister(c *Client) {
	room, ok := h.clients[c]
	if !ok {
		return
	}
	delete(h.clients, c)
	room.RemoveClient(c)
	close(c.gone)
	close(c.Events)

	instance := c.session.Instance()
	userID := c.session.User().ID

	if h.registry.RemoveUser(instance, userID) {
		h.broadcast(room, &Event{Kind: EventUserDisconnected, Instance: instance, UserID: userID})
	}
	if room.Empty() {
		delete(h.rooms, instance)
	}

	h.log.Info().
		Str("client_id", c.ID).
		Str("user_id", userID).
		Str("instance", instance).
		Msg("client left instance")
}

func (h *Hub) handleCommand(cc clientCommand) {
	room, ok := h.clients[cc.client]
	if !ok {
		// Client already unregistered; late commands are ignored.
		return
	}

	switch cc.cmd.Kind {
	case CommandAction:
		action := h.actions.Next(cc.client.session.User().ID)
		h.broadcast(room, &Event{Kind: EventAction, Instance: room.Instance, Action: &action})
	default:
		h.send(cc.client, &Event{
			Kind:     EventError,
			Instance: room.Instance,
			Error:    coreError(ErrCodeUnknownCommand, "unknown command"),
		})
	}
}

// pump forwards a client's commands into the hub loop, preserving their order.
func (h *Hub) pump(c *Client) {
	for {
		select {
		case cmd := <-c.Commands:
			if cmd == nil {
				continue
			}
			select {
			case h.commands <- clientCommand{client: c, cmd: cmd}:
			case <-c.gone:
				return
			case <-h.done:
				return
			}
		case <-c.gone:
			return
		case <-h.done:
			return
		}
	}
}

func (h *Hub) broadcast(room *Room, ev *Event) {
	if dropped := room.Broadcast(ev); dropped > 0 {
		h.log.Warn().
			Str("instance", room.Instance).
			Str("event", ev.Kind.String()).
			Int("dropped", dropped).
			Msg("dropped event for slow consumers")
	}
}

func (h *Hub) send(c *Client, ev *Event) {
	if !deliver(c, ev) {
		h.log.Warn().
			Str("client_id", c.ID).
			Str("event", ev.Kind.String()).
			Msg("dropped event for slow consumer")
	}
}

func (h *Hub) shutdown() {
	for c := range h.clients {
		close(c.gone)
		close(c.Events)
	}
	h.clients = make(map[*Client]*Room)
	h.rooms = make(map[string]*Room)
	h.log.Info().Msg("hub stopped")
}
