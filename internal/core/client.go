package core

// Client is a connection as seen by the core layer.
type Client struct {
	ID       string
	Commands chan *Command
	Events   chan *Event

	session Session
	gone    chan struct{}
}

// NewClient constructs a client bound to the given session with initialized channels.
func NewClient(id string, session Session) *Client {
	return &Client{
		ID:       id,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
		session:  session,
		gone:     make(chan struct{}),
	}
}

// Session returns the binding attached at handshake time.
func (c *Client) Session() Session {
	return c.session
}
