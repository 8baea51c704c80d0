package core

// Room is the broadcast group of clients connected to one instance.
type Room struct {
	Instance string
	clients  map[*Client]struct{}
}

// NewRoom constructs a room with no clients.
func NewRoom(instance string) *Room {
	return &Room{
		Instance: instance,
		clients:  make(map[*Client]struct{}),
	}
}

// AddClient inserts a client into the room. Returns true if newly added.
func (r *Room) AddClient(c *Client) bool {
	if _, exists := r.clients[c]; exists {
		return false
	}
	r.clients[c] = struct{}{}
	return true
}

// RemoveClient deletes a client from the room. Returns true if removed.
func (r *Room) RemoveClient(c *Client) bool {
	if _, exists := r.clients[c]; !exists {
		return false
	}
	delete(r.clients, c)
	return true
}

// Broadcast sends an event to all clients in the room and returns how many
// slow consumers had it dropped.
func (r *Room) Broadcast(event *Event) int {
	dropped := 0
	for client := range r.clients {
		if !deliver(client, event) {
			dropped++
		}
	}
	return dropped
}

// Len returns the number of connected clients.
func (r *Room) Len() int {
	return len(r.clients)
}

// Empty returns true if no clients are in the room.
func (r *Room) Empty() bool {
	return len(r.clients) == 0
}

func deliver(client *Client, event *Event) bool {
	select {
	case client.Events <- event:
		return true
	default:
		// Drop if slow consumer.
		return false
	}
}
