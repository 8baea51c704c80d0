package core

import (
	"context"
	"testing"
	"time"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func expectNoEvent(t *testing.T, ch <-chan *Event, wait time.Duration) {
	t.Helper()

	select {
	case ev, ok := <-ch:
		if ok && ev != nil {
			t.Fatalf("unexpected event %v: %+v", ev.Kind, ev)
		}
	case <-time.After(wait):
	}
}

func startHub(t *testing.T) (*Hub, *Registry) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	registry := NewRegistry()
	hub := NewHub(registry, NewActionGenerator(4, nil), nil)
	go hub.Run(ctx)
	return hub, registry
}

func newTestClient(id, instance string) *Client {
	user := User{ID: id, Username: id, DisplayName: "User " + id}
	return NewClient("conn-"+id, NewSession(user, instance))
}

func members(t *testing.T, hub *Hub, instance string) []User {
	t.Helper()

	users, err := hub.Members(context.Background(), instance)
	if err != nil {
		t.Fatalf("members: %v", err)
	}
	return users
}

func userIDs(users []User) []string {
	ids := make([]string, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}
