package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/vovakirdan/oinkroom/internal/auth/fakeprovider"
	"github.com/vovakirdan/oinkroom/internal/client"
	"github.com/vovakirdan/oinkroom/internal/core"
	"github.com/vovakirdan/oinkroom/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:3001", "server base URL")
	prefix := flag.String("prefix", "", "route prefix, e.g. /.proxy")
	provider := flag.String("provider", "http://localhost:3002", "fake identity provider base URL")
	code := flag.String("code", "", "authorization code (minted from -provider when empty)")
	userID := flag.String("id", "1", "user id to mint a code for")
	username := flag.String("username", "tester", "username to mint a code for")
	instance := flag.String("instance", "smoke", "instance to join")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if *code == "" {
		minted, err := fakeprovider.Mint(ctx, nil, *provider, core.User{ID: *userID, Username: *username})
		if err != nil {
			return err
		}
		*code = minted
	}

	base := strings.TrimRight(*server, "/") + *prefix
	authn := client.NewAuthenticator(base+"/api/token", nil, nil)
	conn := client.NewConn(wsURL(base)+"/ws", nil, nil, nil)
	defer conn.Close()

	changed := make(chan client.Status, 4)
	conn.Machine().Subscribe(func(st client.Status) {
		select {
		case changed <- st:
		default:
		}
	})
	authn.OnAuthorized(conn.OnAuthorized)

	grant, err := authn.Authenticate(ctx, *code, *instance)
	if err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	fmt.Printf("authenticated as %s (%s)\n", grant.User.Username, grant.User.ID)

	if err := waitConnected(ctx, changed); err != nil {
		return err
	}
	fmt.Printf("connected to instance %s\n", *instance)

	triggered := false
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timed out: %w", ctx.Err())
		case ev, ok := <-conn.Events():
			if !ok {
				return fmt.Errorf("connection closed: %v", conn.Machine().Status().LastError)
			}
			switch ev.Name {
			case proto.EventUserList:
				fmt.Printf("user_list: %d member(s)\n", len(ev.Users))
				for _, u := range ev.Users {
					fmt.Printf("  - %s (%s)\n", u.Username, u.ID)
				}
				if !triggered {
					if err := conn.Trigger(ctx); err != nil {
						return fmt.Errorf("trigger: %w", err)
					}
					triggered = true
				}
			case proto.EventOink:
				fmt.Printf("oink from %s: sound=%d pig=%+v\n", ev.Oink.UserID, ev.Oink.Sound, ev.Oink.Pig)
				fmt.Println("smoke test passed")
				return nil
			default:
				fmt.Printf("event=%s\n", ev.Name)
			}
		}
	}
}

func waitConnected(ctx context.Context, changed <-chan client.Status) error {
	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("connect: %w", ctx.Err())
		case st := <-changed:
			switch {
			case st.Connected():
				return nil
			case st.State == client.StateDisconnected && st.LastError != nil:
				return fmt.Errorf("connect: %w", st.LastError)
			}
		}
	}
}

func wsURL(httpURL string) string {
	if rest, ok := strings.CutPrefix(httpURL, "https://"); ok {
		return "wss://" + rest
	}
	if rest, ok := strings.CutPrefix(httpURL, "http://"); ok {
		return "ws://" + rest
	}
	return httpURL
}
