package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/vovakirdan/oinkroom/internal/auth/fakeprovider"
	"github.com/vovakirdan/oinkroom/internal/client"
	"github.com/vovakirdan/oinkroom/internal/core"
	"github.com/vovakirdan/oinkroom/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_oink: %v", err)
		os.Exit(1)
	}
}

func run() error {
	server := flag.String("server", "http://localhost:3001", "server base URL")
	prefix := flag.String("prefix", "", "route prefix, e.g. /.proxy")
	provider := flag.String("provider", "http://localhost:3002", "fake identity provider base URL")
	code := flag.String("code", "", "authorization code (minted from -provider when empty)")
	userID := flag.String("id", "1", "user id to mint a code for")
	username := flag.String("username", "cli-user", "username to mint a code for")
	instance := flag.String("instance", "general", "instance to join")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *code == "" {
		minted, err := fakeprovider.Mint(ctx, nil, *provider, core.User{ID: *userID, Username: *username})
		if err != nil {
			return err
		}
		*code = minted
	}

	base := strings.TrimRight(*server, "/") + *prefix
	authn := client.NewAuthenticator(base+"/api/token", nil, nil)
	conn := client.NewConn(strings.Replace(base, "http", "ws", 1)+"/ws", nil, nil, nil)
	defer conn.Close()

	conn.Machine().Subscribe(func(st client.Status) {
		if st.LastError != nil {
			fmt.Printf("[%s] error: %v\n", st.State, st.LastError)
			return
		}
		fmt.Printf("[%s]\n", st.State)
	})
	authn.OnAuthorized(conn.OnAuthorized)

	if _, err := authn.Authenticate(ctx, *code, *instance); err != nil {
		return fmt.Errorf("authenticate: %w", err)
	}
	fmt.Println("Press Enter to oink. Ctrl+C to exit.")

	names := make(map[string]string)
	go func() {
		defer stop()
		for ev := range conn.Events() {
			printEvent(ev, names)
		}
	}()

	lines := make(chan struct{})
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- struct{}{}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-lines:
			if !ok {
				return nil
			}
			if err := conn.Trigger(ctx); err != nil {
				log.Printf("oink: %v", err)
			}
		}
	}
}

func printEvent(ev client.Event, names map[string]string) {
	switch ev.Name {
	case proto.EventUserList:
		for _, u := range ev.Users {
			names[u.ID] = u.Username
		}
		fmt.Printf("%d member(s) here\n", len(ev.Users))
	case proto.EventUserConnected:
		names[ev.User.ID] = ev.User.Username
		fmt.Printf("%s joined\n", ev.User.Username)
	case proto.EventUserDisconnected:
		fmt.Printf("%s left\n", nameOf(names, ev.UserID))
		delete(names, ev.UserID)
	case proto.EventOink:
		fmt.Printf("%s oinked (sound %d) at %.0f%%,%.0f%%\n",
			nameOf(names, ev.Oink.UserID), ev.Oink.Sound, ev.Oink.Pig.X, ev.Oink.Pig.Y)
	case proto.OutboundTypeError:
		fmt.Printf("server error: %v\n", ev.Err)
	default:
		fmt.Printf("event=%s\n", ev.Name)
	}
}

func nameOf(names map[string]string, id string) string {
	if name, ok := names[id]; ok {
		return name
	}
	return id
}
