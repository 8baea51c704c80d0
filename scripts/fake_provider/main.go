// Dev identity provider for local runs.
// Speaks the subset of Discord's OAuth API the server uses and mints
// single-use codes over POST /dev/codes.
package main

import (
	"errors"
	"flag"
	"fmt"
	stdhttp "net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/oinkroom/internal/auth/fakeprovider"
	"github.com/vovakirdan/oinkroom/internal/core"
	applog "github.com/vovakirdan/oinkroom/internal/log"
)

type userList []core.User

func (u *userList) String() string {
	names := make([]string, 0, len(*u))
	for _, user := range *u {
		names = append(names, user.ID+":"+user.Username)
	}
	return strings.Join(names, ",")
}

// Set parses id:username[:global_name].
func (u *userList) Set(v string) error {
	parts := strings.SplitN(v, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("want id:username[:global_name], got %q", v)
	}
	user := core.User{ID: parts[0], Username: parts[1]}
	if len(parts) == 3 {
		user.DisplayName = parts[2]
	}
	*u = append(*u, user)
	return nil
}

func main() {
	addr := flag.String("addr", ":3002", "listen address")
	clientID := flag.String("client-id", "dev-client", "accepted OAuth client id")
	clientSecret := flag.String("client-secret", "dev-secret", "accepted OAuth client secret")
	logLevel := flag.String("log-level", "info", "log level")
	var users userList
	flag.Var(&users, "user", "pre-issue a code for id:username[:global_name] (repeatable)")
	flag.Parse()

	logger := applog.New(*logLevel)
	gin.SetMode(gin.ReleaseMode)

	provider := fakeprovider.New(*clientID, *clientSecret)
	for _, user := range users {
		logger.Info().
			Str("user_id", user.ID).
			Str("username", user.Username).
			Str("code", provider.IssueCode(user)).
			Msg("issued code")
	}

	logger.Info().
		Str("addr", *addr).
		Str("token_url", "http://localhost"+*addr+"/oauth2/token").
		Str("user_url", "http://localhost"+*addr+"/users/@me").
		Msg("fake identity provider listening")

	server := &stdhttp.Server{
		Addr:              *addr,
		Handler:           provider.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
		logger.Error().Err(err).Msg("fake provider stopped")
		os.Exit(1)
	}
}
