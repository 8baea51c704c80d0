package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	stdhttp "net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/auth"
	"github.com/vovakirdan/oinkroom/internal/config"
	"github.com/vovakirdan/oinkroom/internal/core"
	transporthttp "github.com/vovakirdan/oinkroom/internal/transport/http"
)

const providerTimeout = 10 * time.Second

// App wires together core and transport layers.
type App struct {
	server          *stdhttp.Server
	shutdownTimeout time.Duration
	hub             *core.Hub
	log             *zerolog.Logger

	ready chan struct{}
	addr  net.Addr
}

// New constructs the application with provided configuration.
func New(cfg *config.Config, logger *zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	provider := auth.NewHTTPProvider(auth.ProviderConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     cfg.ProviderTokenURL,
		UserURL:      cfg.ProviderUserURL,
	}, &stdhttp.Client{Timeout: providerTimeout})

	gateway := auth.NewGateway(provider, &auth.JWTConfig{
		Secret:   []byte(cfg.JWTSecret),
		Issuer:   cfg.JWTIssuer,
		Audience: cfg.JWTAudience,
		TTL:      cfg.CredentialTTL,
	})

	hub := core.NewHub(core.NewRegistry(), core.NewActionGenerator(cfg.ActionVariants, nil), logger)
	server := transporthttp.NewServer(hub, gateway, cfg, logger)

	logger.Info().
		Str("path_prefix", cfg.PathPrefix).
		Str("token_url", cfg.ProviderTokenURL).
		Dur("credential_ttl", cfg.CredentialTTL).
		Int("action_variants", cfg.ActionVariants).
		Msg("application configured")

	return &App{
		server:          server,
		shutdownTimeout: cfg.ShutdownTimeout,
		hub:             hub,
		log:             logger,
		ready:           make(chan struct{}),
	}, nil
}

// Ready is closed once the listener is bound.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listen address. It is valid after Ready is closed.
func (a *App) Addr() net.Addr {
	return a.addr
}

// Run starts the HTTP server and blocks until context cancellation or fatal error.
func (a *App) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	a.addr = ln.Addr()
	close(a.ready)
	a.log.Info().Str("addr", a.addr.String()).Msg("listening")

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	go a.hub.Run(hubCtx)

	serverErr := make(chan error, 1)
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErr <- err
			return
		}
		serverErr <- nil
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout)
		defer cancel()

		// Stopping the hub first ends every websocket with a going-away close,
		// which Shutdown does not do for hijacked connections.
		a.log.Info().Msg("stopping hub")
		stopHub()

		a.log.Info().Msg("shutting down http server")
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-serverErr
	}
}
