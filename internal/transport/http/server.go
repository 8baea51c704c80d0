package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/auth"
	"github.com/vovakirdan/oinkroom/internal/config"
	"github.com/vovakirdan/oinkroom/internal/core"
)

// NewServer builds the HTTP server. Every route, including the websocket
// endpoint, is mounted under cfg.PathPrefix.
func NewServer(hub *core.Hub, gateway *auth.Gateway, cfg *config.Config, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           NewRouter(hub, gateway, cfg, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter mounts the websocket endpoint on a plain mux and hands every
// other path to the gin API engine. gin's response writer refuses to be
// hijacked once the upgrade response is written, so /ws must not go through it.
func NewRouter(hub *core.Hub, gateway *auth.Gateway, cfg *config.Config, logger *zerolog.Logger) stdhttp.Handler {
	mux := stdhttp.NewServeMux()
	mux.Handle(cfg.Route("/ws"), NewWSHandler(hub, gateway, cfg, logger))
	mux.Handle("/", newAPIRouter(hub, gateway, cfg, logger))
	return mux
}

func newAPIRouter(hub *core.Hub, gateway *auth.Gateway, cfg *config.Config, logger *zerolog.Logger) *gin.Engine {
	router := gin.New()
	router.Use(RecoveryMiddleware(logger))

	tokens := NewTokenHandler(gateway, logger)
	presence := NewPresenceHandler(hub, logger)

	router.GET(cfg.Route("/health"), healthHandler)

	api := router.Group(cfg.Route("/api"))
	api.Use(LoggerMiddleware(logger))
	api.POST("/token", tokens.Exchange)
	api.GET("/presence", AuthMiddleware(gateway, logger), presence.List)

	return router
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
