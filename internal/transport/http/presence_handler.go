package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/core"
	"github.com/vovakirdan/oinkroom/internal/proto"
)

// PresenceHandler exposes the membership of the caller's own instance.
type PresenceHandler struct {
	hub *core.Hub
	log *zerolog.Logger
}

// NewPresenceHandler creates a new presence handler.
func NewPresenceHandler(hub *core.Hub, logger *zerolog.Logger) *PresenceHandler {
	return &PresenceHandler{hub: hub, log: logger}
}

// PresenceResponse lists the users connected to an instance.
type PresenceResponse struct {
	Instance string       `json:"instance"`
	Users    []proto.User `json:"users"`
}

// List returns the users connected to the credential's instance.
// GET /api/presence
func (h *PresenceHandler) List(c *gin.Context) {
	session, ok := sessionFrom(c)
	if !ok {
		h.log.Error().Msg("session not found in context")
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "unauthorized"})
		return
	}

	users, err := h.hub.Members(c.Request.Context(), session.Instance())
	if err != nil {
		h.log.Error().Err(err).Str("instance", session.Instance()).Msg("failed to list members")
		c.JSON(http.StatusServiceUnavailable, ErrorResponse{Message: "presence unavailable"})
		return
	}

	c.JSON(http.StatusOK, PresenceResponse{
		Instance: session.Instance(),
		Users:    usersToProto(users),
	})
}
