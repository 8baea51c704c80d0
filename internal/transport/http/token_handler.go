package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/auth"
	"github.com/vovakirdan/oinkroom/internal/proto"
)

// TokenHandler exchanges provider authorization codes for session credentials.
type TokenHandler struct {
	gateway *auth.Gateway
	log     *zerolog.Logger
}

// NewTokenHandler creates a new token handler.
func NewTokenHandler(gateway *auth.Gateway, logger *zerolog.Logger) *TokenHandler {
	return &TokenHandler{
		gateway: gateway,
		log:     logger,
	}
}

// TokenRequest is the token exchange request body.
// Fields are decoded loosely so that wrongly typed values surface as
// validation errors instead of decode failures.
type TokenRequest struct {
	Code     any `json:"code"`
	Instance any `json:"instance"`
}

// TokenResponse is returned after a successful exchange.
type TokenResponse struct {
	Credential          string     `json:"credential"`
	User                proto.User `json:"user"`
	ProviderAccessToken string     `json:"provider_access_token"`
}

// ErrorResponse represents an error response body.
type ErrorResponse struct {
	Message string `json:"message"`
}

// Exchange handles the code exchange.
// POST /api/token
func (h *TokenHandler) Exchange(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Debug().Err(err).Msg("invalid token request body")
	}

	grant, err := h.gateway.Exchange(c.Request.Context(), stringField(req.Code), stringField(req.Instance))
	if err != nil {
		var validationErr *auth.ValidationError
		var upstreamErr *auth.UpstreamError
		switch {
		case errors.As(err, &validationErr):
			c.JSON(http.StatusBadRequest, ErrorResponse{Message: validationErr.Message})
		case errors.As(err, &upstreamErr):
			h.log.Warn().Err(err).Msg("identity provider call failed")
			c.JSON(http.StatusBadGateway, ErrorResponse{Message: "Upstream authentication failed"})
		default:
			h.log.Error().Err(err).Msg("failed to issue credential")
			c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
		}
		return
	}

	h.log.Info().
		Str("user_id", grant.User.ID).
		Str("username", grant.User.Username).
		Msg("credential issued")
	c.JSON(http.StatusOK, TokenResponse{
		Credential:          grant.Credential,
		User:                userToProto(grant.User),
		ProviderAccessToken: grant.ProviderAccessToken,
	})
}

func stringField(v any) string {
	s, _ := v.(string)
	return s
}
