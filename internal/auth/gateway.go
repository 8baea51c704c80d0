package auth

import (
	"context"
	"fmt"

	"github.com/vovakirdan/oinkroom/internal/core"
)

// Grant is the result of a successful code exchange.
type Grant struct {
	Credential          string
	User                core.User
	ProviderAccessToken string
}

// Gateway turns external authorization codes into session credentials and
// verifies those credentials at connection time.
// It keeps no per-request state and is safe for concurrent use.
type Gateway struct {
	provider  Provider
	jwtConfig *JWTConfig
}

// NewGateway creates a gateway backed by provider.
func NewGateway(provider Provider, jwtConfig *JWTConfig) *Gateway {
	return &Gateway{
		provider:  provider,
		jwtConfig: jwtConfig,
	}
}

// Exchange validates the request, resolves the caller through the provider and
// signs a credential binding them to instance.
func (g *Gateway) Exchange(ctx context.Context, code, instance string) (*Grant, error) {
	if code == "" {
		return nil, &ValidationError{Field: "code", Message: "No code provided"}
	}
	if instance == "" {
		return nil, &ValidationError{Field: "instance", Message: "No instance provided"}
	}

	accessToken, err := g.provider.ExchangeCode(ctx, code)
	if err != nil {
		return nil, &UpstreamError{Op: "exchange code", Err: err}
	}

	user, err := g.provider.FetchUser(ctx, accessToken)
	if err != nil {
		return nil, &UpstreamError{Op: "fetch user", Err: err}
	}

	credential, err := GenerateToken(g.jwtConfig, user, instance)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	return &Grant{
		Credential:          credential,
		User:                user,
		ProviderAccessToken: accessToken,
	}, nil
}

// Verify checks a handshake credential and returns the binding it carries.
func (g *Gateway) Verify(token string) (core.Session, error) {
	if token == "" {
		return core.Session{}, &AuthenticationError{Kind: ErrNoToken}
	}
	claims, err := ValidateToken(g.jwtConfig, token)
	if err != nil {
		return core.Session{}, &AuthenticationError{Kind: ErrInvalidToken, Cause: err}
	}
	return claims.Session(), nil
}
