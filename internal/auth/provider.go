package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vovakirdan/oinkroom/internal/core"
)

// Default Discord OAuth endpoints.
const (
	DiscordTokenURL = "https://discord.com/api/oauth2/token"
	DiscordUserURL  = "https://discord.com/api/users/@me"
)

// Provider exchanges authorization codes with an external identity provider.
type Provider interface {
	// ExchangeCode trades an authorization code for an access token.
	ExchangeCode(ctx context.Context, code string) (string, error)
	// FetchUser loads the profile of the access token's owner.
	FetchUser(ctx context.Context, accessToken string) (core.User, error)
}

// ProviderConfig describes an OAuth provider reachable over HTTP.
type ProviderConfig struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	UserURL      string
}

// HTTPProvider implements Provider for Discord-compatible OAuth endpoints.
type HTTPProvider struct {
	cfg        ProviderConfig
	httpClient *http.Client
}

// NewHTTPProvider builds a provider. Empty endpoints default to Discord's.
func NewHTTPProvider(cfg ProviderConfig, httpClient *http.Client) *HTTPProvider {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DiscordTokenURL
	}
	if cfg.UserURL == "" {
		cfg.UserURL = DiscordUserURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPProvider{cfg: cfg, httpClient: httpClient}
}

// ExchangeCode performs the authorization_code grant.
func (p *HTTPProvider) ExchangeCode(ctx context.Context, code string) (string, error) {
	form := url.Values{}
	form.Set("client_id", p.cfg.ClientID)
	form.Set("client_secret", p.cfg.ClientSecret)
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token exchange failed: status %d", resp.StatusCode)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
		Scope       string `json:"scope"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", errors.New("missing access token")
	}
	return payload.AccessToken, nil
}

// FetchUser loads the caller's profile with the bearer token.
func (p *HTTPProvider) FetchUser(ctx context.Context, accessToken string) (core.User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.UserURL, nil)
	if err != nil {
		return core.User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return core.User{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return core.User{}, fmt.Errorf("profile request failed: status %d", resp.StatusCode)
	}

	var payload struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Avatar     string `json:"avatar"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return core.User{}, fmt.Errorf("decode profile: %w", err)
	}
	if payload.ID == "" {
		return core.User{}, errors.New("missing user id")
	}
	return core.User{
		ID:          payload.ID,
		Username:    payload.Username,
		DisplayName: payload.GlobalName,
		Avatar:      payload.Avatar,
	}, nil
}

var _ Provider = (*HTTPProvider)(nil)
