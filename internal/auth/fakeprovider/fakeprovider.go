// Package fakeprovider serves a minimal Discord-compatible OAuth provider for
// local development and tests. Codes are single use; access tokens never expire.
package fakeprovider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/vovakirdan/oinkroom/internal/core"
)

// Provider issues authorization codes for known users.
type Provider struct {
	clientID     string
	clientSecret string

	mu     sync.Mutex
	codes  map[string]core.User
	tokens map[string]core.User
}

// New creates a provider that accepts the given client credentials.
func New(clientID, clientSecret string) *Provider {
	return &Provider{
		clientID:     clientID,
		clientSecret: clientSecret,
		codes:        make(map[string]core.User),
		tokens:       make(map[string]core.User),
	}
}

// IssueCode registers a one-time authorization code for user.
func (p *Provider) IssueCode(user core.User) string {
	code := uuid.NewString()
	p.mu.Lock()
	p.codes[code] = user
	p.mu.Unlock()
	return code
}

// Handler returns the provider's HTTP routes:
// POST /oauth2/token, GET /users/@me and POST /dev/codes for minting codes.
func (p *Provider) Handler() http.Handler {
	r := gin.New()
	r.POST("/oauth2/token", p.token)
	r.GET("/users/@me", p.me)
	r.POST("/dev/codes", p.mint)
	return r
}

type profile struct {
	ID         string `json:"id" binding:"required"`
	Username   string `json:"username" binding:"required"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

func (p *Provider) mint(c *gin.Context) {
	var req profile
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	code := p.IssueCode(core.User{
		ID:          req.ID,
		Username:    req.Username,
		DisplayName: req.GlobalName,
		Avatar:      req.Avatar,
	})
	c.JSON(http.StatusCreated, gin.H{"code": code})
}

func (p *Provider) token(c *gin.Context) {
	if c.PostForm("client_id") != p.clientID || c.PostForm("client_secret") != p.clientSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_client"})
		return
	}
	if c.PostForm("grant_type") != "authorization_code" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported_grant_type"})
		return
	}

	code := c.PostForm("code")
	p.mu.Lock()
	user, ok := p.codes[code]
	delete(p.codes, code)
	var accessToken string
	if ok {
		accessToken = uuid.NewString()
		p.tokens[accessToken] = user
	}
	p.mu.Unlock()

	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_grant"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"token_type":   "Bearer",
		"expires_in":   604800,
		"scope":        "identify",
	})
}

func (p *Provider) me(c *gin.Context) {
	token, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "401: Unauthorized"})
		return
	}

	p.mu.Lock()
	user, known := p.tokens[token]
	p.mu.Unlock()

	if !known {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "401: Unauthorized"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":          user.ID,
		"username":    user.Username,
		"global_name": user.DisplayName,
		"avatar":      user.Avatar,
	})
}

// Mint asks a running fake provider at baseURL for a code for user.
func Mint(ctx context.Context, httpClient *http.Client, baseURL string, user core.User) (string, error) {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	body, err := json.Marshal(profile{
		ID:         user.ID,
		Username:   user.Username,
		GlobalName: user.DisplayName,
		Avatar:     user.Avatar,
	})
	if err != nil {
		return "", fmt.Errorf("marshal profile: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(baseURL, "/")+"/dev/codes", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build mint request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mint code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("mint code: provider returned %d", resp.StatusCode)
	}
	var out struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode mint response: %w", err)
	}
	return out.Code, nil
}
