package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/proto"
)

// Grant is the token endpoint's answer to a successful code exchange.
type Grant struct {
	Credential          string     `json:"credential"`
	User                proto.User `json:"user"`
	ProviderAccessToken string     `json:"provider_access_token"`
}

type tokenRequest struct {
	Code     string `json:"code"`
	Instance string `json:"instance"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Authenticator exchanges an authorization code for a session credential and
// notifies listeners once it has one.
type Authenticator struct {
	endpoint   string
	httpClient *http.Client
	log        *zerolog.Logger

	mu        sync.Mutex
	loading   bool
	grant     *Grant
	err       error
	callbacks []func(*Grant)
}

// NewAuthenticator creates an authenticator posting to endpoint, the full URL
// of the token route. A nil httpClient uses http.DefaultClient.
func NewAuthenticator(endpoint string, httpClient *http.Client, logger *zerolog.Logger) *Authenticator {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &Authenticator{
		endpoint:   endpoint,
		httpClient: httpClient,
		log:        logger,
	}
}

// OnAuthorized registers fn to run after a successful exchange.
func (a *Authenticator) OnAuthorized(fn func(*Grant)) {
	a.mu.Lock()
	a.callbacks = append(a.callbacks, fn)
	a.mu.Unlock()
}

// Grant returns the current grant, or nil before a successful exchange.
func (a *Authenticator) Grant() *Grant {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.grant
}

// Err returns the error of the last failed exchange.
func (a *Authenticator) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Authenticate posts code and instance to the token endpoint. On success it
// stores the grant and runs every OnAuthorized callback; on failure it records
// the error and runs none. Once a grant is held further calls return it.
func (a *Authenticator) Authenticate(ctx context.Context, code, instance string) (*Grant, error) {
	a.mu.Lock()
	if a.grant != nil {
		grant := a.grant
		a.mu.Unlock()
		return grant, nil
	}
	if a.loading {
		a.mu.Unlock()
		return nil, errors.New("authenticate: already in progress")
	}
	a.loading = true
	a.err = nil
	a.mu.Unlock()

	grant, err := a.exchange(ctx, code, instance)

	a.mu.Lock()
	a.loading = false
	if err != nil {
		a.err = err
		a.mu.Unlock()
		a.log.Warn().Err(err).Msg("authentication failed")
		return nil, err
	}
	a.grant = grant
	callbacks := slices.Clone(a.callbacks)
	a.mu.Unlock()

	a.log.Info().Str("user_id", grant.User.ID).Str("instance", instance).Msg("authenticated")
	for _, fn := range callbacks {
		fn(grant)
	}
	return grant, nil
}

func (a *Authenticator) exchange(ctx context.Context, code, instance string) (*Grant, error) {
	body, err := json.Marshal(tokenRequest{Code: code, Instance: instance})
	if err != nil {
		return nil, fmt.Errorf("marshal token request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post token request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		_ = json.Unmarshal(payload, &apiErr)
		return nil, &APIError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	var grant Grant
	if err := json.Unmarshal(payload, &grant); err != nil {
		return nil, fmt.Errorf("decode token response: %w", err)
	}
	if grant.Credential == "" {
		return nil, errors.New("decode token response: missing credential")
	}
	return &grant, nil
}
