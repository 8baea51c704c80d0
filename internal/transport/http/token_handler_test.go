package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/vovakirdan/oinkroom/internal/auth"
	"github.com/vovakirdan/oinkroom/internal/config"
	"github.com/vovakirdan/oinkroom/internal/core"
)

func postToken(t *testing.T, env *testEnv, body string) (*http.Response, ErrorResponse, TokenResponse) {
	t.Helper()

	resp, err := env.ts.Client().Post(env.ts.URL+env.cfg.Route("/api/token"), "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("post token: %v", err)
	}
	defer resp.Body.Close()

	var errResp ErrorResponse
	var okResp TokenResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&okResp); err != nil {
			t.Fatalf("decode token response: %v", err)
		}
	} else if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		t.Fatalf("decode error response: %v", err)
	}
	return resp, errResp, okResp
}

func TestTokenValidation(t *testing.T) {
	env := startTestServer(t, "")

	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "missing code", body: `{"instance":"I1"}`, want: "No code provided"},
		{name: "empty code", body: `{"code":"","instance":"I1"}`, want: "No code provided"},
		{name: "code of wrong type", body: `{"code":123,"instance":"I1"}`, want: "No code provided"},
		{name: "not json", body: `code=abc`, want: "No code provided"},
		{name: "missing instance", body: `{"code":"abc"}`, want: "No instance provided"},
		{name: "instance of wrong type", body: `{"code":"abc","instance":["I1"]}`, want: "No instance provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, errResp, _ := postToken(t, env, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", resp.StatusCode)
			}
			if errResp.Message != tt.want {
				t.Fatalf("expected message %q, got %q", tt.want, errResp.Message)
			}
		})
	}
}

func TestTokenExchangeSuccess(t *testing.T) {
	env := startTestServer(t, "/.proxy")
	code := env.fake.IssueCode(alice)

	body, _ := json.Marshal(map[string]string{"code": code, "instance": "I1"})
	resp, _, okResp := postToken(t, env, string(body))
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if okResp.User.ID != alice.ID || okResp.User.GlobalName != alice.DisplayName || okResp.User.Avatar != alice.Avatar {
		t.Fatalf("unexpected user: %+v", okResp.User)
	}
	if okResp.ProviderAccessToken == "" {
		t.Fatal("expected provider access token")
	}

	session, err := env.gateway.Verify(okResp.Credential)
	if err != nil {
		t.Fatalf("credential does not verify: %v", err)
	}
	if session.Instance() != "I1" || session.User().ID != alice.ID {
		t.Fatalf("unexpected binding: %+v %q", session.User(), session.Instance())
	}

	// Codes are single use; the replay fails upstream.
	resp, errResp, _ := postToken(t, env, string(body))
	if resp.StatusCode != http.StatusBadGateway || errResp.Message != "Upstream authentication failed" {
		t.Fatalf("expected 502 on replayed code, got %d %q", resp.StatusCode, errResp.Message)
	}
}

func TestTokenUpstreamOutage(t *testing.T) {
	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer down.Close()

	cfg := config.Default()
	gateway := auth.NewGateway(
		auth.NewHTTPProvider(auth.ProviderConfig{TokenURL: down.URL, UserURL: down.URL}, down.Client()),
		&auth.JWTConfig{Secret: []byte("secret")},
	)
	disabledLogger := zerolog.New(nil)
	hub := core.NewHub(nil, nil, &disabledLogger)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go hub.Run(ctx)

	router := NewRouter(hub, gateway, &cfg, &disabledLogger)

	req := httptest.NewRequest(http.MethodPost, "/api/token", bytes.NewBufferString(`{"code":"abc","instance":"I1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", rec.Code, rec.Body.String())
	}

	// The server keeps serving after an upstream failure.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health after upstream failure: %d", rec.Code)
	}
}
