package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/vovakirdan/oinkroom/internal/auth/fakeprovider"
	"github.com/vovakirdan/oinkroom/internal/core"
)

type countingProvider struct {
	calls int
}

func (p *countingProvider) ExchangeCode(context.Context, string) (string, error) {
	p.calls++
	return "token", nil
}

func (p *countingProvider) FetchUser(context.Context, string) (core.User, error) {
	p.calls++
	return core.User{ID: "1"}, nil
}

func newFakeGateway(t *testing.T) (*Gateway, *fakeprovider.Provider) {
	t.Helper()

	fake := fakeprovider.New("client", "shh")
	ts := httptest.NewServer(fake.Handler())
	t.Cleanup(ts.Close)

	provider := NewHTTPProvider(ProviderConfig{
		ClientID:     "client",
		ClientSecret: "shh",
		TokenURL:     ts.URL + "/oauth2/token",
		UserURL:      ts.URL + "/users/@me",
	}, ts.Client())
	return NewGateway(provider, newTestJWTConfig("secret")), fake
}

func TestExchangeValidatesBeforeNetwork(t *testing.T) {
	provider := &countingProvider{}
	gw := NewGateway(provider, newTestJWTConfig("secret"))

	_, err := gw.Exchange(context.Background(), "", "I1")
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Message != "No code provided" {
		t.Fatalf("expected missing code validation error, got %v", err)
	}

	_, err = gw.Exchange(context.Background(), "code", "")
	if !errors.As(err, &verr) || verr.Message != "No instance provided" {
		t.Fatalf("expected missing instance validation error, got %v", err)
	}

	if provider.calls != 0 {
		t.Fatalf("provider called %d times for invalid input", provider.calls)
	}
}

func TestExchangeIssuesVerifiableCredential(t *testing.T) {
	gw, fake := newFakeGateway(t)
	user := core.User{ID: "7", Username: "oinker", DisplayName: "Oinker", Avatar: "hash"}

	grant, err := gw.Exchange(context.Background(), fake.IssueCode(user), "I1")
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if grant.User != user {
		t.Fatalf("unexpected user: %+v", grant.User)
	}
	if grant.ProviderAccessToken == "" {
		t.Fatal("expected provider access token to be passed through")
	}

	session, err := gw.Verify(grant.Credential)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if session.User() != user || session.Instance() != "I1" {
		t.Fatalf("unexpected session: %+v %q", session.User(), session.Instance())
	}
}

func TestExchangeWrapsUpstreamFailures(t *testing.T) {
	gw, _ := newFakeGateway(t)

	// Unknown code: the provider answers 400.
	_, err := gw.Exchange(context.Background(), "bogus", "I1")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) || uerr.Op != "exchange code" {
		t.Fatalf("expected upstream exchange error, got %v", err)
	}
}

func TestExchangeHandlesUnexpectedShapes(t *testing.T) {
	tests := []struct {
		name    string
		token   http.HandlerFunc
		profile http.HandlerFunc
		op      string
	}{
		{
			name: "token server error",
			token: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			op: "exchange code",
		},
		{
			name: "token not json",
			token: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("<html>"))
			},
			op: "exchange code",
		},
		{
			name: "token missing access token",
			token: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
			},
			op: "exchange code",
		},
		{
			name: "profile missing id",
			token: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"access_token":"abc"}`))
			},
			profile: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"username":"x"}`))
			},
			op: "fetch user",
		},
		{
			name: "profile unauthorized",
			token: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{"access_token":"abc"}`))
			},
			profile: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
			},
			op: "fetch user",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokenServer := httptest.NewServer(tt.token)
			defer tokenServer.Close()
			profileURL := "http://127.0.0.1:0/unused"
			if tt.profile != nil {
				profileServer := httptest.NewServer(tt.profile)
				defer profileServer.Close()
				profileURL = profileServer.URL
			}

			gw := NewGateway(NewHTTPProvider(ProviderConfig{
				TokenURL: tokenServer.URL,
				UserURL:  profileURL,
			}, nil), newTestJWTConfig("secret"))

			_, err := gw.Exchange(context.Background(), "code", "I1")
			var uerr *UpstreamError
			if !errors.As(err, &uerr) || uerr.Op != tt.op {
				t.Fatalf("expected upstream %q error, got %v", tt.op, err)
			}
		})
	}
}

func TestExchangeUnreachableProvider(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	gw := NewGateway(NewHTTPProvider(ProviderConfig{TokenURL: url, UserURL: url}, nil), newTestJWTConfig("secret"))
	_, err := gw.Exchange(context.Background(), "code", "I1")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestVerifyClassifiesFailures(t *testing.T) {
	gw := NewGateway(&countingProvider{}, newTestJWTConfig("secret"))

	_, err := gw.Verify("")
	if !errors.Is(err, ErrNoToken) {
		t.Fatalf("expected ErrNoToken, got %v", err)
	}

	_, err = gw.Verify("not-a-jwt")
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	var aerr *AuthenticationError
	if !errors.As(err, &aerr) || aerr.Cause == nil {
		t.Fatalf("expected authentication error with cause, got %v", err)
	}
}
