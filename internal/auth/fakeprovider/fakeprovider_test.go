package fakeprovider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/vovakirdan/oinkroom/internal/auth"
	"github.com/vovakirdan/oinkroom/internal/core"
)

func startProvider(t *testing.T) (*Provider, *httptest.Server, *auth.HTTPProvider) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	fake := New("client", "secret")
	ts := httptest.NewServer(fake.Handler())
	t.Cleanup(ts.Close)

	client := auth.NewHTTPProvider(auth.ProviderConfig{
		ClientID:     "client",
		ClientSecret: "secret",
		TokenURL:     ts.URL + "/oauth2/token",
		UserURL:      ts.URL + "/users/@me",
	}, ts.Client())
	return fake, ts, client
}

func TestMintedCodeResolvesToProfile(t *testing.T) {
	_, ts, client := startProvider(t)

	code, err := Mint(context.Background(), ts.Client(), ts.URL, core.User{ID: "7", Username: "pig", DisplayName: "Pig", Avatar: "abc"})
	if err != nil {
		t.Fatalf("mint: %v", err)
	}

	ctx := context.Background()
	token, err := client.ExchangeCode(ctx, code)
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	user, err := client.FetchUser(ctx, token)
	if err != nil {
		t.Fatalf("fetch user: %v", err)
	}
	if user.ID != "7" || user.Username != "pig" || user.DisplayName != "Pig" || user.Avatar != "abc" {
		t.Fatalf("unexpected user: %+v", user)
	}

	if _, err := client.ExchangeCode(ctx, code); err == nil {
		t.Fatal("codes must be single use")
	}
}

func TestMintRequiresIdentity(t *testing.T) {
	_, ts, _ := startProvider(t)

	resp, err := ts.Client().Post(ts.URL+"/dev/codes", "application/json", strings.NewReader(`{"username":"pig"}`))
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestTokenRejectsWrongClient(t *testing.T) {
	fake, ts, _ := startProvider(t)

	wrong := auth.NewHTTPProvider(auth.ProviderConfig{
		ClientID:     "client",
		ClientSecret: "nope",
		TokenURL:     ts.URL + "/oauth2/token",
		UserURL:      ts.URL + "/users/@me",
	}, ts.Client())

	if _, err := wrong.ExchangeCode(context.Background(), fake.IssueCode(core.User{ID: "1", Username: "alice"})); err == nil {
		t.Fatal("expected invalid_client failure")
	}
}
