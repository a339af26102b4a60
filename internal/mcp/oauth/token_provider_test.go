package oauth

import (
	"context"
	"testing"
	"time"

	"github.com/giantswarm/mcp-oauth/storage/memory"
	"golang.org/x/oauth2"
)

func testToken(access string) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		Expiry:       time.Now().Add(time.Hour),
	}
}

func TestTokenProviderGetTokenForAccount(t *testing.T) {
	store := memory.New()
	provider := NewTokenProvider(store)
	ctx := context.Background()

	if err := store.SaveToken(ctx, "alice@example.com", testToken("alice-token")); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	token, err := provider.GetTokenForAccount(ctx, "alice@example.com")
	if err != nil {
		t.Fatalf("GetTokenForAccount() error = %v", err)
	}
	if token.AccessToken != "alice-token" {
		t.Errorf("GetTokenForAccount() access token = %q, want %q", token.AccessToken, "alice-token")
	}
}

func TestTokenProviderMissingToken(t *testing.T) {
	store := memory.New()
	provider := NewTokenProvider(store)

	if _, err := provider.GetTokenForAccount(context.Background(), "nobody@example.com"); err == nil {
		t.Error("GetTokenForAccount() expected error for unknown account")
	}
}

func TestTokenProviderPrefersContextUser(t *testing.T) {
	store := memory.New()
	provider := NewTokenProvider(store)
	ctx := context.Background()

	if err := store.SaveToken(ctx, "alice@example.com", testToken("alice-token")); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}
	if err := store.SaveToken(ctx, "default", testToken("default-token")); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	// The authenticated user's token wins over the account argument.
	userCtx := WithUser(ctx, &GoogleUserInfo{Email: "alice@example.com"})
	token, err := provider.GetTokenForAccount(userCtx, "default")
	if err != nil {
		t.Fatalf("GetTokenForAccount() error = %v", err)
	}
	if token.AccessToken != "alice-token" {
		t.Errorf("GetTokenForAccount() access token = %q, want context user's token", token.AccessToken)
	}
}

func TestTokenProviderContextUserFallsBack(t *testing.T) {
	store := memory.New()
	provider := NewTokenProvider(store)
	ctx := context.Background()

	if err := store.SaveToken(ctx, "default", testToken("default-token")); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	// User has no stored token, so the account lookup applies.
	userCtx := WithUser(ctx, &GoogleUserInfo{Email: "ghost@example.com"})
	token, err := provider.GetTokenForAccount(userCtx, "default")
	if err != nil {
		t.Fatalf("GetTokenForAccount() error = %v", err)
	}
	if token.AccessToken != "default-token" {
		t.Errorf("GetTokenForAccount() access token = %q, want %q", token.AccessToken, "default-token")
	}
}

func TestHasTokenForAccount(t *testing.T) {
	store := memory.New()
	provider := NewTokenProvider(store)

	if provider.HasTokenForAccount("alice@example.com") {
		t.Error("HasTokenForAccount() = true before any token was saved")
	}

	if err := store.SaveToken(context.Background(), "alice@example.com", testToken("alice-token")); err != nil {
		t.Fatalf("SaveToken() error = %v", err)
	}

	if !provider.HasTokenForAccount("alice@example.com") {
		t.Error("HasTokenForAccount() = false after saving a token")
	}
}

func TestGetUserFromContext(t *testing.T) {
	if user, ok := GetUserFromContext(context.Background()); ok || user != nil {
		t.Error("GetUserFromContext() should return nothing for an empty context")
	}

	want := &GoogleUserInfo{Sub: "123", Email: "alice@example.com", EmailVerified: true, Name: "Alice"}
	ctx := WithUser(context.Background(), want)
	user, ok := GetUserFromContext(ctx)
	if !ok {
		t.Fatal("GetUserFromContext() ok = false")
	}
	if user.Email != want.Email || user.Sub != want.Sub {
		t.Errorf("GetUserFromContext() = %+v, want %+v", user, want)
	}
}

func TestValidateIssuerURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		wantErr bool
	}{
		{"https production", "https://mcp.example.com", false},
		{"http localhost", "http://localhost:8080", false},
		{"http loopback", "http://127.0.0.1:8080", false},
		{"http production", "http://mcp.example.com", true},
		{"bad scheme", "ftp://mcp.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateIssuerURL(tt.baseURL)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateIssuerURL(%q) error = %v, wantErr %v", tt.baseURL, err, tt.wantErr)
			}
		})
	}
}
