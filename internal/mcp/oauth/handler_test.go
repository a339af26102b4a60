package oauth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func testHandlerConfig() *Config {
	return &Config{
		BaseURL:            "http://localhost:8080",
		GoogleClientID:     "test-client-id",
		GoogleClientSecret: "test-client-secret",
	}
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	h, err := NewHandler(testHandlerConfig())
	if err != nil {
		t.Fatalf("NewHandler() error = %v", err)
	}
	t.Cleanup(h.Stop)
	return h
}

func TestNewHandler(t *testing.T) {
	h := newTestHandler(t)

	if got := h.Issuer(); got != "http://localhost:8080" {
		t.Errorf("Issuer() = %q, want %q", got, "http://localhost:8080")
	}
	if h.GetStore() == nil {
		t.Error("GetStore() = nil, want the shared token store")
	}
	if h.GetConfig() == nil {
		t.Error("GetConfig() = nil")
	}
}

func TestNewHandlerValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"missing base URL", func(c *Config) { c.BaseURL = "" }},
		{"http on public host", func(c *Config) { c.BaseURL = "http://mcp.example.com" }},
		{"missing client ID", func(c *Config) { c.GoogleClientID = "" }},
		{"missing client secret", func(c *Config) { c.GoogleClientSecret = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := testHandlerConfig()
			tt.modify(config)
			if _, err := NewHandler(config); err == nil {
				t.Error("NewHandler() expected error")
			}
		})
	}
}

func TestRegisterEndpoints(t *testing.T) {
	h := newTestHandler(t)

	mux := http.NewServeMux()
	h.RegisterEndpoints(mux)

	// Discovery metadata must be reachable without authentication.
	for _, path := range []string{
		"/.well-known/oauth-protected-resource",
		"/.well-known/oauth-authorization-server",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, rec.Code, http.StatusOK)
		}
	}
}

func TestValidateTokenRejectsMissingToken(t *testing.T) {
	h := newTestHandler(t)

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("inner handler reached without a Bearer token")
	})

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	rec := httptest.NewRecorder()
	h.ValidateToken(inner).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	if rec.Header().Get("WWW-Authenticate") == "" {
		t.Error("WWW-Authenticate header missing from 401 response")
	}
}
