package oauth

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	mcpoauth "github.com/giantswarm/mcp-oauth"
	googleprovider "github.com/giantswarm/mcp-oauth/providers/google"
	"github.com/giantswarm/mcp-oauth/security"
	"github.com/giantswarm/mcp-oauth/storage"
	"github.com/giantswarm/mcp-oauth/storage/memory"

	"github.com/slotbot/slotbot/internal/google"
)

// shutdownTimeout bounds how long Stop waits for the library's background
// services to drain.
const shutdownTimeout = 5 * time.Second

// Handler wraps the mcp-oauth library's authorization server and resource
// server for the slotbot MCP server. It acts as an OAuth 2.1 authorization
// server (proxying to Google) and validates Bearer tokens on MCP requests.
type Handler struct {
	config  *Config
	server  *mcpoauth.Server
	handler *mcpoauth.Handler
	store   *memory.Store
	logger  *slog.Logger
}

// NewHandler creates a new OAuth handler backed by the mcp-oauth library.
func NewHandler(config *Config) (*Handler, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if err := validateIssuerURL(config.BaseURL); err != nil {
		return nil, err
	}
	if config.GoogleClientID == "" || config.GoogleClientSecret == "" {
		return nil, fmt.Errorf("Google OAuth credentials are required for the OAuth proxy")
	}

	scopes := config.SupportedScopes
	if len(scopes) == 0 {
		scopes = google.DefaultOAuthScopes
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := googleprovider.NewProvider(&googleprovider.Config{
		ClientID:     config.GoogleClientID,
		ClientSecret: config.GoogleClientSecret,
		RedirectURL:  config.BaseURL + "/oauth/callback",
		Scopes:       scopes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google provider: %w", err)
	}

	// One in-memory store serves as token, client, and flow storage.
	store := memory.New()

	srv, err := mcpoauth.NewServer(provider, store, store, store, &mcpoauth.ServerConfig{
		Issuer:                        config.BaseURL,
		SupportedScopes:               scopes,
		AllowPublicClientRegistration: config.Security.AllowPublicClientRegistration,
		RegistrationAccessToken:       config.Security.RegistrationAccessToken,
		AllowNoStateParameter:         config.Security.AllowInsecureAuthWithoutState,
		MaxClientsPerIP:               config.Security.MaxClientsPerIP,
		AllowInsecureHTTP:             strings.HasPrefix(config.BaseURL, "http://"),
	}, logger)
	if err != nil {
		store.Stop()
		return nil, fmt.Errorf("failed to create OAuth server: %w", err)
	}

	if config.RateLimit.Rate > 0 {
		srv.SetRateLimiter(security.NewRateLimiter(config.RateLimit.Rate, config.RateLimit.Burst, logger))
	}
	if config.RateLimit.UserRate > 0 {
		srv.SetUserRateLimiter(security.NewRateLimiter(config.RateLimit.UserRate, config.RateLimit.UserBurst, logger))
	}

	if config.Security.AllowInsecureAuthWithoutState {
		logger.Warn("state parameter is optional, CSRF protection weakened")
	}
	if config.Security.AllowPublicClientRegistration {
		logger.Warn("public client registration is enabled")
	}

	return &Handler{
		config:  config,
		server:  srv,
		handler: mcpoauth.NewHandler(srv, logger),
		store:   store,
		logger:  logger,
	}, nil
}

// GetStore returns the library token store. Google API clients read tokens
// from it through the TokenProvider bridge.
func (h *Handler) GetStore() storage.TokenStore {
	return h.store
}

// GetConfig returns the OAuth configuration.
func (h *Handler) GetConfig() *Config {
	return h.config
}

// Issuer returns the configured OAuth issuer URL.
func (h *Handler) Issuer() string {
	return h.server.Config.Issuer
}

// Stop shuts down the library's background services (token cleanup, rate
// limiter maintenance) and the store's expiry janitor. The server's shutdown
// already stops the token store, so the store must not be stopped again here.
func (h *Handler) Stop() {
	if err := h.server.ShutdownWithTimeout(shutdownTimeout); err != nil {
		h.logger.Warn("OAuth server shutdown did not complete cleanly", "error", err)
	}
}

// RegisterEndpoints registers all OAuth endpoints on the given mux.
func (h *Handler) RegisterEndpoints(mux *http.ServeMux) {
	// Discovery metadata (RFC 9728 and RFC 8414)
	mux.HandleFunc("/.well-known/oauth-protected-resource", h.handler.ServeProtectedResourceMetadata)
	mux.HandleFunc("/.well-known/oauth-authorization-server", h.handler.ServeAuthorizationServerMetadata)

	// Dynamic Client Registration (RFC 7591)
	mux.HandleFunc("/oauth/register", h.handler.ServeClientRegistration)

	// Authorization flow, proxied to Google
	mux.HandleFunc("/oauth/authorize", h.handler.ServeAuthorization)
	mux.HandleFunc("/oauth/token", h.handler.ServeToken)
	mux.HandleFunc("/oauth/callback", h.handler.ServeCallback)

	// Token lifecycle (RFC 7009, RFC 7662)
	mux.HandleFunc("/oauth/revoke", h.handler.ServeTokenRevocation)
	mux.HandleFunc("/oauth/introspect", h.handler.ServeTokenIntrospection)
}

// ValidateToken wraps next with the library's Bearer token validation and,
// on success, exposes the authenticated user through GetUserFromContext.
func (h *Handler) ValidateToken(next http.Handler) http.Handler {
	return h.handler.ValidateToken(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if info, ok := mcpoauth.UserInfoFromContext(r.Context()); ok && info != nil {
			user := &GoogleUserInfo{
				Sub:           info.ID,
				Email:         info.Email,
				EmailVerified: info.EmailVerified,
				Name:          info.Name,
			}
			r = r.WithContext(WithUser(r.Context(), user))
		}
		next.ServeHTTP(w, r)
	}))
}

// validateIssuerURL enforces OAuth 2.1 HTTPS requirements. HTTP is allowed
// only for loopback addresses during development.
func validateIssuerURL(baseURL string) error {
	u, err := url.Parse(baseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		host := u.Hostname()
		if host != "localhost" && host != "127.0.0.1" && host != "::1" {
			return fmt.Errorf("OAuth 2.1 requires HTTPS for production (got %s); use HTTPS or localhost for development", baseURL)
		}
		return nil
	default:
		return fmt.Errorf("invalid URL scheme %q: must be http (localhost only) or https", u.Scheme)
	}
}
