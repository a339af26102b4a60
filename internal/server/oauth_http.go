package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/slotbot/slotbot/internal/instrumentation"
	"github.com/slotbot/slotbot/internal/logging"
	"github.com/slotbot/slotbot/internal/mcp/oauth"
)

// OAuthConfig holds the configuration for the OAuth-enabled HTTP server.
type OAuthConfig struct {
	// BaseURL is the public base URL of the MCP server.
	BaseURL string

	// GoogleClientID is the Google OAuth Client ID for the proxy flow.
	GoogleClientID string

	// GoogleClientSecret is the Google OAuth Client Secret for the proxy flow.
	GoogleClientSecret string

	// DisableStreaming disables SSE streaming on the MCP endpoint.
	DisableStreaming bool

	// AllowPublicClientRegistration allows unauthenticated client registration.
	AllowPublicClientRegistration bool

	// RegistrationAccessToken is required for client registration when public
	// registration is disabled.
	RegistrationAccessToken string

	// AllowInsecureAuthWithoutState allows authorization without a state parameter.
	AllowInsecureAuthWithoutState bool

	// MaxClientsPerIP limits client registrations per IP address.
	MaxClientsPerIP int
}

// CreateOAuthHandler creates the OAuth handler for the HTTP transport.
// It is created before the server so the token provider can be injected into
// the server context.
func CreateOAuthHandler(config OAuthConfig) (*oauth.Handler, error) {
	return oauth.NewHandler(&oauth.Config{
		BaseURL:            config.BaseURL,
		GoogleClientID:     config.GoogleClientID,
		GoogleClientSecret: config.GoogleClientSecret,
		Logger:             logging.DefaultLogger().Logger(),
		Security: oauth.SecurityConfig{
			AllowPublicClientRegistration: config.AllowPublicClientRegistration,
			RegistrationAccessToken:       config.RegistrationAccessToken,
			AllowInsecureAuthWithoutState: config.AllowInsecureAuthWithoutState,
			MaxClientsPerIP:               config.MaxClientsPerIP,
		},
		RateLimit: oauth.RateLimitConfig{
			Rate:      10,  // 10 req/sec per IP
			Burst:     20,  // allow burst of 20
			UserRate:  100, // 100 req/sec per authenticated user
			UserBurst: 200, // allow burst of 200
		},
	})
}

// OAuthHTTPServer wraps the MCP streamable HTTP endpoint with OAuth 2.1
// authentication. It serves the OAuth discovery and flow endpoints itself and
// validates Bearer tokens on every MCP request.
type OAuthHTTPServer struct {
	mcpServer        *mcpserver.MCPServer
	oauthHandler     *oauth.Handler
	httpServer       *http.Server
	healthChecker    *HealthChecker
	metrics          *instrumentation.Metrics
	disableStreaming bool
}

// NewOAuthHTTPServer creates an OAuth-enabled HTTP server with a freshly
// created OAuth handler.
func NewOAuthHTTPServer(mcpServer *mcpserver.MCPServer, config OAuthConfig) (*OAuthHTTPServer, error) {
	handler, err := CreateOAuthHandler(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create OAuth handler: %w", err)
	}
	return NewOAuthHTTPServerWithHandler(mcpServer, handler, config.DisableStreaming), nil
}

// NewOAuthHTTPServerWithHandler creates an OAuth-enabled HTTP server around an
// existing OAuth handler. Used when the handler was created earlier to share
// its token store with the server context.
func NewOAuthHTTPServerWithHandler(mcpServer *mcpserver.MCPServer, handler *oauth.Handler, disableStreaming bool) *OAuthHTTPServer {
	return &OAuthHTTPServer{
		mcpServer:        mcpServer,
		oauthHandler:     handler,
		disableStreaming: disableStreaming,
	}
}

// SetHealthChecker attaches Kubernetes-style health probe endpoints.
func (s *OAuthHTTPServer) SetHealthChecker(h *HealthChecker) {
	s.healthChecker = h
}

// SetMetrics enables HTTP request metrics on the MCP endpoint.
func (s *OAuthHTTPServer) SetMetrics(m *instrumentation.Metrics) {
	s.metrics = m
}

// Start starts the OAuth-enabled HTTP server and blocks until it stops.
func (s *OAuthHTTPServer) Start(addr string) error {
	mux := http.NewServeMux()

	// OAuth discovery, registration, and flow endpoints
	s.oauthHandler.RegisterEndpoints(mux)

	// Health probes
	if s.healthChecker != nil {
		s.healthChecker.RegisterHealthEndpoints(mux)
	}

	// MCP endpoint behind Bearer token validation
	var streamOpts []mcpserver.StreamableHTTPOption
	streamOpts = append(streamOpts, mcpserver.WithEndpointPath("/mcp"))
	if s.disableStreaming {
		streamOpts = append(streamOpts, mcpserver.WithDisableStreaming(true))
	}
	httpServer := mcpserver.NewStreamableHTTPServer(s.mcpServer, streamOpts...)

	var mcpHandler http.Handler = httpServer
	if s.metrics != nil {
		mcpHandler = s.instrumentHTTP("/mcp", mcpHandler)
	}
	mux.Handle("/mcp", s.oauthHandler.ValidateToken(mcpHandler))

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server and the OAuth handler's background
// services.
func (s *OAuthHTTPServer) Shutdown(ctx context.Context) error {
	if s.oauthHandler != nil {
		s.oauthHandler.Stop()
	}
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// GetOAuthHandler returns the OAuth handler for testing or direct access.
func (s *OAuthHTTPServer) GetOAuthHandler() *oauth.Handler {
	return s.oauthHandler
}

// statusRecorder captures the response status code for metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *OAuthHTTPServer) instrumentHTTP(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, path, rec.status, time.Since(start))
	})
}
