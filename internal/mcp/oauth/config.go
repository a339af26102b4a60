package oauth

import "log/slog"

// Config holds the OAuth handler configuration.
type Config struct {
	// BaseURL is the public base URL of the MCP server. It is used as both the
	// OAuth issuer and the RFC 8707 resource identifier.
	BaseURL string

	// GoogleClientID is the Google OAuth Client ID used for the proxy flow.
	GoogleClientID string

	// GoogleClientSecret is the Google OAuth Client Secret used for the proxy flow.
	GoogleClientSecret string

	// SupportedScopes are the Google API scopes requested during authorization.
	// Defaults to the calendar scopes when empty.
	SupportedScopes []string

	// Security holds OAuth security settings (secure by default).
	Security SecurityConfig

	// RateLimit holds rate limiting configuration.
	RateLimit RateLimitConfig

	// Logger for structured logging (optional, uses slog.Default if nil).
	Logger *slog.Logger
}

// SecurityConfig holds OAuth security settings (secure by default).
type SecurityConfig struct {
	// AllowPublicClientRegistration allows unauthenticated dynamic client
	// registration. When false, registration requires RegistrationAccessToken.
	AllowPublicClientRegistration bool

	// RegistrationAccessToken is the token required for client registration
	// when public registration is disabled.
	RegistrationAccessToken string

	// AllowInsecureAuthWithoutState allows authorization requests without a
	// state parameter. Weakens CSRF protection.
	AllowInsecureAuthWithoutState bool

	// MaxClientsPerIP limits the number of clients that can be registered per
	// IP address. 0 means the library default.
	MaxClientsPerIP int
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	// Rate is the number of requests per second allowed per IP (0 = no limit).
	Rate int

	// Burst is the maximum burst size allowed per IP.
	Burst int

	// UserRate is the number of requests per second allowed per authenticated
	// user, in addition to the IP limit (0 = no limit).
	UserRate int

	// UserBurst is the maximum burst size allowed per authenticated user.
	UserBurst int
}
