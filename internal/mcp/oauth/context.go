package oauth

import "context"

type contextKey string

const userContextKey contextKey = "oauth_user"

// GoogleUserInfo represents the authenticated user's identity as reported by
// Google's userinfo endpoint.
type GoogleUserInfo struct {
	// Sub is the unique Google user ID
	Sub string `json:"sub"`

	// Email is the user's email address
	Email string `json:"email"`

	// EmailVerified indicates if the email is verified
	EmailVerified bool `json:"email_verified"`

	// Name is the user's full name
	Name string `json:"name"`
}

// WithUser returns a context carrying the authenticated user info.
// The ValidateToken middleware calls this after successful token validation;
// it is exported for tests and alternative transports.
func WithUser(ctx context.Context, user *GoogleUserInfo) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// GetUserFromContext retrieves the authenticated Google user from the request
// context. The second return value is false when no OAuth middleware ran, for
// example on the stdio transport.
func GetUserFromContext(ctx context.Context) (*GoogleUserInfo, bool) {
	user, ok := ctx.Value(userContextKey).(*GoogleUserInfo)
	return user, ok
}
