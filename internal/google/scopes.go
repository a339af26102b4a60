package google

// DefaultOAuthScopes are the Google OAuth scopes required for booking.
// They are used consistently across OAuth configurations: the identity
// scopes map tokens to accounts, the calendar scope covers availability
// lookups and event writes.
var DefaultOAuthScopes = []string{
	// OpenID Connect scopes (required for user info)
	"openid",
	"https://www.googleapis.com/auth/userinfo.email",

	// Google Calendar scope (read free/busy, create and cancel events)
	"https://www.googleapis.com/auth/calendar",
}
