package google

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
)

// ServiceAccountEnvVar holds the full service-account key JSON. Headless
// deployments use it to book on calendars the account has been shared into.
const ServiceAccountEnvVar = "GOOGLE_SERVICE_ACCOUNT_JSON"

// HasServiceAccount reports whether service-account credentials are
// configured in the environment.
func HasServiceAccount() bool {
	return os.Getenv(ServiceAccountEnvVar) != ""
}

// ServiceAccountEmail returns the client_email of the configured
// service-account key, used as the acting identity in logs and audit trails.
func ServiceAccountEmail() (string, error) {
	raw := os.Getenv(ServiceAccountEnvVar)
	if raw == "" {
		return "", fmt.Errorf("%s is not set", ServiceAccountEnvVar)
	}
	var key struct {
		ClientEmail string `json:"client_email"`
	}
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return "", fmt.Errorf("failed to parse service account key: %w", err)
	}
	if key.ClientEmail == "" {
		return "", fmt.Errorf("service account key has no client_email")
	}
	return key.ClientEmail, nil
}

// GetServiceAccountHTTPClient returns an HTTP client authenticated with the
// service-account credentials from the environment, scoped for calendar
// access.
func GetServiceAccountHTTPClient(ctx context.Context) (*http.Client, error) {
	raw := os.Getenv(ServiceAccountEnvVar)
	if raw == "" {
		return nil, fmt.Errorf("%s is not set", ServiceAccountEnvVar)
	}

	conf, err := google.JWTConfigFromJSON([]byte(raw), "https://www.googleapis.com/auth/calendar")
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account key: %w", err)
	}

	return httpClientFromTokenSource(ctx, conf.TokenSource(ctx)), nil
}
