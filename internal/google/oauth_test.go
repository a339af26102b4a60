package google

import (
	"path/filepath"
	"strings"
	"testing"
)

func TestTokenFileForAccount(t *testing.T) {
	tests := []struct {
		account string
		want    string
	}{
		{"", "google.token"},
		{"default", "google.token"},
		{"work", "google-work.token"},
		{"user@example.com", "google-user@example.com.token"},
	}
	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			got := filepath.Base(tokenFileForAccount(tt.account))
			if got != tt.want {
				t.Errorf("tokenFileForAccount(%q) = %q, want %q", tt.account, got, tt.want)
			}
		})
	}
}

func TestSanitizeAccount(t *testing.T) {
	got := sanitizeAccount(`bad/name:with*chars?`)
	if strings.ContainsAny(got, `/\:*?"<>|`) {
		t.Errorf("sanitizeAccount left unsafe characters: %q", got)
	}
}

func TestServiceAccountEmail(t *testing.T) {
	t.Setenv(ServiceAccountEnvVar, `{"type":"service_account","client_email":"bot@project.iam.gserviceaccount.com"}`)
	email, err := ServiceAccountEmail()
	if err != nil {
		t.Fatalf("ServiceAccountEmail() error = %v", err)
	}
	if email != "bot@project.iam.gserviceaccount.com" {
		t.Errorf("ServiceAccountEmail() = %q", email)
	}
}

func TestServiceAccountEmailMissing(t *testing.T) {
	t.Setenv(ServiceAccountEnvVar, "")
	if _, err := ServiceAccountEmail(); err == nil {
		t.Error("ServiceAccountEmail() expected error when env is unset")
	}

	t.Setenv(ServiceAccountEnvVar, `{"type":"service_account"}`)
	if _, err := ServiceAccountEmail(); err == nil {
		t.Error("ServiceAccountEmail() expected error when key has no client_email")
	}
}

func TestHasServiceAccount(t *testing.T) {
	t.Setenv(ServiceAccountEnvVar, "")
	if HasServiceAccount() {
		t.Error("HasServiceAccount() = true with empty env")
	}
	t.Setenv(ServiceAccountEnvVar, "{}")
	if !HasServiceAccount() {
		t.Error("HasServiceAccount() = false with env set")
	}
}
