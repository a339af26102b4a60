package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/giantswarm/mcp-oauth/storage"

	"github.com/slotbot/slotbot/internal/instrumentation"
)

// TokenProvider implements google.TokenProvider on top of the mcp-oauth token
// store. It lets Google API clients use tokens acquired through the OAuth
// proxy flow.
type TokenProvider struct {
	store   storage.TokenStore
	metrics *instrumentation.Metrics
}

// NewTokenProvider creates a token provider from an mcp-oauth token store.
func NewTokenProvider(store storage.TokenStore) *TokenProvider {
	return &TokenProvider{store: store}
}

// NewTokenProviderWithMetrics creates a token provider that records token
// lookup results for observability. The metrics may be nil.
func NewTokenProviderWithMetrics(store storage.TokenStore, metrics *instrumentation.Metrics) *TokenProvider {
	return &TokenProvider{store: store, metrics: metrics}
}

// GetTokenForAccount retrieves a Google OAuth token for the given account.
// When the request context carries an authenticated OAuth user, that user's
// email takes precedence over the account argument so that each MCP client
// operates on its own calendar.
func (p *TokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	if user, ok := GetUserFromContext(ctx); ok && user != nil && user.Email != "" {
		if token, err := p.store.GetToken(ctx, user.Email); err == nil {
			p.recordLookup(ctx, instrumentation.OAuthResultSuccess)
			return token, nil
		}
	}

	token, err := p.store.GetToken(ctx, account)
	if err != nil {
		p.recordLookup(ctx, instrumentation.OAuthResultFailure)
		return nil, fmt.Errorf("no Google OAuth token found for account %s, please authenticate through your MCP client", account)
	}
	p.recordLookup(ctx, instrumentation.OAuthResultSuccess)
	return token, nil
}

// HasTokenForAccount reports whether a token exists for the account. This has
// no request context, so it only checks the account name.
func (p *TokenProvider) HasTokenForAccount(account string) bool {
	_, err := p.store.GetToken(context.Background(), account)
	return err == nil
}

// SaveToken stores a Google OAuth token for the given user, typically after a
// refresh.
func (p *TokenProvider) SaveToken(ctx context.Context, userID string, token *oauth2.Token) error {
	return p.store.SaveToken(ctx, userID, token)
}

func (p *TokenProvider) recordLookup(ctx context.Context, result string) {
	if p.metrics != nil {
		p.metrics.RecordOAuthAuth(ctx, result)
	}
}
