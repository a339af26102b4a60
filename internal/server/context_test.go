package server

import (
	"context"
	"fmt"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/slotbot/slotbot/internal/booking"
	"github.com/slotbot/slotbot/internal/scheduling"
)

type fakeTokenProvider struct {
	tokens map[string]*oauth2.Token
}

func (p *fakeTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	if token, ok := p.tokens[account]; ok {
		return token, nil
	}
	return nil, fmt.Errorf("no token for account %s", account)
}

func (p *fakeTokenProvider) HasTokenForAccount(account string) bool {
	_, ok := p.tokens[account]
	return ok
}

func TestNewServerContextWithProviderRequiresProvider(t *testing.T) {
	_, err := NewServerContextWithProvider(context.Background(), nil)
	if err == nil {
		t.Fatal("expected error for nil token provider")
	}
}

func TestHasTokenForAccount(t *testing.T) {
	provider := &fakeTokenProvider{tokens: map[string]*oauth2.Token{
		"work": {AccessToken: "tok"},
	}}
	sc, err := NewServerContextWithProvider(context.Background(), provider)
	if err != nil {
		t.Fatalf("NewServerContextWithProvider() error: %v", err)
	}
	defer func() { _ = sc.Shutdown() }()

	if !sc.HasTokenForAccount("work") {
		t.Error("expected token for 'work' account")
	}
	if sc.HasTokenForAccount("personal") {
		t.Error("expected no token for 'personal' account")
	}
}

func TestCalendarClientForAccountWithoutToken(t *testing.T) {
	provider := &fakeTokenProvider{}
	sc, err := NewServerContextWithProvider(context.Background(), provider)
	if err != nil {
		t.Fatalf("NewServerContextWithProvider() error: %v", err)
	}
	defer func() { _ = sc.Shutdown() }()

	if client := sc.CalendarClientForAccount("default"); client != nil {
		t.Errorf("expected nil client without a token, got %v", client)
	}
}

func TestPlannerForAccountWithoutToken(t *testing.T) {
	provider := &fakeTokenProvider{}
	sc, err := NewServerContextWithProvider(context.Background(), provider)
	if err != nil {
		t.Fatalf("NewServerContextWithProvider() error: %v", err)
	}
	defer func() { _ = sc.Shutdown() }()

	if _, err := sc.PlannerForAccount("default"); err == nil {
		t.Error("expected error creating planner without a calendar client")
	}
}

func TestSetPlannerOptionsResetsCache(t *testing.T) {
	provider := &fakeTokenProvider{tokens: map[string]*oauth2.Token{
		"default": {AccessToken: "tok", Expiry: time.Now().Add(time.Hour)},
	}}
	sc, err := NewServerContextWithProvider(context.Background(), provider)
	if err != nil {
		t.Fatalf("NewServerContextWithProvider() error: %v", err)
	}
	defer func() { _ = sc.Shutdown() }()

	window := scheduling.ClockRange{From: 9 * time.Hour, To: 18 * time.Hour}
	sc.SetPlannerOptions(booking.Options{BusinessHours: &window})

	opts := sc.PlannerOptions()
	if opts.BusinessHours == nil {
		t.Fatal("expected business hours to survive the round trip")
	}
}

func TestShutdownMarksContext(t *testing.T) {
	sc, err := NewServerContext(context.Background())
	if err != nil {
		t.Fatalf("NewServerContext() error: %v", err)
	}

	if sc.IsShutdown() {
		t.Error("context should not report shutdown before Shutdown()")
	}
	if err := sc.Shutdown(); err != nil {
		t.Fatalf("Shutdown() error: %v", err)
	}
	if !sc.IsShutdown() {
		t.Error("context should report shutdown after Shutdown()")
	}
}
