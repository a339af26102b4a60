package server

import (
	"context"
	"fmt"
	"sync"

	"github.com/slotbot/slotbot/internal/booking"
	"github.com/slotbot/slotbot/internal/calendar"
	"github.com/slotbot/slotbot/internal/google"
	"github.com/slotbot/slotbot/internal/instrumentation"
)

// ServerContext holds the shared state for the MCP server.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	tokenProvider   google.TokenProvider
	calendarClients map[string]*calendar.Client // account name to Calendar client
	planners        map[string]*booking.Planner // account name to planner
	plannerOpts     booking.Options

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context that reads tokens from disk.
// Used by the stdio transport and the chat command.
func NewServerContext(ctx context.Context) (*ServerContext, error) {
	return NewServerContextWithProvider(ctx, google.NewFileTokenProvider())
}

// NewServerContextWithProvider creates a server context with an explicit token
// provider. The HTTP transport passes the OAuth-backed provider here so that
// Google API clients use tokens from OAuth authentication.
func NewServerContextWithProvider(ctx context.Context, provider google.TokenProvider) (*ServerContext, error) {
	if provider == nil {
		return nil, fmt.Errorf("token provider is required")
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	return &ServerContext{
		ctx:             shutdownCtx,
		cancel:          cancel,
		tokenProvider:   provider,
		calendarClients: make(map[string]*calendar.Client),
		planners:        make(map[string]*booking.Planner),
	}, nil
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// TokenProvider returns the token provider used for Google API clients.
func (sc *ServerContext) TokenProvider() google.TokenProvider {
	return sc.tokenProvider
}

// HasTokenForAccount reports whether a Google token is available for the account.
func (sc *ServerContext) HasTokenForAccount(account string) bool {
	return sc.tokenProvider.HasTokenForAccount(account)
}

// CalendarClientForAccount returns the Calendar client for a specific account.
// Creates and caches the client if it doesn't exist yet.
// Returns nil if the account has no token.
func (sc *ServerContext) CalendarClientForAccount(account string) *calendar.Client {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if client, ok := sc.calendarClients[account]; ok {
		return client
	}

	if !sc.tokenProvider.HasTokenForAccount(account) {
		return nil
	}

	client, err := calendar.NewClientForAccountWithProvider(sc.ctx, account, sc.tokenProvider)
	if err != nil {
		return nil
	}

	sc.calendarClients[account] = client
	return client
}

// CalendarClient returns the Calendar client for the default account.
func (sc *ServerContext) CalendarClient() *calendar.Client {
	return sc.CalendarClientForAccount("default")
}

// SetCalendarClientForAccount sets the Calendar client for a specific account.
// Any cached planner for the account is discarded so it picks up the new client.
func (sc *ServerContext) SetCalendarClientForAccount(account string, client *calendar.Client) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.calendarClients[account] = client
	delete(sc.planners, account)
}

// SetPlannerOptions configures the scheduling planner used for availability
// checks and bookings. Must be called before the first tool invocation;
// cached planners are discarded.
func (sc *ServerContext) SetPlannerOptions(opts booking.Options) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.plannerOpts = opts
	sc.planners = make(map[string]*booking.Planner)
}

// PlannerOptions returns the configured planner options.
func (sc *ServerContext) PlannerOptions() booking.Options {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.plannerOpts
}

// PlannerForAccount returns the booking planner for a specific account,
// creating it over the account's Calendar client on first use.
// Returns an error if the account has no authenticated Calendar client.
func (sc *ServerContext) PlannerForAccount(account string) (*booking.Planner, error) {
	sc.mu.Lock()
	if planner, ok := sc.planners[account]; ok {
		sc.mu.Unlock()
		return planner, nil
	}
	sc.mu.Unlock()

	client := sc.CalendarClientForAccount(account)
	if client == nil {
		return nil, fmt.Errorf("no Calendar client for account %s", account)
	}

	sc.mu.Lock()
	defer sc.mu.Unlock()
	planner := booking.NewPlanner(client, sc.plannerOpts)
	sc.planners[account] = planner
	return planner, nil
}

// SetMetrics sets the metrics recorder for tool instrumentation.
func (sc *ServerContext) SetMetrics(m *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = m
}

// Metrics returns the metrics recorder, or nil when instrumentation is disabled.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the audit logger for tool instrumentation.
func (sc *ServerContext) SetAuditLogger(l *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = l
}

// AuditLogger returns the audit logger, or nil when audit logging is disabled.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown shuts down the server context.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
