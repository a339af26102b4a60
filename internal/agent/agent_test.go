package agent

import (
	"context"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDispatcher struct {
	calls []string
}

func (s *scriptedDispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (string, error) {
	s.calls = append(s.calls, name)
	return `{"status":"success","message":"ok"}`, nil
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(context.Background(), Config{}, &scriptedDispatcher{})
	assert.ErrorContains(t, err, "API key")
}

func TestNewRequiresDispatcher(t *testing.T) {
	_, err := New(context.Background(), Config{APIKey: "test-key"}, nil)
	assert.ErrorContains(t, err, "dispatcher")
}

func TestGreetingMentionsTimezone(t *testing.T) {
	loc := time.FixedZone("IST", int((5*time.Hour + 30*time.Minute).Seconds()))
	a, err := New(context.Background(), Config{APIKey: "test-key", Location: loc}, &scriptedDispatcher{})
	require.NoError(t, err)
	defer a.Close()

	assert.Contains(t, a.Greeting(), "IST")
}

func TestTrimHistory(t *testing.T) {
	a, err := New(context.Background(), Config{APIKey: "test-key"}, &scriptedDispatcher{})
	require.NoError(t, err)
	defer a.Close()

	for i := 0; i < 30; i++ {
		a.session.History = append(a.session.History, &genai.Content{
			Role:  "user",
			Parts: []genai.Part{genai.Text("msg")},
		})
	}
	a.trimHistory()

	assert.Len(t, a.session.History, maxHistoryExchanges*2)
}

func TestFunctionCallsExtraction(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []genai.Part{
						genai.Text("let me check"),
						genai.FunctionCall{
							Name: "check_availability",
							Args: map[string]any{"start": "2026-03-02T10:00:00Z"},
						},
					},
				},
			},
		},
	}

	calls := functionCalls(resp)
	require.Len(t, calls, 1)
	assert.Equal(t, "check_availability", calls[0].Name)

	assert.Equal(t, "let me check", responseText(resp))
}

func TestFunctionDeclarationsCoverCapabilities(t *testing.T) {
	decls := functionDeclarations()
	require.Len(t, decls, 3)

	names := make(map[string]*genai.FunctionDeclaration, len(decls))
	for _, d := range decls {
		names[d.Name] = d
	}

	for _, name := range []string{"check_availability", "propose_alternatives", "create_calendar_event"} {
		d, ok := names[name]
		require.True(t, ok, "missing declaration %s", name)
		assert.NotEmpty(t, d.Description)
		assert.Equal(t, genai.TypeObject, d.Parameters.Type)
	}

	assert.Contains(t, names["create_calendar_event"].Parameters.Required, "title")
	assert.Contains(t, names["propose_alternatives"].Parameters.Required, "windowStart")
}
