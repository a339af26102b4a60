package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/slotbot/slotbot/internal/instrumentation"
)

const (
	// DefaultModel is the Gemini model used when the config names none.
	DefaultModel = "gemini-2.0-flash"

	// maxToolRounds bounds tool-calling rounds per user message.
	maxToolRounds = 5

	// maxHistoryExchanges bounds how many past user/model exchanges stay
	// in the prompt.
	maxHistoryExchanges = 10
)

// Config configures the booking agent.
type Config struct {
	// APIKey authenticates against the Gemini API. Required.
	APIKey string

	// Model overrides DefaultModel.
	Model string

	// Location is the timezone availability is discussed in. Defaults
	// to UTC.
	Location *time.Location

	// Metrics, when set, records request and tool-call counters.
	Metrics *instrumentation.Metrics
}

// Agent is a conversational booking assistant backed by Gemini.
type Agent struct {
	client     *genai.Client
	model      *genai.GenerativeModel
	modelName  string
	session    *genai.ChatSession
	dispatcher Dispatcher
	metrics    *instrumentation.Metrics
	location   *time.Location
}

// New creates an agent that dispatches tool calls through the given
// dispatcher.
func New(ctx context.Context, cfg Config, dispatcher Dispatcher) (*Agent, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = DefaultModel
	}
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(0.1)
	model.Tools = []*genai.Tool{{FunctionDeclarations: functionDeclarations()}}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt(loc))},
	}

	return &Agent{
		client:     client,
		model:      model,
		modelName:  modelName,
		session:    model.StartChat(),
		dispatcher: dispatcher,
		metrics:    cfg.Metrics,
		location:   loc,
	}, nil
}

// Close releases the underlying API client.
func (a *Agent) Close() error {
	return a.client.Close()
}

// Greeting returns the opening message for a new conversation.
func (a *Agent) Greeting() string {
	return fmt.Sprintf(`Hi! I'm your calendar booking assistant. I can:

- Check your calendar availability for a date or time
- Suggest alternative slots when your preferred time is taken
- Book meetings once you confirm the details

All times are in %s. Tell me what you'd like to schedule, for example:
- "Book a team meeting tomorrow at 14:00"
- "Am I free on Friday between 9 and 12?"
- "Find me 30 minutes with alice@example.com next week"`, a.location)
}

// ProcessMessage sends one user message through the tool-calling loop and
// returns the model's final text answer.
func (a *Agent) ProcessMessage(ctx context.Context, message string) (string, error) {
	a.trimHistory()

	resp, err := a.send(ctx, genai.Text(message))
	if err != nil {
		return "", err
	}

	for round := 0; round < maxToolRounds; round++ {
		calls := functionCalls(resp)
		if len(calls) == 0 {
			break
		}

		replies := make([]genai.Part, 0, len(calls))
		for _, call := range calls {
			if a.metrics != nil {
				a.metrics.RecordLLMToolCall(ctx, call.Name)
			}
			result, err := a.dispatcher.Dispatch(ctx, call.Name, call.Args)
			if err != nil {
				result = fmt.Sprintf(`{"status":"error","message":%q}`, err.Error())
			}
			replies = append(replies, genai.FunctionResponse{
				Name:     call.Name,
				Response: map[string]any{"result": result},
			})
		}

		resp, err = a.send(ctx, replies...)
		if err != nil {
			return "", err
		}
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("model returned no text answer")
	}
	return text, nil
}

func (a *Agent) send(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	start := time.Now()
	resp, err := a.session.SendMessage(ctx, parts...)
	if a.metrics != nil {
		status := instrumentation.StatusSuccess
		if err != nil {
			status = instrumentation.StatusError
		}
		a.metrics.RecordLLMRequest(ctx, a.modelName, status, time.Since(start))
	}
	if err != nil {
		return nil, fmt.Errorf("gemini request failed: %w", err)
	}
	return resp, nil
}

// trimHistory drops the oldest exchanges once the session grows past the
// history bound. Tool-call rounds count toward the bound like any other
// content.
func (a *Agent) trimHistory() {
	max := maxHistoryExchanges * 2
	if len(a.session.History) > max {
		a.session.History = a.session.History[len(a.session.History)-max:]
	}
}

func functionCalls(resp *genai.GenerateContentResponse) []genai.FunctionCall {
	var calls []genai.FunctionCall
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if call, ok := part.(genai.FunctionCall); ok {
				calls = append(calls, call)
			}
		}
	}
	return calls
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

func systemPrompt(loc *time.Location) string {
	return fmt.Sprintf(`You are a helpful calendar booking assistant. Your job is to help users book appointments in their Google Calendar through natural conversation.

Capabilities:
1. Check calendar availability for a requested time using the check_availability tool.
2. Find open slots in a window using the propose_alternatives tool.
3. Create calendar events once the user confirms using the create_calendar_event tool.

Guidelines:
- Be friendly and professional.
- All times are in %s; mention the timezone when discussing times.
- When a user asks to book a meeting, first check availability for their requested time.
- If the requested time is taken, suggest the alternatives returned by the tools.
- Confirm title, time, and duration with the user before creating an event.
- Ask for clarification when booking details are missing.
- Default meeting duration is 60 minutes unless the user says otherwise.
- Pass timestamps to tools in RFC 3339 format, for example 2026-03-02T14:00:00Z.
- Today's date is %s; resolve relative dates like "tomorrow" against it.

If the user's request is unclear, ask follow-up questions instead of guessing.`,
		loc, time.Now().In(loc).Format("Monday, 2006-01-02"))
}

func functionDeclarations() []*genai.FunctionDeclaration {
	return []*genai.FunctionDeclaration{
		{
			Name:        "check_availability",
			Description: "Check whether a specific time slot is free on the calendar. Returns the conflict and ranked alternative slots when it is not.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"start": {
						Type:        genai.TypeString,
						Description: "Desired start time in RFC 3339 format",
					},
					"durationMinutes": {
						Type:        genai.TypeNumber,
						Description: "Meeting duration in minutes (default 60)",
					},
				},
				Required: []string{"start"},
			},
		},
		{
			Name:        "propose_alternatives",
			Description: "Find ranked free slots for a meeting inside a time window.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"windowStart": {
						Type:        genai.TypeString,
						Description: "Start of the search window in RFC 3339 format",
					},
					"windowEnd": {
						Type:        genai.TypeString,
						Description: "End of the search window in RFC 3339 format",
					},
					"durationMinutes": {
						Type:        genai.TypeNumber,
						Description: "Meeting duration in minutes (default 60)",
					},
					"desiredStart": {
						Type:        genai.TypeString,
						Description: "Preferred start time in RFC 3339 format; slots near it rank first",
					},
				},
				Required: []string{"windowStart", "windowEnd"},
			},
		},
		{
			Name:        "create_calendar_event",
			Description: "Book a meeting on the calendar. Fails with alternatives when the slot is no longer free.",
			Parameters: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title": {
						Type:        genai.TypeString,
						Description: "Event title",
					},
					"start": {
						Type:        genai.TypeString,
						Description: "Event start time in RFC 3339 format",
					},
					"durationMinutes": {
						Type:        genai.TypeNumber,
						Description: "Meeting duration in minutes (default 60)",
					},
					"description": {
						Type:        genai.TypeString,
						Description: "Event description",
					},
					"attendees": {
						Type:        genai.TypeArray,
						Description: "Attendee email addresses to invite",
						Items:       &genai.Schema{Type: genai.TypeString},
					},
				},
				Required: []string{"title", "start"},
			},
		},
	}
}
