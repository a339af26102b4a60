package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/slotbot/slotbot/internal/agent"
	"github.com/slotbot/slotbot/internal/booking"
	"github.com/slotbot/slotbot/internal/calendar"
	"github.com/slotbot/slotbot/internal/google"
)

func newChatCmd() *cobra.Command {
	var (
		account       string
		model         string
		plannerConfig PlannerConfig
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the booking assistant in the terminal",
		Long: `Start an interactive conversation with the booking assistant. The
assistant checks your Google Calendar availability, suggests alternative
slots and books meetings once you confirm.

Requires a Gemini API key in the GEMINI_API_KEY environment variable.

Calendar access uses the local OAuth token cache by default. Set
GOOGLE_SERVICE_ACCOUNT_JSON to use service-account credentials instead,
together with GOOGLE_CALENDAR_ID naming the calendar(s) to operate on
(service accounts have no primary calendar).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(account, model, plannerConfig)
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	cmd.Flags().StringVar(&model, "model", "", "Gemini model name (default: "+agent.DefaultModel+")")
	addPlannerFlags(cmd, &plannerConfig)

	return cmd
}

func runChat(account, model string, plannerConfig PlannerConfig) error {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	plannerOpts, err := plannerConfig.plannerOptions()
	if err != nil {
		return err
	}

	var client *calendar.Client
	if google.HasServiceAccount() {
		client, err = calendar.NewServiceAccountClient(ctx)
	} else {
		client, err = calendar.NewClientForAccount(ctx, account)
	}
	if err != nil {
		return fmt.Errorf("failed to create calendar client: %w", err)
	}

	planner := booking.NewPlanner(client, plannerOpts)
	calendars := parseCommaSeparatedList(os.Getenv("GOOGLE_CALENDAR_ID"))
	dispatcher := agent.NewPlannerDispatcher(planner, calendars...)

	assistant, err := agent.New(ctx, agent.Config{
		APIKey:   apiKey,
		Model:    model,
		Location: planner.Location(),
	}, dispatcher)
	if err != nil {
		return fmt.Errorf("failed to create booking assistant: %w", err)
	}
	defer assistant.Close()

	fmt.Println(assistant.Greeting())
	fmt.Println("\nType 'exit' or 'quit' to leave.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nyou> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			break
		}

		reply, err := assistant.ProcessMessage(ctx, input)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			fmt.Printf("\nslotbot> Sorry, something went wrong: %v\nPlease try again or rephrase.\n", err)
			continue
		}
		fmt.Printf("\nslotbot> %s\n", reply)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading input: %w", err)
	}
	fmt.Println("\nGoodbye!")
	return nil
}
