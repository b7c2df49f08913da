package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Odushhh/tech-support-chatbot/internal/adapters/driving/api"
	"github.com/Odushhh/tech-support-chatbot/internal/core/domain"
)

var askJSON bool

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a support question",
	Long: `Answers a technical support question from GitHub issues and StackOverflow.
The answer cites the issues and questions it is based on. When nothing
relevant is found a fallback message is printed instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output the answer in the POST /query response format")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if app == nil || app.Answer == nil {
		return errors.New("answer service not configured")
	}

	answer, err := app.Answer.Ask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		if errors.Is(err, domain.ErrQueryTooShort) {
			return errors.New("question is too short, add the error message or more detail")
		}
		return fmt.Errorf("ask failed: %w", err)
	}

	if askJSON {
		data, err := json.MarshalIndent(api.NewQueryResponse(answer), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	resp := answer.Response
	cmd.Println(resp.Text)
	if len(resp.Citations) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, c := range resp.Citations {
			cmd.Printf("  [%d] %s (%s)\n", i+1, c.Title, c.Source.Label())
			if c.URL != "" {
				cmd.Printf("      %s\n", c.URL)
			}
		}
	}
	if resp.PartialCoverage {
		cmd.Println()
		cmd.Println("Note: some sources were unavailable; results may be incomplete.")
	}
	cmd.Println()
	cmd.Printf("Confidence %.2f", resp.Confidence)
	if answer.Cached {
		cmd.Print(", cached")
	}
	if answer.InteractionID != "" {
		cmd.Printf(", query id %s", answer.InteractionID)
	}
	cmd.Println()
	return nil
}
