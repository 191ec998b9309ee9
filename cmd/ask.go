package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-askdb/pkg/models"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

var askJSON bool

// errNotAnswered is returned when the pipeline ran but produced no result, so
// scripts can tell a rejected or failed question from a successful one.
var errNotAnswered = errors.New("question was not answered")

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question and print the result",
	Long: `Generate SQL for one question, validate it and run it against the configured
database. The generated SQL is printed together with the result table, or with
the reason the question could not be answered.

Examples:
  askdb ask "How many orders were placed in the last month?"
  askdb ask --json "Which products have never been ordered?"`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, logger, true)
	if err != nil {
		return err
	}
	defer a.Close()

	conv := services.NewConversation(cfg.History.Length)
	return askOnce(ctx, cmd.OutOrStdout(), a.ask, conv, args[0], askJSON)
}

// askOnce answers question and writes the outcome to w.
func askOnce(ctx context.Context, w io.Writer, askService services.AskService, conv *services.Conversation, question string, asJSON bool) error {
	resp, err := askService.Ask(ctx, conv, question)
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
	} else {
		printAnswer(w, resp)
	}

	if resp.Status != models.TurnStatusSuccess {
		return fmt.Errorf("%w: %s", errNotAnswered, resp.Status)
	}
	return nil
}
