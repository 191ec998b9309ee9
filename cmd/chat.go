package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ekaya-inc/ekaya-askdb/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-askdb/pkg/prompts"
	"github.com/ekaya-inc/ekaya-askdb/pkg/services"
)

const chatHelp = `Type a question, or one of:
  :examples  show sample questions
  :history   show the recorded turns
  :clear     forget the conversation
  :help      show this help
  :quit      leave`

// maxQuestionBytes bounds a single chat line.
const maxQuestionBytes = 64 << 10

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Ask follow-up questions in an interactive session",
	Long: `Start an interactive session. Every question shares one conversation, so
follow-ups like "now only the ones from Boston" refer back to earlier turns.`,
	Args: cobra.NoArgs,
	RunE: runChatCmd,
}

func runChatCmd(cmd *cobra.Command, _ []string) error {
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

	fmt.Fprintf(cmd.OutOrStdout(), "askdb %s connected to %s\n%s\n", cfg.Version, a.dialect.DisplayName(), chatHelp)
	return runChat(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), a.ask, services.NewConversation(cfg.History.Length))
}

// runChat reads questions from in until EOF or :quit. Failed questions are
// reported and the session continues.
func runChat(ctx context.Context, in io.Reader, out io.Writer, askService services.AskService, conv *services.Conversation) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 4096), maxQuestionBytes)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			if err := scanner.Err(); errors.Is(err, bufio.ErrTooLong) {
				return fmt.Errorf("question is longer than %d bytes: %w", maxQuestionBytes, err)
			} else if err != nil {
				return err
			}
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case ":quit", ":exit", ":q":
			return nil
		case ":help":
			fmt.Fprintln(out, chatHelp)
			continue
		case ":examples":
			for i, q := range prompts.SampleQuestions {
				fmt.Fprintf(out, "  %d. %s\n", i+1, q)
			}
			continue
		case ":history":
			printHistory(out, conv)
			continue
		case ":clear":
			conv.Clear()
			fmt.Fprintln(out, "Conversation cleared.")
			continue
		}
		if strings.HasPrefix(line, ":") {
			fmt.Fprintf(out, "Unknown command %s. Type :help for the list.\n", line)
			continue
		}

		err := askOnce(ctx, out, askService, conv, line, false)
		switch {
		case err == nil, errors.Is(err, errNotAnswered):
		case errors.Is(err, apperrors.ErrEmptyQuestion):
		default:
			fmt.Fprintf(out, "Error: %v\n", err)
		}
	}
}

func printHistory(w io.Writer, conv *services.Conversation) {
	turns := conv.Recent(0)
	if len(turns) == 0 {
		fmt.Fprintln(w, "No questions yet.")
		return
	}
	for i, t := range turns {
		fmt.Fprintf(w, "%d. [%s] %s\n", i+1, t.Status, t.Question)
		if t.SQL != "" {
			fmt.Fprintf(w, "   %s\n", strings.ReplaceAll(t.SQL, "\n", " "))
		}
	}
}
