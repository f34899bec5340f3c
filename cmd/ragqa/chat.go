package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/ragqa/app"
	"github.com/upb/ragqa/internal/rag"
	"github.com/upb/ragqa/services/qa"
	"github.com/upb/ragqa/utils"
)

const (
	chatPrompt       = "Please enter your question or type 'quit' to exit: "
	chatErrorMessage = "An error occurred. Please try again."
	// historyWindow is how many earlier messages accompany each question.
	historyWindow = 6
)

var errStoreNotLoaded = errors.New("vector store not loaded")

type asker interface {
	Ask(ctx context.Context, req qa.AskRequest) (*qa.AskResponse, error)
}

func newChatCmd(opts *globalOptions) *cobra.Command {
	var logFile string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Ask questions in the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			cfg, err := opts.loadConfig(ctx)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("log-file") || cfg.Observability.LogOutput == "" {
				cfg.Observability.LogOutput = logFile
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}

			deps, err := app.NewDependencies(ctx, cfg, logger)
			if err != nil {
				logger.Error("failed to initialize dependencies", zap.Error(err))
				_ = logger.Sync()
				return err
			}
			defer func() { _ = deps.Close(context.Background()) }()

			out := cmd.OutOrStdout()
			if !deps.Store.Loaded() {
				fmt.Fprintln(out, utils.StoreUnavailableMessage)
				return errStoreNotLoaded
			}
			return runChat(ctx, cmd.InOrStdin(), out, deps.QA, logger)
		},
	}

	cmd.Flags().StringVar(&logFile, "log-file", "app.log", "file that receives the log (overrides LOG_OUTPUT)")
	return cmd
}

// runChat reads questions line by line until "quit" or end of input.
func runChat(ctx context.Context, in io.Reader, out io.Writer, svc asker, logger *zap.Logger) error {
	scanner := bufio.NewScanner(in)
	var history []rag.Message

	for {
		fmt.Fprint(out, chatPrompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		query := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(query, "quit") {
			return nil
		}

		resp, err := svc.Ask(ctx, qa.AskRequest{
			Question: query,
			History:  lastMessages(history, historyWindow),
		})
		if err != nil {
			logger.Error("error processing query", zap.String("question", query), zap.Error(err))
			fmt.Fprintln(out, chatErrorMessage)
			continue
		}

		history = append(history,
			rag.Message{Role: rag.RoleUser, Content: query},
			rag.Message{Role: rag.RoleAssistant, Content: resp.Answer},
		)
		printResult(out, query, resp.Answer)
	}
}

func lastMessages(history []rag.Message, n int) []rag.Message {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

func printResult(out io.Writer, query, answer string) {
	fmt.Fprintf(out, "### Question:\n%s\n### Answer:\n%s\n\n", query, answer)
}
