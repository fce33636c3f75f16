package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/config"
)

const consolePrompt = "You: "

func newChatCmd() *cobra.Command {
	var (
		flags llmFlags
		dump  string
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: `Start an interactive chat session; type "exit" to finish`,
		Long: `Reads one utterance per line, prints "AI: <reply>" for each and keeps
the whole conversation as context. Typing "exit" (or closing input) ends the
session and prints the transcript, as does Ctrl-C. A provider failure is
reported and the session continues.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			format, err := parseDumpFormat(dump)
			if err != nil {
				return err
			}

			cfg := config.Load()
			logger := slog.Default()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			completer, err := flags.completer(ctx, cfg)
			if err != nil {
				return err
			}

			bus, stopEvents, err := startEvents(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer stopEvents()

			s := session.New(completer, session.WithPublisher(bus), session.WithLogger(logger))
			logger.Debug("chat session started", "session_id", s.ID(), "provider", completer.Provider.ModelInfo().Provider)

			console := &session.Console{
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
				Dump:   format,
				Logger: logger,
			}
			if isTerminal(cmd.InOrStdin()) {
				console.Prompt = consolePrompt
			}
			return console.Run(ctx, s)
		},
	}

	flags.register(cmd, "chat model (default depends on the provider)")
	cmd.Flags().StringVar(&dump, "dump", string(session.DumpText), "transcript dump format: text, json or none")
	return cmd
}

func parseDumpFormat(s string) (session.DumpFormat, error) {
	switch f := session.DumpFormat(strings.ToLower(s)); f {
	case session.DumpText, session.DumpJSON, session.DumpNone:
		return f, nil
	default:
		return "", fmt.Errorf("invalid --dump value %q (want text, json or none)", s)
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
