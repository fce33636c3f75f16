package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/convo/internal/api"
	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/prompt"
	"github.com/matiasleandrokruk/convo/internal/domain/schema"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/config"
	"github.com/matiasleandrokruk/convo/internal/mcpserver"
	"github.com/matiasleandrokruk/convo/internal/server"
	"github.com/matiasleandrokruk/convo/internal/version"
	"github.com/matiasleandrokruk/convo/pkg/auth"
)

// ===== serve =====

func newServeCmd() *cobra.Command {
	var (
		flags        llmFlags
		host         string
		port         int
		templatePath string
		schemaPath   string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			logger := slog.Default()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			completer, err := flags.completer(ctx, cfg)
			if err != nil {
				return err
			}
			embedder, err := flags.embedder(ctx, cfg)
			if err != nil {
				return err
			}
			tmpl, sch, err := loadOverrides(templatePath, schemaPath)
			if err != nil {
				return err
			}

			loader := knowledge.NewWebLoader(defaultFetchTimeout)
			deps := api.Deps{
				Completer: completer,
				Embedder:  embedder,
				Loader:    loader,
				Template:  tmpl,
				Schema:    sch,
				JWTSecret: []byte(cfg.JWTSecret),
				Logger:    logger,
			}

			var closers []io.Closer
			closeAll := func() {
				for _, c := range closers {
					c.Close() //nolint:errcheck
				}
			}

			if cfg.DBPath != "" {
				db, store, err := openStore(cfg.DBPath)
				if err != nil {
					return err
				}
				closers = append(closers, db)
				deps.Ingestor = &knowledge.Ingestor{Loader: loader, Store: store, Embedder: embedder, Logger: logger}
			}

			bus, stopEvents, err := startEvents(ctx, cfg, logger)
			if err != nil {
				closeAll()
				return err
			}
			closers = append([]io.Closer{closerFunc(stopEvents)}, closers...)

			deps.Sessions = session.NewRegistry(func() *session.Session {
				return session.New(completer, session.WithPublisher(bus), session.WithLogger(logger))
			})

			if len(deps.JWTSecret) == 0 {
				logger.Warn("JWT_SECRET not set, /api/v1 is unauthenticated")
			}

			srvCfg := server.DefaultConfig()
			srvCfg.Host, srvCfg.Port = cfg.HTTPHost, cfg.HTTPPort
			if cmd.Flags().Changed("host") {
				srvCfg.Host = host
			}
			if cmd.Flags().Changed("port") {
				srvCfg.Port = port
			}

			return server.NewServer(api.NewRouter(deps), srvCfg, logger, closers...).Run(ctx)
		},
	}

	flags.register(cmd, "")
	cmd.Flags().StringVar(&host, "host", "", "listen host (default $HTTP_HOST)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (default $HTTP_PORT)")
	cmd.Flags().StringVar(&templatePath, "template", "", "YAML prompt template served by /prompts/render")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML record schema served by /records/validate")
	return cmd
}

// loadOverrides reads the optional template and schema files. Nil results
// mean the built-in defaults.
func loadOverrides(templatePath, schemaPath string) (*prompt.ChatTemplate, *schema.Schema, error) {
	var (
		tmpl *prompt.ChatTemplate
		sch  *schema.Schema
		err  error
	)
	if templatePath != "" {
		if tmpl, err = prompt.LoadFile(templatePath); err != nil {
			return nil, nil, err
		}
	}
	if schemaPath != "" {
		if sch, err = schema.LoadFile(schemaPath); err != nil {
			return nil, nil, err
		}
	}
	return tmpl, sch, nil
}

// ===== mcp =====

func newMCPCmd() *cobra.Command {
	var (
		flags        llmFlags
		templatePath string
		schemaPath   string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Run an MCP server on stdin/stdout",
		Long: `Exposes ask, embed, render_prompt, validate_record and load_page as MCP
tools over the stdio transport. Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			completer, err := flags.completer(ctx, cfg)
			if err != nil {
				return err
			}
			embedder, err := flags.embedder(ctx, cfg)
			if err != nil {
				return err
			}
			tmpl, sch, err := loadOverrides(templatePath, schemaPath)
			if err != nil {
				return err
			}

			return mcpserver.Serve(ctx, mcpserver.Deps{
				Completer: completer,
				Embedder:  embedder,
				Loader:    knowledge.NewWebLoader(defaultFetchTimeout),
				Template:  tmpl,
				Schema:    sch,
				Logger:    slog.Default(),
			})
		},
	}

	flags.register(cmd, "")
	cmd.Flags().StringVar(&templatePath, "template", "", "YAML prompt template for render_prompt")
	cmd.Flags().StringVar(&schemaPath, "schema", "", "YAML record schema for validate_record")
	return cmd
}

// ===== token =====

func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an API bearer token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			token, err := auth.GenerateToken([]byte(config.Load().JWTSecret), subject, ttl)
			if errors.Is(err, auth.ErrNoSecret) {
				return fmt.Errorf("JWT_SECRET is not set: %w", err)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token) //nolint:errcheck
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "token subject; sessions are isolated per subject")
	cmd.Flags().DurationVar(&ttl, "ttl", auth.DefaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}

// ===== version =====

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String()) //nolint:errcheck
		},
	}
}
