package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/prompt"
	"github.com/matiasleandrokruk/convo/internal/domain/schema"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/config"
)

const defaultFetchTimeout = 30 * time.Second

// ===== ask =====

func newAskCmd() *cobra.Command {
	var flags llmFlags

	cmd := &cobra.Command{
		Use:   "ask <prompt>",
		Short: "Send a single prompt and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			completer, err := flags.completer(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			reply, err := session.Ask(cmd.Context(), completer, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), reply) //nolint:errcheck
			return nil
		},
	}

	flags.register(cmd, "chat model (default depends on the provider)")
	return cmd
}

// ===== load =====

func newLoadCmd() *cobra.Command {
	var (
		flags   llmFlags
		dbPath  string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "load <url>",
		Short: "Fetch a web page and print its text and metadata",
		Long: `Fetches the page, keeps its visible text and prints the document count,
the page content and the metadata (source, title, description, language).
With --db the document is also chunked, embedded and stored in SQLite.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cmd.Flags().Changed("db") {
				dbPath = cfg.DBPath
			}
			loader := knowledge.NewWebLoader(timeout)
			out := cmd.OutOrStdout()

			if dbPath == "" {
				doc, err := loader.Load(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				return writeDocument(out, doc)
			}

			db, store, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			embedder, err := flags.embedder(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			ingestor := &knowledge.Ingestor{Loader: loader, Store: store, Embedder: embedder, Logger: slog.Default()}
			res, err := ingestor.Ingest(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := writeDocument(out, res.Document); err != nil {
				return err
			}
			_, err = fmt.Fprintf(out, "stored document %s: %d chunks (%d embedded, %d failed)\n",
				res.Document.ID, len(res.Chunks), res.Embedded, res.Failed)
			return err
		},
	}

	flags.register(cmd, "embedding model used with --db")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite database to store the document in (default $CONVO_DB_PATH)")
	cmd.Flags().DurationVar(&timeout, "timeout", defaultFetchTimeout, "page fetch timeout")
	return cmd
}

func writeDocument(w io.Writer, doc *knowledge.Document) error {
	meta, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}
	_, err = fmt.Fprintf(w, "documents: 1\n%s\nmetadata: %s\n", doc.Content, meta)
	return err
}

// ===== embed =====

func newEmbedCmd() *cobra.Command {
	var flags llmFlags

	cmd := &cobra.Command{
		Use:   "embed <text>",
		Short: "Embed a text and print the vector",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			embedder, err := flags.embedder(cmd.Context(), config.Load())
			if err != nil {
				return err
			}
			vec, err := embedder.EmbedQuery(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatVector(vec)) //nolint:errcheck
			return nil
		},
	}

	flags.register(cmd, "embedding model (default depends on the provider)")
	return cmd
}

func formatVector(vec []float32) string {
	parts := make([]string, len(vec))
	for i, v := range vec {
		parts[i] = strconv.FormatFloat(float64(v), 'g', -1, 32)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// ===== search =====

func newSearchCmd() *cobra.Command {
	var (
		flags  llmFlags
		dbPath string
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find the stored chunks closest to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if !cmd.Flags().Changed("db") {
				dbPath = cfg.DBPath
			}
			if dbPath == "" {
				return errors.New("search needs a document store: pass --db or set CONVO_DB_PATH")
			}

			db, store, err := openStore(dbPath)
			if err != nil {
				return err
			}
			defer db.Close() //nolint:errcheck

			embedder, err := flags.embedder(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			vec, err := embedder.EmbedQuery(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			results, err := store.Search(cmd.Context(), vec, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "%.4f\t%s\t%s\n", r.Score, r.Source, clip(r.Content, 120)) //nolint:errcheck
			}
			return nil
		},
	}

	flags.register(cmd, "embedding model; must match the one used at load time")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite document store (default $CONVO_DB_PATH)")
	cmd.Flags().IntVar(&limit, "limit", 5, "maximum number of results")
	return cmd
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

// ===== prompt =====

func newPromptCmd() *cobra.Command {
	var (
		templatePath string
		vars         []string
		listVars     bool
	)

	cmd := &cobra.Command{
		Use:   "prompt",
		Short: "Render a chat prompt template",
		Long: `Renders a chat prompt template (YAML, see --template) with --var values
and prints the resulting messages. Without --template the built-in
"domain-expert" template is used; it needs the variables domain and topic.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tmpl := prompt.Default()
			if templatePath != "" {
				var err error
				if tmpl, err = prompt.LoadFile(templatePath); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			if listVars {
				for _, v := range tmpl.InputVariables() {
					fmt.Fprintln(out, v) //nolint:errcheck
				}
				return nil
			}

			values, err := parseVars(vars)
			if err != nil {
				return err
			}
			msgs, err := tmpl.Render(values)
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, prompt.FormatMessages(msgs))
			return err
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&templatePath, "template", "", "YAML template file (default: built-in domain-expert template)")
	flags.StringArrayVar(&vars, "var", nil, "template variable as name=value (repeatable)")
	flags.BoolVar(&listVars, "list-vars", false, "print the template's input variables and exit")
	return cmd
}

func parseVars(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, value, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q (want name=value)", p)
		}
		out[name] = value
	}
	return out, nil
}

// ===== validate =====

func newValidateCmd() *cobra.Command {
	var (
		schemaPath string
		record     string
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a JSON record against a schema",
		Long: `Validates --record (inline JSON, @file, or - for stdin) against the schema
in --schema and prints the validated object. Without --schema the built-in
Student schema (name: string, required) is used.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s := schema.Default()
			if schemaPath != "" {
				var err error
				if s, err = schema.LoadFile(schemaPath); err != nil {
					return err
				}
			}

			data, err := readRecord(cmd.InOrStdin(), record)
			if err != nil {
				return err
			}
			rec, err := schema.DecodeRecord(data)
			if err != nil {
				return err
			}
			obj, err := s.Validate(rec)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(obj)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&schemaPath, "schema", "", "YAML schema file (default: built-in Student schema)")
	flags.StringVar(&record, "record", "", "record as JSON, @file or - for stdin")
	_ = cmd.MarkFlagRequired("record")
	return cmd
}

func readRecord(stdin io.Reader, arg string) ([]byte, error) {
	switch {
	case arg == "-":
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read record from stdin: %w", err)
		}
		return data, nil
	case strings.HasPrefix(arg, "@"):
		data, err := os.ReadFile(arg[1:])
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		return data, nil
	default:
		return []byte(arg), nil
	}
}
