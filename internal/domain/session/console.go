package session

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

// DumpFormat selects how the transcript is written when the loop ends.
type DumpFormat string

const (
	DumpText DumpFormat = "text"
	DumpJSON DumpFormat = "json"
	DumpNone DumpFormat = "none"
)

// Console reads one utterance per line from In and writes "AI: <reply>" to Out.
// Lines have no length limit.
type Console struct {
	In     io.Reader
	Out    io.Writer
	Prompt string // written before each read when non-empty, e.g. "You: "
	Dump   DumpFormat
	Logger *slog.Logger
}

// Run drives s until the sentinel or end of input, then dumps the transcript.
// A provider failure is reported on Out and the loop keeps reading, so the
// operator can retry or type the sentinel. Cancelling ctx stops the loop even
// while it waits for input; the transcript is still dumped and ctx.Err() is
// returned. A read error is handled the same way.
func (c *Console) Run(ctx context.Context, s *Session) error {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	defer close(done)
	lines := readLines(c.In, done)

	for {
		if err := ctx.Err(); err != nil {
			return c.abort(s, err)
		}
		if c.Prompt != "" {
			fmt.Fprint(c.Out, c.Prompt) //nolint:errcheck
		}

		var (
			in inputLine
			ok bool
		)
		select {
		case <-ctx.Done():
			return c.abort(s, ctx.Err())
		case in, ok = <-lines:
		}
		if !ok {
			logger.Debug("input closed before sentinel", "session_id", s.ID())
			break
		}
		if in.err != nil {
			return c.abort(s, fmt.Errorf("console: read input: %w", in.err))
		}

		reply, terminate, err := s.RunTurn(ctx, in.text)
		if terminate {
			break
		}
		if err != nil {
			if pe, ok := llm.AsProviderError(err); ok {
				fmt.Fprintf(c.Out, "error: %s provider failed (%s): %v\n", pe.Provider, pe.Kind, pe.Err) //nolint:errcheck
				continue
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return c.abort(s, ctxErr)
			}
			return err
		}
		fmt.Fprintf(c.Out, "AI: %s\n", reply) //nolint:errcheck
	}

	return c.dump(s.Transcript())
}

// abort dumps the transcript collected so far and returns cause.
func (c *Console) abort(s *Session, cause error) error {
	if err := c.dump(s.Transcript()); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

type inputLine struct {
	text string
	err  error
}

// readLines sends each line of r, without its line ending, until end of
// input, a read error, or done being closed. The channel is closed at end of
// input; a read error is sent as a final inputLine. A goroutine blocked in
// r.Read outlives done until that read returns.
func readLines(r io.Reader, done <-chan struct{}) <-chan inputLine {
	ch := make(chan inputLine)
	go func() {
		defer close(ch)
		br := bufio.NewReader(r)
		for {
			line, err := br.ReadString('\n')
			if err == nil || line != "" {
				line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
				select {
				case ch <- inputLine{text: line}:
				case <-done:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					select {
					case ch <- inputLine{err: err}:
					case <-done:
					}
				}
				return
			}
		}
	}()
	return ch
}

func (c *Console) dump(turns []Turn) error {
	switch c.Dump {
	case DumpNone:
		return nil
	case DumpJSON:
		enc := json.NewEncoder(c.Out)
		if err := enc.Encode(turns); err != nil {
			return fmt.Errorf("console: dump transcript: %w", err)
		}
		return nil
	case DumpText, "":
		return WriteTranscript(c.Out, turns)
	default:
		return errors.New("console: unknown dump format " + string(c.Dump))
	}
}

// WriteTranscript writes one "role: content" line per turn.
func WriteTranscript(w io.Writer, turns []Turn) error {
	for _, t := range turns {
		if _, err := fmt.Fprintf(w, "%s: %s\n", t.Role, t.Content); err != nil {
			return fmt.Errorf("console: dump transcript: %w", err)
		}
	}
	return nil
}
