package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

// Sentinel is the utterance that ends a session. Matching is exact and case-sensitive.
const Sentinel = "exit"

// Event topics published on the optional Publisher.
const (
	TopicTurnAppended = "session.turn.appended"
	TopicTerminated   = "session.terminated"
)

// ErrTerminated is returned by RunTurn once the sentinel has been received.
var ErrTerminated = errors.New("session terminated")

// Publisher receives session events. *eventbus.Bus satisfies it.
type Publisher interface {
	Publish(topic string, payload any)
}

// TurnEvent is the payload of TopicTurnAppended.
type TurnEvent struct {
	SessionID string `json:"session_id"`
	Index     int    `json:"index"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
}

// TerminatedEvent is the payload of TopicTerminated.
type TerminatedEvent struct {
	SessionID string `json:"session_id"`
	Turns     int    `json:"turns"`
}

// Session owns one transcript and drives the append / complete / append cycle.
// RunTurn calls are serialized so at most one completion is in flight.
type Session struct {
	id        string
	createdAt time.Time
	completer Completer
	publisher Publisher
	logger    *slog.Logger

	mu         sync.Mutex
	transcript Transcript
	terminated bool
}

// Option configures a Session.
type Option func(*Session)

// WithID overrides the generated session id.
func WithID(id string) Option { return func(s *Session) { s.id = id } }

// WithPublisher attaches an event publisher.
func WithPublisher(p Publisher) Option { return func(s *Session) { s.publisher = p } }

// WithLogger sets the logger; slog.Default() is used otherwise.
func WithLogger(l *slog.Logger) Option { return func(s *Session) { s.logger = l } }

// New creates a session with an empty transcript.
func New(c Completer, opts ...Option) *Session {
	s := &Session{
		id:        uuid.Must(uuid.NewV7()).String(),
		createdAt: time.Now().UTC(),
		completer: c,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// CreatedAt returns the creation time (UTC).
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Transcript returns a copy of the turns so far.
func (s *Session) Transcript() []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript.Turns()
}

// Terminated reports whether the sentinel has been received.
func (s *Session) Terminated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// RunTurn processes one utterance.
//
// The utterance is always appended as a user turn first. The sentinel then
// ends the session without a provider call and stays in the transcript.
// Any other utterance (the empty string included) sends the full transcript
// to the completer; on success the reply is appended and returned, on failure
// the user turn stays and no assistant turn is added.
//
// Provider failures are returned as *llm.ProviderError. Context cancellation
// is returned unchanged.
func (s *Session) RunTurn(ctx context.Context, utterance string) (reply string, terminate bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.terminated {
		return "", true, ErrTerminated
	}

	s.appendLocked(Turn{Role: RoleUser, Content: utterance})

	if utterance == Sentinel {
		s.terminated = true
		s.logger.Debug("session terminated", "session_id", s.id, "turns", s.transcript.Len())
		s.publish(TopicTerminated, TerminatedEvent{SessionID: s.id, Turns: s.transcript.Len()})
		return "", true, nil
	}

	started := time.Now()
	reply, err = s.completer.Complete(ctx, s.transcript.Turns())
	if err != nil {
		err = normalizeError(ctx, err)
		s.logger.Warn("completion failed", "session_id", s.id, "turn", s.transcript.Len()-1, "error", err)
		return "", false, err
	}

	s.appendLocked(Turn{Role: RoleAssistant, Content: reply})
	s.logger.Debug("turn completed",
		"session_id", s.id,
		"turns", s.transcript.Len(),
		"latency_ms", time.Since(started).Milliseconds(),
	)
	return reply, false, nil
}

func (s *Session) appendLocked(turn Turn) {
	idx := s.transcript.Append(turn)
	s.publish(TopicTurnAppended, TurnEvent{SessionID: s.id, Index: idx, Role: turn.Role, Content: turn.Content})
}

func (s *Session) publish(topic string, payload any) {
	if s.publisher != nil {
		s.publisher.Publish(topic, payload)
	}
}

// normalizeError keeps context errors and ProviderErrors as they are and
// wraps anything else so callers can rely on errors.As(*llm.ProviderError).
func normalizeError(ctx context.Context, err error) error {
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return err
	}
	if _, ok := llm.AsProviderError(err); ok {
		return err
	}
	return &llm.ProviderError{Provider: "completer", Kind: llm.KindNetwork, Err: err}
}
