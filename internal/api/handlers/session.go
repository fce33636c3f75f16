package handlers

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matiasleandrokruk/convo/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
)

// SessionHandler exposes conversational sessions over HTTP. When the API
// runs with auth, a session is only visible to the subject that created it.
type SessionHandler struct {
	registry *session.Registry
	logger   *slog.Logger

	mu     sync.Mutex
	owners map[string]string
}

// NewSessionHandler creates a SessionHandler over registry.
func NewSessionHandler(registry *session.Registry, logger *slog.Logger) *SessionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{registry: registry, logger: logger, owners: make(map[string]string)}
}

type turnRequest struct {
	Utterance *string `json:"utterance"`
}

type turnResponse struct {
	Reply      string `json:"reply,omitempty"`
	Terminated bool   `json:"terminated"`
}

type sessionResponse struct {
	ID         string         `json:"id"`
	CreatedAt  string         `json:"created_at"`
	Terminated bool           `json:"terminated"`
	Transcript []session.Turn `json:"transcript"`
}

type sessionSummary struct {
	ID         string `json:"id"`
	CreatedAt  string `json:"created_at"`
	Terminated bool   `json:"terminated"`
	Turns      int    `json:"turns"`
}

// List handles GET /api/v1/sessions: the caller's live sessions, oldest first.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	subject := ctxkeys.SubjectFrom(r.Context())

	out := []sessionSummary{}
	for _, id := range h.registry.IDs() {
		h.mu.Lock()
		owner, known := h.owners[id]
		h.mu.Unlock()
		if !known || owner != subject {
			continue
		}
		s, err := h.registry.Get(id)
		if err != nil {
			continue // deleted since IDs was taken
		}
		out = append(out, sessionSummary{
			ID:         s.ID(),
			CreatedAt:  s.CreatedAt().UTC().Format(time.RFC3339),
			Terminated: s.Terminated(),
			Turns:      len(s.Transcript()),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": out})
}

// Create handles POST /api/v1/sessions.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.registry.Create()

	h.mu.Lock()
	h.owners[s.ID()] = ctxkeys.SubjectFrom(r.Context())
	h.mu.Unlock()

	h.logger.Debug("session created", "session_id", s.ID(), "subject", ctxkeys.SubjectFrom(r.Context()))
	writeJSON(w, http.StatusCreated, map[string]string{"id": s.ID()})
}

// Get handles GET /api/v1/sessions/{id}.
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	transcript := s.Transcript()
	if transcript == nil {
		transcript = []session.Turn{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		ID:         s.ID(),
		CreatedAt:  s.CreatedAt().UTC().Format(time.RFC3339),
		Terminated: s.Terminated(),
		Transcript: transcript,
	})
}

// Turn handles POST /api/v1/sessions/{id}/turns.
func (h *SessionHandler) Turn(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var req turnRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Utterance == nil {
		writeError(w, http.StatusBadRequest, "utterance is required")
		return
	}

	reply, terminate, err := s.RunTurn(r.Context(), *req.Utterance)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, turnResponse{Reply: reply, Terminated: terminate})
}

// Delete handles DELETE /api/v1/sessions/{id}.
func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	s, err := h.lookup(r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if err := h.registry.Delete(s.ID()); err != nil {
		writeDomainError(w, err)
		return
	}

	h.mu.Lock()
	delete(h.owners, s.ID())
	h.mu.Unlock()

	w.WriteHeader(http.StatusNoContent)
}

// lookup resolves {id} and hides sessions owned by another subject.
func (h *SessionHandler) lookup(r *http.Request) (*session.Session, error) {
	id := chi.URLParam(r, "id")
	s, err := h.registry.Get(id)
	if err != nil {
		return nil, err
	}

	h.mu.Lock()
	owner := h.owners[id]
	h.mu.Unlock()
	if owner != ctxkeys.SubjectFrom(r.Context()) {
		return nil, session.ErrNotFound
	}
	return s, nil
}
