// Package api wires the convo HTTP surface onto a chi router.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matiasleandrokruk/convo/internal/api/handlers"
	apmiddleware "github.com/matiasleandrokruk/convo/internal/api/middleware"
	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/prompt"
	"github.com/matiasleandrokruk/convo/internal/domain/schema"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
)

// Deps are the services behind the routes. Ingestor, Template and Schema
// are optional.
type Deps struct {
	Sessions  *session.Registry
	Completer session.Completer
	Embedder  handlers.Embedder
	Loader    knowledge.Loader
	Ingestor  handlers.Ingestor
	Template  *prompt.ChatTemplate
	Schema    *schema.Schema

	// JWTSecret enables bearer auth on /api/v1 when non-empty.
	JWTSecret []byte
	Logger    *slog.Logger
}

// NewRouter creates the chi router with every route registered.
func NewRouter(deps Deps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// ===== PUBLIC ROUTES =====

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`)) //nolint:errcheck
	})

	// ===== API ROUTES (JWT when configured) =====

	sessionHandler := handlers.NewSessionHandler(deps.Sessions, deps.Logger)
	askHandler := handlers.NewAskHandler(deps.Completer)
	promptHandler := handlers.NewPromptHandler(deps.Template)
	recordHandler := handlers.NewRecordHandler(deps.Schema)
	knowledgeHandler := handlers.NewKnowledgeHandler(deps.Embedder, deps.Loader, deps.Ingestor)

	r.Route("/api/v1", func(r chi.Router) {
		if len(deps.JWTSecret) > 0 {
			r.Use(apmiddleware.Auth(deps.JWTSecret))
		}

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", sessionHandler.List)            // GET /api/v1/sessions
			r.Post("/", sessionHandler.Create)         // POST /api/v1/sessions
			r.Get("/{id}", sessionHandler.Get)         // GET /api/v1/sessions/{id}
			r.Post("/{id}/turns", sessionHandler.Turn) // POST /api/v1/sessions/{id}/turns
			r.Delete("/{id}", sessionHandler.Delete)   // DELETE /api/v1/sessions/{id}
		})

		r.Post("/ask", askHandler.Ask)
		r.Post("/prompts/render", promptHandler.Render)
		r.Post("/records/validate", recordHandler.Validate)
		r.Post("/embeddings", knowledgeHandler.Embed)
		r.Post("/documents", knowledgeHandler.Load)
	})

	return r
}
