// Package handlers implements the convo HTTP endpoints.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/matiasleandrokruk/convo/internal/domain/knowledge"
	"github.com/matiasleandrokruk/convo/internal/domain/prompt"
	"github.com/matiasleandrokruk/convo/internal/domain/schema"
	"github.com/matiasleandrokruk/convo/internal/domain/session"
	"github.com/matiasleandrokruk/convo/internal/infra/llm"
)

const maxBodyBytes = 1 << 20

// writeJSON writes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{"error": message})
}

// decodeBody decodes a JSON request body into v. Unknown fields and
// trailing data are rejected.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	if dec.More() {
		return errors.New("invalid request body: trailing data")
	}
	return nil
}

// writeDomainError maps domain and provider errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, err error) {
	var (
		verr    *schema.ValidationError
		missing *prompt.MissingVariableError
		syntax  *prompt.SyntaxError
	)

	if pe, ok := llm.AsProviderError(err); ok {
		status := http.StatusBadGateway
		if pe.Kind == llm.KindRateLimit {
			status = http.StatusTooManyRequests
		}
		writeJSON(w, status, map[string]string{
			"error":    err.Error(),
			"provider": pe.Provider,
			"kind":     string(pe.Kind),
		})
		return
	}

	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "details": verr.Errors})
	case errors.As(err, &missing):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": err.Error(), "missing": missing.Names})
	case errors.As(err, &syntax):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, knowledge.ErrDocumentNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrTerminated):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
