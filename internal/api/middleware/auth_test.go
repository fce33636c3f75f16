package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/matiasleandrokruk/convo/internal/api/ctxkeys"
	"github.com/matiasleandrokruk/convo/internal/api/middleware"
	pkgauth "github.com/matiasleandrokruk/convo/pkg/auth"
)

var secret = []byte("test-secret-key-32-chars-min!!!")

// ===== HELPER =====

// nextHandler records whether it ran and the subject it saw.
func nextHandler(called *bool, subject *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*called = true
		*subject = ctxkeys.SubjectFrom(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, header string) (code int, called bool, subject string) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/sessions", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	middleware.Auth(secret)(nextHandler(&called, &subject)).ServeHTTP(rr, req)
	return rr.Code, called, subject
}

// ===== TESTS =====

func TestAuth_ValidToken(t *testing.T) {
	t.Parallel()

	token, err := pkgauth.GenerateToken(secret, "ops-bot", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	code, called, subject := serve(t, "Bearer "+token)
	if code != http.StatusOK || !called {
		t.Fatalf("code=%d called=%v; want 200 and next called", code, called)
	}
	if subject != "ops-bot" {
		t.Errorf("subject in context = %q; want ops-bot", subject)
	}
}

func TestAuth_Rejects(t *testing.T) {
	t.Parallel()

	other, err := pkgauth.GenerateToken([]byte("other-secret"), "x", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"basic scheme", "Basic dXNlcjpwYXNz"},
		{"lowercase scheme", "bearer abc"},
		{"empty token", "Bearer   "},
		{"garbage token", "Bearer not-a-jwt"},
		{"wrong secret", "Bearer " + other},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			code, called, _ := serve(t, tc.header)
			if code != http.StatusUnauthorized {
				t.Errorf("code = %d; want 401", code)
			}
			if called {
				t.Error("next handler called for rejected request")
			}
		})
	}
}
