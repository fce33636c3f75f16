// Package ctxkeys holds the typed context keys shared by the API middleware
// and handlers. It is a leaf package so both can import it without a cycle.
package ctxkeys

import "context"

// Key is the named type for API context keys; context.Value compares type
// and value, so these never collide with plain string keys.
type Key string

const (
	// Subject is the token subject injected by the auth middleware.
	Subject Key = "subject"
)

// WithValue adds a string value under key.
func WithValue(ctx context.Context, key Key, value string) context.Context {
	return context.WithValue(ctx, key, value)
}

// SubjectFrom returns the authenticated subject, or "" when auth is disabled.
func SubjectFrom(ctx context.Context) string {
	s, _ := ctx.Value(Subject).(string)
	return s
}
