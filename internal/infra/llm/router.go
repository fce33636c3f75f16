// Package llm: provider router.
// Router holds every configured LLMProvider and resolves the one a command
// should talk to: the named provider when given, the default otherwise.
package llm

import (
	"context"
	"fmt"
	"sort"
)

// Router selects a LLMProvider for each request.
type Router struct {
	providers       map[string]LLMProvider
	defaultProvider string
}

// NewRouter creates a Router with an initial set of providers and a default key.
func NewRouter(providers map[string]LLMProvider, defaultProvider string) *Router {
	ps := make(map[string]LLMProvider, len(providers))
	for k, v := range providers {
		ps[k] = v
	}
	return &Router{providers: ps, defaultProvider: defaultProvider}
}

// Register adds (or replaces) a provider under the given key.
func (r *Router) Register(key string, p LLMProvider) {
	r.providers[key] = p
}

// Route returns the default provider.
func (r *Router) Route(ctx context.Context) (LLMProvider, error) {
	return r.RouteNamed(ctx, "")
}

// RouteNamed returns the provider registered under name, falling back to the
// default provider when name is empty.
func (r *Router) RouteNamed(_ context.Context, name string) (LLMProvider, error) {
	if name == "" {
		name = r.defaultProvider
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("llm router: provider %q not registered (available: %v)", name, r.keys())
	}
	return p, nil
}

// keys returns the registered provider names, sorted for stable messages.
func (r *Router) keys() []string {
	out := make([]string, 0, len(r.providers))
	for k := range r.providers {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
