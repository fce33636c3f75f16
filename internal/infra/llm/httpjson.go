package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	mimeJSON          = "application/json"
	headerContentType = "Content-Type"

	// DefaultTimeout bounds a single provider round trip.
	DefaultTimeout = 60 * time.Second
)

// jsonClient is the shared POST/GET helper for REST adapters.
// Every failure comes back as a *ProviderError tagged with provider.
type jsonClient struct {
	provider   string
	baseURL    string
	headers    map[string]string
	httpClient *http.Client
}

func newJSONClient(provider, baseURL string, timeout time.Duration) jsonClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return jsonClient{
		provider:   provider,
		baseURL:    baseURL,
		headers:    map[string]string{},
		httpClient: &http.Client{Timeout: timeout},
	}
}

// post sends in as JSON to baseURL+path and decodes the 2xx body into out.
func (c jsonClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("%s post %s: encode: %w", c.provider, path, err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), out)
}

// get issues a GET and decodes into out when out is non-nil.
func (c jsonClient) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

func (c jsonClient) do(ctx context.Context, method, path string, body io.Reader, out any) error {
	op := method + " " + path
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s %s: build request: %w", c.provider, op, err)
	}
	if body != nil {
		req.Header.Set(headerContentType, mimeJSON)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return networkError(c.provider, op, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return statusError(c.provider, op, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		if errors.Is(decodeErr, io.EOF) {
			decodeErr = errors.New("empty response body")
		}
		return malformedError(c.provider, op, decodeErr)
	}
	return nil
}
