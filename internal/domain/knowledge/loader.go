package knowledge

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultUserAgent = "convo/1.0 (+https://github.com/matiasleandrokruk/convo)"
	maxPageBytes     = 10 << 20
)

// FetchError reports a page that could not be retrieved. StatusCode is 0
// when no response arrived.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("knowledge.Load: fetch %s: unexpected status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("knowledge.Load: fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// WebLoader fetches a page and turns it into a Document. Bodies longer than
// MaxBytes (10 MiB when zero) are cut and a warning is logged.
type WebLoader struct {
	Client    *http.Client
	UserAgent string
	MaxBytes  int64
	Logger    *slog.Logger
}

// NewWebLoader returns a loader with its own client and request timeout.
func NewWebLoader(timeout time.Duration) *WebLoader {
	return &WebLoader{Client: &http.Client{Timeout: timeout}, UserAgent: defaultUserAgent}
}

// Load fetches url and returns its visible text. Non-2xx responses are errors.
func (l *WebLoader) Load(ctx context.Context, url string) (*Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("knowledge.Load: build request: %w", err)
	}
	ua := l.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")

	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &FetchError{URL: url, StatusCode: resp.StatusCode}
	}

	limit := l.MaxBytes
	if limit <= 0 {
		limit = maxPageBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &FetchError{URL: url, Err: err}
	}
	if int64(len(body)) > limit {
		logger := l.Logger
		if logger == nil {
			logger = slog.Default()
		}
		logger.Warn("page truncated", "url", url, "limit_bytes", limit)
		body = body[:limit]
	}

	doc, err := ParseHTML(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("knowledge.Load: parse %s: %w", url, err)
	}
	doc.Metadata[MetaSource] = url
	return doc, nil
}

// ParseHTML extracts visible text, title, description and language from an
// HTML stream. Text from script, style, noscript and template elements is
// dropped and runs of whitespace collapse to one space.
func ParseHTML(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	p := pageText{meta: map[string]string{}}
	p.walk(root)

	return &Document{
		Content:  strings.Join(p.parts, " "),
		Metadata: p.meta,
	}, nil
}

type pageText struct {
	parts []string
	meta  map[string]string
}

func (p *pageText) walk(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		if text := strings.Join(strings.Fields(n.Data), " "); text != "" {
			p.parts = append(p.parts, text)
		}
		return
	case html.ElementNode:
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Noscript, atom.Template:
			return
		case atom.Html:
			if lang := attr(n, "lang"); lang != "" {
				p.meta[MetaLanguage] = lang
			}
		case atom.Title:
			if _, seen := p.meta[MetaTitle]; !seen {
				p.meta[MetaTitle] = strings.Join(strings.Fields(innerText(n)), " ")
			}
		case atom.Meta:
			if strings.EqualFold(attr(n, "name"), "description") {
				p.meta[MetaDescription] = strings.TrimSpace(attr(n, "content"))
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		p.walk(c)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func innerText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
