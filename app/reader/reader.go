// Package reader fetches a URL or takes a body, works out which format it
// is and returns the canonical feed.
package reader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/syndication/app/feed"
	"github.com/lysyi3m/syndication/app/parser"
)

const (
	DefaultMaxBodySize = 10 << 20
	DefaultMaxHops     = 1
	DefaultUserAgent   = "Syndication/1.0"

	acceptHeader = "application/rss+xml, application/atom+xml, application/feed+json, " +
		"application/activity+json, application/xml;q=0.9, text/xml;q=0.9, text/html;q=0.8, */*;q=0.5"
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FeedResponse is the outcome of ReadURL. Feed is nil after a 304 and when
// an HTML page contained nothing usable.
type FeedResponse struct {
	URL          string
	StatusCode   int
	ETag         string
	LastModified *time.Time
	ContentType  string
	Feed         *feed.Feed
}

func (r *FeedResponse) NotModified() bool {
	return r.StatusCode == http.StatusNotModified
}

type Reader struct {
	client      Doer
	registry    *parser.Registry
	userAgent   string
	maxHops     int
	maxBodySize int64
}

type Option func(*Reader)

func WithClient(client Doer) Option {
	return func(r *Reader) { r.client = client }
}

func WithRegistry(registry *parser.Registry) Option {
	return func(r *Reader) { r.registry = registry }
}

func WithUserAgent(userAgent string) Option {
	return func(r *Reader) { r.userAgent = userAgent }
}

// WithMaxHops bounds how many discovered links ReadURL follows. Zero
// disables following.
func WithMaxHops(hops int) Option {
	return func(r *Reader) { r.maxHops = max(hops, 0) }
}

func WithMaxBodySize(size int64) Option {
	return func(r *Reader) {
		if size > 0 {
			r.maxBodySize = size
		}
	}
}

func New(opts ...Option) *Reader {
	r := &Reader{
		client:      &http.Client{Timeout: 30 * time.Second},
		userAgent:   DefaultUserAgent,
		maxHops:     DefaultMaxHops,
		maxBodySize: DefaultMaxBodySize,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = parser.NewDefaultRegistry()
	}
	return r
}

// RegisterParser appends p to the resolution order.
func (r *Reader) RegisterParser(p parser.Parser) {
	r.registry.Register(p)
}

// ReadURL fetches target with optional conditional headers. HTML pages are
// searched for advertised feeds before being scraped.
func (r *Reader) ReadURL(ctx context.Context, target, etag string, lastModified *time.Time) (*FeedResponse, error) {
	return r.read(ctx, target, etag, lastModified, r.maxHops, make(map[string]struct{}))
}

func (r *Reader) ReadStream(ctx context.Context, body io.Reader, contentType string) (*feed.Feed, error) {
	data, err := r.readBody(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read stream: %w", err)
	}
	return r.parse(ctx, data, contentType)
}

func (r *Reader) ReadString(ctx context.Context, text string) (*feed.Feed, error) {
	return r.parse(ctx, []byte(text), "")
}

func (r *Reader) read(ctx context.Context, target, etag string, lastModified *time.Time, hops int, visited map[string]struct{}) (*FeedResponse, error) {
	visited[target] = struct{}{}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &TransportError{URL: target, Err: err}
	}
	req.Header.Set("User-Agent", r.userAgent)
	req.Header.Set("Accept", acceptHeader)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != nil {
		req.Header.Set("If-Modified-Since", lastModified.UTC().Format(http.TimeFormat))
	}

	resp, err := r.client.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{URL: target, Err: err}
	}
	defer resp.Body.Close()

	result := &FeedResponse{
		URL:         target,
		StatusCode:  resp.StatusCode,
		ETag:        resp.Header.Get("ETag"),
		ContentType: mediaType(resp.Header.Get("Content-Type")),
	}
	if resp.Request != nil && resp.Request.URL != nil {
		result.URL = resp.Request.URL.String()
	}
	if value := resp.Header.Get("Last-Modified"); value != "" {
		if t, err := http.ParseTime(value); err == nil {
			result.LastModified = &t
		}
	}

	if resp.StatusCode == http.StatusNotModified {
		slog.Debug("Feed not modified", "url", result.URL)
		return result, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &TransportError{URL: result.URL, StatusCode: resp.StatusCode}
	}

	data, err := r.readBody(resp.Body)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &TransportError{URL: result.URL, StatusCode: resp.StatusCode, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !isHTML(result.ContentType) {
		f, err := r.parse(ctx, data, result.ContentType)
		if err != nil {
			return nil, err
		}
		result.Feed = f
		return result, nil
	}

	if hops > 0 {
		for link := range parser.Discover(string(data), result.URL) {
			if _, seen := visited[link]; seen {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			slog.Debug("Following discovered feed link", "from", result.URL, "to", link)
			return r.read(ctx, link, etag, lastModified, hops-1, visited)
		}
	}

	f, err := r.parse(ctx, data, result.ContentType)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		slog.Debug("No feed recovered from HTML page", "url", result.URL, "error", err)
		return result, nil
	}
	result.Feed = f
	return result, nil
}

func (r *Reader) parse(ctx context.Context, data []byte, contentType string) (*feed.Feed, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyInput
	}

	p := r.registry.Resolve(contentType, parser.Snippet(data))
	if p == nil {
		return nil, fmt.Errorf("%w: content type %q", ErrUnsupportedFormat, contentType)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := p.Parse(ctx, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return f, nil
}

func (r *Reader) readBody(body io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(body, r.maxBodySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > r.maxBodySize {
		return nil, fmt.Errorf("body exceeds %d bytes", r.maxBodySize)
	}
	return data, nil
}

// mediaType strips parameters such as charset from a Content-Type value.
func mediaType(contentType string) string {
	value, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return value
}

func isHTML(contentType string) bool {
	value := mediaType(contentType)
	return value == "text/html" || value == "application/xhtml+xml"
}
