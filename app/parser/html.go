package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-shiori/go-readability"

	"github.com/lysyi3m/syndication/app/feed"
)

const (
	formatHTML       = "html"
	placeholderTitle = "Extracted HTML Entry"
	placeholderText  = "Content extraction requires DOM parser."
)

var (
	jsonLDPattern = regexp.MustCompile(`(?is)<script[^>]*type\s*=\s*["']?application/ld\+json["']?[^>]*>`)
	hFeedPattern  = regexp.MustCompile(`(?i)class\s*=\s*["'][^"']*\bh-feed\b`)
	hEntryPattern = regexp.MustCompile(`(?i)class\s*=\s*["'][^"']*\bh-entry\b`)
	pNamePattern  = regexp.MustCompile(`(?i)class\s*=\s*["'][^"']*\bp-name\b[^"']*["'][^>]*>([^<]+)<`)
)

// SemanticHTML is the last resort for pages that link no feed. It only
// detects JSON-LD and microformat markers and never builds a DOM.
type SemanticHTML struct{}

func NewSemanticHTML() *SemanticHTML {
	return &SemanticHTML{}
}

func (p *SemanticHTML) CanParse(contentType, snippet string) bool {
	return hasType(contentType, "text/html", "application/xhtml+xml")
}

func (p *SemanticHTML) Parse(ctx context.Context, r io.Reader) (*feed.Feed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	page := string(data)
	result := &feed.Feed{Type: feed.TypeUnknown}

	if jsonLDPattern.MatchString(page) {
		result.Extensions.Set(feed.ExtJSONLD, feed.Flag(true))
	}

	if loc := hFeedPattern.FindStringIndex(page); loc != nil {
		if m := pNamePattern.FindStringSubmatch(page[loc[0]:]); m != nil {
			result.Title = strings.TrimSpace(html.UnescapeString(m[1]))
		}
	}

	if hEntryPattern.MatchString(page) {
		result.Items = append(result.Items, feed.Item{Title: placeholderTitle, Description: placeholderText})
	}

	if len(result.Items) == 0 && !result.HasFlag(feed.ExtJSONLD) {
		return nil, malformed(formatHTML, errors.New("no semantic content detected"))
	}

	if result.Title == "" {
		result.Title = readableTitle(data)
	}

	return result, nil
}

func readableTitle(data []byte) string {
	article, err := readability.FromReader(bytes.NewReader(data), &url.URL{})
	if err != nil {
		slog.Debug("Readability title extraction failed", "error", err)
		return ""
	}
	return strings.TrimSpace(article.Title)
}
