package parser

import (
	"iter"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var feedLinkTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
	"application/json",
	"text/xml",
}

// Discover yields, in document order, the absolute URLs of feeds an HTML
// page advertises through <link rel="alternate">. The page is parsed when
// iteration starts; stopping early skips the remaining links.
func Discover(page, baseURL string) iter.Seq[string] {
	return func(yield func(string) bool) {
		doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
		if err != nil {
			slog.Debug("Feed discovery could not parse HTML", "error", err)
			return
		}

		base, err := url.Parse(strings.TrimSpace(baseURL))
		if err != nil || !base.IsAbs() {
			base = nil
		}

		doc.Find("link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
			rel, _ := s.Attr("rel")
			if !strings.EqualFold(strings.TrimSpace(rel), "alternate") {
				return true
			}

			linkType, _ := s.Attr("type")
			if !hasType(linkType, feedLinkTypes...) {
				return true
			}

			href, ok := s.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				return true
			}

			resolved, ok := resolveURL(base, strings.TrimSpace(href))
			if !ok {
				return true
			}
			return yield(resolved)
		})
	}
}

func resolveURL(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	if ref.IsAbs() {
		return ref.String(), true
	}
	if base == nil {
		return "", false
	}
	return base.ResolveReference(ref).String(), true
}
