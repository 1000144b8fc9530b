package parser

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/goccy/go-json"

	"github.com/lysyi3m/syndication/app/feed"
)

const (
	formatJSONFeed = "jsonfeed"
	jsonFeedPrefix = "https://jsonfeed.org/version/"
)

type jsonFeedDocument struct {
	Version     string          `json:"version"`
	Title       string          `json:"title"`
	HomePageURL string          `json:"home_page_url"`
	FeedURL     string          `json:"feed_url"`
	Description string          `json:"description"`
	Icon        string          `json:"icon"`
	Favicon     string          `json:"favicon"`
	Language    string          `json:"language"`
	Author      json.RawMessage `json:"author"`
	Authors     []jsonAuthor    `json:"authors"`
	Hubs        []jsonHub       `json:"hubs"`
	Items       []jsonFeedItem  `json:"items"`
}

type jsonAuthor struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type jsonHub struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

type jsonFeedItem struct {
	ID            json.RawMessage  `json:"id"`
	URL           string           `json:"url"`
	Title         string           `json:"title"`
	ContentHTML   string           `json:"content_html"`
	ContentText   string           `json:"content_text"`
	Summary       string           `json:"summary"`
	Image         string           `json:"image"`
	DatePublished string           `json:"date_published"`
	DateModified  string           `json:"date_modified"`
	Author        json.RawMessage  `json:"author"`
	Authors       []jsonAuthor     `json:"authors"`
	Tags          []string         `json:"tags"`
	Attachments   []jsonAttachment `json:"attachments"`
}

type jsonAttachment struct {
	URL         string `json:"url"`
	MimeType    string `json:"mime_type"`
	Title       string `json:"title"`
	SizeInBytes int64  `json:"size_in_bytes"`
}

// JSONFeed reads JSON Feed 1.0 and 1.1 documents.
type JSONFeed struct{}

func NewJSONFeed() *JSONFeed {
	return &JSONFeed{}
}

func (p *JSONFeed) CanParse(contentType, snippet string) bool {
	if hasType(contentType, "application/feed+json", "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(snippet)
	return strings.HasPrefix(trimmed, "{") && strings.Contains(trimmed, jsonFeedPrefix)
}

func (p *JSONFeed) Parse(ctx context.Context, r io.Reader) (*feed.Feed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return nil, malformed(formatJSONFeed, errors.New("document is not a JSON object"))
	}

	var doc jsonFeedDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, malformed(formatJSONFeed, err)
	}

	result := &feed.Feed{
		Type:        feed.TypeJSON,
		ID:          doc.FeedURL,
		Title:       doc.Title,
		Description: doc.Description,
		Link:        doc.HomePageURL,
		FeedLink:    doc.FeedURL,
		ImageURL:    cmp.Or(doc.Icon, doc.Favicon),
		Language:    doc.Language,
		Items:       make([]feed.Item, 0, len(doc.Items)),
	}
	if len(doc.Hubs) > 0 {
		result.Hub = doc.Hubs[0].URL
	}

	for _, item := range doc.Items {
		result.Items = append(result.Items, p.normalizeItem(item))
	}

	return result, nil
}

func (p *JSONFeed) normalizeItem(item jsonFeedItem) feed.Item {
	normalized := feed.Item{
		ID:          rawID(item.ID),
		Title:       item.Title,
		Link:        item.URL,
		Content:     cmp.Or(item.ContentHTML, item.ContentText),
		Description: item.Summary,
		Author:      authorName(item.Author, item.Authors),
		Categories:  item.Tags,
		Published:   parseDate(item.DatePublished),
		Updated:     parseDate(item.DateModified),
	}

	var media feed.MediaItem
	media.ThumbnailURL = item.Image
	for _, a := range item.Attachments {
		if a.URL == "" {
			continue
		}
		media.Contents = append(media.Contents, feed.MediaContent{
			URL:      a.URL,
			Type:     a.MimeType,
			FileSize: max(a.SizeInBytes, 0),
		})
	}
	if media.ThumbnailURL != "" || len(media.Contents) > 0 {
		normalized.Extensions.Set(feed.ExtMedia, media)
	}

	return normalized
}

// rawID accepts string ids and the numeric ids some publishers emit.
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// authorName prefers the 1.0 author object, then joins the 1.1 authors.
func authorName(single json.RawMessage, authors []jsonAuthor) string {
	if len(single) > 0 && single[0] == '{' {
		var a jsonAuthor
		if err := json.Unmarshal(single, &a); err == nil && a.Name != "" {
			return a.Name
		}
	}

	names := make([]string, 0, len(authors))
	for _, a := range authors {
		if a.Name != "" {
			names = append(names, a.Name)
		}
	}
	return strings.Join(names, ", ")
}
