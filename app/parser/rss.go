package parser

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"

	"github.com/lysyi3m/syndication/app/feed"
)

const formatRSS = "rss"

// RSS reads RSS 0.9x and 2.0 documents.
type RSS struct{}

func NewRSS() *RSS {
	return &RSS{}
}

func (p *RSS) CanParse(contentType, snippet string) bool {
	return hasType(contentType, "rss") || strings.Contains(snippet, "<rss")
}

func (p *RSS) Parse(ctx context.Context, r io.Reader) (*feed.Feed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// gofeed tolerates a missing channel and an rdf root, the canonical
	// model does not
	root, hasChannel, err := rootAndChild(bytes.NewReader(data), "channel")
	if err != nil {
		return nil, malformed(formatRSS, err)
	}
	if root.Local != "rss" {
		return nil, malformed(formatRSS, fmt.Errorf("unexpected root element <%s>", root.Local))
	}
	if !hasChannel {
		return nil, malformed(formatRSS, errors.New("missing channel element"))
	}

	src, err := (&rss.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(formatRSS, err)
	}

	result := &feed.Feed{
		Type:        feed.TypeRSS,
		Title:       src.Title,
		Description: src.Description,
		Link:        src.Link,
		Language:    src.Language,
		Copyright:   src.Copyright,
		Generator:   src.Generator,
		LastUpdated: parseDate(cmp.Or(src.LastBuildDate, src.PubDate)),
		Items:       make([]feed.Item, 0, len(src.Items)),
	}
	if src.Image != nil {
		result.ImageURL = src.Image.URL
	}
	result.FeedLink, result.Hub = atomLinks(src.Extensions)

	if podcast, ok := extractPodcastFeed(src.Extensions); ok {
		result.Extensions.Set(feed.ExtPodcast, podcast)
	}

	for _, item := range src.Items {
		if item == nil {
			continue
		}
		result.Items = append(result.Items, p.normalizeItem(item))
	}

	return result, nil
}

func (p *RSS) normalizeItem(item *rss.Item) feed.Item {
	normalized := feed.Item{
		Title:       item.Title,
		Link:        item.Link,
		Description: item.Description,
		Author:      item.Author,
		Published:   parseDate(item.PubDate),
	}

	if item.GUID != nil {
		normalized.ID = strings.TrimSpace(item.GUID.Value)
	}

	content := cmp.Or(item.Content, firstValue(item.Extensions["content"], "encoded"))
	normalized.Content = cmp.Or(content, item.Description)

	if normalized.Author == "" {
		if item.DublinCoreExt != nil && len(item.DublinCoreExt.Creator) > 0 {
			normalized.Author = item.DublinCoreExt.Creator[0]
		} else {
			normalized.Author = firstValue(item.Extensions["dc"], "creator")
		}
	}

	for _, category := range item.Categories {
		if category != nil {
			normalized.Categories = append(normalized.Categories, category.Value)
		}
	}

	if podcast, ok := extractPodcastItem(item.Extensions); ok {
		normalized.Extensions.Set(feed.ExtPodcast, podcast)
	}
	if media, ok := extractMedia(item.Extensions, enclosureContent(item.Enclosure)); ok {
		normalized.Extensions.Set(feed.ExtMedia, media)
	}

	return normalized
}

func enclosureContent(enclosure *rss.Enclosure) *feed.MediaContent {
	if enclosure == nil || strings.TrimSpace(enclosure.URL) == "" {
		return nil
	}
	size, _ := strconv.ParseInt(strings.TrimSpace(enclosure.Length), 10, 64)
	return &feed.MediaContent{
		URL:      strings.TrimSpace(enclosure.URL),
		Type:     strings.TrimSpace(enclosure.Type),
		FileSize: max(size, 0),
	}
}

// atomLinks returns the self and hub hrefs of atom:link elements embedded
// in an RSS channel.
func atomLinks(extensions ext.Extensions) (self, hub string) {
	for _, prefix := range []string{"atom", "atom10", "atom03"} {
		for _, link := range extensions[prefix]["link"] {
			href := strings.TrimSpace(link.Attrs["href"])
			switch strings.ToLower(strings.TrimSpace(link.Attrs["rel"])) {
			case "self":
				self = cmp.Or(self, href)
			case "hub":
				hub = cmp.Or(hub, href)
			}
		}
	}
	return self, hub
}
