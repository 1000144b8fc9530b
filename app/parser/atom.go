package parser

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed/atom"

	"github.com/lysyi3m/syndication/app/feed"
)

const (
	formatAtom = "atom"
	atomNS     = "http://www.w3.org/2005/Atom"
)

// Atom reads Atom 1.0 (and 0.3) documents.
type Atom struct{}

func NewAtom() *Atom {
	return &Atom{}
}

func (p *Atom) CanParse(contentType, snippet string) bool {
	if hasType(contentType, "atom") {
		return true
	}
	return strings.Contains(snippet, "<feed") && strings.Contains(snippet, atomNS)
}

func (p *Atom) Parse(ctx context.Context, r io.Reader) (*feed.Feed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
	if err != nil {
		return nil, malformed(formatAtom, err)
	}

	link, self, hub := p.links(src.Links)
	result := &feed.Feed{
		Type:        feed.TypeAtom,
		ID:          src.ID,
		Title:       src.Title,
		Description: src.Subtitle,
		Link:        link,
		FeedLink:    self,
		Hub:         hub,
		ImageURL:    cmp.Or(src.Logo, src.Icon),
		Language:    src.Language,
		LastUpdated: parseDate(src.Updated),
		Copyright:   src.Rights,
		Items:       make([]feed.Item, 0, len(src.Entries)),
	}
	if src.Generator != nil {
		result.Generator = strings.TrimSpace(src.Generator.Value)
	}

	for _, entry := range src.Entries {
		if entry == nil {
			continue
		}
		result.Items = append(result.Items, p.normalizeEntry(entry))
	}

	return result, nil
}

func (p *Atom) normalizeEntry(entry *atom.Entry) feed.Item {
	var content string
	if entry.Content != nil {
		content = entry.Content.Value
	}

	link, _, _ := p.links(entry.Links)
	item := feed.Item{
		ID:          entry.ID,
		Title:       entry.Title,
		Link:        link,
		Content:     cmp.Or(content, entry.Summary),
		Description: cmp.Or(entry.Summary, content),
		Published:   parseDate(entry.Published),
		Updated:     parseDate(entry.Updated),
	}

	if len(entry.Authors) > 0 && entry.Authors[0] != nil {
		item.Author = entry.Authors[0].Name
	}

	for _, category := range entry.Categories {
		if category != nil && category.Term != "" {
			item.Categories = append(item.Categories, category.Term)
		}
	}

	return item
}

// links picks the alternate link (or the first link without rel) and the
// self and hub hrefs.
func (p *Atom) links(links []*atom.Link) (alternate, self, hub string) {
	var bare string
	for _, l := range links {
		if l == nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(l.Rel)) {
		case "alternate":
			alternate = cmp.Or(alternate, l.Href)
		case "":
			bare = cmp.Or(bare, l.Href)
		case "self":
			self = cmp.Or(self, l.Href)
		case "hub":
			hub = cmp.Or(hub, l.Href)
		}
	}
	return cmp.Or(alternate, bare), self, hub
}
