package parser

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/lysyi3m/syndication/app/feed"
)

const (
	formatActivityPub   = "activitypub"
	activityStreamsNS   = "https://www.w3.org/ns/activitystreams"
	activityPubTitle    = "ActivityPub Feed"
	activityPubNoteName = "Untitled Note"
)

// ActivityPub reads ActivityStreams collections such as a Mastodon outbox.
// Objects referenced only by URL are skipped; nothing is dereferenced.
type ActivityPub struct{}

func NewActivityPub() *ActivityPub {
	return &ActivityPub{}
}

func (p *ActivityPub) CanParse(contentType, snippet string) bool {
	return hasType(contentType, "application/activity+json") || strings.Contains(snippet, activityStreamsNS)
}

func (p *ActivityPub) Parse(ctx context.Context, r io.Reader) (*feed.Feed, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read document: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(data) {
		return nil, malformed(formatActivityPub, errors.New("invalid JSON"))
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, malformed(formatActivityPub, errors.New("document is not a JSON object"))
	}

	id := doc.Get("id").String()
	result := &feed.Feed{
		Type:        feed.TypeActivityPub,
		ID:          id,
		Title:       activityPubTitle,
		Description: doc.Get("summary").String(),
		FeedLink:    id,
	}
	result.Extensions.Set(feed.ExtActivityPub, feed.Flag(true))

	items := doc.Get("orderedItems")
	if !items.IsArray() {
		items = doc.Get("items")
	}

	for _, entry := range items.Array() {
		object, ok := p.unwrap(entry)
		if !ok {
			continue
		}
		result.Items = append(result.Items, p.normalizeObject(object))
	}

	return result, nil
}

// unwrap returns the inline object an activity carries, or the entry
// itself when it is not a Create/Announce wrapper.
func (p *ActivityPub) unwrap(entry gjson.Result) (gjson.Result, bool) {
	if !entry.IsObject() {
		return gjson.Result{}, false
	}
	switch entry.Get("type").String() {
	case "Create", "Announce":
		object := entry.Get("object")
		if !object.IsObject() {
			return gjson.Result{}, false
		}
		return object, true
	}
	return entry, true
}

func (p *ActivityPub) normalizeObject(object gjson.Result) feed.Item {
	summary := object.Get("summary").String()
	item := feed.Item{
		ID:          object.Get("id").String(),
		Title:       cmp.Or(object.Get("name").String(), summary, activityPubNoteName),
		Description: summary,
		Content:     object.Get("content").String(),
		Link:        objectURL(object.Get("url")),
		Author:      actorRef(object.Get("attributedTo")),
		Published:   parseDate(object.Get("published").String()),
		Updated:     parseDate(object.Get("updated").String()),
	}

	for _, tag := range object.Get("tag").Array() {
		if tag.Get("type").String() != "Hashtag" {
			continue
		}
		if name := strings.TrimPrefix(tag.Get("name").String(), "#"); name != "" {
			item.Categories = append(item.Categories, name)
		}
	}

	var media feed.MediaItem
	for _, attachment := range object.Get("attachment").Array() {
		url := objectURL(attachment.Get("url"))
		if url == "" {
			continue
		}
		media.Contents = append(media.Contents, feed.MediaContent{
			URL:    url,
			Type:   attachment.Get("mediaType").String(),
			Width:  int(max(attachment.Get("width").Int(), 0)),
			Height: int(max(attachment.Get("height").Int(), 0)),
		})
		media.Description = cmp.Or(media.Description, attachment.Get("name").String())
	}
	if len(media.Contents) > 0 {
		item.Extensions.Set(feed.ExtMedia, media)
	}

	return item
}

// objectURL reads a url that may be a string, a Link object or an array.
func objectURL(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsArray():
		for _, candidate := range v.Array() {
			if url := objectURL(candidate); url != "" {
				return url
			}
		}
	case v.IsObject():
		return v.Get("href").String()
	}
	return ""
}

func actorRef(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.String()
	case v.IsArray():
		for _, candidate := range v.Array() {
			if ref := actorRef(candidate); ref != "" {
				return ref
			}
		}
	case v.IsObject():
		return cmp.Or(v.Get("id").String(), v.Get("name").String())
	}
	return ""
}
