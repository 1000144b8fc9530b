package parser

import (
	"cmp"
	"strconv"
	"strings"
	"time"

	ext "github.com/mmcdole/gofeed/extensions"

	"github.com/lysyi3m/syndication/app/feed"
)

type extFields = map[string][]ext.Extension

func firstValue(fields extFields, name string) string {
	if values := fields[name]; len(values) > 0 {
		return strings.TrimSpace(values[0].Value)
	}
	return ""
}

func firstAttr(fields extFields, name, attr string) string {
	if values := fields[name]; len(values) > 0 {
		return strings.TrimSpace(values[0].Attrs[attr])
	}
	return ""
}

func firstChildren(fields extFields, name string) extFields {
	if values := fields[name]; len(values) > 0 {
		return values[0].Children
	}
	return nil
}

func isExplicit(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes", "true", "explicit":
		return true
	}
	return false
}

func atoiOrZero(value string) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// extractPodcastFeed reads channel-level iTunes fields.
func extractPodcastFeed(extensions ext.Extensions) (feed.PodcastFeed, bool) {
	fields := extensions[feed.ExtPodcast]
	if len(fields) == 0 {
		return feed.PodcastFeed{}, false
	}

	owner := firstChildren(fields, "owner")
	p := feed.PodcastFeed{
		Author:     firstValue(fields, "author"),
		Subtitle:   firstValue(fields, "subtitle"),
		Summary:    firstValue(fields, "summary"),
		OwnerName:  firstValue(owner, "name"),
		OwnerEmail: firstValue(owner, "email"),
		ImageURL:   firstAttr(fields, "image", "href"),
		Category:   firstAttr(fields, "category", "text"),
		Explicit:   isExplicit(firstValue(fields, "explicit")),
	}

	return p, p != feed.PodcastFeed{}
}

// extractPodcastItem reads episode-level iTunes fields.
func extractPodcastItem(extensions ext.Extensions) (feed.PodcastItem, bool) {
	fields := extensions[feed.ExtPodcast]
	if len(fields) == 0 {
		return feed.PodcastItem{}, false
	}

	raw := firstValue(fields, "duration")
	p := feed.PodcastItem{
		RawDuration: raw,
		Duration:    parseDuration(raw),
		Subtitle:    firstValue(fields, "subtitle"),
		Summary:     firstValue(fields, "summary"),
		ImageURL:    firstAttr(fields, "image", "href"),
		Explicit:    isExplicit(firstValue(fields, "explicit")),
		Episode:     atoiOrZero(firstValue(fields, "episode")),
		Season:      atoiOrZero(firstValue(fields, "season")),
		EpisodeType: firstValue(fields, "episodeType"),
	}

	return p, p != feed.PodcastItem{}
}

// parseDuration accepts plain seconds or [[HH:]MM:]SS and returns zero for
// anything else.
func parseDuration(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}

	parts := strings.Split(value, ":")
	if len(parts) > 3 {
		return 0
	}

	var total float64
	multiplier := 1.0
	for i := len(parts) - 1; i >= 0; i-- {
		n, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
		if err != nil || n < 0 {
			return 0
		}
		total += n * multiplier
		multiplier *= 60
	}

	return time.Duration(total * float64(time.Second))
}

// extractMedia reads Media RSS fields, descending into media:group. The
// core RSS enclosure is folded in as one more media object.
func extractMedia(extensions ext.Extensions, enclosure *feed.MediaContent) (feed.MediaItem, bool) {
	fields := extensions[feed.ExtMedia]

	m := feed.MediaItem{
		Title:        firstValue(fields, "title"),
		Description:  firstValue(fields, "description"),
		ThumbnailURL: firstAttr(fields, "thumbnail", "url"),
		Contents:     mediaContents(fields["content"]),
	}

	for _, group := range fields["group"] {
		g := group.Children
		m.Title = cmp.Or(m.Title, firstValue(g, "title"))
		m.Description = cmp.Or(m.Description, firstValue(g, "description"))
		m.ThumbnailURL = cmp.Or(m.ThumbnailURL, firstAttr(g, "thumbnail", "url"))
		m.Contents = append(m.Contents, mediaContents(g["content"])...)
	}

	if enclosure != nil && enclosure.URL != "" && !hasMediaURL(m.Contents, enclosure.URL) {
		m.Contents = append(m.Contents, *enclosure)
	}

	if len(m.Contents) == 0 && m.ThumbnailURL == "" {
		return feed.MediaItem{}, false
	}
	return m, true
}

func mediaContents(values []ext.Extension) []feed.MediaContent {
	var contents []feed.MediaContent
	for _, v := range values {
		url := strings.TrimSpace(v.Attrs["url"])
		if url == "" {
			continue
		}
		size, _ := strconv.ParseInt(strings.TrimSpace(v.Attrs["fileSize"]), 10, 64)
		contents = append(contents, feed.MediaContent{
			URL:      url,
			Type:     strings.TrimSpace(v.Attrs["type"]),
			Medium:   strings.TrimSpace(v.Attrs["medium"]),
			FileSize: max(size, 0),
			Width:    atoiOrZero(v.Attrs["width"]),
			Height:   atoiOrZero(v.Attrs["height"]),
		})
	}
	return contents
}

func hasMediaURL(contents []feed.MediaContent, url string) bool {
	for _, c := range contents {
		if c.URL == url {
			return true
		}
	}
	return false
}
