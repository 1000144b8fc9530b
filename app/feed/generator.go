package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/lysyi3m/syndication/app/cfg"
)

// Generator re-serializes a canonical feed as RSS 2.0, whatever format
// it was read from.
type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Run(name string, feed *Feed, items []Item) (string, error) {
	if feed == nil {
		return "", fmt.Errorf("feed is nil")
	}

	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/" xmlns:atom="http://www.w3.org/2005/Atom" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">`)
	buf.WriteString("\n  <channel>\n")

	g.writeElement(&buf, "title", feed.Title, 4)
	g.writeElement(&buf, "link", feed.Link, 4)
	description := feed.Description
	if description == "" {
		description = fmt.Sprintf("Normalized %s feed from %s", feed.Type, cmp.Or(feed.FeedLink, feed.Link))
	}
	g.writeElement(&buf, "description", description, 4)

	fmt.Fprintf(&buf, "    <atom:link href=\"%s\" rel=\"self\" type=\"application/rss+xml\" />\n",
		html.EscapeString(SelfLink(name)))

	lastBuildDate := time.Now().In(time.Local)
	if feed.LastUpdated != nil {
		lastBuildDate = *feed.LastUpdated
	} else if len(items) > 0 && items[0].Published != nil {
		lastBuildDate = *items[0].Published
	}

	g.writeElement(&buf, "lastBuildDate", lastBuildDate.Format(time.RFC1123Z), 4)
	g.writeElement(&buf, "generator", fmt.Sprintf("Syndication/%s", cfg.Get().Version), 4)
	g.writeElement(&buf, "language", feed.Language, 4)
	g.writeElement(&buf, "copyright", feed.Copyright, 4)

	if feed.ImageURL != "" {
		buf.WriteString("    <image>\n")
		g.writeElement(&buf, "url", feed.ImageURL, 6)
		g.writeElement(&buf, "title", feed.Title, 6)
		g.writeElement(&buf, "link", feed.Link, 6)
		buf.WriteString("    </image>\n")
	}

	if podcast, ok := feed.Podcast(); ok {
		g.writeElement(&buf, "itunes:author", podcast.Author, 4)
		g.writeElement(&buf, "itunes:summary", podcast.Summary, 4)
		if podcast.ImageURL != "" {
			fmt.Fprintf(&buf, "    <itunes:image href=\"%s\" />\n", html.EscapeString(podcast.ImageURL))
		}
		if podcast.Explicit {
			g.writeElement(&buf, "itunes:explicit", "yes", 4)
		}
	}

	for _, item := range items {
		g.writeItem(&buf, item)
	}

	buf.WriteString("  </channel>\n</rss>")

	return buf.String(), nil
}

// SelfLink is the public URL a subscription is re-served under.
func SelfLink(name string) string {
	if cfg.Get().BaseUrl != "" {
		return fmt.Sprintf("%s/feeds/%s", cfg.Get().BaseUrl, name)
	}
	return fmt.Sprintf("http://localhost:%s/feeds/%s", cfg.Get().Port, name)
}

func (g *Generator) writeItem(buf *bytes.Buffer, item Item) {
	buf.WriteString("    <item>\n")

	if guid := GUID(item); guid != "" {
		fmt.Fprintf(buf, "      <guid isPermaLink=\"%t\">", g.isURL(guid))
		xml.EscapeText(buf, []byte(guid))
		buf.WriteString("</guid>\n")
	}

	g.writeElement(buf, "title", item.Title, 6)
	g.writeElement(buf, "link", item.Link, 6)
	g.writeElement(buf, "description", cmp.Or(item.Description, "No description available"), 6)

	if item.Content != "" && item.Content != item.Description {
		buf.WriteString("      <content:encoded><![CDATA[")
		// A literal "]]>" would end the section early.
		buf.WriteString(strings.ReplaceAll(item.Content, "]]>", "]]]]><![CDATA[>"))
		buf.WriteString("]]></content:encoded>\n")
	}

	if item.Published != nil {
		g.writeElement(buf, "pubDate", item.Published.Format(time.RFC1123Z), 6)
	}
	g.writeElement(buf, "author", item.Author, 6)

	for _, category := range item.Categories {
		g.writeElement(buf, "category", category, 6)
	}

	if media, ok := item.Media(); ok {
		for _, content := range media.Contents {
			if content.URL == "" || content.Type == "" {
				continue
			}
			// RSS 2.0 allows one enclosure per item
			fmt.Fprintf(buf, "      <enclosure url=\"%s\" length=\"%d\" type=\"%s\" />\n",
				html.EscapeString(content.URL),
				content.FileSize,
				html.EscapeString(content.Type))
			break
		}
	}

	if podcast, ok := item.Podcast(); ok {
		if podcast.Duration > 0 {
			g.writeElement(buf, "itunes:duration", strconv.Itoa(int(podcast.Duration.Seconds())), 6)
		}
		if podcast.Episode > 0 {
			g.writeElement(buf, "itunes:episode", strconv.Itoa(podcast.Episode), 6)
		}
		if podcast.Season > 0 {
			g.writeElement(buf, "itunes:season", strconv.Itoa(podcast.Season), 6)
		}
		g.writeElement(buf, "itunes:episodeType", podcast.EpisodeType, 6)
	}

	buf.WriteString("    </item>\n")
}

func (g *Generator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	for i := 0; i < indent; i++ {
		buf.WriteByte(' ')
	}

	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}

func (g *Generator) isURL(s string) bool {
	return (len(s) > 7 && s[:7] == "http://") || (len(s) > 8 && s[:8] == "https://")
}
