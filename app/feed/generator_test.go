package feed

import (
	"encoding/xml"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/syndication/app/cfg"
)

func setupTestConfig() {
	// Clear os.Args to prevent config parsing from failing
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	if os.Getenv("PORT") == "" {
		os.Setenv("PORT", "8080")
	}

	cfg.Load()
}

func TestGenerateRSS(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator()

	updated := time.Date(2023, 7, 1, 12, 0, 0, 0, time.UTC)
	source := &Feed{
		Type:        TypeAtom,
		Title:       "Test Feed",
		Link:        "https://example.com",
		FeedLink:    "https://example.com/atom.xml",
		Language:    "en",
		LastUpdated: &updated,
	}

	published := time.Date(2023, 7, 3, 10, 0, 0, 0, time.UTC)
	items := []Item{
		{
			ID:          "item-1",
			Title:       "Test Item 1",
			Link:        "https://example.com/item1",
			Description: "Test Item 1 Description",
			Content:     "Test Item 1 Content",
			Published:   &published,
			Author:      "Jane Doe",
			Categories:  []string{"Technology", "Programming"},
		},
		{
			ID:          "https://example.com/item2",
			Title:       "Test Item 2",
			Description: "Test Item 2 Description",
		},
	}

	rss, err := generator.Run("test-feed", source, items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	expected := []string{
		`<?xml version="1.0" encoding="UTF-8"?>`,
		`<rss version="2.0"`,
		`xmlns:content="http://purl.org/rss/1.0/modules/content/"`,
		"<title>Test Feed</title>",
		"<link>https://example.com</link>",
		"Normalized atom feed from https://example.com/atom.xml",
		`<atom:link href="http://localhost:8080/feeds/test-feed" rel="self" type="application/rss+xml" />`,
		"<lastBuildDate>Sat, 01 Jul 2023 12:00:00 +0000</lastBuildDate>",
		"<language>en</language>",
		`<guid isPermaLink="false">item-1</guid>`,
		"<content:encoded><![CDATA[Test Item 1 Content]]></content:encoded>",
		"<author>Jane Doe</author>",
		"<category>Technology</category>",
		"<category>Programming</category>",
		"<pubDate>Mon, 03 Jul 2023 10:00:00 +0000</pubDate>",
		`<guid isPermaLink="true">https://example.com/item2</guid>`,
		"</channel>\n</rss>",
	}
	for _, want := range expected {
		if !strings.Contains(rss, want) {
			t.Errorf("RSS should contain %q", want)
		}
	}

	second := rss[strings.LastIndex(rss, "<item>"):]
	if strings.Contains(second, "<pubDate>") {
		t.Error("Item without a published date should have no pubDate")
	}
}

func TestGenerateWithExtensions(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator()

	source := &Feed{Type: TypeRSS, Title: "Podcast", Link: "https://example.com"}
	source.Extensions.Set(ExtPodcast, PodcastFeed{Author: "John Doe", ImageURL: "https://example.com/cover.jpg", Explicit: true})

	item := Item{ID: "ep1", Title: "Episode 1"}
	item.Extensions.Set(ExtMedia, MediaItem{Contents: []MediaContent{
		{URL: "https://example.com/no-type.mp3"},
		{URL: "https://example.com/ep1.mp3", Type: "audio/mpeg", FileSize: 123456},
	}})
	item.Extensions.Set(ExtPodcast, PodcastItem{Duration: 754 * time.Second, Episode: 1, Season: 2})

	rss, err := generator.Run("podcast", source, []Item{item})
	if err != nil {
		t.Fatal(err)
	}

	expected := []string{
		"<itunes:author>John Doe</itunes:author>",
		`<itunes:image href="https://example.com/cover.jpg" />`,
		"<itunes:explicit>yes</itunes:explicit>",
		`<enclosure url="https://example.com/ep1.mp3" length="123456" type="audio/mpeg" />`,
		"<itunes:duration>754</itunes:duration>",
		"<itunes:episode>1</itunes:episode>",
		"<itunes:season>2</itunes:season>",
	}
	for _, want := range expected {
		if !strings.Contains(rss, want) {
			t.Errorf("RSS should contain %q", want)
		}
	}
	if strings.Count(rss, "<enclosure") != 1 {
		t.Error("RSS should contain exactly one enclosure")
	}
}

func TestGenerateWithSpecialCharacters(t *testing.T) {
	setupTestConfig()
	generator := NewGenerator()

	source := &Feed{
		Title: "Feed with <special> & \"characters\"",
		Link:  "https://example.com",
	}

	items := []Item{
		{
			ID:          "special-item",
			Title:       "Item with <tags> & \"quotes\"",
			Description: "Description with <em>emphasis</em>",
			Content:     "Content with <strong>bold</strong> & special chars: <>&\"'",
			Categories:  []string{"Category & Ampersand"},
		},
	}

	rss, err := generator.Run("special-feed", source, items)
	if err != nil {
		t.Fatalf("Expected no error with special characters, got: %v", err)
	}

	if !strings.Contains(rss, "Feed with &lt;special&gt; &amp; &#34;characters&#34;") {
		t.Error("Feed title should have escaped special characters")
	}
	if !strings.Contains(rss, "Item with &lt;tags&gt; &amp; &#34;quotes&#34;") {
		t.Error("Item title should have escaped special characters")
	}
	if !strings.Contains(rss, "<content:encoded><![CDATA[Content with <strong>bold</strong> & special chars: <>&\"']]></content:encoded>") {
		t.Error("Item content should be in CDATA without escaping")
	}
	if !strings.Contains(rss, "Category &amp; Ampersand") {
		t.Error("Category with ampersand should be escaped")
	}
}

func TestGenerateContentWithCDATATerminator(t *testing.T) {
	setupTestConfig()

	content := "<p>see <![CDATA[x]]> here</p>"
	items := []Item{{ID: "cdata", Title: "Nested CDATA", Content: content}}

	rss, err := NewGenerator().Run("cdata-feed", &Feed{Title: "CDATA", Link: "https://example.com"}, items)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	var doc struct {
		Items []struct {
			Encoded string `xml:"http://purl.org/rss/1.0/modules/content/ encoded"`
		} `xml:"channel>item"`
	}
	if err := xml.Unmarshal([]byte(rss), &doc); err != nil {
		t.Fatalf("Expected well-formed XML, got: %v\n%s", err, rss)
	}
	if len(doc.Items) != 1 || doc.Items[0].Encoded != content {
		t.Errorf("Expected content to survive a decode, got %+v", doc.Items)
	}
}

func TestGenerateWithNilFeed(t *testing.T) {
	setupTestConfig()
	if _, err := NewGenerator().Run("nil", nil, nil); err == nil {
		t.Error("Expected error for nil feed")
	}
}

func TestIsURLMethod(t *testing.T) {
	generator := NewGenerator()

	tests := []struct {
		input    string
		expected bool
	}{
		{"", false},
		{"http://example.com", true},
		{"https://example.com", true},
		{"ftp://example.com", false},
		{"http://", false},
		{"urn:uuid:7bd204c6-1655-4c27-aeee-53f933c5395f", false},
	}

	for _, test := range tests {
		if result := generator.isURL(test.input); result != test.expected {
			t.Errorf("For input '%s', expected %v, got %v", test.input, test.expected, result)
		}
	}
}
