package parser

import (
	"testing"
	"time"

	"github.com/lysyi3m/syndication/app/feed"
)

const podcastFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>My Podcast</title>
    <itunes:author>John Doe</itunes:author>
    <itunes:summary>A fast-paced tech podcast.</itunes:summary>
    <itunes:explicit>no</itunes:explicit>
    <itunes:image href="http://example.com/cover.jpg" />
    <itunes:category text="Technology" />
    <itunes:owner>
      <itunes:name>John Doe</itunes:name>
      <itunes:email>john@example.com</itunes:email>
    </itunes:owner>
    <item>
      <title>Episode 1</title>
      <enclosure url="http://example.com/ep1.mp3" length="5650889" type="audio/mpeg" />
      <itunes:duration>12:34</itunes:duration>
      <itunes:episode>1</itunes:episode>
      <itunes:season>2</itunes:season>
      <itunes:episodeType>full</itunes:episodeType>
    </item>
    <item>
      <title>Episode 2</title>
      <itunes:duration>754</itunes:duration>
      <itunes:episode>not-a-number</itunes:episode>
    </item>
  </channel>
</rss>`

func TestPodcastExtension(t *testing.T) {
	f := mustParse(t, NewRSS(), podcastFixture)

	podcast, ok := f.Podcast()
	if !ok {
		t.Fatal("Expected itunes extension on feed")
	}
	want := feed.PodcastFeed{
		Author:     "John Doe",
		Summary:    "A fast-paced tech podcast.",
		OwnerName:  "John Doe",
		OwnerEmail: "john@example.com",
		ImageURL:   "http://example.com/cover.jpg",
		Category:   "Technology",
	}
	if podcast != want {
		t.Errorf("Unexpected podcast feed data:\n got %+v\nwant %+v", podcast, want)
	}

	first, ok := f.Items[0].Podcast()
	if !ok {
		t.Fatal("Expected itunes extension on first item")
	}
	if first.RawDuration != "12:34" {
		t.Errorf("Expected raw duration '12:34', got '%s'", first.RawDuration)
	}
	if first.Episode != 1 || first.Season != 2 || first.EpisodeType != "full" {
		t.Errorf("Unexpected episode data %+v", first)
	}

	second, ok := f.Items[1].Podcast()
	if !ok {
		t.Fatal("Expected itunes extension on second item")
	}
	if second.Duration != first.Duration {
		t.Errorf("754 and 12:34 should normalize to the same duration, got %v and %v", second.Duration, first.Duration)
	}
	if second.Episode != 0 {
		t.Errorf("Invalid episode number should degrade to zero, got %d", second.Episode)
	}

	media, ok := f.Items[0].Media()
	if !ok || len(media.Contents) != 1 {
		t.Fatalf("Expected enclosure as media content, got %+v", media)
	}
	if media.Contents[0].FileSize != 5650889 || media.Contents[0].Type != "audio/mpeg" {
		t.Errorf("Unexpected enclosure content %+v", media.Contents[0])
	}
	if _, ok := f.Items[1].Media(); ok {
		t.Error("Item without enclosure or media fields should carry no media extension")
	}
}

func TestPodcastNamespaceWithoutFields(t *testing.T) {
	doc := `<?xml version="1.0"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Declared only</title>
    <itunes:explicit>no</itunes:explicit>
    <item><title>Plain</title></item>
  </channel>
</rss>`

	f := mustParse(t, NewRSS(), doc)
	if _, ok := f.Extensions[feed.ExtPodcast]; ok {
		t.Error("Channel with no meaningful itunes fields must not carry the itunes key")
	}
	if _, ok := f.Items[0].Extensions[feed.ExtPodcast]; ok {
		t.Error("Item with no itunes fields must not carry the itunes key")
	}
}

func TestMediaExtension(t *testing.T) {
	doc := `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:media="http://search.yahoo.com/mrss/">
  <channel>
    <title>Video Feed</title>
    <item>
      <title>Big Buck Bunny</title>
      <media:title>Big Buck Bunny Movie</media:title>
      <media:thumbnail url="http://example.com/thumb.jpg" />
      <media:content url="http://example.com/movie.mp4" fileSize="123456" type="video/mp4" medium="video" width="1280" height="bogus" />
    </item>
    <item>
      <title>Grouped</title>
      <media:group>
        <media:content url="http://example.com/a.mp4" type="video/mp4" />
        <media:content url="http://example.com/b.webm" type="video/webm" />
      </media:group>
    </item>
  </channel>
</rss>`

	f := mustParse(t, NewRSS(), doc)

	media, ok := f.Items[0].Media()
	if !ok {
		t.Fatal("Expected media extension")
	}
	if media.Title != "Big Buck Bunny Movie" {
		t.Errorf("Unexpected media title '%s'", media.Title)
	}
	if media.ThumbnailURL != "http://example.com/thumb.jpg" {
		t.Errorf("Unexpected thumbnail '%s'", media.ThumbnailURL)
	}
	if len(media.Contents) != 1 {
		t.Fatalf("Expected 1 media content, got %d", len(media.Contents))
	}
	want := feed.MediaContent{URL: "http://example.com/movie.mp4", Type: "video/mp4", Medium: "video", FileSize: 123456, Width: 1280}
	if media.Contents[0] != want {
		t.Errorf("Unexpected media content:\n got %+v\nwant %+v", media.Contents[0], want)
	}

	grouped, ok := f.Items[1].Media()
	if !ok || len(grouped.Contents) != 2 {
		t.Fatalf("Expected 2 grouped contents, got %+v", grouped)
	}
	if grouped.Contents[1].URL != "http://example.com/b.webm" {
		t.Errorf("Group order should be kept, got %+v", grouped.Contents)
	}
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		input string
		want  time.Duration
	}{
		{"754", 754 * time.Second},
		{"12:34", 12*time.Minute + 34*time.Second},
		{"1:02:03", time.Hour + 2*time.Minute + 3*time.Second},
		{" 90 ", 90 * time.Second},
		{"", 0},
		{"soon", 0},
		{"1:2:3:4", 0},
		{"-5", 0},
	}

	for _, test := range tests {
		if got := parseDuration(test.input); got != test.want {
			t.Errorf("parseDuration(%q) = %v, want %v", test.input, got, test.want)
		}
	}
}
