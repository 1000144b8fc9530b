package database

import (
	"time"

	"github.com/lysyi3m/syndication/app/feed"
)

type Feed struct {
	ID               string // Database UUID
	Name             string // Subscription name derived from the config filename
	FeedURL          string // URL from configuration
	ResolvedURL      string // URL the document was finally read from, after discovery
	Link             string
	Title            string
	Description      string
	ImageURL         string
	Language         string
	FeedType         string
	Hub              string
	ETag             string
	LastModified     *time.Time
	WebSubSecret     string
	WebSubLeaseUntil *time.Time
	LastFetchedAt    *time.Time
	NextFetchAt      *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Canonical rebuilds the feed-level model used for rendering.
func (f *Feed) Canonical() *feed.Feed {
	return &feed.Feed{
		Type:        feed.Type(f.FeedType),
		Title:       f.Title,
		Description: f.Description,
		Link:        f.Link,
		FeedLink:    f.ResolvedURL,
		Hub:         f.Hub,
		ImageURL:    f.ImageURL,
		Language:    f.Language,
	}
}

type Item struct {
	ID           string
	FeedID       string
	GUID         string
	Link         string
	Title        string
	Description  string
	Content      string
	Author       string
	Categories   []string
	Extensions   feed.Extensions
	PublishedAt  *time.Time
	UpdatedAt    *time.Time
	IsFiltered   bool
	FilterReason string
	ContentHash  string
	CreatedAt    time.Time
}

func (i *Item) Canonical() feed.Item {
	return feed.Item{
		ID:          i.GUID,
		Title:       i.Title,
		Description: i.Description,
		Content:     i.Content,
		Link:        i.Link,
		Author:      i.Author,
		Categories:  i.Categories,
		Published:   i.PublishedAt,
		Updated:     i.UpdatedAt,
		Extensions:  i.Extensions,
	}
}

// FeedMetadata is what a successful read tells us about the feed itself.
type FeedMetadata struct {
	ResolvedURL string
	Link        string
	Title       string
	Description string
	ImageURL    string
	Language    string
	FeedType    string
	Hub         string
}

func MetadataFromFeed(resolvedURL string, f *feed.Feed) FeedMetadata {
	return FeedMetadata{
		ResolvedURL: resolvedURL,
		Link:        f.Link,
		Title:       f.Title,
		Description: f.Description,
		ImageURL:    f.ImageURL,
		Language:    f.Language,
		FeedType:    string(f.Type),
		Hub:         f.Hub,
	}
}

// FetchState carries the validators for the next conditional request.
type FetchState struct {
	ETag         string
	LastModified *time.Time
}
