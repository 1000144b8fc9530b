package feed

import (
	"time"
)

// Type identifies the wire format a Feed was read from.
type Type string

const (
	TypeUnknown     Type = "unknown"
	TypeRSS         Type = "rss"
	TypeAtom        Type = "atom"
	TypeJSON        Type = "json"
	TypeActivityPub Type = "activitypub"
)

// Feed is the canonical representation every format parser produces.
type Feed struct {
	Type        Type       `json:"type"`
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Link        string     `json:"link,omitempty"`
	FeedLink    string     `json:"feed_link,omitempty"`
	Hub         string     `json:"hub,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	Language    string     `json:"language,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Copyright   string     `json:"copyright,omitempty"`
	Generator   string     `json:"generator,omitempty"`
	Items       []Item     `json:"items"`
	Extensions  Extensions `json:"extensions,omitempty"`
}

// Item is a single entry of a Feed. Items keep document order.
type Item struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Content     string     `json:"content,omitempty"`
	Link        string     `json:"link,omitempty"`
	Author      string     `json:"author,omitempty"`
	Categories  []string   `json:"categories,omitempty"`
	Published   *time.Time `json:"published,omitempty"`
	Updated     *time.Time `json:"updated,omitempty"`
	Extensions  Extensions `json:"extensions,omitempty"`
}

// FilteredItem is an Item with the verdict of the subscription filters.
type FilteredItem struct {
	Item
	ContentHash  string
	IsFiltered   bool
	FilterReason string
}

type Config struct {
	Name     string         `yaml:"-"` // Derived from filename (without .yml extension)
	URL      string         `yaml:"url"`
	Title    string         `yaml:"title,omitempty"`
	Settings ConfigSettings `yaml:"settings"`
	Filters  []ConfigFilter `yaml:"filters,omitempty"`
}

type ConfigSettings struct {
	Enabled         bool `yaml:"enabled"`
	RefreshInterval int  `yaml:"refresh_interval"` // seconds
	MaxItems        int  `yaml:"max_items"`
	Timeout         int  `yaml:"timeout"` // seconds
	WebSub          bool `yaml:"websub"`  // subscribe to the hub the feed advertises
}

type ConfigFilter struct {
	Field    string   `yaml:"field"`
	Includes []string `yaml:"includes,omitempty"`
	Excludes []string `yaml:"excludes,omitempty"`
}
