package feed

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// Namespace keys under which extension payloads are stored.
const (
	ExtPodcast     = "itunes"
	ExtMedia       = "media"
	ExtActivityPub = "activitypub"
	ExtJSONLD      = "jsonld"
)

// Extension is a namespaced payload riding alongside a Feed or Item.
// The set of implementations is closed to this package.
type Extension interface {
	extensionKind() string
}

// Extensions maps a namespace key to its payload.
type Extensions map[string]Extension

type PodcastFeed struct {
	Author     string `json:"author,omitempty"`
	Subtitle   string `json:"subtitle,omitempty"`
	Summary    string `json:"summary,omitempty"`
	OwnerName  string `json:"owner_name,omitempty"`
	OwnerEmail string `json:"owner_email,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
	Category   string `json:"category,omitempty"`
	Explicit   bool   `json:"explicit,omitempty"`
}

type PodcastItem struct {
	RawDuration string        `json:"raw_duration,omitempty"`
	Duration    time.Duration `json:"duration,omitempty"`
	Subtitle    string        `json:"subtitle,omitempty"`
	Summary     string        `json:"summary,omitempty"`
	ImageURL    string        `json:"image_url,omitempty"`
	Explicit    bool          `json:"explicit,omitempty"`
	Episode     int           `json:"episode,omitempty"`
	Season      int           `json:"season,omitempty"`
	EpisodeType string        `json:"episode_type,omitempty"`
}

type MediaItem struct {
	Title        string         `json:"title,omitempty"`
	Description  string         `json:"description,omitempty"`
	ThumbnailURL string         `json:"thumbnail_url,omitempty"`
	Contents     []MediaContent `json:"contents,omitempty"`
}

// MediaContent describes one media object. Zero numeric fields mean the
// attribute was absent or unparsable.
type MediaContent struct {
	URL      string `json:"url"`
	Type     string `json:"type,omitempty"`
	Medium   string `json:"medium,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// Flag marks that a format-specific signal was detected.
type Flag bool

func (PodcastFeed) extensionKind() string { return "podcast_feed" }
func (PodcastItem) extensionKind() string { return "podcast_item" }
func (MediaItem) extensionKind() string   { return "media" }
func (Flag) extensionKind() string        { return "flag" }

// Podcast returns the channel-level podcast payload, if any.
func (f *Feed) Podcast() (PodcastFeed, bool) {
	p, ok := f.Extensions[ExtPodcast].(PodcastFeed)
	return p, ok
}

// HasFlag reports whether the feed carries a Flag under key.
func (f *Feed) HasFlag(key string) bool {
	v, ok := f.Extensions[key].(Flag)
	return ok && bool(v)
}

// Podcast returns the episode-level podcast payload, if any.
func (i *Item) Podcast() (PodcastItem, bool) {
	p, ok := i.Extensions[ExtPodcast].(PodcastItem)
	return p, ok
}

// Media returns the media payload, if any.
func (i *Item) Media() (MediaItem, bool) {
	m, ok := i.Extensions[ExtMedia].(MediaItem)
	return m, ok
}

// Set stores ext under key, allocating the map on first use.
func (e *Extensions) Set(key string, ext Extension) {
	if *e == nil {
		*e = make(Extensions)
	}
	(*e)[key] = ext
}

type extensionEnvelope struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

func (e Extensions) MarshalJSON() ([]byte, error) {
	out := make(map[string]extensionEnvelope, len(e))
	for key, ext := range e {
		data, err := json.Marshal(ext)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal extension %s: %w", key, err)
		}
		out[key] = extensionEnvelope{Kind: ext.extensionKind(), Data: data}
	}
	return json.Marshal(out)
}

func (e *Extensions) UnmarshalJSON(data []byte) error {
	var raw map[string]extensionEnvelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) == 0 {
		*e = nil
		return nil
	}

	result := make(Extensions, len(raw))
	for key, env := range raw {
		ext, err := decodeExtension(env)
		if err != nil {
			return fmt.Errorf("extension %s: %w", key, err)
		}
		result[key] = ext
	}
	*e = result
	return nil
}

func decodeExtension(env extensionEnvelope) (Extension, error) {
	switch env.Kind {
	case "podcast_feed":
		var v PodcastFeed
		err := json.Unmarshal(env.Data, &v)
		return v, err
	case "podcast_item":
		var v PodcastItem
		err := json.Unmarshal(env.Data, &v)
		return v, err
	case "media":
		var v MediaItem
		err := json.Unmarshal(env.Data, &v)
		return v, err
	case "flag":
		var v bool
		err := json.Unmarshal(env.Data, &v)
		return Flag(v), err
	default:
		return nil, fmt.Errorf("unknown extension kind %q", env.Kind)
	}
}
