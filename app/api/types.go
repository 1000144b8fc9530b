package api

import (
	"context"
	"io"
	"time"

	"github.com/lysyi3m/syndication/app/database"
	"github.com/lysyi3m/syndication/app/feed"
	"github.com/lysyi3m/syndication/app/reader"
	"github.com/lysyi3m/syndication/app/tasks"
)

type GeneratorInterface interface {
	Run(name string, feed *feed.Feed, items []feed.Item) (string, error)
}

var _ GeneratorInterface = (*feed.Generator)(nil)

type FeedReader interface {
	ReadURL(ctx context.Context, url, etag string, lastModified *time.Time) (*reader.FeedResponse, error)
	ReadStream(ctx context.Context, body io.Reader, contentType string) (*feed.Feed, error)
}

var _ FeedReader = (*reader.Reader)(nil)

type Handler struct {
	feedRepo    database.FeedRepository
	itemRepo    database.ItemRepository
	generator   GeneratorInterface
	configCache *feed.ConfigCache
	filterer    *feed.Filterer
	reader      FeedReader
	scheduler   tasks.TaskSchedulerInterface
}
