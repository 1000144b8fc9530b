package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/syndication/app/database"
	"github.com/lysyi3m/syndication/app/feed"
)

// PushFeedTask stores a document a WebSub hub delivered to the callback.
type PushFeedTask struct {
	Task
	FeedConfig *feed.Config
	Feed       *feed.Feed
	filterer   *feed.Filterer
	itemRepo   database.ItemRepository
}

func NewPushFeedTask(feedName string, feedConfig *feed.Config, pushed *feed.Feed, filterer *feed.Filterer, itemRepo database.ItemRepository) *PushFeedTask {
	return &PushFeedTask{
		Task:       NewTask(TaskTypePushFeed, feedName),
		FeedConfig: feedConfig,
		Feed:       pushed,
		filterer:   filterer,
		itemRepo:   itemRepo,
	}
}

func (t *PushFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stats, err := ingestItems(t.FeedName, t.FeedConfig, t.Feed.Items, t.filterer, t.itemRepo)
	if err != nil {
		return fmt.Errorf("failed to store pushed items: %w", err)
	}

	slog.Info("Task completed",
		"type", "PushFeed",
		"feed", t.FeedName,
		"duration", t.GetDuration(),
		"total", stats.total,
		"duplicates", stats.duplicates,
		"filtered", stats.filtered,
		"new", stats.new)

	return nil
}
