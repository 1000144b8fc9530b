package tasks

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/lysyi3m/syndication/app/database"
	"github.com/lysyi3m/syndication/app/feed"
)

// Hub subscriptions are renewed once they are this close to expiring.
const leaseRenewWindow = time.Hour

type ProcessFeedTask struct {
	Task
	FeedConfig *feed.Config
	reader     FeedReader
	filterer   *feed.Filterer
	feedRepo   database.FeedRepository
	itemRepo   database.ItemRepository
	hubClient  HubSubscriber
	enqueue    Enqueuer
	baseURL    string
}

func NewProcessFeedTask(feedName string, feedConfig *feed.Config, reader FeedReader, filterer *feed.Filterer,
	feedRepo database.FeedRepository, itemRepo database.ItemRepository,
	hubClient HubSubscriber, enqueue Enqueuer, baseURL string) *ProcessFeedTask {
	return &ProcessFeedTask{
		Task:       NewTask(TaskTypeProcessFeed, feedName),
		FeedConfig: feedConfig,
		reader:     reader,
		filterer:   filterer,
		feedRepo:   feedRepo,
		itemRepo:   itemRepo,
		hubClient:  hubClient,
		enqueue:    enqueue,
		baseURL:    baseURL,
	}
}

func (t *ProcessFeedTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !t.FeedConfig.Settings.Enabled {
		slog.Debug("Feed disabled, skipping", "feed", t.FeedName)
		return nil
	}

	stored, err := t.feedRepo.GetFeed(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed: %w", err)
	}
	if stored == nil {
		if err := t.feedRepo.UpsertFeed(t.FeedName, t.FeedConfig.URL); err != nil {
			return fmt.Errorf("failed to register feed: %w", err)
		}
		stored = &database.Feed{Name: t.FeedName, FeedURL: t.FeedConfig.URL}
	}

	var etag string
	var lastModified *time.Time
	if stored.FeedURL == t.FeedConfig.URL {
		etag, lastModified = stored.ETag, stored.LastModified
	}

	readCtx, cancel := context.WithTimeout(ctx, time.Duration(cmp.Or(t.FeedConfig.Settings.Timeout, 30))*time.Second)
	defer cancel()

	resp, err := t.reader.ReadURL(readCtx, t.FeedConfig.URL, etag, lastModified)
	if err != nil {
		return fmt.Errorf("failed to read feed: %w", err)
	}

	nextFetch := time.Now().UTC().Add(time.Duration(t.FeedConfig.Settings.RefreshInterval) * time.Second)

	if resp.NotModified() {
		state := database.FetchState{ETag: cmp.Or(resp.ETag, etag), LastModified: cmp.Or(resp.LastModified, lastModified)}
		if err := t.feedRepo.UpdateFetchState(t.FeedName, state, nextFetch); err != nil {
			return fmt.Errorf("failed to update fetch state: %w", err)
		}
		slog.Info("Task completed",
			"type", "ProcessedFeed",
			"feed", t.FeedName,
			"duration", t.GetDuration(),
			"not_modified", true)
		return nil
	}

	state := database.FetchState{ETag: resp.ETag, LastModified: resp.LastModified}
	if err := t.feedRepo.UpdateFetchState(t.FeedName, state, nextFetch); err != nil {
		return fmt.Errorf("failed to update fetch state: %w", err)
	}

	if resp.Feed == nil {
		slog.Warn("No feed found", "feed", t.FeedName, "url", resp.URL)
		return nil
	}

	if err := t.feedRepo.UpdateFeedMetadata(t.FeedName, database.MetadataFromFeed(resp.URL, resp.Feed)); err != nil {
		return fmt.Errorf("failed to store feed metadata: %w", err)
	}

	stats, err := ingestItems(t.FeedName, t.FeedConfig, resp.Feed.Items, t.filterer, t.itemRepo)
	if err != nil {
		return fmt.Errorf("failed to store items: %w", err)
	}

	t.maybeSubscribe(stored, resp.URL, resp.Feed)

	slog.Info("Task completed",
		"type", "ProcessedFeed",
		"feed", t.FeedName,
		"format", resp.Feed.Type,
		"duration", t.GetDuration(),
		"total", stats.total,
		"duplicates", stats.duplicates,
		"filtered", stats.filtered,
		"new", stats.new)

	return nil
}

func (t *ProcessFeedTask) maybeSubscribe(stored *database.Feed, resolvedURL string, f *feed.Feed) {
	if !t.FeedConfig.Settings.WebSub || f.Hub == "" || t.baseURL == "" || t.enqueue == nil || t.hubClient == nil {
		return
	}
	if stored.Hub == f.Hub && stored.WebSubLeaseUntil != nil && time.Until(*stored.WebSubLeaseUntil) > leaseRenewWindow {
		return
	}

	topic := cmp.Or(f.FeedLink, resolvedURL)
	task := NewSubscribeHubTask(t.FeedName, f.Hub, topic, CallbackURL(t.baseURL, t.FeedName), t.hubClient, t.feedRepo)
	if err := t.enqueue(task); err != nil {
		slog.Warn("Failed to enqueue SubscribeHubTask", "feed", t.FeedName, "error", err)
	}
}

// CallbackURL is where hubs deliver content for feedName.
func CallbackURL(baseURL, feedName string) string {
	return strings.TrimRight(baseURL, "/") + "/websub/" + url.PathEscape(feedName)
}
