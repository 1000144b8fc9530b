package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/syndication/app/database"
	"github.com/lysyi3m/syndication/app/websub"
)

type SubscribeHubTask struct {
	Task
	Hub       string
	Topic     string
	Callback  string
	hubClient HubSubscriber
	feedRepo  database.FeedRepository
}

func NewSubscribeHubTask(feedName, hub, topic, callback string, hubClient HubSubscriber, feedRepo database.FeedRepository) *SubscribeHubTask {
	return &SubscribeHubTask{
		Task:      NewTask(TaskTypeSubscribeHub, feedName),
		Hub:       hub,
		Topic:     topic,
		Callback:  callback,
		hubClient: hubClient,
		feedRepo:  feedRepo,
	}
}

func (t *SubscribeHubTask) Execute(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	stored, err := t.feedRepo.GetFeed(t.FeedName)
	if err != nil {
		return fmt.Errorf("failed to get feed: %w", err)
	}
	if stored == nil {
		return fmt.Errorf("%w: %s", database.ErrFeedNotFound, t.FeedName)
	}

	secret, err := websub.NewSecret()
	if err != nil {
		return err
	}

	// The hub may verify intent before Subscribe returns, so the secret has
	// to be in place first.
	if err := t.feedRepo.UpdateWebSub(t.FeedName, secret, nil); err != nil {
		return fmt.Errorf("failed to store websub secret: %w", err)
	}

	if err := t.hubClient.Subscribe(ctx, t.Hub, t.Topic, t.Callback, secret, websub.DefaultLease); err != nil {
		t.restore(stored)
		return fmt.Errorf("failed to subscribe to hub: %w", err)
	}

	leaseUntil := time.Now().UTC().Add(websub.DefaultLease)
	if err := t.feedRepo.UpdateWebSub(t.FeedName, secret, &leaseUntil); err != nil {
		return fmt.Errorf("failed to store websub lease: %w", err)
	}

	slog.Info("Task completed",
		"type", "SubscribeHub",
		"feed", t.FeedName,
		"hub", t.Hub,
		"topic", t.Topic,
		"duration", t.GetDuration())

	return nil
}

// restore puts back the subscription that was active before a failed
// request, or clears the secret when there was none.
func (t *SubscribeHubTask) restore(previous *database.Feed) {
	secret, leaseUntil := "", (*time.Time)(nil)
	if previous.WebSubLeaseUntil != nil && previous.WebSubLeaseUntil.After(time.Now()) {
		secret, leaseUntil = previous.WebSubSecret, previous.WebSubLeaseUntil
	}
	if err := t.feedRepo.UpdateWebSub(t.FeedName, secret, leaseUntil); err != nil {
		slog.Error("Failed to restore websub state", "feed", t.FeedName, "error", err)
	}
}
