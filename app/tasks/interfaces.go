package tasks

import (
	"context"
	"time"

	"github.com/lysyi3m/syndication/app/reader"
)

// TaskSchedulerInterface is what the API needs from the scheduler: run it,
// stop it, and hand it work.
//
//	scheduler := NewScheduler(configCache, feedRepo, itemRepo, feedReader, filterer, hubClient)
//	scheduler.Start()
//	defer scheduler.Stop()
//	scheduler.EnqueueTask(NewProcessFeedTask(...))
type TaskSchedulerInterface interface {
	Start()
	Stop()
	EnqueueTask(task TaskInterface) error
}

type FeedReader interface {
	ReadURL(ctx context.Context, url, etag string, lastModified *time.Time) (*reader.FeedResponse, error)
}

var _ FeedReader = (*reader.Reader)(nil)

type HubSubscriber interface {
	Subscribe(ctx context.Context, hub, topic, callback, secret string, lease time.Duration) error
}

type Enqueuer func(task TaskInterface) error
