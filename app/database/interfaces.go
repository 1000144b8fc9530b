package database

import (
	"errors"
	"time"

	"github.com/lysyi3m/syndication/app/feed"
)

var ErrFeedNotFound = errors.New("feed not found")

type FeedRepository interface {
	GetFeed(feedName string) (*Feed, error)
	ListFeeds() ([]Feed, error)
	GetFeedCount() (int, error)

	UpsertFeed(feedName, feedURL string) error
	UpdateFeedMetadata(feedName string, metadata FeedMetadata) error
	UpdateFetchState(feedName string, state FetchState, nextFetch time.Time) error
	UpdateWebSub(feedName, secret string, leaseUntil *time.Time) error
}

type ItemRepository interface {
	GetVisibleItems(feedName string, limit int) ([]Item, error)
	GetAllItems(feedName string) ([]Item, error)
	GetItemCount(feedName string) (int, error)
	GetItemStats(feedName string) (int, int, int, error)

	UpsertItem(feedName string, item feed.FilteredItem) error
	UpdateItemFilterStatus(itemID string, isFiltered bool, reason string) error

	CheckDuplicate(feedName, contentHash string) (bool, *string, error)
}
