package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeedRepository = (*feedRepository)(nil)

type feedRepository struct {
	db *DB
}

func NewFeedRepository(db *DB) FeedRepository {
	return &feedRepository{db: db}
}

const feedColumns = `id, name, feed_url, resolved_url, link, title, description, image_url, language,
	feed_type, hub, etag, last_modified, websub_secret, websub_lease_until,
	last_fetched_at, next_fetch_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var f Feed
	var lastModified, leaseUntil, lastFetched, nextFetch sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&f.ID, &f.Name, &f.FeedURL, &f.ResolvedURL, &f.Link, &f.Title, &f.Description, &f.ImageURL, &f.Language,
		&f.FeedType, &f.Hub, &f.ETag, &lastModified, &f.WebSubSecret, &leaseUntil,
		&lastFetched, &nextFetch, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if f.LastModified, err = parseNullTime(lastModified); err != nil {
		return nil, err
	}
	if f.WebSubLeaseUntil, err = parseNullTime(leaseUntil); err != nil {
		return nil, err
	}
	if f.LastFetchedAt, err = parseNullTime(lastFetched); err != nil {
		return nil, err
	}
	if f.NextFetchAt, err = parseNullTime(nextFetch); err != nil {
		return nil, err
	}
	if f.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &f, nil
}

func (r *feedRepository) GetFeed(feedName string) (*Feed, error) {
	row := r.db.QueryRow(`SELECT `+feedColumns+` FROM feeds WHERE name = ?`, feedName)

	f, err := scanFeed(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}

	return f, nil
}

func (r *feedRepository) ListFeeds() ([]Feed, error) {
	rows, err := r.db.Query(`SELECT ` + feedColumns + ` FROM feeds ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list feeds: %w", err)
	}
	defer rows.Close()

	var feeds []Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed row: %w", err)
		}
		feeds = append(feeds, *f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feed rows: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) GetFeedCount() (int, error) {
	var count int
	err := r.db.QueryRow("SELECT COUNT(*) FROM feeds").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get feed count: %w", err)
	}
	return count, nil
}

// UpsertFeed registers a subscription or updates its URL. Changing the URL
// drops the conditional request validators of the old one.
func (r *feedRepository) UpsertFeed(feedName, feedURL string) error {
	now := formatTime(time.Now())

	_, err := r.db.Exec(`
		INSERT INTO feeds (id, name, feed_url, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			etag = CASE WHEN feeds.feed_url = excluded.feed_url THEN feeds.etag ELSE '' END,
			last_modified = CASE WHEN feeds.feed_url = excluded.feed_url THEN feeds.last_modified ELSE NULL END,
			feed_url = excluded.feed_url,
			updated_at = excluded.updated_at
	`, uuid.NewString(), feedName, feedURL, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert feed: %w", err)
	}

	return nil
}

func (r *feedRepository) UpdateFeedMetadata(feedName string, metadata FeedMetadata) error {
	result, err := r.db.Exec(`
		UPDATE feeds
		SET resolved_url = ?, link = ?, title = ?, description = ?, image_url = ?, language = ?,
		    feed_type = ?, hub = ?, updated_at = ?
		WHERE name = ?
	`, metadata.ResolvedURL, metadata.Link, metadata.Title, metadata.Description, metadata.ImageURL, metadata.Language,
		metadata.FeedType, metadata.Hub, formatTime(time.Now()), feedName)
	if err != nil {
		return fmt.Errorf("failed to update feed metadata: %w", err)
	}

	return requireRow(result, feedName)
}

func (r *feedRepository) UpdateFetchState(feedName string, state FetchState, nextFetch time.Time) error {
	result, err := r.db.Exec(`
		UPDATE feeds
		SET etag = ?, last_modified = ?, last_fetched_at = ?, next_fetch_at = ?
		WHERE name = ?
	`, state.ETag, nullableTime(state.LastModified), formatTime(time.Now()), formatTime(nextFetch), feedName)
	if err != nil {
		return fmt.Errorf("failed to update fetch state: %w", err)
	}

	return requireRow(result, feedName)
}

func (r *feedRepository) UpdateWebSub(feedName, secret string, leaseUntil *time.Time) error {
	result, err := r.db.Exec(`
		UPDATE feeds
		SET websub_secret = ?, websub_lease_until = ?, updated_at = ?
		WHERE name = ?
	`, secret, nullableTime(leaseUntil), formatTime(time.Now()), feedName)
	if err != nil {
		return fmt.Errorf("failed to update websub subscription: %w", err)
	}

	return requireRow(result, feedName)
}

func requireRow(result sql.Result, feedName string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrFeedNotFound, feedName)
	}
	return nil
}
