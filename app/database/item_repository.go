package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/lysyi3m/syndication/app/feed"
)

var _ ItemRepository = (*itemRepository)(nil)

type itemRepository struct {
	db *DB
}

func NewItemRepository(db *DB) ItemRepository {
	return &itemRepository{db: db}
}

const itemColumns = `items.id, items.feed_id, items.guid, items.link, items.title, items.description, items.content,
	items.author, items.categories, items.extensions, items.published_at, items.updated_at,
	items.is_filtered, items.filter_reason, items.content_hash, items.created_at`

func (r *itemRepository) CheckDuplicate(feedName, contentHash string) (bool, *string, error) {
	var duplicateID string
	err := r.db.QueryRow(`
		SELECT items.id FROM items
		JOIN feeds ON feeds.id = items.feed_id
		WHERE feeds.name = ? AND items.content_hash = ?
		LIMIT 1
	`, feedName, contentHash).Scan(&duplicateID)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil, nil
	}
	if err != nil {
		return false, nil, fmt.Errorf("failed to check duplicate: %w", err)
	}

	return true, &duplicateID, nil
}

func (r *itemRepository) UpsertItem(feedName string, item feed.FilteredItem) error {
	var feedID string
	err := r.db.QueryRow("SELECT id FROM feeds WHERE name = ?", feedName).Scan(&feedID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrFeedNotFound, feedName)
	}
	if err != nil {
		return fmt.Errorf("failed to look up feed: %w", err)
	}

	categories := item.Categories
	if categories == nil {
		categories = []string{}
	}
	categoriesJSON, err := json.Marshal(categories)
	if err != nil {
		return fmt.Errorf("failed to marshal categories: %w", err)
	}
	extensionsJSON, err := json.Marshal(item.Extensions)
	if err != nil {
		return fmt.Errorf("failed to marshal extensions: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO items (
			id, feed_id, guid, link, title, description, content, author,
			categories, extensions, published_at, updated_at,
			is_filtered, filter_reason, content_hash, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (feed_id, guid) DO UPDATE SET
			link = excluded.link,
			title = excluded.title,
			description = excluded.description,
			content = excluded.content,
			author = excluded.author,
			categories = excluded.categories,
			extensions = excluded.extensions,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at,
			is_filtered = excluded.is_filtered,
			filter_reason = excluded.filter_reason,
			content_hash = excluded.content_hash
	`, uuid.NewString(), feedID, feed.GUID(item.Item), item.Link, item.Title, item.Description, item.Content, item.Author,
		string(categoriesJSON), string(extensionsJSON), nullableTime(item.Published), nullableTime(item.Updated),
		item.IsFiltered, item.FilterReason, item.ContentHash, formatTime(time.Now()))
	if err != nil {
		return fmt.Errorf("failed to upsert item: %w", err)
	}

	return nil
}

// GetVisibleItems returns non-filtered items, newest first. A non-positive
// limit returns all of them.
func (r *itemRepository) GetVisibleItems(feedName string, limit int) ([]Item, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(`
		SELECT `+itemColumns+`
		FROM items
		JOIN feeds ON feeds.id = items.feed_id
		WHERE feeds.name = ? AND items.is_filtered = 0
		ORDER BY COALESCE(items.published_at, items.created_at) DESC, items.created_at DESC
		LIMIT ?
	`, feedName, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get visible items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *itemRepository) GetAllItems(feedName string) ([]Item, error) {
	rows, err := r.db.Query(`
		SELECT `+itemColumns+`
		FROM items
		JOIN feeds ON feeds.id = items.feed_id
		WHERE feeds.name = ?
		ORDER BY COALESCE(items.published_at, items.created_at) DESC, items.created_at DESC
	`, feedName)
	if err != nil {
		return nil, fmt.Errorf("failed to get all items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

func (r *itemRepository) GetItemCount(feedName string) (int, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(*) FROM items
		JOIN feeds ON feeds.id = items.feed_id
		WHERE feeds.name = ?
	`, feedName).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to get item count: %w", err)
	}
	return count, nil
}

func (r *itemRepository) GetItemStats(feedName string) (total, visible, filtered int, err error) {
	err = r.db.QueryRow(`
		SELECT
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN items.is_filtered = 0 THEN 1 ELSE 0 END), 0) AS visible,
			COALESCE(SUM(CASE WHEN items.is_filtered = 1 THEN 1 ELSE 0 END), 0) AS filtered
		FROM items
		JOIN feeds ON feeds.id = items.feed_id
		WHERE feeds.name = ?
	`, feedName).Scan(&total, &visible, &filtered)

	if err != nil {
		return 0, 0, 0, fmt.Errorf("failed to get item stats: %w", err)
	}

	return total, visible, filtered, nil
}

func (r *itemRepository) UpdateItemFilterStatus(itemID string, isFiltered bool, filterReason string) error {
	_, err := r.db.Exec(`
		UPDATE items
		SET is_filtered = ?, filter_reason = ?
		WHERE id = ?
	`, isFiltered, filterReason, itemID)

	if err != nil {
		return fmt.Errorf("failed to update item filter status: %w", err)
	}

	return nil
}

func scanItems(rows *sql.Rows) ([]Item, error) {
	var items []Item
	for rows.Next() {
		var item Item
		var categoriesJSON, extensionsJSON, createdAt string
		var publishedAt, updatedAt sql.NullString

		err := rows.Scan(
			&item.ID, &item.FeedID, &item.GUID, &item.Link, &item.Title, &item.Description, &item.Content,
			&item.Author, &categoriesJSON, &extensionsJSON, &publishedAt, &updatedAt,
			&item.IsFiltered, &item.FilterReason, &item.ContentHash, &createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item row: %w", err)
		}

		if err := json.Unmarshal([]byte(categoriesJSON), &item.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode categories of item %s: %w", item.ID, err)
		}
		if len(item.Categories) == 0 {
			item.Categories = nil
		}
		if err := json.Unmarshal([]byte(extensionsJSON), &item.Extensions); err != nil {
			return nil, fmt.Errorf("failed to decode extensions of item %s: %w", item.ID, err)
		}
		if item.PublishedAt, err = parseNullTime(publishedAt); err != nil {
			return nil, err
		}
		if item.UpdatedAt, err = parseNullTime(updatedAt); err != nil {
			return nil, err
		}
		if item.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating item rows: %w", err)
	}

	return items, nil
}
