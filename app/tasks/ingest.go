package tasks

import (
	"fmt"

	"github.com/lysyi3m/syndication/app/database"
	"github.com/lysyi3m/syndication/app/feed"
)

type ingestStats struct {
	total      int
	duplicates int
	filtered   int
	new        int
}

// ingestItems drops items already stored under the same content hash,
// runs the subscription filters over the rest and stores them.
func ingestItems(feedName string, feedConfig *feed.Config, items []feed.Item, filterer *feed.Filterer, itemRepo database.ItemRepository) (ingestStats, error) {
	stats := ingestStats{total: len(items)}
	if len(items) == 0 {
		return stats, nil
	}

	seen := make(map[string]struct{}, len(items))
	var fresh []feed.Item
	for _, item := range items {
		hash := feed.ContentHash(item)
		if _, ok := seen[hash]; ok {
			stats.duplicates++
			continue
		}
		seen[hash] = struct{}{}

		isDuplicate, _, err := itemRepo.CheckDuplicate(feedName, hash)
		if err != nil {
			return stats, fmt.Errorf("failed to check for duplicates: %w", err)
		}
		if isDuplicate {
			stats.duplicates++
			continue
		}
		fresh = append(fresh, item)
	}

	for _, item := range filterer.Run(fresh, feedConfig) {
		if item.IsFiltered {
			stats.filtered++
		} else {
			stats.new++
		}

		if err := itemRepo.UpsertItem(feedName, item); err != nil {
			return stats, fmt.Errorf("failed to upsert item: %w", err)
		}
	}

	return stats, nil
}
