package api

import (
	"cmp"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/syndication/app/database"
	"github.com/lysyi3m/syndication/app/feed"
	"github.com/lysyi3m/syndication/app/tasks"
)

func NewHandler(configCache *feed.ConfigCache, feedRepo database.FeedRepository,
	itemRepo database.ItemRepository, filterer *feed.Filterer, reader FeedReader,
	scheduler tasks.TaskSchedulerInterface) *Handler {
	return &Handler{
		feedRepo:    feedRepo,
		itemRepo:    itemRepo,
		generator:   feed.NewGenerator(),
		configCache: configCache,
		filterer:    filterer,
		reader:      reader,
		scheduler:   scheduler,
	}
}

func (h *Handler) GetFeed(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		slog.Debug("Feed configuration not found", "feed", name, "error", err)
		c.Status(http.StatusNotFound)
		return
	}

	stored, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if stored == nil {
		slog.Warn("Feed not found in database", "feed", name)
		c.Status(http.StatusNotFound)
		return
	}

	items, err := h.itemRepo.GetVisibleItems(name, feedConfig.Settings.MaxItems)
	if err != nil {
		slog.Error("Database error", "operation", "get_items", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	canonical := stored.Canonical()
	canonical.Title = cmp.Or(feedConfig.Title, canonical.Title, name)

	feedItems := make([]feed.Item, len(items))
	for i := range items {
		feedItems[i] = items[i].Canonical()
	}

	rss, err := h.generator.Run(name, canonical, feedItems)
	if err != nil {
		slog.Error("RSS generation error", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Header("X-Feed-Items", strconv.Itoa(len(items)))
	c.Header("X-Feed-Name", name)
	c.Header("X-Last-Updated", stored.UpdatedAt.Format(time.RFC3339))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(rss))
}

func (h *Handler) GetHealth(c *gin.Context) {
	health := gin.H{
		"status":                "ok",
		"timestamp":             time.Now().In(time.Local).Format(time.RFC3339),
		"loaded_configurations": h.configCache.GetConfigCount(),
	}

	feedCount, err := h.feedRepo.GetFeedCount()
	if err != nil {
		slog.Error("Database error", "operation", "get_feed_count", "error", err)
		health["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, health)
		return
	}
	health["feeds"] = feedCount

	c.JSON(http.StatusOK, health)
}

func (h *Handler) APIListFeeds(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	slices.Sort(names)

	feeds := make([]gin.H, 0, len(configs))
	for _, name := range names {
		feedConfig := configs[name]
		feedInfo := gin.H{
			"name":             feedConfig.Name,
			"url":              feedConfig.URL,
			"title":            feedConfig.Title,
			"enabled":          feedConfig.Settings.Enabled,
			"websub":           feedConfig.Settings.WebSub,
			"max_items":        feedConfig.Settings.MaxItems,
			"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
			"filters":          len(feedConfig.Filters),
		}

		if stored, err := h.feedRepo.GetFeed(name); err == nil && stored != nil {
			feedInfo["title"] = cmp.Or(feedConfig.Title, stored.Title)
			feedInfo["type"] = stored.FeedType
			feedInfo["last_fetched_at"] = stored.LastFetchedAt
			feedInfo["next_fetch_at"] = stored.NextFetchAt
			feedInfo["updated_at"] = stored.UpdatedAt
		}

		if itemCount, err := h.itemRepo.GetItemCount(name); err == nil {
			feedInfo["item_count"] = itemCount
		}

		feeds = append(feeds, feedInfo)
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) APIGetFeedDetails(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	stored, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database error"})
		return
	}
	if stored == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed not found in database"})
		return
	}

	details := gin.H{
		"name":             name,
		"url":              feedConfig.URL,
		"title":            cmp.Or(feedConfig.Title, stored.Title),
		"enabled":          feedConfig.Settings.Enabled,
		"max_items":        feedConfig.Settings.MaxItems,
		"refresh_interval": (time.Duration(feedConfig.Settings.RefreshInterval) * time.Second).String(),
		"timeout":          (time.Duration(feedConfig.Settings.Timeout) * time.Second).String(),
		"filters":          feedConfig.Filters,
		"database": gin.H{
			"id":              stored.ID,
			"resolved_url":    stored.ResolvedURL,
			"link":            stored.Link,
			"type":            stored.FeedType,
			"language":        stored.Language,
			"etag":            stored.ETag,
			"last_modified":   stored.LastModified,
			"last_fetched_at": stored.LastFetchedAt,
			"next_fetch_at":   stored.NextFetchAt,
			"created_at":      stored.CreatedAt,
			"updated_at":      stored.UpdatedAt,
		},
		"websub": gin.H{
			"enabled":     feedConfig.Settings.WebSub,
			"hub":         stored.Hub,
			"lease_until": stored.WebSubLeaseUntil,
		},
	}

	if total, visible, filtered, err := h.itemRepo.GetItemStats(name); err == nil {
		details["items"] = gin.H{
			"total":    total,
			"visible":  visible,
			"filtered": filtered,
		}
	}

	c.JSON(http.StatusOK, details)
}

func (h *Handler) APIReloadFeed(c *gin.Context) {
	name := c.Param("name")

	if _, err := h.configCache.GetConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Feed configuration not found"})
		return
	}

	feedConfig, err := h.configCache.LoadConfig(name)
	if err != nil {
		slog.Error("Error reloading configuration", "feed", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to reload configuration",
			"details": err.Error(),
		})
		return
	}

	syncFeedTask := tasks.NewSyncFeedConfigTask(name, feedConfig, h.feedRepo)
	refilterFeedTask := tasks.NewRefilterFeedTask(name, feedConfig, h.filterer, h.itemRepo)

	for _, task := range []tasks.TaskInterface{syncFeedTask, refilterFeedTask} {
		if err := h.scheduler.EnqueueTask(task); err != nil {
			slog.Error("Error enqueueing task", "type", task.GetType(), "feed", name, "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "Failed to enqueue task",
				"details": err.Error(),
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Configuration reloaded and tasks enqueued successfully",
		"feed": gin.H{
			"name":  name,
			"title": feedConfig.Title,
			"url":   feedConfig.URL,
		},
		"tasks": []gin.H{
			{"id": syncFeedTask.ID, "type": syncFeedTask.Type},
			{"id": refilterFeedTask.ID, "type": refilterFeedTask.Type},
		},
	})
}
