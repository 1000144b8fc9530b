package api

import (
	"bytes"
	"cmp"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/syndication/app/feed"
	"github.com/lysyi3m/syndication/app/opml"
	"github.com/lysyi3m/syndication/app/reader"
	"github.com/lysyi3m/syndication/app/tasks"
)

const opmlTitle = "Syndication subscriptions"

func (h *Handler) APIExportOPML(c *gin.Context) {
	configs := h.configCache.GetConfigs()

	names := make([]string, 0, len(configs))
	for name := range configs {
		names = append(names, name)
	}
	slices.Sort(names)

	now := time.Now().UTC()
	doc := &opml.Document{Title: opmlTitle, DateCreated: &now}
	for _, name := range names {
		feedConfig := configs[name]
		outline := opml.Outline{
			Text:   cmp.Or(feedConfig.Title, name),
			Type:   "rss",
			XMLURL: feedConfig.URL,
		}
		if stored, err := h.feedRepo.GetFeed(name); err == nil && stored != nil {
			outline.Text = cmp.Or(feedConfig.Title, stored.Title, name)
			outline.HTMLURL = stored.Link
		}
		doc.Outlines = append(doc.Outlines, outline)
	}

	var buf bytes.Buffer
	if err := opml.Write(&buf, doc); err != nil {
		slog.Error("OPML export failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to write OPML"})
		return
	}

	c.Header("Content-Disposition", `attachment; filename="subscriptions.opml"`)
	c.Data(http.StatusOK, "text/x-opml; charset=utf-8", buf.Bytes())
}

// APIImportOPML creates a subscription file for every feed outline that
// does not already exist.
func (h *Handler) APIImportOPML(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, reader.DefaultMaxBodySize)

	doc, err := opml.Parse(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid OPML document", "details": err.Error()})
		return
	}

	imported := make([]string, 0)
	skipped := make([]string, 0)
	failed := make([]gin.H, 0)

	for _, outline := range doc.Feeds() {
		name := feed.SlugName(cmp.Or(outline.Text, outline.XMLURL))
		feedConfig := &feed.Config{
			Name:     name,
			URL:      outline.XMLURL,
			Title:    outline.Text,
			Settings: feed.ConfigSettings{Enabled: true},
		}

		if err := h.configCache.SaveConfig(feedConfig); err != nil {
			if errors.Is(err, feed.ErrConfigExists) {
				skipped = append(skipped, name)
				continue
			}
			failed = append(failed, gin.H{"url": outline.XMLURL, "error": err.Error()})
			continue
		}

		if err := h.scheduler.EnqueueTask(tasks.NewSyncFeedConfigTask(name, feedConfig, h.feedRepo)); err != nil {
			slog.Warn("Failed to enqueue SyncFeedConfigTask", "feed", name, "error", err)
		}
		imported = append(imported, name)
	}

	slog.Info("OPML imported", "imported", len(imported), "skipped", len(skipped), "failed", len(failed))

	c.JSON(http.StatusOK, gin.H{
		"imported": imported,
		"skipped":  skipped,
		"failed":   failed,
	})
}
