package api

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/syndication/app/reader"
	"github.com/lysyi3m/syndication/app/tasks"
	"github.com/lysyi3m/syndication/app/websub"
)

// WebSubVerify answers a hub's intent check. A subscription is confirmed
// only while we hold a secret for it; unsubscription only once we dropped it.
func (h *Handler) WebSubVerify(c *gin.Context) {
	name := c.Param("name")

	v, err := websub.ParseVerification(c.Request.URL.Query())
	if err != nil {
		c.String(http.StatusBadRequest, "%s", err.Error())
		return
	}

	stored, err := h.feedRepo.GetFeed(name)
	if err != nil {
		slog.Error("Database error", "operation", "get_feed", "feed", name, "error", err)
		c.Status(http.StatusInternalServerError)
		return
	}
	if stored == nil {
		c.Status(http.StatusNotFound)
		return
	}

	wanted := stored.WebSubSecret != ""
	if (v.Mode == websub.ModeSubscribe) != wanted {
		slog.Warn("Rejected hub verification", "feed", name, "mode", v.Mode, "topic", v.Topic)
		c.Status(http.StatusNotFound)
		return
	}

	if v.Mode == websub.ModeSubscribe && v.Lease > 0 {
		leaseUntil := time.Now().UTC().Add(v.Lease)
		if err := h.feedRepo.UpdateWebSub(name, stored.WebSubSecret, &leaseUntil); err != nil {
			slog.Error("Failed to store websub lease", "feed", name, "error", err)
		}
	}

	slog.Info("Hub verification confirmed", "feed", name, "mode", v.Mode, "topic", v.Topic, "lease", v.Lease)
	c.String(http.StatusOK, "%s", v.Challenge)
}

// WebSubPush receives content distributed by the hub. Unsigned or badly
// signed payloads are acknowledged and dropped so the hub does not retry.
func (h *Handler) WebSubPush(c *gin.Context) {
	name := c.Param("name")

	feedConfig, err := h.configCache.GetConfig(name)
	if err != nil {
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
		c.Status(http.StatusNotFound)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, reader.DefaultMaxBodySize))
	if err != nil {
		c.Status(http.StatusRequestEntityTooLarge)
		return
	}

	if !websub.VerifySignature(payload, c.GetHeader("X-Hub-Signature"), stored.WebSubSecret) {
		slog.Warn("Dropped push with invalid signature", "feed", name)
		c.Status(http.StatusAccepted)
		return
	}

	pushed, err := h.reader.ReadStream(c.Request.Context(), bytes.NewReader(payload), c.GetHeader("Content-Type"))
	if err != nil {
		slog.Warn("Failed to parse pushed content", "feed", name, "error", err)
		c.Status(http.StatusBadRequest)
		return
	}

	task := tasks.NewPushFeedTask(name, feedConfig, pushed, h.filterer, h.itemRepo)
	if err := h.scheduler.EnqueueTask(task); err != nil {
		slog.Error("Failed to enqueue PushFeedTask", "feed", name, "error", err)
		c.Status(http.StatusServiceUnavailable)
		return
	}

	c.Status(http.StatusAccepted)
}
