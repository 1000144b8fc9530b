package api

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/syndication/app/parser"
	"github.com/lysyi3m/syndication/app/reader"
)

// APIRead performs a live read of ?url= and returns the canonical feed.
func (h *Handler) APIRead(c *gin.Context) {
	target := strings.TrimSpace(c.Query("url"))
	u, err := url.Parse(target)
	if target == "" || err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Query parameter 'url' must be an http(s) URL"})
		return
	}

	resp, err := h.reader.ReadURL(c.Request.Context(), target, c.GetHeader("If-None-Match"), nil)
	if err != nil {
		h.readError(c, target, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"url":           resp.URL,
		"status_code":   resp.StatusCode,
		"etag":          resp.ETag,
		"last_modified": resp.LastModified,
		"content_type":  resp.ContentType,
		"feed":          resp.Feed,
	})
}

// APIParse runs the request body through the format registry.
func (h *Handler) APIParse(c *gin.Context) {
	body := http.MaxBytesReader(c.Writer, c.Request.Body, reader.DefaultMaxBodySize)

	f, err := h.reader.ReadStream(c.Request.Context(), body, c.GetHeader("Content-Type"))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request body too large"})
			return
		}
		h.readError(c, "", err)
		return
	}

	c.JSON(http.StatusOK, f)
}

// APIDiscover lists the feeds an HTML page in the body advertises.
func (h *Handler) APIDiscover(c *gin.Context) {
	page, err := io.ReadAll(io.LimitReader(c.Request.Body, reader.DefaultMaxBodySize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	feeds := make([]string, 0)
	if len(bytes.TrimSpace(page)) > 0 {
		for link := range parser.Discover(string(page), c.Query("base")) {
			feeds = append(feeds, link)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"feeds": feeds,
		"total": len(feeds),
	})
}

func (h *Handler) readError(c *gin.Context, target string, err error) {
	status := http.StatusInternalServerError
	var transportErr *reader.TransportError

	switch {
	case errors.Is(err, reader.ErrEmptyInput):
		status = http.StatusBadRequest
	case errors.Is(err, reader.ErrUnsupportedFormat):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, parser.ErrMalformedInput):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &transportErr):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		slog.Error("Read failed", "url", target, "error", err)
	} else {
		slog.Debug("Read rejected", "url", target, "status", status, "error", err)
	}

	c.JSON(status, gin.H{"error": err.Error()})
}
