// Package websub subscribes to WebSub hubs and checks the signatures hubs
// put on content distribution requests.
package websub

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	ModeSubscribe   = "subscribe"
	ModeUnsubscribe = "unsubscribe"

	DefaultLease = 24 * time.Hour
)

type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HubError is returned when a hub answers a (un)subscription request with
// a non-2xx status.
type HubError struct {
	Hub        string
	StatusCode int
	Body       string
}

func (e *HubError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("hub %s rejected request: HTTP %d", e.Hub, e.StatusCode)
	}
	return fmt.Sprintf("hub %s rejected request: HTTP %d: %s", e.Hub, e.StatusCode, e.Body)
}

type Client struct {
	client    Doer
	userAgent string
}

func NewClient(client Doer, userAgent string) *Client {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{client: client, userAgent: userAgent}
}

// Subscribe asks hub to deliver topic to callback. A non-positive lease
// leaves the duration to the hub.
func (c *Client) Subscribe(ctx context.Context, hub, topic, callback, secret string, lease time.Duration) error {
	return c.send(ctx, ModeSubscribe, hub, topic, callback, secret, lease)
}

func (c *Client) Unsubscribe(ctx context.Context, hub, topic, callback, secret string) error {
	return c.send(ctx, ModeUnsubscribe, hub, topic, callback, secret, 0)
}

func (c *Client) send(ctx context.Context, mode, hub, topic, callback, secret string, lease time.Duration) error {
	form := url.Values{}
	form.Set("hub.mode", mode)
	form.Set("hub.topic", topic)
	form.Set("hub.callback", callback)
	if secret != "" {
		form.Set("hub.secret", secret)
	}
	if seconds := int64(lease / time.Second); seconds > 0 {
		form.Set("hub.lease_seconds", strconv.FormatInt(seconds, 10))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hub, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create hub request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to %s at hub: %w", mode, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &HubError{Hub: hub, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return nil
}

// Verification is the intent check a hub sends to the callback with GET.
type Verification struct {
	Mode      string
	Topic     string
	Challenge string
	Lease     time.Duration
}

func ParseVerification(query url.Values) (Verification, error) {
	v := Verification{
		Mode:      query.Get("hub.mode"),
		Topic:     query.Get("hub.topic"),
		Challenge: query.Get("hub.challenge"),
	}
	if v.Mode != ModeSubscribe && v.Mode != ModeUnsubscribe {
		return v, fmt.Errorf("unexpected hub.mode %q", v.Mode)
	}
	if v.Topic == "" || v.Challenge == "" {
		return v, errors.New("missing hub.topic or hub.challenge")
	}
	if raw := query.Get("hub.lease_seconds"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds < 0 {
			return v, fmt.Errorf("invalid hub.lease_seconds %q", raw)
		}
		v.Lease = time.Duration(seconds) * time.Second
	}
	return v, nil
}

// VerifySignature checks an X-Hub-Signature header of the form
// "sha1=<hex>" or "sha256=<hex>" against payload.
func VerifySignature(payload []byte, header, secret string) bool {
	if header == "" || secret == "" {
		return false
	}

	algo, digest, ok := strings.Cut(strings.TrimSpace(header), "=")
	if !ok || strings.Contains(digest, "=") {
		return false
	}

	var newHash func() hash.Hash
	switch strings.ToLower(algo) {
	case "sha1":
		newHash = sha1.New
	case "sha256":
		newHash = sha256.New
	default:
		return false
	}

	want, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}

	mac := hmac.New(newHash, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}

// NewSecret returns a random hex secret for hub.secret.
func NewSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret: %w", err)
	}
	return hex.EncodeToString(b), nil
}
