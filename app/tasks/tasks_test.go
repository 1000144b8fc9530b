package tasks

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lysyi3m/syndication/app/cfg"
	"github.com/lysyi3m/syndication/app/database"
	"github.com/lysyi3m/syndication/app/feed"
	"github.com/lysyi3m/syndication/app/reader"
)

const hubFeedBody = `<?xml version="1.0"?>
<rss version="2.0" xmlns:atom="http://www.w3.org/2005/Atom">
  <channel>
    <title>Hub Feed</title>
    <link>https://example.com</link>
    <description>Pushed updates</description>
    <atom:link rel="self" href="https://example.com/feed.xml"/>
    <atom:link rel="hub" href="https://hub.example.com/"/>
    <item><title>Release notes</title><link>https://example.com/1</link><guid>1</guid></item>
    <item><title>Sponsored post</title><link>https://example.com/2</link><guid>2</guid></item>
    <item><title>Release notes</title><link>https://example.com/1</link><guid>1-copy</guid></item>
  </channel>
</rss>`

func setupTestConfig() {
	oldArgs := os.Args
	os.Args = []string{"test"}
	defer func() { os.Args = oldArgs }()

	cfg.Load()
}

func setupRepos(t *testing.T) (database.FeedRepository, database.ItemRepository) {
	t.Helper()

	db, err := database.NewConnection(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := database.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return database.NewFeedRepository(db), database.NewItemRepository(db)
}

func testFeedConfig(url string) *feed.Config {
	return &feed.Config{
		Name: "hub-feed",
		URL:  url,
		Settings: feed.ConfigSettings{
			Enabled:         true,
			RefreshInterval: 3600,
			MaxItems:        100,
			Timeout:         5,
		},
		Filters: []feed.ConfigFilter{
			{Field: "title", Excludes: []string{"sponsored"}},
		},
	}
}

type mockHub struct {
	calls    int
	hub      string
	topic    string
	callback string
	secret   string
	lease    time.Duration
	err      error
}

func (m *mockHub) Subscribe(ctx context.Context, hub, topic, callback, secret string, lease time.Duration) error {
	m.calls++
	m.hub, m.topic, m.callback, m.secret, m.lease = hub, topic, callback, secret, lease
	return m.err
}

func TestProcessFeedTaskStoresItems(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", `"abc"`)
		w.Write([]byte(hubFeedBody))
	}))
	defer server.Close()

	feedRepo, itemRepo := setupRepos(t)
	feedConfig := testFeedConfig(server.URL)

	task := NewProcessFeedTask(feedConfig.Name, feedConfig, reader.New(), feed.NewFilterer(), feedRepo, itemRepo, nil, nil, "")
	task.Start()
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	total, visible, filtered, err := itemRepo.GetItemStats(feedConfig.Name)
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}
	if total != 2 || visible != 1 || filtered != 1 {
		t.Errorf("Expected 2 items (1 visible, 1 filtered), got %d (%d, %d)", total, visible, filtered)
	}

	stored, err := feedRepo.GetFeed(feedConfig.Name)
	if err != nil || stored == nil {
		t.Fatalf("Expected stored feed, got %v (err %v)", stored, err)
	}
	if stored.Title != "Hub Feed" || stored.FeedType != string(feed.TypeRSS) {
		t.Errorf("Unexpected metadata: title %q, type %q", stored.Title, stored.FeedType)
	}
	if stored.Hub != "https://hub.example.com/" {
		t.Errorf("Expected hub to be stored, got %q", stored.Hub)
	}
	if stored.ETag != `"abc"` {
		t.Errorf("Expected ETag to be stored, got %q", stored.ETag)
	}
	if stored.NextFetchAt == nil || time.Until(*stored.NextFetchAt) < 59*time.Minute {
		t.Errorf("Expected next fetch about an hour out, got %v", stored.NextFetchAt)
	}
}

func TestProcessFeedTaskNotModified(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.Header.Get("If-None-Match") == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Header().Set("ETag", `"abc"`)
		w.Write([]byte(hubFeedBody))
	}))
	defer server.Close()

	feedRepo, itemRepo := setupRepos(t)
	feedConfig := testFeedConfig(server.URL)
	feedReader := reader.New()

	for range 2 {
		task := NewProcessFeedTask(feedConfig.Name, feedConfig, feedReader, feed.NewFilterer(), feedRepo, itemRepo, nil, nil, "")
		if err := task.Execute(context.Background()); err != nil {
			t.Fatalf("Expected no error, got: %v", err)
		}
	}

	if requests.Load() != 2 {
		t.Fatalf("Expected 2 requests, got %d", requests.Load())
	}

	stored, _ := feedRepo.GetFeed(feedConfig.Name)
	if stored.ETag != `"abc"` {
		t.Errorf("Expected ETag to survive a 304, got %q", stored.ETag)
	}

	count, _ := itemRepo.GetItemCount(feedConfig.Name)
	if count != 2 {
		t.Errorf("Expected item count to stay at 2, got %d", count)
	}
}

func TestProcessFeedTaskEnqueuesHubSubscription(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(hubFeedBody))
	}))
	defer server.Close()

	feedRepo, itemRepo := setupRepos(t)
	feedConfig := testFeedConfig(server.URL)
	feedConfig.Settings.WebSub = true

	var enqueued []TaskInterface
	enqueue := func(task TaskInterface) error {
		enqueued = append(enqueued, task)
		return nil
	}

	task := NewProcessFeedTask(feedConfig.Name, feedConfig, reader.New(), feed.NewFilterer(), feedRepo, itemRepo,
		&mockHub{}, enqueue, "https://feeds.example.com/")
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if len(enqueued) != 1 {
		t.Fatalf("Expected 1 enqueued task, got %d", len(enqueued))
	}
	sub, ok := enqueued[0].(*SubscribeHubTask)
	if !ok {
		t.Fatalf("Expected SubscribeHubTask, got %T", enqueued[0])
	}
	if sub.Hub != "https://hub.example.com/" {
		t.Errorf("Unexpected hub %q", sub.Hub)
	}
	if sub.Topic != "https://example.com/feed.xml" {
		t.Errorf("Expected self link as topic, got %q", sub.Topic)
	}
	if sub.Callback != "https://feeds.example.com/websub/hub-feed" {
		t.Errorf("Unexpected callback %q", sub.Callback)
	}
}

func TestProcessFeedTaskSkipsFreshLease(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(hubFeedBody))
	}))
	defer server.Close()

	feedRepo, itemRepo := setupRepos(t)
	feedConfig := testFeedConfig(server.URL)
	feedConfig.Settings.WebSub = true

	var enqueued int
	enqueue := func(task TaskInterface) error {
		enqueued++
		return nil
	}

	first := NewProcessFeedTask(feedConfig.Name, feedConfig, reader.New(), feed.NewFilterer(), feedRepo, itemRepo,
		&mockHub{}, func(TaskInterface) error { return nil }, "https://feeds.example.com")
	if err := first.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	leaseUntil := time.Now().Add(12 * time.Hour)
	if err := feedRepo.UpdateWebSub(feedConfig.Name, "secret", &leaseUntil); err != nil {
		t.Fatalf("Failed to store lease: %v", err)
	}

	second := NewProcessFeedTask(feedConfig.Name, feedConfig, reader.New(), feed.NewFilterer(), feedRepo, itemRepo,
		&mockHub{}, enqueue, "https://feeds.example.com")
	if err := second.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if enqueued != 0 {
		t.Errorf("Expected no subscription while the lease is fresh, got %d", enqueued)
	}
}

func TestProcessFeedTaskDisabled(t *testing.T) {
	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
	}))
	defer server.Close()

	feedRepo, itemRepo := setupRepos(t)
	feedConfig := testFeedConfig(server.URL)
	feedConfig.Settings.Enabled = false

	task := NewProcessFeedTask(feedConfig.Name, feedConfig, reader.New(), feed.NewFilterer(), feedRepo, itemRepo, nil, nil, "")
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if requests.Load() != 0 {
		t.Errorf("Expected disabled feed not to be fetched")
	}
}

func TestProcessFeedTaskTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	feedRepo, itemRepo := setupRepos(t)
	feedConfig := testFeedConfig(server.URL)

	task := NewProcessFeedTask(feedConfig.Name, feedConfig, reader.New(), feed.NewFilterer(), feedRepo, itemRepo, nil, nil, "")
	err := task.Execute(context.Background())
	if !errors.Is(err, reader.ErrTransport) {
		t.Fatalf("Expected transport error, got: %v", err)
	}
}

func TestSubscribeHubTask(t *testing.T) {
	feedRepo, _ := setupRepos(t)
	if err := feedRepo.UpsertFeed("hub-feed", "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}

	hub := &mockHub{}
	task := NewSubscribeHubTask("hub-feed", "https://hub.example.com/", "https://example.com/feed.xml",
		"https://feeds.example.com/websub/hub-feed", hub, feedRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if hub.calls != 1 || hub.callback != "https://feeds.example.com/websub/hub-feed" {
		t.Fatalf("Unexpected subscribe call: %+v", hub)
	}
	if len(hub.secret) != 64 {
		t.Errorf("Expected 64 hex char secret, got %q", hub.secret)
	}

	stored, _ := feedRepo.GetFeed("hub-feed")
	if stored.WebSubSecret != hub.secret {
		t.Errorf("Expected stored secret to match the one sent to the hub")
	}
	if stored.WebSubLeaseUntil == nil || stored.WebSubLeaseUntil.Before(time.Now().Add(23*time.Hour)) {
		t.Errorf("Expected lease about a day out, got %v", stored.WebSubLeaseUntil)
	}
}

func TestSubscribeHubTaskFailure(t *testing.T) {
	feedRepo, _ := setupRepos(t)
	if err := feedRepo.UpsertFeed("hub-feed", "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}

	hub := &mockHub{err: errors.New("hub rejected")}
	task := NewSubscribeHubTask("hub-feed", "https://hub.example.com/", "https://example.com/feed.xml",
		"https://feeds.example.com/websub/hub-feed", hub, feedRepo)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error from hub")
	}

	stored, _ := feedRepo.GetFeed("hub-feed")
	if stored.WebSubLeaseUntil != nil {
		t.Errorf("Expected no lease after a failed subscription, got %v", stored.WebSubLeaseUntil)
	}
	if stored.WebSubSecret != "" {
		t.Errorf("Expected the secret to be cleared after a failed subscription, got %q", stored.WebSubSecret)
	}
}

func TestSubscribeHubTaskFailedRenewalKeepsLease(t *testing.T) {
	feedRepo, _ := setupRepos(t)
	if err := feedRepo.UpsertFeed("hub-feed", "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}
	leaseUntil := time.Now().Add(30 * time.Minute)
	if err := feedRepo.UpdateWebSub("hub-feed", "active-secret", &leaseUntil); err != nil {
		t.Fatalf("Failed to store lease: %v", err)
	}

	hub := &mockHub{err: errors.New("hub rejected")}
	task := NewSubscribeHubTask("hub-feed", "https://hub.example.com/", "https://example.com/feed.xml",
		"https://feeds.example.com/websub/hub-feed", hub, feedRepo)
	if err := task.Execute(context.Background()); err == nil {
		t.Fatal("Expected error from hub")
	}

	stored, _ := feedRepo.GetFeed("hub-feed")
	if stored.WebSubSecret != "active-secret" {
		t.Errorf("Expected the active secret to be restored, got %q", stored.WebSubSecret)
	}
	if stored.WebSubLeaseUntil == nil || !stored.WebSubLeaseUntil.Equal(leaseUntil) {
		t.Errorf("Expected the active lease to be restored, got %v", stored.WebSubLeaseUntil)
	}
}

func TestPushFeedTask(t *testing.T) {
	feedRepo, itemRepo := setupRepos(t)
	if err := feedRepo.UpsertFeed("hub-feed", "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}

	pushed := &feed.Feed{
		Type: feed.TypeAtom,
		Items: []feed.Item{
			{ID: "a", Title: "Pushed entry", Link: "https://example.com/a"},
			{ID: "b", Title: "Sponsored entry", Link: "https://example.com/b"},
		},
	}

	task := NewPushFeedTask("hub-feed", testFeedConfig("https://example.com/feed.xml"), pushed, feed.NewFilterer(), itemRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	items, err := itemRepo.GetVisibleItems("hub-feed", 10)
	if err != nil {
		t.Fatalf("Failed to get items: %v", err)
	}
	if len(items) != 1 || items[0].GUID != "a" {
		t.Errorf("Expected only the unfiltered entry to be visible, got %+v", items)
	}
}

func TestRefilterFeedTask(t *testing.T) {
	feedRepo, itemRepo := setupRepos(t)
	if err := feedRepo.UpsertFeed("hub-feed", "https://example.com/feed.xml"); err != nil {
		t.Fatalf("Failed to create feed: %v", err)
	}

	for _, item := range feed.NewFilterer().Run([]feed.Item{
		{ID: "1", Title: "Go release", Link: "https://example.com/1"},
		{ID: "2", Title: "Rust release", Link: "https://example.com/2"},
	}, nil) {
		if err := itemRepo.UpsertItem("hub-feed", item); err != nil {
			t.Fatalf("Failed to store item: %v", err)
		}
	}

	feedConfig := testFeedConfig("https://example.com/feed.xml")
	feedConfig.Filters = []feed.ConfigFilter{{Field: "title", Includes: []string{"go"}}}

	task := NewRefilterFeedTask("hub-feed", feedConfig, feed.NewFilterer(), itemRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	_, visible, filtered, _ := itemRepo.GetItemStats("hub-feed")
	if visible != 1 || filtered != 1 {
		t.Errorf("Expected 1 visible and 1 filtered, got %d and %d", visible, filtered)
	}
}

func TestSyncFeedConfigTask(t *testing.T) {
	feedRepo, _ := setupRepos(t)

	task := NewSyncFeedConfigTask("hub-feed", testFeedConfig("https://example.com/feed.xml"), feedRepo)
	if err := task.Execute(context.Background()); err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	stored, err := feedRepo.GetFeed("hub-feed")
	if err != nil || stored == nil {
		t.Fatalf("Expected feed to be registered, got %v (err %v)", stored, err)
	}
	if stored.FeedURL != "https://example.com/feed.xml" {
		t.Errorf("Unexpected feed URL %q", stored.FeedURL)
	}
}

func TestTaskCanceledContext(t *testing.T) {
	feedRepo, itemRepo := setupRepos(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tasks := []TaskInterface{
		NewSyncFeedConfigTask("hub-feed", testFeedConfig("https://example.com"), feedRepo),
		NewRefilterFeedTask("hub-feed", testFeedConfig("https://example.com"), feed.NewFilterer(), itemRepo),
		NewPushFeedTask("hub-feed", testFeedConfig("https://example.com"), &feed.Feed{}, feed.NewFilterer(), itemRepo),
	}
	for _, task := range tasks {
		if err := task.Execute(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("%s: expected context.Canceled, got %v", task.GetType(), err)
		}
	}
}

func TestCallbackURL(t *testing.T) {
	got := CallbackURL("https://feeds.example.com/", "my feed")
	if got != "https://feeds.example.com/websub/my%20feed" {
		t.Errorf("Unexpected callback URL %q", got)
	}
}

func TestSchedulerEnqueueTask(t *testing.T) {
	setupTestConfig()
	feedRepo, itemRepo := setupRepos(t)

	s := NewScheduler(feed.NewConfigCache(t.TempDir()), feedRepo, itemRepo, reader.New(), feed.NewFilterer(), &mockHub{})

	for i := 0; i < queueSize; i++ {
		if err := s.EnqueueTask(NewSyncFeedConfigTask("f", testFeedConfig("https://example.com"), feedRepo)); err != nil {
			t.Fatalf("Unexpected error at %d: %v", i, err)
		}
	}

	err := s.EnqueueTask(NewSyncFeedConfigTask("f", testFeedConfig("https://example.com"), feedRepo))
	if !errors.Is(err, ErrQueueFull) {
		t.Errorf("Expected ErrQueueFull, got %v", err)
	}

	s.Stop()
	err = s.EnqueueTask(NewSyncFeedConfigTask("f", testFeedConfig("https://example.com"), feedRepo))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled after Stop, got %v", err)
	}
}

func TestSchedulerProcessesConfiguredFeeds(t *testing.T) {
	setupTestConfig()

	var requests atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(hubFeedBody))
	}))
	defer server.Close()

	feedsDir := t.TempDir()
	content := "url: " + server.URL + "\nsettings:\n  enabled: true\n"
	if err := os.WriteFile(filepath.Join(feedsDir, "hub-feed.yml"), []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	configCache := feed.NewConfigCache(feedsDir)
	if err := configCache.Run(); err != nil {
		t.Fatalf("Failed to load configs: %v", err)
	}

	feedRepo, itemRepo := setupRepos(t)
	s := NewScheduler(configCache, feedRepo, itemRepo, reader.New(), feed.NewFilterer(), &mockHub{})
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if count, _ := itemRepo.GetItemCount("hub-feed"); count >= 2 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}

	count, err := itemRepo.GetItemCount("hub-feed")
	if err != nil {
		t.Fatalf("Failed to count items: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 stored items, got %d", count)
	}
	if requests.Load() < 1 {
		t.Errorf("Expected the feed to be fetched")
	}
}

func TestRetryBackoff(t *testing.T) {
	tests := map[int]time.Duration{
		1: time.Second,
		2: 2 * time.Second,
		3: 4 * time.Second,
	}
	for attempt, want := range tests {
		if got := retryBackoff(attempt); got != want {
			t.Errorf("retryBackoff(%d) = %v, want %v", attempt, got, want)
		}
	}
	if got := min(retryBackoff(10), maxRetryDelay); got != maxRetryDelay {
		t.Errorf("Expected delay to be capped at %v, got %v", maxRetryDelay, got)
	}
}

func TestNewTask(t *testing.T) {
	a := NewTask(TaskTypeProcessFeed, "hub-feed")
	b := NewTask(TaskTypeProcessFeed, "hub-feed")

	if a.ID == "" || a.ID == b.ID {
		t.Errorf("Expected unique task IDs, got %q and %q", a.ID, b.ID)
	}
	if a.GetDuration() != 0 {
		t.Errorf("Expected zero duration before Start")
	}

	for range DefaultMaxRetries {
		if !a.CanRetry() {
			t.Fatalf("Expected retry to be allowed at %d", a.GetRetryCount())
		}
		a.IncrementRetryCount()
	}
	if a.CanRetry() {
		t.Errorf("Expected no retries after %d attempts", DefaultMaxRetries)
	}
}
