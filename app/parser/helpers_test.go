package parser

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/lysyi3m/syndication/app/feed"
)

func mustParse(t *testing.T, p Parser, doc string) *feed.Feed {
	t.Helper()
	f, err := p.Parse(context.Background(), strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if f == nil {
		t.Fatal("Expected feed, got nil")
	}
	return f
}

func assertTime(t *testing.T, name string, got *time.Time, want time.Time) {
	t.Helper()
	if got == nil {
		t.Errorf("Expected %s %v, got nil", name, want)
		return
	}
	if !got.Equal(want) {
		t.Errorf("Expected %s %v, got %v", name, want, *got)
	}
}
