package feed

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry(Defaults("http://localhost:8080/", "SPY,QQQ", "stocks", "https://example.com/rss")...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return r
}

func TestDefaultsCadences(t *testing.T) {
	r := testRegistry(t)

	quotes, ok := r.Get(Quotes)
	if !ok || quotes.DefaultInterval < 30*time.Second || quotes.DefaultInterval > 60*time.Second {
		t.Fatalf("unexpected quotes descriptor: %+v", quotes)
	}
	reddit, _ := r.Get(Reddit)
	if reddit.DefaultInterval < 3*time.Minute || reddit.DefaultInterval > 15*time.Minute {
		t.Fatalf("unexpected reddit cadence: %v", reddit.DefaultInterval)
	}
	fg, _ := r.Get(FearGreed)
	sched, err := fg.Cron()
	if err != nil || sched == nil {
		t.Fatalf("expected hourly schedule, got %v %v", sched, err)
	}
	next := sched.Next(time.Date(2026, 1, 1, 10, 15, 0, 0, time.UTC))
	if !next.Equal(time.Date(2026, 1, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next run: %v", next)
	}
	if len(r.All()) != 6 {
		t.Fatalf("expected 6 feeds, got %d", len(r.All()))
	}
}

func TestDescriptorURL(t *testing.T) {
	r := testRegistry(t)
	d, _ := r.Get(Reddit)

	got, err := d.URL(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://localhost:8080/api/sentiment/reddit?subreddit=stocks&hours=24" {
		t.Fatalf("unexpected url: %s", got)
	}

	got, err = d.URL(map[string]string{"subreddit": "wall street", "hours": "6"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "http://localhost:8080/api/sentiment/reddit?subreddit=wall+street&hours=6" {
		t.Fatalf("unexpected url: %s", got)
	}

	q, _ := r.Get(Quotes)
	got, _ = q.URL(nil)
	if got != "http://localhost:8080/api/quotes?symbols=SPY%2CQQQ" {
		t.Fatalf("unexpected url: %s", got)
	}
}

func TestDescriptorURLMissingParam(t *testing.T) {
	d := Descriptor{Name: "x", URLTemplate: "https://example.com/{path}?q={query}"}
	if _, err := d.URL(map[string]string{"path": "a"}); err == nil {
		t.Fatal("expected error for missing parameter")
	}
}

func TestNewRegistryValidates(t *testing.T) {
	if _, err := NewRegistry(Descriptor{Name: "", URLTemplate: "x"}); err == nil {
		t.Fatal("expected error for empty name")
	}
	if _, err := NewRegistry(Descriptor{Name: "a"}); err == nil {
		t.Fatal("expected error for empty template")
	}
	if _, err := NewRegistry(Descriptor{Name: "a", URLTemplate: "x", Schedule: "every tuesday"}); err == nil {
		t.Fatal("expected error for bad schedule")
	}
}

func TestOverlay(t *testing.T) {
	r := testRegistry(t)
	path := filepath.Join(t.TempDir(), "feeds.yaml")
	content := `
feeds:
  - name: quotes
    interval: 45s
    params:
      symbols: DIA
  - name: news
    disabled: true
  - name: valuation
    url: "https://example.com/valuation"
    schedule: "0 6 * * *"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := r.Overlay(path); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	q, _ := r.Get(Quotes)
	if q.DefaultInterval != 45*time.Second || q.Params["symbols"] != "DIA" || q.Params["api"] == "" {
		t.Fatalf("unexpected quotes overlay: %+v", q)
	}
	if _, ok := r.Get(News); ok {
		t.Fatal("expected news feed to be removed")
	}
	v, ok := r.Get("valuation")
	if !ok || v.Schedule != "0 6 * * *" {
		t.Fatalf("expected valuation feed, got %+v", v)
	}
}

func TestOverlayMissingFile(t *testing.T) {
	r := testRegistry(t)
	if err := r.Overlay(filepath.Join(t.TempDir(), "nope.yaml")); err != nil {
		t.Fatalf("missing file should be ignored, got %v", err)
	}
}

func TestOverlayBadInterval(t *testing.T) {
	r := testRegistry(t)
	if err := r.overlayBytes([]byte("feeds:\n  - name: quotes\n    interval: soon\n")); err == nil {
		t.Fatal("expected parse error")
	}
}
