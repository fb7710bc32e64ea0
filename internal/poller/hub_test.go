package poller

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"market-pulse/internal/feed"

	"go.opentelemetry.io/otel/trace"
)

func TestHubStartsEveryFeed(t *testing.T) {
	registry, err := feed.NewRegistry(
		feed.Descriptor{Name: "quotes", URLTemplate: "{api}/api/quotes?symbols={symbols}", DefaultInterval: time.Hour,
			Params: map[string]string{"api": "http://api", "symbols": "SPY"}},
		feed.Descriptor{Name: "fear-greed", URLTemplate: "{api}/api/fear-greed", Schedule: "@hourly",
			Params: map[string]string{"api": "http://api"}},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fetcher := funcFetcher(func(ctx context.Context, url string, v any) error {
		raw := v.(*json.RawMessage)
		*raw = json.RawMessage(`{"url":"` + url + `"}`)
		return nil
	})

	hub := NewHub(trace.NewNoopTracerProvider().Tracer("test"), nil, fetcher, registry)
	if err := hub.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer hub.Stop()

	if names := hub.Names(); len(names) != 2 || names[0] != "fear-greed" || names[1] != "quotes" {
		t.Fatalf("unexpected feed names: %v", names)
	}

	sub, ok := hub.Get("quotes")
	if !ok {
		t.Fatal("expected quotes subscription")
	}
	eventually(t, func() bool { return sub.Snapshot().Data != nil })
	if !strings.Contains(string(*sub.Snapshot().Data), "symbols=SPY") {
		t.Fatalf("unexpected data: %s", *sub.Snapshot().Data)
	}

	if _, ok := hub.Get("missing"); ok {
		t.Fatal("unexpected subscription for unknown feed")
	}
}

func TestHubReportsUnresolvableFeeds(t *testing.T) {
	registry, err := feed.NewRegistry(
		feed.Descriptor{Name: "broken", URLTemplate: "{api}/x?q={query}", Params: map[string]string{"api": "http://api"}},
		feed.Descriptor{Name: "ok", URLTemplate: "http://api/ok"},
	)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fetcher := funcFetcher(func(ctx context.Context, url string, v any) error { return nil })

	hub := NewHub(trace.NewNoopTracerProvider().Tracer("test"), nil, fetcher, registry)
	if err := hub.Start(context.Background()); err == nil {
		t.Fatal("expected error for unresolvable feed")
	}
	defer hub.Stop()

	if names := hub.Names(); len(names) != 1 || names[0] != "ok" {
		t.Fatalf("expected only the healthy feed, got %v", names)
	}
}

func TestHubStopStopsSubscriptions(t *testing.T) {
	registry, _ := feed.NewRegistry(feed.Descriptor{Name: "ok", URLTemplate: "http://api/ok", DefaultInterval: time.Hour})
	fetcher := funcFetcher(func(ctx context.Context, url string, v any) error { return nil })

	hub := NewHub(trace.NewNoopTracerProvider().Tracer("test"), nil, fetcher, registry)
	_ = hub.Start(context.Background())
	sub, _ := hub.Get("ok")

	hub.Stop()
	if sub.Enabled() {
		t.Fatal("expected subscription stopped")
	}
	if len(hub.Names()) != 0 {
		t.Fatalf("expected no feeds after stop, got %v", hub.Names())
	}
}
