package provider

import (
	"context"
	"net/http"
	"testing"
)

const sampleRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
  <title>Markets</title>
  <item>
    <title>Stocks rally into the close</title>
    <link>https://example.com/a</link>
    <guid>a-1</guid>
    <description>&lt;p&gt;Indexes &lt;b&gt;surge&lt;/b&gt;&lt;/p&gt;</description>
    <pubDate>Mon, 02 Feb 2026 15:04:05 +0000</pubDate>
  </item>
  <item>
    <title>   </title>
    <link>https://example.com/empty</link>
  </item>
  <item>
    <title>Bond yields slip</title>
    <link>https://example.com/b</link>
  </item>
</channel>
</rss>`

func TestNewsFetchFeed(t *testing.T) {
	p := NewNewsProvider(testTracer(), testFetcher(func(req *http.Request) (*http.Response, error) {
		if req.URL.String() != "https://example.com/feed.xml" {
			t.Fatalf("unexpected url: %s", req.URL)
		}
		return respond(http.StatusOK, sampleRSS), nil
	}))

	title, items, err := p.FetchFeed(context.Background(), "https://example.com/feed.xml", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if title != "Markets" {
		t.Fatalf("unexpected title: %q", title)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	first := items[0]
	if first.ID != "a-1" || first.Summary != "Indexes surge" {
		t.Fatalf("unexpected first item: %+v", first)
	}
	if first.PublishedAt == nil || first.PublishedAt.Year() != 2026 {
		t.Fatalf("unexpected published time: %v", first.PublishedAt)
	}
	if items[1].ID != "https://example.com/b" || items[1].PublishedAt != nil {
		t.Fatalf("unexpected second item: %+v", items[1])
	}
}

func TestNewsFetchFeedLimitsItems(t *testing.T) {
	p := NewNewsProvider(testTracer(), testFetcher(func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, sampleRSS), nil
	}))

	_, items, err := p.FetchFeed(context.Background(), "https://example.com/feed.xml", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
}

func TestNewsFetchFeedRejectsGarbage(t *testing.T) {
	p := NewNewsProvider(testTracer(), testFetcher(func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusOK, "not a feed"), nil
	}))
	if _, _, err := p.FetchFeed(context.Background(), "https://example.com/feed.xml", 10); err == nil {
		t.Fatal("expected parse error")
	}
	if _, _, err := p.FetchFeed(context.Background(), " ", 10); err == nil {
		t.Fatal("expected error for empty url")
	}
}
