package provider

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"market-pulse/internal/domain"

	"github.com/mmcdole/gofeed"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultNewsItems = 40

// NewsProvider fetches RSS, Atom or JSON feeds and normalizes their items.
type NewsProvider struct {
	fetcher Fetcher
	parser  *gofeed.Parser
	tracer  trace.Tracer
}

func NewNewsProvider(tracer trace.Tracer, fetcher Fetcher) *NewsProvider {
	return &NewsProvider{
		fetcher: fetcher,
		parser:  gofeed.NewParser(),
		tracer:  tracer,
	}
}

// FetchFeed returns the feed title and at most maxItems entries.
func (p *NewsProvider) FetchFeed(ctx context.Context, feedURL string, maxItems int) (string, []domain.NewsItem, error) {
	ctx, span := p.tracer.Start(ctx, "news.fetch-feed")
	defer span.End()

	feedURL = strings.TrimSpace(feedURL)
	if feedURL == "" {
		return "", nil, fmt.Errorf("feed url is required")
	}
	span.SetAttributes(attribute.String("feed.url", feedURL))
	if maxItems <= 0 {
		maxItems = defaultNewsItems
	}

	body, err := p.fetcher.Get(ctx, feedURL)
	if err != nil {
		span.RecordError(err)
		return "", nil, fmt.Errorf("fetch feed: %w", err)
	}
	feed, err := p.parser.ParseString(string(body))
	if err != nil {
		return "", nil, fmt.Errorf("parse feed: %w", err)
	}

	items := make([]domain.NewsItem, 0, min(maxItems, len(feed.Items)))
	for _, row := range feed.Items {
		if len(items) >= maxItems {
			break
		}
		title := sanitizeText(row.Title, 300)
		if title == "" {
			continue
		}
		var published *time.Time
		switch {
		case row.PublishedParsed != nil:
			published = ptr(row.PublishedParsed.UTC())
		case row.UpdatedParsed != nil:
			published = ptr(row.UpdatedParsed.UTC())
		}
		author := ""
		if row.Author != nil {
			author = sanitizeText(row.Author.Name, 120)
		}
		id := sanitizeText(row.GUID, 250)
		if id == "" {
			id = sanitizeText(row.Link, 250)
		}
		if id == "" {
			h := sha1.Sum([]byte(title))
			id = hex.EncodeToString(h[:])
		}
		items = append(items, domain.NewsItem{
			ID:          id,
			Title:       title,
			Link:        sanitizeText(row.Link, 500),
			Summary:     sanitizeText(htmlStrip(row.Description), 420),
			Author:      author,
			PublishedAt: published,
		})
	}
	span.SetAttributes(attribute.Int("items", len(items)))

	return sanitizeText(feed.Title, 120), items, nil
}
