package provider

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	redditBaseURL     = "https://www.reddit.com"
	defaultRedditSize = 100
)

type RedditProvider struct {
	fetcher Fetcher
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
	now     func() time.Time
}

// NewRedditProvider allows ten unauthenticated listing calls per minute.
func NewRedditProvider(tracer trace.Tracer, fetcher Fetcher, baseURL string) *RedditProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = redditBaseURL
	}
	return &RedditProvider{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
		limiter: NewRateLimiter(10, 6*time.Second),
		now:     time.Now,
	}
}

type redditListing struct {
	Data struct {
		Children []struct {
			Data struct {
				ID          string  `json:"id"`
				Subreddit   string  `json:"subreddit"`
				Title       string  `json:"title"`
				SelfText    string  `json:"selftext"`
				Author      string  `json:"author"`
				CreatedUTC  float64 `json:"created_utc"`
				Permalink   string  `json:"permalink"`
				URL         string  `json:"url"`
				Score       float64 `json:"score"`
				NumComments float64 `json:"num_comments"`
			} `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

// FetchNew returns the newest posts of subreddit created within the last
// hours. A non-positive hours keeps every post of the listing. Selftext is
// returned separately so callers can score it without storing it.
func (p *RedditProvider) FetchNew(ctx context.Context, subreddit string, hours, limit int) ([]domain.Post, []string, error) {
	ctx, span := p.tracer.Start(ctx, "reddit.fetch-new")
	defer span.End()

	subreddit = strings.TrimSpace(subreddit)
	if subreddit == "" {
		return nil, nil, fmt.Errorf("subreddit is required")
	}
	span.SetAttributes(attribute.String("subreddit", subreddit))
	if limit <= 0 || limit > 100 {
		limit = defaultRedditSize
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := fmt.Sprintf("%s/r/%s/new.json?limit=%d", p.baseURL, url.PathEscape(subreddit), limit)
	var payload redditListing
	if err := p.fetcher.GetJSON(ctx, u, &payload); err != nil {
		span.RecordError(err)
		return nil, nil, fmt.Errorf("fetch r/%s: %w", subreddit, err)
	}

	var cutoff time.Time
	if hours > 0 {
		cutoff = p.now().Add(-time.Duration(hours) * time.Hour)
	}

	posts := make([]domain.Post, 0, len(payload.Data.Children))
	texts := make([]string, 0, len(payload.Data.Children))
	for _, row := range payload.Data.Children {
		data := row.Data
		if strings.TrimSpace(data.ID) == "" || strings.TrimSpace(data.Title) == "" {
			continue
		}
		createdAt := time.Unix(int64(data.CreatedUTC), 0).UTC()
		if !cutoff.IsZero() && createdAt.Before(cutoff) {
			continue
		}
		itemURL := strings.TrimSpace(data.URL)
		if permalink := strings.TrimSpace(data.Permalink); permalink != "" {
			itemURL = p.baseURL + permalink
		}
		sub := strings.TrimSpace(data.Subreddit)
		if sub == "" {
			sub = subreddit
		}
		posts = append(posts, domain.Post{
			ID:          data.ID,
			Subreddit:   sub,
			Title:       sanitizeText(data.Title, 300),
			Author:      sanitizeText(data.Author, 120),
			URL:         itemURL,
			Score:       data.Score,
			NumComments: data.NumComments,
			CreatedAt:   createdAt,
		})
		texts = append(texts, sanitizeText(data.SelfText, 420))
	}
	span.SetAttributes(attribute.Int("posts", len(posts)))

	return posts, texts, nil
}
