package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/internal/marketintel"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultSentimentHours = 24
	maxSentimentHours     = 24 * 7
	redditListingSize     = 100
	newsItemLimit         = 40
)

type RedditSource interface {
	FetchNew(ctx context.Context, subreddit string, hours, limit int) ([]domain.Post, []string, error)
}

type NewsSource interface {
	FetchFeed(ctx context.Context, feedURL string, maxItems int) (string, []domain.NewsItem, error)
}

type FearGreedSource interface {
	FetchLatest(ctx context.Context) (*domain.FearGreedReading, error)
}

// SentimentService labels social and news text with keyword sentiment.
type SentimentService struct {
	tracer    trace.Tracer
	reddit    RedditSource
	news      NewsSource
	fearGreed FearGreedSource
	now       func() time.Time
}

func NewSentimentService(tracer trace.Tracer, reddit RedditSource, news NewsSource, fearGreed FearGreedSource) *SentimentService {
	return &SentimentService{
		tracer:    tracer,
		reddit:    reddit,
		news:      news,
		fearGreed: fearGreed,
		now:       time.Now,
	}
}

// Reddit scores posts of subreddit from the last hours. hours is clamped to
// one week; zero selects the default day.
func (s *SentimentService) Reddit(ctx context.Context, subreddit string, hours int) (*domain.RedditSentiment, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.reddit")
	defer span.End()

	subreddit = strings.TrimPrefix(strings.TrimSpace(subreddit), "r/")
	if subreddit == "" {
		return nil, fmt.Errorf("subreddit is required")
	}
	if hours <= 0 {
		hours = DefaultSentimentHours
	}
	if hours > maxSentimentHours {
		hours = maxSentimentHours
	}

	posts, texts, err := s.reddit.FetchNew(ctx, subreddit, hours, redditListingSize)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(posts))
	for i := range posts {
		excerpt := ""
		if i < len(texts) {
			excerpt = texts[i]
		}
		score, _, label, _ := marketintel.HeuristicSentiment(posts[i].Title, excerpt)
		posts[i].Sentiment = score
		posts[i].Label = label
		scores[i] = score
	}

	out := &domain.RedditSentiment{
		Subreddit: subreddit,
		Hours:     hours,
		Posts:     posts,
		Summary:   marketintel.Summarize(scores),
		Timestamp: s.now().UTC(),
	}
	span.SetAttributes(attribute.Int("posts", len(posts)), attribute.String("label", out.Summary.Label))
	return out, nil
}

// News scores the items of one feed.
func (s *SentimentService) News(ctx context.Context, feedURL string) (*domain.NewsFeed, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.news")
	defer span.End()

	title, items, err := s.news.FetchFeed(ctx, feedURL, newsItemLimit)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(items))
	for i := range items {
		score, _, label, _ := marketintel.HeuristicSentiment(items[i].Title, items[i].Summary)
		items[i].Sentiment = score
		items[i].Label = label
		scores[i] = score
	}

	out := &domain.NewsFeed{
		Title:     title,
		FeedURL:   strings.TrimSpace(feedURL),
		Items:     items,
		Summary:   marketintel.Summarize(scores),
		Timestamp: s.now().UTC(),
	}
	span.SetAttributes(attribute.Int("items", len(items)))
	return out, nil
}

// CryptoFearGreed proxies the third-party crypto index.
func (s *SentimentService) CryptoFearGreed(ctx context.Context) (*domain.FearGreedReading, error) {
	ctx, span := s.tracer.Start(ctx, "sentiment-service.crypto-fear-greed")
	defer span.End()
	return s.fearGreed.FetchLatest(ctx)
}
