package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"market-pulse/internal/domain"
	"market-pulse/internal/fetch"
	"market-pulse/internal/marketintel"
	"market-pulse/internal/poller"
	"market-pulse/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

type QuoteReader interface {
	GetQuotes(ctx context.Context, symbols []string) (*domain.QuoteBatch, error)
}

type SentimentReader interface {
	Reddit(ctx context.Context, subreddit string, hours int) (*domain.RedditSentiment, error)
	News(ctx context.Context, feedURL string) (*domain.NewsFeed, error)
	CryptoFearGreed(ctx context.Context) (*domain.FearGreedReading, error)
}

type FearGreedScorer interface {
	FearGreed(ctx context.Context) (*marketintel.FearGreed, error)
}

// FeedHub exposes the running feed subscriptions.
type FeedHub interface {
	Names() []string
	Get(name string) (*poller.Subscription[json.RawMessage], bool)
}

type Handler struct {
	tracer    trace.Tracer
	log       *logrus.Entry
	quotes    QuoteReader
	sentiment SentimentReader
	fearGreed FearGreedScorer
	feeds     FeedHub

	defaultSubreddit string
	defaultNewsFeed  string
}

func New(tracer trace.Tracer, quotes QuoteReader, sentiment SentimentReader, fearGreed FearGreedScorer) *Handler {
	return &Handler{
		tracer:           tracer,
		log:              logger.Discard(),
		quotes:           quotes,
		sentiment:        sentiment,
		fearGreed:        fearGreed,
		defaultSubreddit: "stocks",
	}
}

func (h *Handler) SetLogger(log *logrus.Entry) {
	if log != nil {
		h.log = log
	}
}

// SetFeedHub enables the /api/feeds routes. Without a hub they answer 503.
func (h *Handler) SetFeedHub(hub FeedHub) {
	h.feeds = hub
}

// SetDefaults sets the subreddit and news feed used when a request names
// none.
func (h *Handler) SetDefaults(subreddit, newsFeed string) {
	if subreddit != "" {
		h.defaultSubreddit = subreddit
	}
	h.defaultNewsFeed = newsFeed
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/quotes", h.GetQuotes)
	api.GET("/sentiment/reddit", h.GetRedditSentiment)
	api.GET("/news", h.GetNews)
	api.GET("/crypto/fear-greed", h.GetCryptoFearGreed)
	api.GET("/fear-greed", h.GetFearGreed)

	api.GET("/feeds", h.ListFeeds)
	api.GET("/feeds/:name", h.GetFeed)
	api.POST("/feeds/:name/refetch", h.RefetchFeed)
	api.POST("/feeds/:name/enabled", h.SetFeedEnabled)
	api.GET("/feeds/:name/stream", h.StreamFeed)
}

// upstreamStatus maps fetch failures to gateway statuses; anything else is
// an internal error.
func upstreamStatus(err error) int {
	var ferr *fetch.Error
	if !errors.As(err, &ferr) {
		return http.StatusInternalServerError
	}
	switch ferr.Kind {
	case fetch.KindTimeout:
		return http.StatusGatewayTimeout
	case fetch.KindClient:
		if ferr.Status == http.StatusNotFound {
			return http.StatusNotFound
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}

func (h *Handler) fail(c *gin.Context, status int, err error) {
	h.log.WithFields(logrus.Fields{
		"path":   c.FullPath(),
		"status": status,
	}).WithError(err).Warn("request failed")
	c.JSON(status, gin.H{"error": err.Error()})
}
