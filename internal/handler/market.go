package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"market-pulse/internal/service"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// GetQuotes godoc
// @Summary      Get quotes for a list of symbols
// @Description  Partial success: symbols that fail upstream are listed in meta.failed
// @Tags         market
// @Produce      json
// @Param        symbols  query  string  true  "Comma separated symbols (e.g. SPY,^VIX)"
// @Success      200  {object}  domain.QuoteBatch
// @Failure      400  {object}  map[string]string
// @Router       /api/quotes [get]
func (h *Handler) GetQuotes(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-quotes")
	defer span.End()

	symbols := service.ParseSymbols(c.Query("symbols"))
	span.SetAttributes(attribute.Int("symbols", len(symbols)))

	batch, err := h.quotes.GetQuotes(ctx, symbols)
	if err != nil {
		if errors.Is(err, service.ErrNoSymbols) || len(symbols) > service.MaxSymbols {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.fail(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, batch)
}

// GetRedditSentiment godoc
// @Summary      Keyword sentiment of recent reddit posts
// @Tags         sentiment
// @Produce      json
// @Param        subreddit  query  string  false  "Subreddit name"  default(stocks)
// @Param        hours      query  int     false  "Look-back window in hours"  default(24)
// @Success      200  {object}  domain.RedditSentiment
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/sentiment/reddit [get]
func (h *Handler) GetRedditSentiment(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-reddit-sentiment")
	defer span.End()

	subreddit := strings.TrimSpace(c.Query("subreddit"))
	if subreddit == "" {
		subreddit = h.defaultSubreddit
	}
	hours := 0
	if raw := strings.TrimSpace(c.Query("hours")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = n
	}
	span.SetAttributes(attribute.String("subreddit", subreddit))

	out, err := h.sentiment.Reddit(ctx, subreddit, hours)
	if err != nil {
		h.fail(c, upstreamStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetNews godoc
// @Summary      Latest items of a news feed with keyword sentiment
// @Tags         sentiment
// @Produce      json
// @Param        feed  query  string  false  "RSS or Atom feed URL"
// @Success      200  {object}  domain.NewsFeed
// @Failure      400  {object}  map[string]string
// @Failure      502  {object}  map[string]string
// @Router       /api/news [get]
func (h *Handler) GetNews(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-news")
	defer span.End()

	feedURL := strings.TrimSpace(c.Query("feed"))
	if feedURL == "" {
		feedURL = h.defaultNewsFeed
	}
	u, err := url.Parse(feedURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "feed must be an absolute http(s) URL"})
		return
	}
	span.SetAttributes(attribute.String("feed.url", feedURL))

	out, err := h.sentiment.News(ctx, feedURL)
	if err != nil {
		h.fail(c, upstreamStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetCryptoFearGreed godoc
// @Summary      Crypto fear & greed index
// @Description  Latest reading of the alternative.me index
// @Tags         sentiment
// @Produce      json
// @Success      200  {object}  domain.FearGreedReading
// @Failure      502  {object}  map[string]string
// @Router       /api/crypto/fear-greed [get]
func (h *Handler) GetCryptoFearGreed(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-crypto-fear-greed")
	defer span.End()

	reading, err := h.sentiment.CryptoFearGreed(ctx)
	if err != nil {
		h.fail(c, upstreamStatus(err), err)
		return
	}
	c.JSON(http.StatusOK, reading)
}

// GetFearGreed godoc
// @Summary      Composite stock market fear & greed index
// @Description  Weighted combination of momentum, strength, volatility, safe haven and junk bond demand
// @Tags         market
// @Produce      json
// @Success      200  {object}  marketintel.FearGreed
// @Failure      500  {object}  map[string]string
// @Router       /api/fear-greed [get]
func (h *Handler) GetFearGreed(c *gin.Context) {
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-fear-greed")
	defer span.End()

	out, err := h.fearGreed.FearGreed(ctx)
	if err != nil {
		h.fail(c, http.StatusInternalServerError, err)
		return
	}
	span.SetAttributes(attribute.Int("fear_greed.index", out.Index))
	c.JSON(http.StatusOK, out)
}
