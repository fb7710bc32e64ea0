package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"market-pulse/internal/domain"
	"market-pulse/pkg/logger"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultQuoteCacheTTL = 60 * time.Second
	chartCacheTTL        = 15 * time.Minute

	MaxSymbols       = 50
	quoteConcurrency = 8
)

var ErrNoSymbols = errors.New("at least one symbol is required")

type QuoteProvider interface {
	FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error)
	FetchChart(ctx context.Context, symbol, rng, interval string) (*domain.Chart, error)
}

// RedisClient is the subset of go-redis used for short-lived caching.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
}

// QuoteService looks up quotes and charts, caching them in Redis when a
// client is configured.
type QuoteService struct {
	tracer   trace.Tracer
	provider QuoteProvider
	redis    RedisClient
	ttl      time.Duration
	log      *logrus.Entry
	now      func() time.Time
}

func NewQuoteService(
	tracer trace.Tracer,
	provider QuoteProvider,
	redisClient RedisClient,
	ttl time.Duration,
	log *logrus.Entry,
) *QuoteService {
	if ttl <= 0 {
		ttl = DefaultQuoteCacheTTL
	}
	if log == nil {
		log = logger.Discard()
	}
	return &QuoteService{
		tracer:   tracer,
		provider: provider,
		redis:    redisClient,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
	}
}

// ParseSymbols splits a comma separated list, upper-cases and de-duplicates
// it while keeping the caller's order.
func ParseSymbols(raw string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		symbol := strings.ToUpper(strings.TrimSpace(part))
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true
		out = append(out, symbol)
	}
	return out
}

// GetQuotes resolves every symbol concurrently. Failed symbols are dropped
// from the batch and listed in Meta.Failed; the call itself fails only for
// an empty or oversized request.
func (s *QuoteService) GetQuotes(ctx context.Context, symbols []string) (*domain.QuoteBatch, error) {
	ctx, span := s.tracer.Start(ctx, "quote-service.get-quotes")
	defer span.End()

	if len(symbols) == 0 {
		return nil, ErrNoSymbols
	}
	if len(symbols) > MaxSymbols {
		return nil, fmt.Errorf("too many symbols: %d > %d", len(symbols), MaxSymbols)
	}

	results := make([]*domain.Quote, len(symbols))
	var g errgroup.Group
	g.SetLimit(quoteConcurrency)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			q, err := s.GetQuote(ctx, symbol)
			if err != nil {
				s.log.WithFields(logrus.Fields{"symbol": symbol, "error": err}).Warn("quote lookup failed")
				return nil
			}
			results[i] = q
			return nil
		})
	}
	_ = g.Wait()

	batch := &domain.QuoteBatch{
		Quotes:    make([]domain.Quote, 0, len(symbols)),
		Meta:      domain.QuoteBatchMeta{Requested: len(symbols), Failed: []string{}},
		Timestamp: s.now().UTC(),
	}
	for i, q := range results {
		if q == nil {
			batch.Meta.Failed = append(batch.Meta.Failed, symbols[i])
			continue
		}
		batch.Quotes = append(batch.Quotes, *q)
	}
	batch.Meta.Succeeded = len(batch.Quotes)
	sort.Strings(batch.Meta.Failed)

	span.SetAttributes(
		attribute.Int("quotes.requested", batch.Meta.Requested),
		attribute.Int("quotes.succeeded", batch.Meta.Succeeded),
	)
	return batch, nil
}

// GetQuote returns the cached quote for symbol or fetches it live.
func (s *QuoteService) GetQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	ctx, span := s.tracer.Start(ctx, "quote-service.get-quote")
	defer span.End()

	var cached domain.Quote
	if s.getCache(ctx, "quote:"+symbol, &cached) {
		return &cached, nil
	}

	q, err := s.provider.FetchQuote(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.setCache(ctx, "quote:"+symbol, q, s.ttl)
	return q, nil
}

// GetChart returns about a year of daily closes for symbol.
func (s *QuoteService) GetChart(ctx context.Context, symbol string) (*domain.Chart, error) {
	ctx, span := s.tracer.Start(ctx, "quote-service.get-chart")
	defer span.End()

	var cached domain.Chart
	if s.getCache(ctx, "chart:"+symbol, &cached) {
		return &cached, nil
	}

	chart, err := s.provider.FetchChart(ctx, symbol, "1y", "1d")
	if err != nil {
		return nil, err
	}
	s.setCache(ctx, "chart:"+symbol, chart, chartCacheTTL)
	return chart, nil
}

func (s *QuoteService) setCache(ctx context.Context, key string, v any, ttl time.Duration) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, key, data, ttl).Err(); err != nil {
		s.log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("redis cache write error")
	}
}

func (s *QuoteService) getCache(ctx context.Context, key string, v any) bool {
	if s.redis == nil {
		return false
	}
	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		s.log.WithFields(logrus.Fields{"key": key, "error": err}).Warn("redis cache read error")
		return false
	}
	return json.Unmarshal(data, v) == nil
}
