package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"market-pulse/internal/domain"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
)

var testTracer = trace.NewNoopTracerProvider().Tracer("test")

func TestParseSymbols(t *testing.T) {
	got := ParseSymbols(" spy, ^vix ,,SPY,qqq ")
	want := []string{"SPY", "^VIX", "QQQ"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if ParseSymbols("  ") != nil {
		t.Fatal("expected no symbols")
	}
}

func TestQuoteService_GetQuotesPartialSuccess(t *testing.T) {
	t.Parallel()

	provider := &mockProvider{
		quotes: map[string]*domain.Quote{
			"SPY": {Symbol: "SPY", Price: 510},
			"QQQ": {Symbol: "QQQ", Price: 440},
		},
	}
	svc := NewQuoteService(testTracer, provider, nil, 0, nil)

	batch, err := svc.GetQuotes(context.Background(), []string{"SPY", "NOPE", "QQQ", "BAD"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Meta.Requested != 4 || batch.Meta.Succeeded != 2 {
		t.Fatalf("unexpected meta: %+v", batch.Meta)
	}
	if !reflect.DeepEqual(batch.Meta.Failed, []string{"BAD", "NOPE"}) {
		t.Fatalf("unexpected failed list: %v", batch.Meta.Failed)
	}
	if len(batch.Quotes) != 2 || batch.Quotes[0].Symbol != "SPY" || batch.Quotes[1].Symbol != "QQQ" {
		t.Fatalf("quotes should keep request order: %+v", batch.Quotes)
	}
}

func TestQuoteService_GetQuotesAllFailStillSucceeds(t *testing.T) {
	t.Parallel()

	svc := NewQuoteService(testTracer, &mockProvider{}, nil, 0, nil)
	batch, err := svc.GetQuotes(context.Background(), []string{"A", "B"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if batch.Meta.Succeeded != 0 || len(batch.Meta.Failed) != 2 || len(batch.Quotes) != 0 {
		t.Fatalf("unexpected batch: %+v", batch)
	}
}

func TestQuoteService_GetQuotesValidatesInput(t *testing.T) {
	t.Parallel()

	svc := NewQuoteService(testTracer, &mockProvider{}, nil, 0, nil)
	if _, err := svc.GetQuotes(context.Background(), nil); !errors.Is(err, ErrNoSymbols) {
		t.Fatalf("expected ErrNoSymbols, got %v", err)
	}
	many := make([]string, MaxSymbols+1)
	for i := range many {
		many[i] = fmt.Sprintf("S%d", i)
	}
	if _, err := svc.GetQuotes(context.Background(), many); err == nil {
		t.Fatal("expected error for oversized request")
	}
}

func TestQuoteService_GetQuoteCacheHit(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	data, _ := json.Marshal(domain.Quote{Symbol: "SPY", Price: 123.45})
	_ = redis.Set(context.Background(), "quote:SPY", data, 0)

	provider := &mockProvider{}
	svc := NewQuoteService(testTracer, provider, redis, 0, nil)

	got, err := svc.GetQuote(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Price != 123.45 {
		t.Fatalf("expected cached price, got %.2f", got.Price)
	}
	if provider.quoteCalls != 0 {
		t.Fatalf("expected no provider call, got %d", provider.quoteCalls)
	}
}

func TestQuoteService_GetQuoteFetchesOnMissAndCaches(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	provider := &mockProvider{quotes: map[string]*domain.Quote{"SPY": {Symbol: "SPY", Price: 42}}}
	svc := NewQuoteService(testTracer, provider, redis, 30*time.Second, nil)

	if _, err := svc.GetQuote(context.Background(), "SPY"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := redis.get("quote:SPY"); !ok {
		t.Fatal("quote not cached")
	}
	if ttl := redis.ttl("quote:SPY"); ttl != 30*time.Second {
		t.Fatalf("unexpected ttl: %v", ttl)
	}
	if _, err := svc.GetQuote(context.Background(), "SPY"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.quoteCalls != 1 {
		t.Fatalf("expected a single provider call, got %d", provider.quoteCalls)
	}
}

func TestQuoteService_CacheErrorsFallBackToProvider(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	redis.getErr = errors.New("connection refused")
	redis.setErr = errors.New("connection refused")
	provider := &mockProvider{quotes: map[string]*domain.Quote{"SPY": {Symbol: "SPY", Price: 1}}}
	svc := NewQuoteService(testTracer, provider, redis, 0, nil)

	if _, err := svc.GetQuote(context.Background(), "SPY"); err != nil {
		t.Fatalf("cache failures must not fail the lookup: %v", err)
	}
}

func TestQuoteService_GetChart(t *testing.T) {
	t.Parallel()

	redis := newFakeRedis()
	provider := &mockProvider{charts: map[string]*domain.Chart{
		"^GSPC": {Symbol: "^GSPC", Closes: []float64{1, 2, 3}},
	}}
	svc := NewQuoteService(testTracer, provider, redis, 0, nil)

	chart, err := svc.GetChart(context.Background(), "^GSPC")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if chart.Last() != 3 {
		t.Fatalf("unexpected chart: %+v", chart)
	}
	if provider.lastRange != "1y" || provider.lastInterval != "1d" {
		t.Fatalf("unexpected chart args: %s %s", provider.lastRange, provider.lastInterval)
	}
	if ttl := redis.ttl("chart:^GSPC"); ttl != chartCacheTTL {
		t.Fatalf("unexpected chart ttl: %v", ttl)
	}

	if _, err := svc.GetChart(context.Background(), "^GSPC"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if provider.chartCalls != 1 {
		t.Fatalf("second lookup should hit the cache, got %d calls", provider.chartCalls)
	}
}

type mockProvider struct {
	mu     sync.Mutex
	quotes map[string]*domain.Quote
	charts map[string]*domain.Chart

	quoteCalls   int
	chartCalls   int
	lastRange    string
	lastInterval string
}

func (m *mockProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.quoteCalls++
	q, ok := m.quotes[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	cp := *q
	return &cp, nil
}

func (m *mockProvider) FetchChart(ctx context.Context, symbol, rng, interval string) (*domain.Chart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chartCalls++
	m.lastRange = rng
	m.lastInterval = interval
	c, ok := m.charts[symbol]
	if !ok {
		return nil, fmt.Errorf("unknown symbol %s", symbol)
	}
	return c, nil
}

type fakeRedis struct {
	mu     sync.Mutex
	data   map[string][]byte
	ttls   map[string]time.Duration
	setErr error
	getErr error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: make(map[string][]byte), ttls: make(map[string]time.Duration)}
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = append([]byte(nil), v...)
	case string:
		f.data[key] = []byte(v)
	default:
		bytes, _ := json.Marshal(v)
		f.data[key] = bytes
	}
	f.ttls[key] = expiration
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	if v, ok := f.data[key]; ok {
		return redis.NewStringResult(string(v), nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (f *fakeRedis) get(key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	return v, ok
}

func (f *fakeRedis) ttl(key string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttls[key]
}
