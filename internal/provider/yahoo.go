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
	yahooBaseURL = "https://query1.finance.yahoo.com"

	ChartRangeYear   = "1y"
	ChartRangeWeek   = "5d"
	ChartIntervalDay = "1d"
)

// YahooProvider reads quotes and daily closes from the Yahoo Finance chart
// API.
type YahooProvider struct {
	fetcher Fetcher
	baseURL string
	tracer  trace.Tracer
	limiter *RateLimiter
}

// NewYahooProvider is rate limited to 30 requests per minute, one token
// every two seconds.
func NewYahooProvider(tracer trace.Tracer, fetcher Fetcher, baseURL string) *YahooProvider {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = yahooBaseURL
	}
	return &YahooProvider{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		tracer:  tracer,
		limiter: NewRateLimiter(30, 2*time.Second),
	}
}

type yahooChartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol               string   `json:"symbol"`
				Currency             string   `json:"currency"`
				ShortName            string   `json:"shortName"`
				LongName             string   `json:"longName"`
				RegularMarketPrice   *float64 `json:"regularMarketPrice"`
				ChartPreviousClose   *float64 `json:"chartPreviousClose"`
				PreviousClose        *float64 `json:"previousClose"`
				RegularMarketDayHigh *float64 `json:"regularMarketDayHigh"`
				RegularMarketDayLow  *float64 `json:"regularMarketDayLow"`
				RegularMarketVolume  *float64 `json:"regularMarketVolume"`
				RegularMarketTime    int64    `json:"regularMarketTime"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchChart returns the close series for symbol over rng at interval.
// Null closes are skipped.
func (p *YahooProvider) FetchChart(ctx context.Context, symbol, rng, interval string) (*domain.Chart, error) {
	ctx, span := p.tracer.Start(ctx, "yahoo.fetch-chart")
	defer span.End()
	span.SetAttributes(attribute.String("symbol", symbol))

	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if rng == "" {
		rng = ChartRangeYear
	}
	if interval == "" {
		interval = ChartIntervalDay
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	u := fmt.Sprintf("%s/v8/finance/chart/%s?range=%s&interval=%s",
		p.baseURL, url.PathEscape(symbol), url.QueryEscape(rng), url.QueryEscape(interval))

	var payload yahooChartResponse
	if err := p.fetcher.GetJSON(ctx, u, &payload); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch chart for %s: %w", symbol, err)
	}
	if e := payload.Chart.Error; e != nil {
		return nil, fmt.Errorf("yahoo chart error for %s: %s: %s", symbol, e.Code, e.Description)
	}
	if len(payload.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo chart for %s has no result", symbol)
	}

	row := payload.Chart.Result[0]
	meta := row.Meta
	if meta.RegularMarketPrice == nil {
		return nil, fmt.Errorf("yahoo chart for %s has no market price", symbol)
	}

	quote := domain.Quote{
		Symbol:     symbol,
		Name:       sanitizeText(meta.ShortName, 120),
		Currency:   meta.Currency,
		Price:      *meta.RegularMarketPrice,
		DayHigh:    meta.RegularMarketDayHigh,
		DayLow:     meta.RegularMarketDayLow,
		Volume:     meta.RegularMarketVolume,
		MarketTime: meta.RegularMarketTime,
	}
	if quote.Name == "" {
		quote.Name = sanitizeText(meta.LongName, 120)
	}
	prev := meta.PreviousClose
	if prev == nil {
		prev = meta.ChartPreviousClose
	}
	if prev != nil {
		quote.PreviousClose = ptr(*prev)
		change := quote.Price - *prev
		quote.Change = ptr(change)
		if *prev != 0 {
			quote.ChangePercent = ptr(change / *prev * 100)
		}
	}

	chart := &domain.Chart{Symbol: symbol, Quote: quote}
	var closes []*float64
	if len(row.Indicators.Quote) > 0 {
		closes = row.Indicators.Quote[0].Close
	}
	for i, ts := range row.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		chart.Timestamps = append(chart.Timestamps, time.Unix(ts, 0).UTC())
		chart.Closes = append(chart.Closes, *closes[i])
	}
	span.SetAttributes(attribute.Int("closes", len(chart.Closes)))

	return chart, nil
}

// FetchQuote returns the latest quote for symbol.
func (p *YahooProvider) FetchQuote(ctx context.Context, symbol string) (*domain.Quote, error) {
	chart, err := p.FetchChart(ctx, symbol, ChartRangeWeek, ChartIntervalDay)
	if err != nil {
		return nil, err
	}
	q := chart.Quote
	return &q, nil
}
