package provider

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/trace"
)

const fearGreedBaseURL = "https://api.alternative.me"

// FearGreedProvider reads the crypto fear & greed index from alternative.me.
type FearGreedProvider struct {
	fetcher Fetcher
	baseURL string
	tracer  trace.Tracer
}

func NewFearGreedProvider(tracer trace.Tracer, fetcher Fetcher) *FearGreedProvider {
	return &FearGreedProvider{
		fetcher: fetcher,
		baseURL: fearGreedBaseURL,
		tracer:  tracer,
	}
}

func (p *FearGreedProvider) FetchLatest(ctx context.Context) (*domain.FearGreedReading, error) {
	ctx, span := p.tracer.Start(ctx, "feargreed.fetch-latest")
	defer span.End()

	var payload struct {
		Data []struct {
			Value            string `json:"value"`
			Classification   string `json:"value_classification"`
			Timestamp        string `json:"timestamp"`
			TimeUntilUpdateS string `json:"time_until_update"`
		} `json:"data"`
	}
	u := strings.TrimRight(p.baseURL, "/") + "/fng/?limit=1"
	if err := p.fetcher.GetJSON(ctx, u, &payload); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("fetch fear & greed: %w", err)
	}
	if len(payload.Data) == 0 {
		return nil, fmt.Errorf("fear & greed response has no rows")
	}

	row := payload.Data[0]
	value, err := strconv.Atoi(strings.TrimSpace(row.Value))
	if err != nil {
		return nil, fmt.Errorf("parse fear & greed value: %w", err)
	}
	if value < 0 || value > 100 {
		return nil, fmt.Errorf("fear & greed value %d out of range", value)
	}
	ts, err := strconv.ParseInt(strings.TrimSpace(row.Timestamp), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse fear & greed timestamp: %w", err)
	}
	if ts > 1_000_000_000_000 {
		ts = ts / 1000
	}

	reading := &domain.FearGreedReading{
		Value:          value,
		Classification: strings.TrimSpace(row.Classification),
		Timestamp:      time.Unix(ts, 0).UTC(),
	}
	if row.TimeUntilUpdateS != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(row.TimeUntilUpdateS)); err == nil && n >= 0 {
			reading.TimeUntilUpdateS = &n
		}
	}
	return reading, nil
}
