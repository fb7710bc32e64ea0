package marketintel

import (
	"context"
	"fmt"
	"time"

	"market-pulse/internal/domain"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

// ChartReader returns about a year of daily closes for a symbol.
type ChartReader interface {
	GetChart(ctx context.Context, symbol string) (*domain.Chart, error)
}

// Symbols are the market series feeding the sub-indicators.
type Symbols struct {
	Index           string
	Volatility      string
	Stocks          string
	Bonds           string
	JunkBonds       string
	InvestmentGrade string
}

var DefaultSymbols = Symbols{
	Index:           "^GSPC",
	Volatility:      "^VIX",
	Stocks:          "SPY",
	Bonds:           "TLT",
	JunkBonds:       "HYG",
	InvestmentGrade: "LQD",
}

type FearGreed struct {
	CompositeResult
	Timestamp time.Time `json:"timestamp"`
}

type Service struct {
	tracer  trace.Tracer
	charts  ChartReader
	symbols Symbols
	weights map[string]float64
	now     func() time.Time
}

func NewService(tracer trace.Tracer, charts ChartReader, symbols Symbols) *Service {
	if symbols == (Symbols{}) {
		symbols = DefaultSymbols
	}
	return &Service{
		tracer:  tracer,
		charts:  charts,
		symbols: symbols,
		weights: DefaultWeights,
		now:     time.Now,
	}
}

// FearGreed computes the composite index from live charts. Any missing
// series fails the whole computation.
func (s *Service) FearGreed(ctx context.Context) (*FearGreed, error) {
	ctx, span := s.tracer.Start(ctx, "market-intel.fear-greed")
	defer span.End()

	symbols := []string{
		s.symbols.Index, s.symbols.Volatility, s.symbols.Stocks,
		s.symbols.Bonds, s.symbols.JunkBonds, s.symbols.InvestmentGrade,
	}
	charts := make([]*domain.Chart, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	for i, symbol := range symbols {
		i, symbol := i, symbol
		g.Go(func() error {
			chart, err := s.charts.GetChart(gctx, symbol)
			if err != nil {
				return fmt.Errorf("chart %s: %w", symbol, err)
			}
			charts[i] = chart
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	index, vix, stocks, bonds, junk, ig := charts[0], charts[1], charts[2], charts[3], charts[4], charts[5]
	indicators := []Indicator{
		{Name: IndicatorMomentum, Score: MarketMomentum(index)},
		{Name: IndicatorStrength, Score: PriceStrength(index)},
		{Name: IndicatorVolatility, Score: MarketVolatility(vix)},
		{Name: IndicatorSafeHaven, Score: SafeHavenDemand(stocks, bonds)},
		{Name: IndicatorJunkBond, Score: JunkBondDemand(junk, ig)},
	}

	result, err := Score(indicators, s.weights)
	if err != nil {
		return nil, fmt.Errorf("score fear & greed: %w", err)
	}
	span.SetAttributes(
		attribute.Int("fear_greed.index", result.Index),
		attribute.String("fear_greed.label", string(result.Label)),
	)

	return &FearGreed{CompositeResult: result, Timestamp: s.now().UTC()}, nil
}
