package marketintel

import "market-pulse/internal/domain"

// Names of the fear & greed sub-indicators.
const (
	IndicatorMomentum   = "market_momentum"
	IndicatorStrength   = "stock_price_strength"
	IndicatorVolatility = "market_volatility"
	IndicatorSafeHaven  = "safe_haven_demand"
	IndicatorJunkBond   = "junk_bond_demand"
)

// DefaultWeights sum to 1.
var DefaultWeights = map[string]float64{
	IndicatorMomentum:   0.25,
	IndicatorStrength:   0.20,
	IndicatorVolatility: 0.25,
	IndicatorSafeHaven:  0.15,
	IndicatorJunkBond:   0.15,
}

// Every sub-indicator below is a pure function clamped to [0,100]; 50 is
// neutral and is also returned when inputs are insufficient.

// MarketMomentum scores the index level against its 125-session average.
// 10% above the average scores 100, 10% below scores 0.
func MarketMomentum(index *domain.Chart) float64 {
	avg, ok := movingAverage(index.Closes, 125)
	if !ok || avg == 0 {
		return 50
	}
	pct := index.Last()/avg - 1
	return clamp(50+pct*500, 0, 100)
}

// PriceStrength scores where the last close sits in the trailing
// 252-session high/low range.
func PriceStrength(index *domain.Chart) float64 {
	closes := tail(index.Closes, 252)
	if len(closes) < 2 {
		return 50
	}
	lo, hi := closes[0], closes[0]
	for _, c := range closes {
		if c < lo {
			lo = c
		}
		if c > hi {
			hi = c
		}
	}
	if hi == lo {
		return 50
	}
	return clamp((index.Last()-lo)/(hi-lo)*100, 0, 100)
}

// MarketVolatility compares the volatility index with its 50-session
// average. Elevated volatility reads as fear.
func MarketVolatility(vix *domain.Chart) float64 {
	avg, ok := movingAverage(vix.Closes, 50)
	if !ok || avg == 0 {
		return 50
	}
	ratio := vix.Last() / avg
	return clamp(50-(ratio-1)*200, 0, 100)
}

// SafeHavenDemand compares 20-session returns of stocks and treasuries in
// percentage points. Stocks outperforming bonds reads as greed.
func SafeHavenDemand(stocks, bonds *domain.Chart) float64 {
	s, ok1 := periodReturn(stocks.Closes, 20)
	b, ok2 := periodReturn(bonds.Closes, 20)
	if !ok1 || !ok2 {
		return 50
	}
	return clamp(50+(s-b)*100*5, 0, 100)
}

// JunkBondDemand compares 20-session returns of high-yield and
// investment-grade bonds.
func JunkBondDemand(junk, investmentGrade *domain.Chart) float64 {
	j, ok1 := periodReturn(junk.Closes, 20)
	ig, ok2 := periodReturn(investmentGrade.Closes, 20)
	if !ok1 || !ok2 {
		return 50
	}
	return clamp(50+(j-ig)*100*10, 0, 100)
}

func movingAverage(closes []float64, n int) (float64, bool) {
	if n <= 0 || len(closes) < n {
		return 0, false
	}
	sum := 0.0
	for _, c := range closes[len(closes)-n:] {
		sum += c
	}
	return sum / float64(n), true
}

func periodReturn(closes []float64, n int) (float64, bool) {
	if len(closes) <= n {
		return 0, false
	}
	start := closes[len(closes)-1-n]
	if start == 0 {
		return 0, false
	}
	return closes[len(closes)-1]/start - 1, true
}

func tail(closes []float64, n int) []float64 {
	if len(closes) <= n {
		return closes
	}
	return closes[len(closes)-n:]
}
