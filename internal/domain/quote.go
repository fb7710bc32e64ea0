package domain

import "time"

// Quote is the latest price data for one symbol. Optional upstream fields
// are pointers and serialize as null when absent.
type Quote struct {
	Symbol        string   `json:"symbol"`
	Name          string   `json:"name,omitempty"`
	Currency      string   `json:"currency,omitempty"`
	Price         float64  `json:"price"`
	PreviousClose *float64 `json:"previous_close"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
	DayHigh       *float64 `json:"day_high"`
	DayLow        *float64 `json:"day_low"`
	Volume        *float64 `json:"volume"`
	MarketTime    int64    `json:"market_time"`
}

// Chart is a daily close series for one symbol, oldest first.
type Chart struct {
	Symbol     string      `json:"symbol"`
	Quote      Quote       `json:"quote"`
	Timestamps []time.Time `json:"timestamps"`
	Closes     []float64   `json:"closes"`
}

// Last returns the most recent close, or the quote price when the series is
// empty.
func (c *Chart) Last() float64 {
	if len(c.Closes) == 0 {
		return c.Quote.Price
	}
	return c.Closes[len(c.Closes)-1]
}

// QuoteBatch is the partial-success result of a multi-symbol lookup.
type QuoteBatch struct {
	Quotes    []Quote        `json:"quotes"`
	Meta      QuoteBatchMeta `json:"meta"`
	Timestamp time.Time      `json:"timestamp"`
}

type QuoteBatchMeta struct {
	Requested int      `json:"requested"`
	Succeeded int      `json:"succeeded"`
	Failed    []string `json:"failed"`
}
