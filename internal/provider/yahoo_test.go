package provider

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"market-pulse/internal/fetch"
)

const spyChart = `{"chart":{"result":[{
	"meta":{"symbol":"SPY","currency":"USD","shortName":"SPDR S&P 500","regularMarketPrice":510,"chartPreviousClose":500,"regularMarketDayHigh":512,"regularMarketTime":1771009800},
	"timestamp":[1770800000,1770886400,1770972800],
	"indicators":{"quote":[{"close":[498.5,null,510]}]}
}],"error":null}}`

func TestYahooFetchChart(t *testing.T) {
	p := NewYahooProvider(testTracer(), testFetcher(func(req *http.Request) (*http.Response, error) {
		if req.URL.Path != "/v8/finance/chart/SPY" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if req.URL.Query().Get("range") != "1y" || req.URL.Query().Get("interval") != "1d" {
			t.Fatalf("unexpected query: %s", req.URL.RawQuery)
		}
		return respond(http.StatusOK, spyChart), nil
	}), "https://example.com")

	chart, err := p.FetchChart(context.Background(), "spy", "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(chart.Closes) != 2 || chart.Closes[1] != 510 || chart.Last() != 510 {
		t.Fatalf("null closes should be skipped, got %v", chart.Closes)
	}
	if len(chart.Timestamps) != len(chart.Closes) {
		t.Fatalf("timestamps and closes must align")
	}

	q := chart.Quote
	if q.Symbol != "SPY" || q.Price != 510 || q.Name != "SPDR S&P 500" {
		t.Fatalf("unexpected quote: %+v", q)
	}
	if q.Change == nil || *q.Change != 10 || q.ChangePercent == nil || *q.ChangePercent != 2 {
		t.Fatalf("unexpected change: %v %v", q.Change, q.ChangePercent)
	}
	if q.DayHigh == nil || *q.DayHigh != 512 {
		t.Fatalf("unexpected day high: %v", q.DayHigh)
	}
	if q.DayLow != nil || q.Volume != nil {
		t.Fatalf("absent fields should stay nil: %+v", q)
	}
}

func TestYahooFetchQuoteWithoutPreviousClose(t *testing.T) {
	p := NewYahooProvider(testTracer(), testFetcher(func(req *http.Request) (*http.Response, error) {
		if req.URL.Query().Get("range") != "5d" {
			t.Fatalf("unexpected range: %s", req.URL.RawQuery)
		}
		return respond(http.StatusOK, `{"chart":{"result":[{"meta":{"symbol":"^VIX","regularMarketPrice":14.2}}],"error":null}}`), nil
	}), "https://example.com")

	q, err := p.FetchQuote(context.Background(), "^VIX")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Price != 14.2 || q.PreviousClose != nil || q.Change != nil {
		t.Fatalf("unexpected quote: %+v", q)
	}
}

func TestYahooChartErrors(t *testing.T) {
	cases := map[string]string{
		"upstream error": `{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`,
		"no result":      `{"chart":{"result":[],"error":null}}`,
		"no price":       `{"chart":{"result":[{"meta":{"symbol":"X"}}],"error":null}}`,
	}
	for name, body := range cases {
		p := NewYahooProvider(testTracer(), testFetcher(func(req *http.Request) (*http.Response, error) {
			return respond(http.StatusOK, body), nil
		}), "https://example.com")
		if _, err := p.FetchChart(context.Background(), "X", "", ""); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestYahooNotFoundIsClientError(t *testing.T) {
	p := NewYahooProvider(testTracer(), testFetcher(func(req *http.Request) (*http.Response, error) {
		return respond(http.StatusNotFound, `{"chart":{"result":null}}`), nil
	}), "https://example.com")

	_, err := p.FetchChart(context.Background(), "NOPE", "", "")
	var ferr *fetch.Error
	if !errors.As(err, &ferr) || ferr.Kind != fetch.KindClient || ferr.Retryable {
		t.Fatalf("expected non-retryable client error, got %v", err)
	}
}
