package provider

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"market-pulse/internal/fetch"

	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testTracer() trace.Tracer {
	return trace.NewNoopTracerProvider().Tracer("test")
}

func testFetcher(rt roundTripFunc) *fetch.Client {
	return fetch.New(testTracer(),
		fetch.WithHTTPClient(&http.Client{Transport: rt}),
		fetch.WithMaxRetries(0),
		fetch.WithTimeout(time.Second),
	)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     make(http.Header),
	}
}
