package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"market-pulse/pkg/logger"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultMaxRetries  = 2
	DefaultTimeout     = 15 * time.Second
	DefaultBaseBackoff = 1 * time.Second
	DefaultMaxBackoff  = 5 * time.Second
	DefaultUserAgent   = "market-pulse/1.0"

	maxErrorBody = 512
)

// Client issues GET requests with a per-attempt deadline and retries
// retryable failures with capped exponential backoff.
type Client struct {
	http        *http.Client
	tracer      trace.Tracer
	log         *logrus.Entry
	userAgent   string
	maxRetries  int
	timeout     time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithBackoff(base, max time.Duration) Option {
	return func(c *Client) {
		if base > 0 {
			c.baseBackoff = base
		}
		if max > 0 {
			c.maxBackoff = max
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua = strings.TrimSpace(ua); ua != "" {
			c.userAgent = ua
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

func New(tracer trace.Tracer, opts ...Option) *Client {
	c := &Client{
		// Deadlines are applied per attempt through the request context.
		http:        &http.Client{},
		tracer:      tracer,
		log:         logger.Discard(),
		userAgent:   DefaultUserAgent,
		maxRetries:  DefaultMaxRetries,
		timeout:     DefaultTimeout,
		baseBackoff: DefaultBaseBackoff,
		maxBackoff:  DefaultMaxBackoff,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetJSON fetches url and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	body, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return &Error{
			Kind:    KindDecode,
			URL:     url,
			Message: fmt.Sprintf("decode response: %v", err),
			err:     err,
		}
	}
	return nil
}

// Get fetches url and returns the raw body of the first 2xx response.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "fetch.get")
	defer span.End()
	span.SetAttributes(attribute.String("http.url", url))

	var last *Error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		span.SetAttributes(attribute.Int("fetch.attempt", attempt))

		body, ferr := c.attempt(ctx, url)
		if ferr == nil {
			return body, nil
		}
		ferr.Attempts = attempt + 1
		last = ferr

		c.log.WithFields(logrus.Fields{
			"url":       url,
			"attempt":   attempt,
			"kind":      ferr.Kind.String(),
			"status":    ferr.Status,
			"retryable": ferr.Retryable,
		}).Warn("fetch attempt failed")

		if !ferr.Retryable {
			break
		}
		if attempt == c.maxRetries {
			last.Exhausted = true
			break
		}
		if err := c.sleep(ctx, c.backoff(attempt)); err != nil {
			last = canceled(url, attempt+1, err)
			break
		}
	}

	span.RecordError(last)
	span.SetStatus(codes.Error, last.Kind.String())
	if last.Status > 0 {
		span.SetAttributes(attribute.Int("http.status_code", last.Status))
	}
	return nil, last
}

func (c *Client) attempt(ctx context.Context, url string) ([]byte, *Error) {
	if err := ctx.Err(); err != nil {
		return nil, canceled(url, 0, err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &Error{Kind: KindClient, URL: url, Message: err.Error(), err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		kind, retryable := classifyStatus(resp.StatusCode)
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{Kind: kind, URL: url, Status: resp.StatusCode, Retryable: retryable, Message: msg}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, attemptCtx, url, err)
	}
	return body, nil
}

func (c *Client) transportError(parent, attemptCtx context.Context, url string, err error) *Error {
	if perr := parent.Err(); perr != nil {
		return canceled(url, 0, perr)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return &Error{
			Kind:      KindTimeout,
			URL:       url,
			Retryable: true,
			Message:   fmt.Sprintf("no response within %s", c.timeout),
			err:       err,
		}
	}
	return &Error{Kind: KindNetwork, URL: url, Retryable: true, Message: err.Error(), err: err}
}

// backoff returns min(base * 2^attempt, max).
func (c *Client) backoff(attempt int) time.Duration {
	d := c.baseBackoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= c.maxBackoff {
			return c.maxBackoff
		}
	}
	if d > c.maxBackoff {
		return c.maxBackoff
	}
	return d
}

func canceled(url string, attempts int, err error) *Error {
	return &Error{Kind: KindCanceled, URL: url, Attempts: attempts, Message: err.Error(), err: err}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
