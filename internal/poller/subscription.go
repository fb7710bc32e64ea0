package poller

import (
	"context"
	"sync"
	"time"

	"market-pulse/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Fetcher is the slice of fetch.Client a subscription needs.
type Fetcher interface {
	GetJSON(ctx context.Context, url string, v any) error
}

// State is one snapshot of a feed. Data and LastUpdated are nil until the
// first success.
type State[T any] struct {
	Data        *T         `json:"data"`
	Loading     bool       `json:"loading"`
	Error       string     `json:"error,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
}

type options struct {
	interval time.Duration
	schedule cron.Schedule
	enabled  bool
	log      *logrus.Entry
	tracer   trace.Tracer
	now      func() time.Time
}

type Option func(*options)

// WithInterval sets the repeat cadence. Zero disables repetition.
func WithInterval(d time.Duration) Option {
	return func(o *options) { o.interval = d }
}

// WithSchedule repeats on a cron schedule instead of a fixed interval.
func WithSchedule(s cron.Schedule) Option {
	return func(o *options) { o.schedule = s }
}

func WithEnabled(enabled bool) Option {
	return func(o *options) { o.enabled = enabled }
}

func WithLogger(log *logrus.Entry) Option {
	return func(o *options) {
		if log != nil {
			o.log = log
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// Subscription owns the polling loop and the Feed State of one feed.
type Subscription[T any] struct {
	name    string
	url     string
	fetcher Fetcher
	opts    options

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	state      State[T]
	started    uint64
	applied    uint64
	stopped    bool
	enabled    bool
	loopCancel context.CancelFunc
	watchers   map[chan State[T]]struct{}
}

// Start creates a subscription for url. When enabled (the default) it
// fetches immediately and then repeats on the configured cadence.
func Start[T any](ctx context.Context, name, url string, fetcher Fetcher, opts ...Option) *Subscription[T] {
	o := options{
		enabled: true,
		log:     logger.Discard(),
		tracer:  noop.NewTracerProvider().Tracer("poller"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}

	subCtx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		name:     name,
		url:      url,
		fetcher:  fetcher,
		opts:     o,
		ctx:      subCtx,
		cancel:   cancel,
		watchers: make(map[chan State[T]]struct{}),
	}
	s.opts.log = o.log.WithField("feed", name)

	if o.enabled {
		s.SetEnabled(true)
	}
	return s
}

func (s *Subscription[T]) Name() string { return s.name }

func (s *Subscription[T]) URL() string { return s.url }

// Snapshot returns the current state.
func (s *Subscription[T]) Snapshot() State[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Subscription[T]) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled && !s.stopped
}

// SetEnabled starts or pauses the polling loop. Flipping to true fetches
// immediately. State is kept while paused.
func (s *Subscription[T]) SetEnabled(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || s.enabled == enabled {
		return
	}
	s.enabled = enabled
	if !enabled {
		if s.loopCancel != nil {
			s.loopCancel()
			s.loopCancel = nil
		}
		return
	}

	loopCtx, cancel := context.WithCancel(s.ctx)
	s.loopCancel = cancel
	go s.loop(loopCtx)
}

// RefetchNow marks the feed as loading and fetches out of band. The
// periodic timer is left alone.
func (s *Subscription[T]) RefetchNow() {
	seq, ok := s.begin()
	if !ok {
		return
	}
	go s.complete(s.ctx, seq, "manual")
}

// Stop cancels the timer and any in-flight fetch. No state change or stream
// emission happens after Stop returns. Stop is idempotent.
func (s *Subscription[T]) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.loopCancel = nil
	for ch := range s.watchers {
		close(ch)
		delete(s.watchers, ch)
	}
	s.mu.Unlock()

	s.cancel()
	s.opts.log.Debug("subscription stopped")
}

// Watch streams state snapshots. The channel holds the latest snapshot
// only; slow readers skip intermediate states. It is closed by Stop or by
// the returned cancel func.
func (s *Subscription[T]) Watch() (<-chan State[T], func()) {
	ch := make(chan State[T], 1)

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.watchers[ch] = struct{}{}
	ch <- s.state
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if _, ok := s.watchers[ch]; ok {
				delete(s.watchers, ch)
				close(ch)
			}
		})
	}
}

func (s *Subscription[T]) loop(ctx context.Context) {
	s.tick(ctx, "initial")

	switch {
	case s.opts.schedule != nil:
		s.cronLoop(ctx)
	case s.opts.interval > 0:
		s.tickerLoop(ctx)
	}
}

func (s *Subscription[T]) tickerLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx, "interval")
		}
	}
}

func (s *Subscription[T]) cronLoop(ctx context.Context) {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(s.opts.log))),
	)
	c.Schedule(s.opts.schedule, cron.FuncJob(func() { s.tick(ctx, "schedule") }))
	c.Start()
	<-ctx.Done()
	c.Stop()
}

func (s *Subscription[T]) tick(ctx context.Context, trigger string) {
	seq, ok := s.begin()
	if !ok {
		return
	}
	s.complete(ctx, seq, trigger)
}

// begin tags a new request and publishes the loading state.
func (s *Subscription[T]) begin() (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return 0, false
	}
	s.started++
	s.state.Loading = true
	s.state.Error = ""
	s.publishLocked()
	return s.started, true
}

func (s *Subscription[T]) complete(ctx context.Context, seq uint64, trigger string) {
	ctx, span := s.opts.tracer.Start(ctx, "poller.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("feed", s.name),
		attribute.String("trigger", trigger),
		attribute.Int64("seq", int64(seq)),
	)

	var out T
	err := s.fetcher.GetJSON(ctx, s.url, &out)
	if ctx.Err() != nil {
		// Paused or stopped while in flight.
		s.abandon(seq)
		span.SetAttributes(attribute.Bool("discarded", true))
		return
	}
	if !s.settle(seq, &out, err) {
		span.SetAttributes(attribute.Bool("discarded", true))
	}
}

// abandon drops a request cut short by cancellation. If it was the newest
// request the loading flag is cleared so a paused feed does not look busy.
func (s *Subscription[T]) abandon(seq uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped || seq != s.started || !s.state.Loading {
		return
	}
	s.state.Loading = false
	s.publishLocked()
}

// settle applies a finished request unless the subscription was stopped or
// a newer request has already been applied.
func (s *Subscription[T]) settle(seq uint64, data *T, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.opts.log.WithField("seq", seq)
	if s.stopped {
		log.Debug("discarding result after stop")
		return false
	}
	if seq < s.applied {
		log.WithField("applied", s.applied).Debug("discarding stale result")
		return false
	}

	s.applied = seq
	s.state.Loading = seq < s.started
	if err != nil {
		s.state.Error = err.Error()
		log.WithError(err).Warn("feed refresh failed")
	} else {
		now := s.opts.now()
		s.state.Data = data
		s.state.LastUpdated = &now
	}
	s.publishLocked()
	return true
}

func (s *Subscription[T]) publishLocked() {
	snap := s.state
	for ch := range s.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}
