package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"market-pulse/internal/feed"
	"market-pulse/pkg/logger"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/trace"
)

// Hub runs one raw-JSON subscription per registry feed.
type Hub struct {
	tracer   trace.Tracer
	log      *logrus.Entry
	fetcher  Fetcher
	registry *feed.Registry

	mu   sync.RWMutex
	subs map[string]*Subscription[json.RawMessage]
}

func NewHub(tracer trace.Tracer, log *logrus.Entry, fetcher Fetcher, registry *feed.Registry) *Hub {
	if log == nil {
		log = logger.Discard()
	}
	return &Hub{
		tracer:   tracer,
		log:      log,
		fetcher:  fetcher,
		registry: registry,
		subs:     make(map[string]*Subscription[json.RawMessage]),
	}
}

// Start launches every feed in the registry. Feeds whose URL or schedule
// cannot be resolved are skipped and reported in the returned error; the
// rest keep running.
func (h *Hub) Start(ctx context.Context) error {
	var errs []error
	for _, d := range h.registry.All() {
		if err := h.startFeed(ctx, d); err != nil {
			h.log.WithError(err).WithField("feed", d.Name).Error("feed not started")
			errs = append(errs, err)
		}
	}
	h.log.WithField("feeds", len(h.Names())).Info("feed hub started")
	if len(errs) > 0 {
		return fmt.Errorf("start feeds: %d failed, first: %w", len(errs), errs[0])
	}
	return nil
}

func (h *Hub) startFeed(ctx context.Context, d feed.Descriptor) error {
	url, err := d.URL(nil)
	if err != nil {
		return err
	}
	sched, err := d.Cron()
	if err != nil {
		return err
	}

	opts := []Option{
		WithInterval(d.DefaultInterval),
		WithLogger(h.log),
		WithTracer(h.tracer),
	}
	if sched != nil {
		opts = append(opts, WithSchedule(sched))
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if old, ok := h.subs[d.Name]; ok {
		old.Stop()
	}
	h.subs[d.Name] = Start[json.RawMessage](ctx, d.Name, url, h.fetcher, opts...)
	return nil
}

func (h *Hub) Get(name string) (*Subscription[json.RawMessage], bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sub, ok := h.subs[name]
	return sub, ok
}

// Names returns running feed names in registry order.
func (h *Hub) Names() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	names := make([]string, 0, len(h.subs))
	for _, d := range h.registry.All() {
		if _, ok := h.subs[d.Name]; ok {
			names = append(names, d.Name)
		}
	}
	return names
}

// Stop stops every subscription.
func (h *Hub) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for name, sub := range h.subs {
		sub.Stop()
		delete(h.subs, name)
	}
	h.log.Info("feed hub stopped")
}
