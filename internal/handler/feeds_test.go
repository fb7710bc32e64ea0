package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"market-pulse/internal/poller"

	"github.com/gorilla/websocket"
)

func stringsReader(s string) io.Reader { return strings.NewReader(s) }

type countingFetcher struct {
	calls atomic.Int64
}

func (f *countingFetcher) GetJSON(ctx context.Context, url string, v any) error {
	n := f.calls.Add(1)
	return json.Unmarshal([]byte(fmt.Sprintf(`{"n":%d}`, n)), v)
}

type stubHub struct {
	subs  map[string]*poller.Subscription[json.RawMessage]
	order []string
}

func newStubHub(t *testing.T, fetcher poller.Fetcher, names ...string) *stubHub {
	t.Helper()
	hub := &stubHub{subs: make(map[string]*poller.Subscription[json.RawMessage])}
	for _, name := range names {
		sub := poller.Start[json.RawMessage](context.Background(), name, "http://api/"+name, fetcher,
			poller.WithInterval(time.Hour))
		t.Cleanup(sub.Stop)
		hub.subs[name] = sub
		hub.order = append(hub.order, name)
	}
	return hub
}

func (h *stubHub) Names() []string { return h.order }

func (h *stubHub) Get(name string) (*poller.Subscription[json.RawMessage], bool) {
	sub, ok := h.subs[name]
	return sub, ok
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met")
}

func feedHandler(t *testing.T, fetcher poller.Fetcher, names ...string) (*Handler, *stubHub) {
	h := New(testTracer, &stubQuotes{}, &stubSentiment{}, stubScorer{})
	hub := newStubHub(t, fetcher, names...)
	h.SetFeedHub(hub)
	return h, hub
}

func TestFeedsDisabledWithoutHub(t *testing.T) {
	r := newTestRouter(New(testTracer, &stubQuotes{}, &stubSentiment{}, stubScorer{}))

	for _, target := range []string{"/api/feeds", "/api/feeds/quotes"} {
		if w := do(r, http.MethodGet, target, ""); w.Code != http.StatusServiceUnavailable {
			t.Fatalf("%s: expected 503, got %d", target, w.Code)
		}
	}
}

func TestListAndGetFeeds(t *testing.T) {
	fetcher := &countingFetcher{}
	h, hub := feedHandler(t, fetcher, "quotes", "news")
	r := newTestRouter(h)
	waitFor(t, func() bool {
		return hub.subs["quotes"].Snapshot().Data != nil && hub.subs["news"].Snapshot().Data != nil
	})

	w := do(r, http.MethodGet, "/api/feeds", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var list struct {
		Feeds []FeedView `json:"feeds"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if len(list.Feeds) != 2 || list.Feeds[0].Name != "quotes" || !list.Feeds[0].Enabled {
		t.Fatalf("unexpected feeds: %+v", list.Feeds)
	}

	w = do(r, http.MethodGet, "/api/feeds/news", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view FeedView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if view.URL != "http://api/news" || view.State.Data == nil || view.State.LastUpdated == nil {
		t.Fatalf("unexpected view: %+v", view)
	}

	if w := do(r, http.MethodGet, "/api/feeds/unknown", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestRefetchFeed(t *testing.T) {
	fetcher := &countingFetcher{}
	h, hub := feedHandler(t, fetcher, "quotes")
	r := newTestRouter(h)
	waitFor(t, func() bool { return fetcher.calls.Load() == 1 })

	if w := do(r, http.MethodPost, "/api/feeds/quotes/refetch", ""); w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}
	waitFor(t, func() bool {
		state := hub.subs["quotes"].Snapshot()
		return state.Data != nil && string(*state.Data) == `{"n":2}` && !state.Loading
	})
}

func TestSetFeedEnabled(t *testing.T) {
	fetcher := &countingFetcher{}
	h, hub := feedHandler(t, fetcher, "quotes")
	r := newTestRouter(h)

	w := do(r, http.MethodPost, "/api/feeds/quotes/enabled", `{"enabled":false}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view FeedView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("parse error: %v", err)
	}
	if view.Enabled || hub.subs["quotes"].Enabled() {
		t.Fatal("feed should be disabled")
	}

	if w := do(r, http.MethodPost, "/api/feeds/quotes/refetch", ""); w.Code != http.StatusConflict {
		t.Fatalf("refetch of a disabled feed should conflict, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/feeds/quotes/enabled", `{}`); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without enabled field, got %d", w.Code)
	}
	if w := do(r, http.MethodPost, "/api/feeds/quotes/enabled", `{"enabled":true}`); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !hub.subs["quotes"].Enabled() {
		t.Fatal("feed should be enabled again")
	}
}

func TestStreamFeed(t *testing.T) {
	fetcher := &countingFetcher{}
	h, _ := feedHandler(t, fetcher, "quotes")
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/feeds/quotes/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readUntil := func(want string) FeedView {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		for {
			var view FeedView
			if err := conn.ReadJSON(&view); err != nil {
				t.Fatalf("read: %v", err)
			}
			if view.State.Data != nil && string(*view.State.Data) == want && !view.State.Loading {
				return view
			}
		}
	}

	if view := readUntil(`{"n":1}`); view.Name != "quotes" {
		t.Fatalf("unexpected view: %+v", view)
	}

	if err := conn.WriteJSON(streamControl{Action: "refetch"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	readUntil(`{"n":2}`)
}

func TestStreamRefetchIgnoredWhileDisabled(t *testing.T) {
	fetcher := &countingFetcher{}
	h, hub := feedHandler(t, fetcher, "quotes")
	srv := httptest.NewServer(newTestRouter(h))
	defer srv.Close()
	waitFor(t, func() bool { return fetcher.calls.Load() == 1 })

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/feeds/quotes/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for _, action := range []string{"disable", "refetch", "enable"} {
		if err := conn.WriteJSON(streamControl{Action: action}); err != nil {
			t.Fatalf("write %s: %v", action, err)
		}
	}

	waitFor(t, func() bool { return fetcher.calls.Load() == 2 && hub.subs["quotes"].Enabled() })
	time.Sleep(50 * time.Millisecond)
	if n := fetcher.calls.Load(); n != 2 {
		t.Fatalf("refetch of a disabled feed should be ignored, got %d fetches", n)
	}
}

func TestStreamUnknownFeed(t *testing.T) {
	h, _ := feedHandler(t, &countingFetcher{})
	r := newTestRouter(h)
	if w := do(r, http.MethodGet, "/api/feeds/nope/stream", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
