package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"market-pulse/internal/poller"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 45 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// FeedView is the wire form of one feed subscription.
type FeedView struct {
	Name    string                        `json:"name"`
	URL     string                        `json:"url"`
	Enabled bool                          `json:"enabled"`
	State   poller.State[json.RawMessage] `json:"state"`
}

func viewOf(sub *poller.Subscription[json.RawMessage], state poller.State[json.RawMessage]) FeedView {
	return FeedView{
		Name:    sub.Name(),
		URL:     sub.URL(),
		Enabled: sub.Enabled(),
		State:   state,
	}
}

func (h *Handler) lookupFeed(c *gin.Context) (*poller.Subscription[json.RawMessage], bool) {
	if h.feeds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed polling disabled"})
		return nil, false
	}
	name := strings.TrimSpace(c.Param("name"))
	sub, ok := h.feeds.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown feed: " + name})
		return nil, false
	}
	return sub, true
}

// ListFeeds godoc
// @Summary      List polled feeds with their current state
// @Tags         feeds
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/feeds [get]
func (h *Handler) ListFeeds(c *gin.Context) {
	if h.feeds == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "feed polling disabled"})
		return
	}
	views := make([]FeedView, 0)
	for _, name := range h.feeds.Names() {
		if sub, ok := h.feeds.Get(name); ok {
			views = append(views, viewOf(sub, sub.Snapshot()))
		}
	}
	c.JSON(http.StatusOK, gin.H{"feeds": views})
}

// GetFeed godoc
// @Summary      Current state of one feed
// @Tags         feeds
// @Produce      json
// @Param        name  path  string  true  "Feed name"
// @Success      200  {object}  FeedView
// @Failure      404  {object}  map[string]string
// @Router       /api/feeds/{name} [get]
func (h *Handler) GetFeed(c *gin.Context) {
	sub, ok := h.lookupFeed(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, viewOf(sub, sub.Snapshot()))
}

// RefetchFeed godoc
// @Summary      Fetch a feed immediately
// @Description  The result lands in the feed state; poll GET /api/feeds/{name} or use the stream
// @Tags         feeds
// @Produce      json
// @Param        name  path  string  true  "Feed name"
// @Success      202  {object}  FeedView
// @Failure      404  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /api/feeds/{name}/refetch [post]
func (h *Handler) RefetchFeed(c *gin.Context) {
	sub, ok := h.lookupFeed(c)
	if !ok {
		return
	}
	if !sub.Enabled() {
		c.JSON(http.StatusConflict, gin.H{"error": "feed is disabled"})
		return
	}
	sub.RefetchNow()
	c.JSON(http.StatusAccepted, viewOf(sub, sub.Snapshot()))
}

type enabledRequest struct {
	Enabled *bool `json:"enabled"`
}

// SetFeedEnabled godoc
// @Summary      Enable or disable polling of a feed
// @Tags         feeds
// @Accept       json
// @Produce      json
// @Param        name  path  string  true  "Feed name"
// @Param        body  body  enabledRequest  true  "{\"enabled\": false}"
// @Success      200  {object}  FeedView
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /api/feeds/{name}/enabled [post]
func (h *Handler) SetFeedEnabled(c *gin.Context) {
	sub, ok := h.lookupFeed(c)
	if !ok {
		return
	}
	var req enabledRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": `body must be {"enabled": true|false}`})
		return
	}
	sub.SetEnabled(*req.Enabled)
	c.JSON(http.StatusOK, viewOf(sub, sub.Snapshot()))
}

type streamControl struct {
	Action string `json:"action"`
}

// StreamFeed godoc
// @Summary      Stream feed state over a websocket
// @Description  Sends the current state on connect and every change after. Clients may send {"action":"refetch"|"enable"|"disable"}.
// @Tags         feeds
// @Param        name  path  string  true  "Feed name"
// @Router       /api/feeds/{name}/stream [get]
func (h *Handler) StreamFeed(c *gin.Context) {
	sub, ok := h.lookupFeed(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	defer conn.Close()

	log := h.log.WithFields(logrus.Fields{"feed": sub.Name(), "remote": conn.RemoteAddr().String()})
	log.Debug("stream opened")

	states, cancel := sub.Watch()
	defer cancel()

	done := make(chan struct{})
	go h.readControl(conn, sub, done)

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case state, ok := <-states:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed stopped"))
				return
			}
			if err := conn.WriteJSON(viewOf(sub, state)); err != nil {
				log.WithError(err).Debug("stream write failed")
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			log.Debug("stream closed by client")
			return
		}
	}
}

func (h *Handler) readControl(conn *websocket.Conn, sub *poller.Subscription[json.RawMessage], done chan<- struct{}) {
	defer close(done)

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		var ctrl streamControl
		if err := json.Unmarshal(data, &ctrl); err != nil {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(ctrl.Action)) {
		case "refetch":
			if sub.Enabled() {
				sub.RefetchNow()
			}
		case "enable":
			sub.SetEnabled(true)
		case "disable":
			sub.SetEnabled(false)
		}
	}
}
