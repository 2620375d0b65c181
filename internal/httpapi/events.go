package httpapi

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/logging"
	"github.com/ayushsharma-1/Voice-enabled-shop-assistant/internal/observability"
)

const (
	EventUser            = "user"
	EventVoice           = "voice"
	EventWishlist        = "wishlist"
	EventRecommendations = "recommendations"
	EventStore           = "store"
)

const (
	eventBuffer     = 64
	eventWriteWait  = 10 * time.Second
	eventPongWait   = 60 * time.Second
	eventPingPeriod = eventPongWait * 9 / 10
)

// Event is one state change pushed to /v1/events subscribers.
type Event struct {
	Type string    `json:"type"`
	At   time.Time `json:"at"`
	Data any       `json:"data"`
}

// Hub fans controller changes out to websocket clients. Publish never
// blocks: a client whose queue is full misses the event.
type Hub struct {
	metrics *observability.Metrics
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.Mutex
	clients map[*subscriber]struct{}
	closed  bool
}

type subscriber struct {
	send chan Event
}

func NewHub(metrics *observability.Metrics, logger *zap.Logger) *Hub {
	return &Hub{
		metrics: metrics,
		logger:  logging.OrNop(logger).Named("events"),
		now:     time.Now,
		clients: make(map[*subscriber]struct{}),
	}
}

// Publish queues an event for every connected client. A nil hub is a no-op.
func (h *Hub) Publish(eventType string, data any) {
	if h == nil {
		return
	}
	ev := Event{Type: eventType, At: h.now().UTC(), Data: data}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- ev:
			h.metrics.ObserveEvent(eventType, "queued")
		default:
			h.metrics.ObserveEvent(eventType, "drop_full")
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) subscribe() (*subscriber, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	c := &subscriber{send: make(chan Event, eventBuffer)}
	h.clients[c] = struct{}{}
	h.metrics.AddEventClients(1)
	return c, true
}

func (h *Hub) unsubscribe(c *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.metrics.AddEventClients(-1)
}

// Close disconnects every client and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
		h.metrics.AddEventClients(-1)
	}
}

// serve pumps events to one websocket connection until either side goes
// away. initial events are written before any published ones.
func (h *Hub) serve(conn *websocket.Conn, initial []Event) {
	defer conn.Close()
	c, ok := h.subscribe()
	if !ok {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(eventWriteWait))
		return
	}
	defer h.unsubscribe(c)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		conn.SetReadLimit(4096)
		_ = conn.SetReadDeadline(time.Now().Add(eventPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(eventPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(ev Event) bool {
		_ = conn.SetWriteDeadline(time.Now().Add(eventWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			h.metrics.ObserveEvent(ev.Type, "write_error")
			h.logger.Debug("event write failed", zap.Error(err))
			return false
		}
		h.metrics.ObserveEvent(ev.Type, "sent")
		return true
	}
	for _, ev := range initial {
		if !write(ev) {
			return
		}
	}

	ping := time.NewTicker(eventPingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-readDone:
			return
		case ev, ok := <-c.send:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"), time.Now().Add(eventWriteWait))
				return
			}
			if !write(ev) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(eventWriteWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	now := time.Now().UTC()
	initial := []Event{
		{Type: EventUser, At: now, Data: s.users.Snapshot()},
		{Type: EventVoice, At: now, Data: s.voice.Snapshot()},
		{Type: EventWishlist, At: now, Data: s.wishlist.State()},
		{Type: EventRecommendations, At: now, Data: s.recommend.State()},
		{Type: EventStore, At: now, Data: s.catalog.State()},
	}
	s.hub.serve(conn, initial)
}
