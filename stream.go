package corrstream

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// StreamConfig configures the insight streaming API.
type StreamConfig struct {
	// Enabled turns on WebSocket streaming.
	Enabled bool
	// BufferSize is the channel buffer size per subscription.
	BufferSize int
	// PingInterval is how often to ping clients.
	PingInterval time.Duration
	// WriteTimeout for WebSocket writes.
	WriteTimeout time.Duration
}

// DefaultStreamConfig returns default streaming configuration.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled:      true,
		BufferSize:   256,
		PingInterval: 30 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// StreamSubscription receives insights as ingestion cycles commit them.
type StreamSubscription struct {
	ID      string
	Kind    *InsightKind // nil subscribes to all kinds
	ch      chan Insight
	done    chan struct{}
	closed  bool
	mu      sync.Mutex
	created time.Time
}

// C returns the channel for receiving committed insights.
func (s *StreamSubscription) C() <-chan Insight {
	return s.ch
}

// Close closes the subscription.
func (s *StreamSubscription) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	close(s.ch)
}

// StreamHub fans committed insight batches out to active subscriptions.
type StreamHub struct {
	config StreamConfig
	mu     sync.RWMutex
	subs   map[string]*StreamSubscription
	nextID uint64
}

// NewStreamHub creates a new streaming hub.
func NewStreamHub(cfg StreamConfig) *StreamHub {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 256
	}
	return &StreamHub{
		config: cfg,
		subs:   make(map[string]*StreamSubscription),
	}
}

// Subscribe creates a new subscription, optionally limited to one kind.
func (h *StreamHub) Subscribe(kind *InsightKind) *StreamSubscription {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sub := &StreamSubscription{
		ID:      fmt.Sprintf("sub-%d", h.nextID),
		Kind:    kind,
		ch:      make(chan Insight, h.config.BufferSize),
		done:    make(chan struct{}),
		created: time.Now(),
	}
	h.subs[sub.ID] = sub
	return sub
}

// Unsubscribe removes a subscription.
func (h *StreamHub) Unsubscribe(id string) {
	h.mu.Lock()
	sub, ok := h.subs[id]
	if ok {
		delete(h.subs, id)
	}
	h.mu.Unlock()

	if ok {
		sub.Close()
	}
}

// Publish delivers a committed batch to matching subscriptions. Slow
// subscribers drop insights rather than stalling the commit path.
func (h *StreamHub) Publish(batch []Insight) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, sub := range h.subs {
		for _, in := range batch {
			if sub.Kind != nil && in.Kind != *sub.Kind {
				continue
			}
			sub.mu.Lock()
			if !sub.closed {
				select {
				case sub.ch <- in:
				default:
				}
			}
			sub.mu.Unlock()
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (h *StreamHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

var streamUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// ServeHTTP upgrades the connection and streams committed insights to the
// client until it disconnects.
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.config.Enabled {
		http.Error(w, "streaming disabled", http.StatusNotFound)
		return
	}

	var kind *InsightKind
	if k := r.URL.Query().Get("kind"); k != "" {
		parsed, ok := ParseInsightKind(k)
		if !ok {
			http.Error(w, "unknown kind", http.StatusBadRequest)
			return
		}
		kind = &parsed
	}

	conn, err := streamUpgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("stream upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	sub := h.Subscribe(kind)
	defer h.Unsubscribe(sub.ID)

	// Reader goroutine only to detect client close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(h.config.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case <-sub.done:
			return
		case in, ok := <-sub.C():
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteJSON(in); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(h.config.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
