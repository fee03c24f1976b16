// Package ws pushes live analysis results to websocket subscribers.
//
// A single hub fans out two message kinds: frame_result carries the
// per-subject assessments of one processed cycle, feed_alert fires when a
// stream's suspicious flag flips. Slow subscribers are dropped rather than
// allowed to stall the pipeline.
package ws

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/okian/kestrel/internal/domain/model"
	"github.com/okian/kestrel/pkg/logger"
	"github.com/okian/kestrel/pkg/metrics"
)

// Message types pushed over the wire.
const (
	MessageTypeFrameResult = "frame_result"
	MessageTypeFeedAlert   = "feed_alert"
	MessageTypePing        = "ping"
	MessageTypePong        = "pong"
)

// broadcastBuffer bounds how many pending broadcasts the hub holds before
// it starts dropping.
const broadcastBuffer = 256

// Message is the envelope for every websocket frame.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FrameResultData is the payload of a frame_result message.
type FrameResultData struct {
	StreamID string                   `json:"stream_id"`
	FrameSeq uint64                   `json:"frame_seq"`
	Results  []model.IntentRiskResult `json:"results"`
	Feed     model.FeedStatus         `json:"feed"`
}

// FeedAlertData is the payload of a feed_alert message.
type FeedAlertData struct {
	StreamID   string    `json:"stream_id"`
	Suspicious bool      `json:"suspicious"`
	TrustScore float64   `json:"trust_score"`
	At         time.Time `json:"at"`
}

// Hub maintains the set of active clients and fans broadcasts out to them.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan Message
	register   chan *Client
	unregister chan *Client

	mu     sync.RWMutex
	logger logger.Logger
}

// NewHub creates a hub. Run must be started before handing connections to it.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Message, broadcastBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger.Get().Named("ws"),
	}
}

// Run owns the client set until the context is canceled, at which point all
// clients are closed and ctx.Err() is returned.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAllClients(ctx)
			return ctx.Err()

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateWSClients(total)
			h.logger.Info(ctx, "websocket client connected", logger.Int("total_clients", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.UpdateWSClients(total)
			h.logger.Info(ctx, "websocket client disconnected", logger.Int("total_clients", total))

		case message := <-h.broadcast:
			h.broadcastToClients(message)
		}
	}
}

// broadcastToClients delivers one message to every client, evicting any
// whose send buffer is full. Clients are walked in connection order.
func (h *Hub) broadcastToClients(message Message) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	sort.Slice(clients, func(i, j int) bool {
		return clients[i].id < clients[j].id
	})

	var evicted []*Client
	for _, client := range clients {
		select {
		case client.send <- message:
			metrics.RecordWSMessageSent()
		default:
			// Buffer full: the subscriber cannot keep up.
			evicted = append(evicted, client)
		}
	}

	for _, client := range evicted {
		close(client.send)
		delete(h.clients, client)
		metrics.RecordWSMessageDropped()
	}
	if len(evicted) > 0 {
		metrics.UpdateWSClients(len(h.clients))
	}
}

// closeAllClients drops every client during shutdown.
func (h *Hub) closeAllClients(ctx context.Context) {
	h.mu.Lock()
	count := len(h.clients)
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
	h.mu.Unlock()

	metrics.UpdateWSClients(0)
	h.logger.Info(ctx, "websocket hub stopped", logger.Int("clients_closed", count))
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// BroadcastFrameResult pushes one processed cycle to all subscribers.
func (h *Hub) BroadcastFrameResult(streamID string, frameSeq uint64, results []model.IntentRiskResult, feed model.FeedStatus) {
	h.enqueue(Message{
		Type: MessageTypeFrameResult,
		Data: FrameResultData{
			StreamID: streamID,
			FrameSeq: frameSeq,
			Results:  results,
			Feed:     feed,
		},
	})
}

// BroadcastFeedAlert pushes a suspicious-flag transition for a stream.
func (h *Hub) BroadcastFeedAlert(feed model.FeedStatus) {
	h.enqueue(Message{
		Type: MessageTypeFeedAlert,
		Data: FeedAlertData{
			StreamID:   feed.StreamID,
			Suspicious: feed.Suspicious,
			TrustScore: feed.TrustScore,
			At:         feed.At,
		},
	})
}

// enqueue hands a message to the hub loop without blocking the caller.
func (h *Hub) enqueue(message Message) {
	select {
	case h.broadcast <- message:
	default:
		metrics.RecordWSMessageDropped()
		h.logger.Warn(context.Background(), "broadcast channel full, dropping message",
			logger.String("type", message.Type))
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Subscribers connect from arbitrary hosts on the operator LAN.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Handler returns the HTTP handler that upgrades connections and attaches
// them to the hub.
func (h *Hub) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.logger.Warn(r.Context(), "websocket upgrade failed", logger.Error(err))
			return
		}
		client := newClient(h, conn)
		h.register <- client
		client.start()
	}
}
