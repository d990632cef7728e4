package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dbehnke/btbb-nexus/pkg/logger"
	"github.com/dbehnke/btbb-nexus/pkg/sniffer"
	"github.com/gorilla/websocket"
)

// Event represents a WebSocket event to be broadcast to clients
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Marshal converts an event to JSON bytes
func (e *Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Client represents a WebSocket client connection
type Client struct {
	ID       string
	conn     *websocket.Conn
	messages chan []byte
}

// WebSocketHub manages WebSocket client connections and broadcasts. It
// implements sniffer.Sink and sniffer.SummarySink.
type WebSocketHub struct {
	clients    map[*Client]bool
	broadcast  chan Event
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *logger.Logger
	mu         sync.RWMutex

	lastScan *sniffer.Result
}

// NewWebSocketHub creates a new WebSocket hub
func NewWebSocketHub(log *logger.Logger) *WebSocketHub {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	return &WebSocketHub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan Event, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     log.WithComponent("websocket"),
	}
}

// Run starts the WebSocket hub event loop
func (h *WebSocketHub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug("WebSocket client registered",
				logger.String("client_id", client.ID))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.messages)
			}
			h.mu.Unlock()
			h.logger.Debug("WebSocket client unregistered",
				logger.String("client_id", client.ID))

		case event := <-h.broadcast:
			// Marshal event to JSON
			data, err := event.Marshal()
			if err != nil {
				h.logger.Error("Failed to marshal event",
					logger.Error(err))
				continue
			}

			// Broadcast to all clients
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client.messages <- data:
				default:
					// Client buffer full, skip
					h.logger.Warn("Client message buffer full, skipping",
						logger.String("client_id", client.ID))
				}
			}
			h.mu.RUnlock()

		case <-ctx.Done():
			h.logger.Info("WebSocket hub shutting down")
			// Close all client connections
			h.mu.Lock()
			for client := range h.clients {
				close(client.messages)
			}
			h.clients = make(map[*Client]bool)
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast sends an event to all connected clients
func (h *WebSocketHub) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case h.broadcast <- event:
	default:
		h.logger.Warn("Broadcast channel full, dropping event",
			logger.String("event_type", event.Type))
	}
}

// Handler returns an HTTP handler for WebSocket connections
func (h *WebSocketHub) Handler() http.Handler {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			// Upgrade has already replied to the client
			h.logger.Debug("WebSocket upgrade failed", logger.Error(err))
			return
		}
		client := &Client{ID: r.RemoteAddr, conn: conn, messages: make(chan []byte, 256)}
		select {
		case h.register <- client:
		case <-h.done:
			_ = conn.Close()
			return
		}

		// Reader goroutine: drain read to detect close
		go func() {
			defer func() {
				select {
				case h.unregister <- client:
				case <-h.done:
				}
				_ = client.conn.Close()
			}()
			client.conn.SetReadLimit(1024)
			for {
				if _, _, err := client.conn.ReadMessage(); err != nil {
					return
				}
			}
		}()

		// Writer loop
		go func() {
			for msg := range client.messages {
				_ = client.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := client.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.logger.Debug("WebSocket write failed",
						logger.String("client_id", client.ID),
						logger.Error(err))
				}
			}
			_ = client.conn.Close()
		}()
	})
}

// GetClientCount returns the number of connected clients
func (h *WebSocketHub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// HandlePacket broadcasts a packet event
func (h *WebSocketHub) HandlePacket(ctx context.Context, p sniffer.Packet) {
	data := map[string]interface{}{
		"id":             p.ID.String(),
		"scan_id":        p.ScanID.String(),
		"offset":         p.Offset,
		"lap":            fmt.Sprintf("%06x", p.LAP),
		"header_decoded": p.HeaderDecoded,
	}
	if p.HeaderDecoded {
		data["type"] = p.Header.Type.String()
		data["lt_addr"] = p.Header.LTAddr
		data["flow"] = p.Header.Flow
		data["arqn"] = p.Header.ARQN
		data["seqn"] = p.Header.SEQN
	}
	if p.HECChecked {
		data["hec_valid"] = p.HECValid
	}
	if p.ClockKnown {
		data["clock"] = p.Clock
	}

	h.Broadcast(Event{
		Type:      "packet",
		Timestamp: time.Now(),
		Data:      data,
	})
}

// HandleSummary stores the scan result and broadcasts a scan_complete event
func (h *WebSocketHub) HandleSummary(ctx context.Context, r sniffer.Result) {
	h.mu.Lock()
	h.lastScan = &r
	h.mu.Unlock()

	h.Broadcast(Event{
		Type:      "scan_complete",
		Timestamp: time.Now(),
		Data: map[string]interface{}{
			"scan_id":         r.ScanID.String(),
			"bits_scanned":    r.BitsScanned,
			"packets":         r.PacketCount(),
			"headers_decoded": r.HeadersDecoded,
			"hec_failures":    r.HECFailures,
			"piconets":        len(r.LAPs),
			"truncated":       r.Truncated,
		},
	})
}

// LastScan returns the most recent scan result seen, if any
func (h *WebSocketHub) LastScan() (sniffer.Result, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.lastScan == nil {
		return sniffer.Result{}, false
	}
	return *h.lastScan, true
}
