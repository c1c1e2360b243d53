package webui

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"
)

// Hub fans chart operations, notices and state snapshots out to every
// connected shell client. It implements ports.ChartSurface, ports.Notifier
// and ports.StatePublisher; once closed (or with no clients connected)
// every call degrades to a no-op, which is what lets late resolution
// timers fire harmlessly after teardown.
type Hub struct {
	logger ports.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// client is one websocket subscriber with a buffered outbound queue.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// NewHub creates an empty hub.
func NewHub(logger ports.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// chartOp is the envelope every outbound message uses. The browser side
// forwards candle/line ops verbatim to the charting library.
type chartOp struct {
	Op        string               `json:"op"`
	Candles   []domain.Candle      `json:"candles,omitempty"`
	Candle    *domain.Candle       `json:"candle,omitempty"`
	ID        string               `json:"id,omitempty"`
	Price     float64              `json:"price,omitempty"`
	Change    float64              `json:"change,omitempty"`
	Decimals  int                  `json:"decimals,omitempty"`
	Direction domain.Direction     `json:"direction,omitempty"`
	Level     string               `json:"level,omitempty"`
	Message   string               `json:"message,omitempty"`
	Won       bool                 `json:"won,omitempty"`
	State     *domain.SessionState `json:"state,omitempty"`
	Catalog   *domain.Catalog      `json:"catalog,omitempty"`
}

func (h *Hub) broadcast(op chartOp) {
	payload, err := json.Marshal(op)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to marshal shell message", map[string]interface{}{"op": op.Op})
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer; drop it rather than stall the core.
			delete(h.clients, c)
			close(c.send)
		}
	}
}

// sendTo queues a message for a single client.
func (h *Hub) sendTo(c *client, op chartOp) {
	payload, err := json.Marshal(op)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to marshal shell message", map[string]interface{}{"op": op.Op})
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (h *Hub) register(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// Close disconnects every client and turns the hub into a sink.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	for c := range h.clients {
		close(c.send)
		delete(h.clients, c)
	}
	h.mu.Unlock()
}

// --- ports.ChartSurface ---

// SetData replaces the candle series; a nil slice clears the chart.
func (h *Hub) SetData(candles []domain.Candle) {
	if candles == nil {
		candles = []domain.Candle{}
	}
	h.broadcast(chartOp{Op: "setData", Candles: candles})
}

// UpdateCandle amends or appends the most recent bar.
func (h *Hub) UpdateCandle(c domain.Candle) {
	h.broadcast(chartOp{Op: "update", Candle: &c})
}

// AddLine draws the entry marker for a trade.
func (h *Hub) AddLine(id string, price float64, direction domain.Direction) {
	h.broadcast(chartOp{Op: "addLine", ID: id, Price: price, Direction: direction})
}

// RemoveLine removes a trade's entry marker.
func (h *Hub) RemoveLine(id string) {
	h.broadcast(chartOp{Op: "removeLine", ID: id})
}

// FitContent fits the chart's visible range to its data.
func (h *Hub) FitContent() {
	h.broadcast(chartOp{Op: "fitContent"})
}

// ShowPrice updates the scalar price readout.
func (h *Hub) ShowPrice(price, change float64, decimals int) {
	h.broadcast(chartOp{Op: "price", Price: price, Change: change, Decimals: decimals})
}

// --- ports.Notifier ---

// Success shows a transient success toast.
func (h *Hub) Success(msg string) {
	h.broadcast(chartOp{Op: "notify", Level: "success", Message: msg})
}

// Failure shows a transient error toast.
func (h *Hub) Failure(msg string) {
	h.broadcast(chartOp{Op: "notify", Level: "error", Message: msg})
}

// Result shows the win/loss banner; the page clears it after 3 seconds.
func (h *Hub) Result(won bool, msg string) {
	h.broadcast(chartOp{Op: "result", Won: won, Message: msg})
}

// --- ports.StatePublisher ---

// PublishState pushes a fresh session snapshot.
func (h *Hub) PublishState(st domain.SessionState) {
	h.broadcast(chartOp{Op: "state", State: &st})
}
