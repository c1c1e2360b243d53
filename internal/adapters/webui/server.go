package webui

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
	"github.com/APARENCE/binance-options-visualizer-25/internal/ports"
)

//go:embed index.html
var indexPage []byte

const (
	writeWait      = 10 * time.Second
	sendBufferSize = 64
)

// Session is the slice of the trading service the shell drives.
type Session interface {
	Place(ctx context.Context, direction domain.Direction, stake float64, expiry time.Duration) (*domain.Trade, error)
	SwitchInstrument(ctx context.Context, symbol string) error
	SwitchMode(ctx context.Context, mode domain.AccountMode)
	Deposit(ctx context.Context, amount float64) error
	Snapshot(ctx context.Context) domain.SessionState
	Candles() []domain.Candle
	Catalog() *domain.Catalog
}

// intent is an inbound client command.
type intent struct {
	Action        string  `json:"action"`
	Direction     string  `json:"direction,omitempty"`
	Stake         float64 `json:"stake,omitempty"`
	ExpirySeconds int     `json:"expirySeconds,omitempty"`
	Symbol        string  `json:"symbol,omitempty"`
	Mode          string  `json:"mode,omitempty"`
	Amount        float64 `json:"amount,omitempty"`
}

// Server serves the embedded single-page shell and its websocket endpoint.
type Server struct {
	logger   ports.Logger
	hub      *Hub
	session  Session
	srv      *http.Server
	upgrader websocket.Upgrader
}

// NewServer wires the HTTP surface. The hub must be the same instance the
// trading service publishes through.
func NewServer(addr string, logger ports.Logger, hub *Hub, session Session) (*Server, error) {
	if addr == "" || logger == nil || hub == nil || session == nil {
		return nil, fmt.Errorf("missing required dependencies for webui server")
	}

	s := &Server{
		logger:  logger,
		hub:     hub,
		session: session,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Single-user local demo; the page is served from this process.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ws", s.handleWS)
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s, nil
}

// ListenAndServe blocks until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info(context.Background(), "Shell listening", map[string]interface{}{"addr": s.srv.Addr})
	err := s.srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown closes the hub and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Close()
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	op := "handleWS"
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error(r.Context(), err, "Websocket upgrade failed", map[string]interface{}{"op": op})
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBufferSize)}
	if !s.hub.register(c) {
		_ = conn.Close()
		return
	}
	s.logger.Info(r.Context(), "Shell client connected", map[string]interface{}{"op": op, "remote": conn.RemoteAddr().String()})

	go s.writePump(c)
	s.greet(c)
	s.readPump(c)
}

// greet brings a fresh client up to the current session: catalog, candle
// series, price readout and account snapshot.
func (s *Server) greet(c *client) {
	ctx := context.Background()
	s.hub.sendTo(c, chartOp{Op: "catalog", Catalog: s.session.Catalog()})

	st := s.session.Snapshot(ctx)
	candles := s.session.Candles()
	if candles == nil {
		candles = []domain.Candle{}
	}
	s.hub.sendTo(c, chartOp{Op: "setData", Candles: candles})
	s.hub.sendTo(c, chartOp{Op: "fitContent"})
	if n := len(candles); n > 0 {
		s.hub.sendTo(c, chartOp{
			Op:       "price",
			Price:    candles[n-1].Close,
			Decimals: st.Instrument.Class.PriceDecimals(),
		})
	}
	s.hub.sendTo(c, chartOp{Op: "state", State: &st})
}

func (s *Server) writePump(c *client) {
	defer func() { _ = c.conn.Close() }()
	for payload := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.unregister(c)
		_ = c.conn.Close()
	}()
	for {
		var in intent
		if err := c.conn.ReadJSON(&in); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn(context.Background(), "Shell client read error", map[string]interface{}{"error": err.Error()})
			}
			return
		}
		s.dispatch(context.Background(), in)
	}
}

// dispatch routes one client intent into the session. Rejections surface
// through the notifier, so errors here are logged and swallowed.
func (s *Server) dispatch(ctx context.Context, in intent) {
	op := "dispatch"
	switch in.Action {
	case "place":
		direction := domain.Direction(in.Direction)
		if direction != domain.Call && direction != domain.Put {
			s.logger.Warn(ctx, "Ignoring placement with unknown direction", map[string]interface{}{"op": op, "direction": in.Direction})
			return
		}
		expiry := time.Duration(in.ExpirySeconds) * time.Second
		if _, err := s.session.Place(ctx, direction, in.Stake, expiry); err != nil {
			s.logger.Warn(ctx, "Placement rejected", map[string]interface{}{"op": op, "error": err.Error()})
		}
	case "symbol":
		if err := s.session.SwitchInstrument(ctx, in.Symbol); err != nil {
			s.logger.Warn(ctx, "Instrument switch rejected", map[string]interface{}{"op": op, "symbol": in.Symbol, "error": err.Error()})
		}
	case "account":
		mode := domain.AccountMode(in.Mode)
		if mode != domain.ModeDemo && mode != domain.ModeReal {
			s.logger.Warn(ctx, "Ignoring unknown account mode", map[string]interface{}{"op": op, "mode": in.Mode})
			return
		}
		s.session.SwitchMode(ctx, mode)
	case "deposit":
		if err := s.session.Deposit(ctx, in.Amount); err != nil {
			s.logger.Warn(ctx, "Deposit rejected", map[string]interface{}{"op": op, "error": err.Error()})
		}
	default:
		s.logger.Warn(ctx, "Unknown shell intent", map[string]interface{}{"op": op, "action": in.Action})
	}
}
