package webui

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/logger"
	"github.com/APARENCE/binance-options-visualizer-25/internal/domain"
)

type placeCall struct {
	direction domain.Direction
	stake     float64
	expiry    time.Duration
}

// stubSession records everything the shell dispatches into it.
type stubSession struct {
	mu       sync.Mutex
	places   []placeCall
	symbols  []string
	modes    []domain.AccountMode
	deposits []float64
	candles  []domain.Candle
}

func (s *stubSession) Place(_ context.Context, direction domain.Direction, stake float64, expiry time.Duration) (*domain.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.places = append(s.places, placeCall{direction: direction, stake: stake, expiry: expiry})
	return &domain.Trade{ID: "t1", Direction: direction, Stake: stake}, nil
}
func (s *stubSession) SwitchInstrument(_ context.Context, symbol string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.symbols = append(s.symbols, symbol)
	return nil
}
func (s *stubSession) SwitchMode(_ context.Context, mode domain.AccountMode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modes = append(s.modes, mode)
}
func (s *stubSession) Deposit(_ context.Context, amount float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deposits = append(s.deposits, amount)
	return nil
}
func (s *stubSession) Snapshot(_ context.Context) domain.SessionState {
	return domain.SessionState{
		Account:    domain.Account{Balance: 10000, Mode: domain.ModeDemo},
		Instrument: domain.Instrument{Symbol: "EURUSD", Class: domain.ClassForex},
		Payout:     85,
	}
}
func (s *stubSession) Candles() []domain.Candle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.candles
}
func (s *stubSession) Catalog() *domain.Catalog {
	return &domain.Catalog{Classes: map[domain.AssetClass]domain.ClassInfo{
		domain.ClassForex: {
			Name:          "Forex",
			PayoutPercent: 85,
			Instruments:   []domain.Instrument{{Symbol: "EURUSD", Label: "EUR/USD"}},
		},
	}}
}

type testShell struct {
	hub     *Hub
	session *stubSession
	conn    *websocket.Conn
}

func dialShell(t *testing.T) *testShell {
	t.Helper()
	testLogger := logger.NewStdLoggerWithWriter(io.Discard, logger.LevelError)
	hub := NewHub(testLogger)
	session := &stubSession{
		candles: []domain.Candle{{Time: 100, Open: 1.08, High: 1.09, Low: 1.07, Close: 1.085}},
	}
	srv, err := NewServer(":0", testLogger, hub, session)
	require.NoError(t, err)

	ts := httptest.NewServer(srv.srv.Handler)
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return &testShell{hub: hub, session: session, conn: conn}
}

func (sh *testShell) readOp(t *testing.T) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, sh.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := sh.conn.ReadMessage()
	require.NoError(t, err)
	var msg map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(payload, &msg))
	return msg
}

func opName(t *testing.T, msg map[string]json.RawMessage) string {
	t.Helper()
	var op string
	require.NoError(t, json.Unmarshal(msg["op"], &op))
	return op
}

func TestServer_GreetsNewClient(t *testing.T) {
	sh := dialShell(t)

	var ops []string
	for i := 0; i < 5; i++ {
		ops = append(ops, opName(t, sh.readOp(t)))
	}
	assert.Equal(t, []string{"catalog", "setData", "fitContent", "price", "state"}, ops)
}

func TestServer_BroadcastsHubOps(t *testing.T) {
	sh := dialShell(t)
	for i := 0; i < 5; i++ {
		sh.readOp(t) // drain the greeting
	}

	sh.hub.UpdateCandle(domain.Candle{Time: 160, Open: 1.085, High: 1.09, Low: 1.084, Close: 1.086})
	msg := sh.readOp(t)
	assert.Equal(t, "update", opName(t, msg))

	sh.hub.Result(true, "🎉 GANHOU! +$85.00 (85%)")
	msg = sh.readOp(t)
	assert.Equal(t, "result", opName(t, msg))
	var won bool
	require.NoError(t, json.Unmarshal(msg["won"], &won))
	assert.True(t, won)
}

func TestServer_DispatchesIntents(t *testing.T) {
	sh := dialShell(t)

	send := func(v interface{}) {
		require.NoError(t, sh.conn.WriteJSON(v))
	}
	send(map[string]interface{}{"action": "place", "direction": "CALL", "stake": 100, "expirySeconds": 60})
	send(map[string]interface{}{"action": "symbol", "symbol": "BTCUSDT"})
	send(map[string]interface{}{"action": "account", "mode": "real"})
	send(map[string]interface{}{"action": "deposit", "amount": 1000})

	require.Eventually(t, func() bool {
		sh.session.mu.Lock()
		defer sh.session.mu.Unlock()
		return len(sh.session.deposits) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sh.session.mu.Lock()
	defer sh.session.mu.Unlock()
	require.Len(t, sh.session.places, 1)
	assert.Equal(t, placeCall{direction: domain.Call, stake: 100, expiry: time.Minute}, sh.session.places[0])
	assert.Equal(t, []string{"BTCUSDT"}, sh.session.symbols)
	assert.Equal(t, []domain.AccountMode{domain.ModeReal}, sh.session.modes)
	assert.Equal(t, []float64{1000}, sh.session.deposits)
}

func TestServer_IgnoresMalformedIntents(t *testing.T) {
	sh := dialShell(t)

	require.NoError(t, sh.conn.WriteJSON(map[string]interface{}{"action": "place", "direction": "SIDEWAYS", "stake": 100}))
	require.NoError(t, sh.conn.WriteJSON(map[string]interface{}{"action": "account", "mode": "margin"}))
	require.NoError(t, sh.conn.WriteJSON(map[string]interface{}{"action": "warp"}))
	require.NoError(t, sh.conn.WriteJSON(map[string]interface{}{"action": "deposit", "amount": 50}))

	require.Eventually(t, func() bool {
		sh.session.mu.Lock()
		defer sh.session.mu.Unlock()
		return len(sh.session.deposits) == 1
	}, 2*time.Second, 10*time.Millisecond)

	sh.session.mu.Lock()
	defer sh.session.mu.Unlock()
	assert.Empty(t, sh.session.places)
	assert.Empty(t, sh.session.modes)
}

func TestHub_OpsAfterCloseAreNoOps(t *testing.T) {
	hub := NewHub(logger.NewStdLoggerWithWriter(io.Discard, logger.LevelError))
	hub.Close()

	// None of these may panic or block once the hub is torn down.
	hub.SetData(nil)
	hub.UpdateCandle(domain.Candle{})
	hub.AddLine("t1", 1.085, domain.Call)
	hub.RemoveLine("t1")
	hub.FitContent()
	hub.ShowPrice(1.085, 0, 5)
	hub.Success("ok")
	hub.Failure("nope")
	hub.Result(false, "❌ PERDEU! -$100.00")
	hub.PublishState(domain.SessionState{})
	hub.Close()
}

func TestServer_ServesIndex(t *testing.T) {
	testLogger := logger.NewStdLoggerWithWriter(io.Discard, logger.LevelError)
	hub := NewHub(testLogger)
	srv, err := NewServer(":0", testLogger, hub, &stubSession{})
	require.NoError(t, err)

	ts := httptest.NewServer(srv.srv.Handler)
	defer ts.Close()

	res, err := ts.Client().Get(ts.URL + "/")
	require.NoError(t, err)
	defer res.Body.Close()
	body, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "lightweight-charts")

	res404, err := ts.Client().Get(ts.URL + "/nope")
	require.NoError(t, err)
	defer res404.Body.Close()
	assert.Equal(t, 404, res404.StatusCode)
}
