package binancefeed

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/APARENCE/binance-options-visualizer-25/internal/adapters/logger"
)

func TestNew_Defaults(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "logger is mandatory")

	src, err := New(Config{Logger: logger.NewStdLoggerWithWriter(io.Discard, logger.LevelError)})
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, src.reconnectDelay)
	assert.Equal(t, 100, src.backfillCandles)
}

func TestTranslateKline(t *testing.T) {
	k := &binance.Kline{
		OpenTime: 1717243200000,
		Open:     "67000.10",
		High:     "67100.50",
		Low:      "66950.00",
		Close:    "67050.25",
	}

	c, err := translateKline(k)
	require.NoError(t, err)
	assert.Equal(t, int64(1717243200), c.Time, "milliseconds collapse to seconds")
	assert.Equal(t, 67000.10, c.Open)
	assert.Equal(t, 67100.50, c.High)
	assert.Equal(t, 66950.00, c.Low)
	assert.Equal(t, 67050.25, c.Close)
	assert.True(t, c.IsValid())
}

func TestTranslateKline_Invalid(t *testing.T) {
	_, err := translateKline(nil)
	assert.Error(t, err)

	tests := []struct {
		name  string
		kline *binance.Kline
	}{
		{"bad open", &binance.Kline{Open: "x", High: "1", Low: "1", Close: "1"}},
		{"bad high", &binance.Kline{Open: "1", High: "x", Low: "1", Close: "1"}},
		{"bad low", &binance.Kline{Open: "1", High: "1", Low: "x", Close: "1"}},
		{"bad close", &binance.Kline{Open: "1", High: "1", Low: "1", Close: "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := translateKline(tt.kline)
			assert.Error(t, err)
		})
	}
}

func TestTranslateWsKline(t *testing.T) {
	event := &binance.WsKlineEvent{
		Kline: binance.WsKline{
			StartTime: 1717243260000,
			Open:      "67050.25",
			High:      "67080.00",
			Low:       "67020.00",
			Close:     "67061.40",
		},
	}

	c, err := translateWsKline(event)
	require.NoError(t, err)
	assert.Equal(t, int64(1717243260), c.Time)
	assert.Equal(t, 67050.25, c.Open)
	assert.Equal(t, 67061.40, c.Close)
	assert.True(t, c.IsValid())
}

func TestStreamStop_DeliversStopSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := &stream{
		symbol:  "BTCUSDT",
		ctx:     ctx,
		cancel:  cancel,
		wsStopC: make(chan struct{}),
		wsDoneC: make(chan struct{}),
	}

	received := make(chan struct{})
	go func() {
		// Stands in for the websocket serve goroutine, which waits on the
		// stop channel until the connection dies.
		select {
		case <-st.wsStopC:
			close(received)
		case <-st.wsDoneC:
		}
	}()

	st.stop()
	select {
	case <-received:
	case <-time.After(time.Second):
		t.Fatal("stop signal was not delivered to the serve goroutine")
	}

	// A second stop is a no-op.
	st.stop()
}

func TestStreamStop_DeadConnectionDoesNotBlock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	st := &stream{
		symbol:  "BTCUSDT",
		ctx:     ctx,
		cancel:  cancel,
		wsStopC: make(chan struct{}),
		wsDoneC: make(chan struct{}),
	}
	// The serve goroutine already exited; nothing will ever read wsStopC.
	close(st.wsDoneC)

	done := make(chan struct{})
	go func() {
		st.stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stop blocked on a dead connection")
	}
}

func TestTranslateWsKline_Invalid(t *testing.T) {
	_, err := translateWsKline(nil)
	assert.Error(t, err)

	_, err = translateWsKline(&binance.WsKlineEvent{
		Kline: binance.WsKline{Open: "not-a-number", High: "1", Low: "1", Close: "1"},
	})
	assert.Error(t, err)
}
