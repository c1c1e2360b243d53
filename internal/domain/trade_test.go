package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrade_WinsAt(t *testing.T) {
	tests := []struct {
		name       string
		direction  Direction
		entry      float64
		finalPrice float64
		want       bool
	}{
		{"call wins above entry", Call, 1.0850, 1.0851, true},
		{"call loses below entry", Call, 1.0850, 1.0849, false},
		{"call loses at entry", Call, 1.0850, 1.0850, false},
		{"put wins below entry", Put, 1.0850, 1.0849, true},
		{"put loses above entry", Put, 1.0850, 1.0851, false},
		{"put loses at entry", Put, 1.0850, 1.0850, false},
		{"unknown direction never wins", Direction("SIDEWAYS"), 1.0, 2.0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trade := &Trade{Direction: tt.direction, EntryPrice: tt.entry}
			assert.Equal(t, tt.want, trade.WinsAt(tt.finalPrice))
		})
	}
}

func TestTrade_Payout(t *testing.T) {
	trade := &Trade{Stake: 100, PayoutPercent: 85}
	assert.Equal(t, 185.0, trade.Payout())

	trade = &Trade{Stake: 250, PayoutPercent: 80}
	assert.Equal(t, 450.0, trade.Payout())
}

func TestTrade_IsActive(t *testing.T) {
	trade := &Trade{Status: StatusActive}
	assert.True(t, trade.IsActive())

	trade.Status = StatusWon
	assert.False(t, trade.IsActive())

	trade.Status = StatusLost
	assert.False(t, trade.IsActive())
}
