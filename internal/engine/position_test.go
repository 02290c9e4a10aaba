package engine

import (
	"testing"
	"time"

	"crypto-backtester/internal/model"

	"github.com/stretchr/testify/assert"
)

func TestPositionWeightedEntry(t *testing.T) {
	pos := NewPosition("BTC-USDT", model.Buy)
	assert.True(t, pos.IsFlat())

	pos.Open(100, 2, time.Unix(0, 0))
	pos.Open(110, 3, time.Unix(60, 0))

	assert.InDelta(t, 5.0, pos.Size, 1e-12)
	assert.InDelta(t, (100*2+110*3)/5.0, pos.EntryPrice, 1e-9)
	assert.Equal(t, time.Unix(0, 0), pos.OpenTime)
}

func TestPositionPnLSign(t *testing.T) {
	long := NewPosition("BTC-USDT", model.Buy)
	long.Open(100, 1, time.Time{})
	assert.InDelta(t, 10.0, long.Close(110, 1), 1e-12)

	short := NewPosition("BTC-USDT", model.Sell)
	short.Open(100, 1, time.Time{})
	assert.InDelta(t, 10.0, short.Close(90, 1), 1e-12)
}

func TestPositionCloseClamps(t *testing.T) {
	pos := NewPosition("BTC-USDT", model.Buy)
	pos.Open(100, 2, time.Time{})

	pnl := pos.Close(105, 5)
	assert.InDelta(t, 10.0, pnl, 1e-12, "pnl only counts the held size")
	assert.Equal(t, 0.0, pos.Size)
	assert.Equal(t, 0.0, pos.EntryPrice)

	assert.Equal(t, 0.0, pos.Close(105, 1), "closing a flat position is a no-op")
	assert.Equal(t, 0.0, pos.Size)
}

func TestPositionSizeConservation(t *testing.T) {
	pos := NewPosition("BTC-USDT", model.Sell)
	opens := []float64{0.1, 0.2, 0.3}
	closes := []float64{0.15, 0.25}

	for _, s := range opens {
		pos.Open(100, s, time.Time{})
	}
	for _, s := range closes {
		pos.Close(100, s)
	}
	assert.InDelta(t, 0.2, pos.Size, 1e-12)
	assert.GreaterOrEqual(t, pos.Size, 0.0)

	pos.Close(100, 0.2)
	assert.Equal(t, 0.0, pos.Size)
}
