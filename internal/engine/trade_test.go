package engine

import (
	"testing"
	"time"

	"crypto-backtester/internal/model"

	"github.com/stretchr/testify/assert"
)

func openTrade(size float64) Trade {
	return Trade{
		ID:         0,
		Symbol:     "BTC-USDT",
		Side:       model.Buy,
		EntrySize:  size,
		Size:       size,
		EntryPrice: 100,
		EntryTime:  time.Unix(0, 0),
		Status:     model.TradeOpen,
		Fee:        1,
	}
}

func TestTradeSplit(t *testing.T) {
	trade := openTrade(5)

	consumed, rest := trade.Split(2)

	assert.Equal(t, 2.0, consumed.Size)
	assert.Equal(t, 5.0, consumed.EntrySize)
	assert.Equal(t, 3.0, rest.Size)
	assert.Equal(t, 3.0, rest.EntrySize)
	assert.Equal(t, 100.0, consumed.EntryPrice)
	assert.Equal(t, 100.0, rest.EntryPrice)
	assert.True(t, rest.IsOpen())
	assert.InDelta(t, 0.4, consumed.Fee, 1e-12)
	assert.InDelta(t, 0.6, rest.Fee, 1e-12)

	// 原记录不受影响
	assert.Equal(t, 5.0, trade.Size)
	assert.Equal(t, 1.0, trade.Fee)
}

func TestTradeCloseReturnsExcess(t *testing.T) {
	trade := openTrade(2)
	trade.Side = model.Sell

	excess := trade.Close(90, 3, time.Unix(60, 0), "close-1", 0.5)

	assert.Equal(t, 1.0, excess)
	assert.Equal(t, model.TradeClosed, trade.Status)
	assert.Equal(t, 2.0, trade.ExitSize)
	assert.Equal(t, 90.0, trade.ExitPrice)
	assert.InDelta(t, 20.0, trade.PnL, 1e-12)
	assert.InDelta(t, 1.5, trade.Fee, 1e-12)
	assert.InDelta(t, 18.5, trade.NetPnL(), 1e-12)
	assert.Equal(t, time.Minute, trade.Duration())
	assert.LessOrEqual(t, trade.ExitSize, trade.EntrySize)
}
