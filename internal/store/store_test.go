package store

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"crypto-backtester/internal/backtest"
	"crypto-backtester/internal/engine"
	"crypto-backtester/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *SqliteStore {
	t.Helper()
	s, err := NewSqliteStore(filepath.Join(t.TempDir(), "runs", "backtest.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleResult() (*backtest.Result, []model.Bar) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := []model.Bar{
		{Time: t0, Open: 100, High: 105, Low: 95, Close: 102},
		{Time: t0.Add(time.Hour), Open: 102, High: 110, Low: 100, Close: 108},
	}
	res := &backtest.Result{
		Strategy: "scripted",
		Symbol:   "BTC-USDT",
		Trades: []engine.Trade{{
			ID: 0, Side: model.Buy, Size: 1, EntrySize: 1,
			EntryPrice: 100, EntryTime: t0, EntryOrderID: "a",
			ExitPrice: 108, ExitTime: t0.Add(time.Hour), ExitOrderID: "b",
			Status: model.TradeClosed, PnL: 8,
		}},
		EquityCurve: []float64{900, 1008},
		MarketValue: []float64{1002, 1008},
		Stats: backtest.Stats{
			Start: t0, End: t0.Add(time.Hour),
			InitialBalance: 1000, EquityFinal: 1008, ReturnPct: 0.8,
			Trades: 1, WinRatePct: 100, ProfitFactor: math.Inf(1),
		},
	}
	return res, bars
}

func TestSaveAndLoadRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	res, bars := sampleResult()

	id, err := s.SaveResult(ctx, res, bars)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	run, err := s.GetRun(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "scripted", run.Strategy)
	assert.InDelta(t, 1008.0, run.FinalBalance, 1e-9)
	assert.Equal(t, math.MaxFloat64, run.ProfitFactor)

	trades, err := s.ListTrades(ctx, id)
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, "buy", trades[0].Side)
	assert.Equal(t, "CLOSED", trades[0].Status)
	assert.InDelta(t, 8.0, trades[0].PnL, 1e-9)

	points, err := s.ListEquity(ctx, id)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, 900.0, points[0].Equity)
	assert.Equal(t, 1002.0, points[0].MarketValue)
	assert.True(t, bars[1].Time.Equal(points[1].BarTime))

	runs, err := s.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestGetRunMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestNewSqliteStoreEmptyPath(t *testing.T) {
	_, err := NewSqliteStore("  ")
	assert.Error(t, err)
}
