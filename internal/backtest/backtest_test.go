package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"crypto-backtester/internal/engine"
	"crypto-backtester/internal/model"
	"crypto-backtester/internal/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func bars(ohlc ...[4]float64) []model.Bar {
	out := make([]model.Bar, len(ohlc))
	for i, v := range ohlc {
		out[i] = model.Bar{
			Symbol: "BTC-USDT",
			Time:   t0.Add(time.Duration(i) * time.Hour),
			Open:   v[0], High: v[1], Low: v[2], Close: v[3],
		}
	}
	return out
}

func testConfig() engine.Config {
	return engine.Config{
		Symbol:          model.BTCUSDT,
		InitialBalance:  1000,
		ReturnPrincipal: true,
		RefundReserved:  true,
	}
}

// scripted 按 K 线下标执行预设动作
type scripted struct {
	steps  map[int]func(ctx *strategy.Context) error
	inited bool
	seen   []int
	finish func(ctx *strategy.Context) error
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Init(ctx *strategy.Context) error {
	s.inited = true
	return nil
}

func (s *scripted) Next(ctx *strategy.Context) error {
	s.seen = append(s.seen, ctx.Index())
	if step, ok := s.steps[ctx.Index()]; ok {
		return step(ctx)
	}
	return nil
}

type finishing struct {
	*scripted
}

func (f finishing) Finish(ctx *strategy.Context) error {
	return f.finish(ctx)
}

func TestRunEndToEnd(t *testing.T) {
	s := &scripted{steps: map[int]func(*strategy.Context) error{
		0: func(ctx *strategy.Context) error {
			_, err := ctx.Buy(engine.OrderParams{Size: engine.Float(1)})
			return err
		},
		2: func(ctx *strategy.Context) error {
			_, err := ctx.Close(model.Buy)
			return err
		},
	}}
	bt, err := New(testConfig(), bars(
		[4]float64{100, 105, 95, 102},
		[4]float64{102, 110, 100, 108},
		[4]float64{108, 106, 103, 104},
	), s, nil)
	require.NoError(t, err)

	res, err := bt.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, s.inited)
	assert.Equal(t, []int{0, 1, 2}, s.seen)
	assert.Equal(t, []float64{900, 900, 1008}, res.EquityCurve)
	assert.InDeltaSlice(t, []float64{1002, 1008, 1008}, res.MarketValue, 1e-9)

	require.Len(t, res.Trades, 1)
	assert.Equal(t, 108.0, res.Trades[0].ExitPrice)

	st := res.Stats
	assert.Equal(t, t0, st.Start)
	assert.Equal(t, 2*time.Hour, st.Duration)
	assert.InDelta(t, 1008.0, st.EquityFinal, 1e-9)
	assert.InDelta(t, 0.8, st.ReturnPct, 1e-9)
	assert.InDelta(t, 4.0, st.BuyHoldReturnPct, 1e-9)
	assert.InDelta(t, 0.0, st.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 200.0/3, st.ExposurePct, 1e-9)
	assert.Equal(t, 1, st.Trades)
	assert.Equal(t, 100.0, st.WinRatePct)
	assert.True(t, math.IsInf(st.ProfitFactor, 1))
	assert.InDelta(t, 8.0, st.Expectancy, 1e-9)
}

func TestRunPnLOnlyAccounting(t *testing.T) {
	s := &scripted{steps: map[int]func(*strategy.Context) error{
		0: func(ctx *strategy.Context) error {
			_, err := ctx.Buy(engine.OrderParams{Size: engine.Float(1)})
			return err
		},
		2: func(ctx *strategy.Context) error {
			_, err := ctx.Close(model.Buy)
			return err
		},
	}}
	bt, err := New(engine.Config{Symbol: model.BTCUSDT, InitialBalance: 1000}, bars(
		[4]float64{100, 105, 95, 102},
		[4]float64{102, 110, 100, 108},
		[4]float64{108, 106, 103, 104},
	), s, nil)
	require.NoError(t, err)

	res, err := bt.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []float64{900, 900, 908}, res.EquityCurve)
	assert.InDelta(t, 908.0, res.Stats.EquityFinal, 1e-9)
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 8.0, res.Trades[0].PnL, 1e-9)
}

func TestRunClosesOpenPositions(t *testing.T) {
	s := &scripted{steps: map[int]func(*strategy.Context) error{
		0: func(ctx *strategy.Context) error {
			_, err := ctx.Buy(engine.OrderParams{Size: engine.Float(2)})
			return err
		},
	}}
	s.finish = func(ctx *strategy.Context) error {
		// 最后一根 K 线之后提交的挂单会被强平流程撤销
		_, err := ctx.Buy(engine.OrderParams{Size: engine.Float(1), Price: engine.Float(50)})
		return err
	}
	bt, err := New(testConfig(), bars(
		[4]float64{100, 101, 99, 100},
		[4]float64{100, 96, 89, 90},
	), finishing{s}, nil)
	require.NoError(t, err)

	res, err := bt.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Trades, 1)
	assert.False(t, res.Trades[0].IsOpen())
	assert.Equal(t, 90.0, res.Trades[0].ExitPrice)
	assert.InDelta(t, 980.0, res.Stats.EquityFinal, 1e-9)
	assert.InDelta(t, -2.0, res.Stats.ReturnPct, 1e-9)
	assert.InDelta(t, 2.0, res.Stats.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 1, res.Stats.Losses)
	assert.Empty(t, bt.Engine().PendingOrders())
}

func TestRunPropagatesStrategyErrors(t *testing.T) {
	boom := errors.New("boom")
	s := &scripted{steps: map[int]func(*strategy.Context) error{
		1: func(*strategy.Context) error { return boom },
	}}
	bt, err := New(testConfig(), bars(
		[4]float64{100, 101, 99, 100},
		[4]float64{100, 101, 99, 100},
	), s, nil)
	require.NoError(t, err)

	_, err = bt.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	bt, err := New(testConfig(), bars([4]float64{100, 101, 99, 100}), &scripted{}, nil)
	require.NoError(t, err)

	_, err = bt.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewRequiresStrategy(t *testing.T) {
	_, err := New(testConfig(), bars([4]float64{1, 1, 1, 1}), nil, nil)
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestComputeStatsMixedTrades(t *testing.T) {
	closed := func(side model.Side, entry, exit, size, fee float64) engine.Trade {
		pnl := (exit - entry) * size
		if side == model.Sell {
			pnl = -pnl
		}
		return engine.Trade{
			Side: side, Size: size, EntrySize: size,
			EntryPrice: entry, ExitPrice: exit, ExitSize: size,
			EntryTime: t0, ExitTime: t0.Add(time.Hour),
			Status: model.TradeClosed, PnL: pnl, Fee: fee,
		}
	}
	trades := []engine.Trade{
		closed(model.Buy, 100, 110, 1, 0),  // +10
		closed(model.Sell, 100, 105, 1, 0), // -5
		closed(model.Buy, 100, 120, 1, 0),  // +20
		{Status: model.TradeOpen, Size: 1, EntryPrice: 100},
	}

	st := ComputeStats(bars([4]float64{100, 100, 100, 100}), trades,
		[]float64{1000, 1100, 990, 1050}, 1000, 1025, 0)

	assert.Equal(t, 3, st.Trades)
	assert.Equal(t, 2, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.InDelta(t, 200.0/3, st.WinRatePct, 1e-9)
	assert.InDelta(t, 6.0, st.ProfitFactor, 1e-9)
	assert.InDelta(t, 25.0/3, st.Expectancy, 1e-9)
	assert.InDelta(t, 20.0, st.BestTradePct, 1e-9)
	assert.InDelta(t, -5.0, st.WorstTradePct, 1e-9)
	assert.InDelta(t, 10.0, st.MaxDrawdownPct, 1e-9)
	assert.Equal(t, 1100.0, st.EquityPeak)
	assert.Equal(t, time.Hour, st.AvgDuration)
}

func TestComputeStatsNoTrades(t *testing.T) {
	st := ComputeStats(nil, nil, nil, 1000, 1000, 0)
	assert.Zero(t, st.Trades)
	assert.Zero(t, st.BestTradePct)
	assert.Zero(t, st.ProfitFactor)
	assert.Equal(t, 1000.0, st.EquityPeak)
}
