package backtest

import (
	"context"
	"errors"
	"fmt"

	"crypto-backtester/internal/engine"
	"crypto-backtester/internal/model"
	"crypto-backtester/internal/strategy"

	"go.uber.org/zap"
)

var ErrNoStrategy = errors.New("backtest: strategy is required")

// Result 一次回测的输出
type Result struct {
	Strategy    string
	Symbol      string
	Stats       Stats
	Trades      []engine.Trade
	EquityCurve []float64 // 每根 K 线结束时的可用资金
	MarketValue []float64 // 每根 K 线收盘时按市值计算的权益
}

// Backtest 按 K 线顺序驱动策略与撮合引擎
type Backtest struct {
	bars     []model.Bar
	strategy strategy.Strategy
	engine   *engine.TradingEngine
	logger   *zap.SugaredLogger
}

func New(cfg engine.Config, bars []model.Bar, s strategy.Strategy, logger *zap.SugaredLogger) (*Backtest, error) {
	if s == nil {
		return nil, ErrNoStrategy
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	eng, err := engine.NewTradingEngine(cfg, bars, logger.Named("engine"))
	if err != nil {
		return nil, err
	}
	return &Backtest{
		bars:     bars,
		strategy: s,
		engine:   eng,
		logger:   logger,
	}, nil
}

// Engine 暴露底层引擎，主要供测试检查状态
func (b *Backtest) Engine() *engine.TradingEngine { return b.engine }

// Run 执行回测：Init 一次，然后每根 K 线依次 SetBar、Next、HandleExecution，
// 最后一根 K 线之后强制平仓并计算统计。
func (b *Backtest) Run(ctx context.Context) (*Result, error) {
	sctx := strategy.NewContext(b.engine, b.bars, b.logger.Named(b.strategy.Name()))
	if err := b.strategy.Init(sctx); err != nil {
		return nil, fmt.Errorf("strategy %s init: %w", b.strategy.Name(), err)
	}

	b.logger.Infof("Backtest started: strategy=%s symbol=%s bars=%d balance=%.2f",
		b.strategy.Name(), b.engine.Symbol().Name, len(b.bars), b.engine.InitialBalance())

	marketValue := make([]float64, 0, len(b.bars))
	exposed := 0
	for i := range b.bars {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("backtest canceled at bar %d: %w", i, err)
		}
		if err := b.engine.SetBar(i); err != nil {
			return nil, err
		}
		if err := b.strategy.Next(sctx); err != nil {
			return nil, fmt.Errorf("strategy %s next at bar %d: %w", b.strategy.Name(), i, err)
		}
		if err := b.engine.HandleExecution(); err != nil {
			return nil, err
		}

		value, open := b.markToMarket(b.bars[i].Close)
		marketValue = append(marketValue, value)
		if open {
			exposed++
		}
	}

	if f, ok := b.strategy.(strategy.Finisher); ok {
		if err := f.Finish(sctx); err != nil {
			return nil, fmt.Errorf("strategy %s finish: %w", b.strategy.Name(), err)
		}
	}
	if err := b.engine.CloseAll(); err != nil {
		return nil, err
	}

	trades := b.engine.Trades()
	result := &Result{
		Strategy:    b.strategy.Name(),
		Symbol:      b.engine.Symbol().Name,
		Trades:      trades,
		EquityCurve: b.engine.EquityCurve(),
		MarketValue: marketValue,
		Stats: ComputeStats(b.bars, trades, marketValue,
			b.engine.InitialBalance(), b.engine.Equity(), exposed),
	}

	b.logger.Infof("Backtest finished: trades=%d final=%.2f return=%.2f%% max_dd=%.2f%%",
		result.Stats.Trades, result.Stats.EquityFinal, result.Stats.ReturnPct, result.Stats.MaxDrawdownPct)
	return result, nil
}

// markToMarket 可用资金 + 挂单冻结资金 + 持仓按收盘价的价值
func (b *Backtest) markToMarket(price float64) (float64, bool) {
	value := b.engine.Equity()
	for _, o := range b.engine.PendingOrders() {
		value += o.Reserved
	}
	open := false
	for _, side := range []model.Side{model.Buy, model.Sell} {
		pos := b.engine.Position(side)
		if pos.IsFlat() {
			continue
		}
		open = true
		value += pos.Size*pos.EntryPrice + pos.PnL(price, pos.Size)
	}
	return value, open
}
