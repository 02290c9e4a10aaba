package strategy

import (
	"errors"
	"fmt"

	"crypto-backtester/internal/engine"
	"crypto-backtester/internal/model"
	"crypto-backtester/internal/service"
	"crypto-backtester/pkg/ta"
)

// SMACross 快慢均线交叉：金叉做多、死叉做空，按 ATR 设置止损、止盈和移动止损
type SMACross struct {
	cfg  service.StrategyConfig
	risk service.RiskConfig

	fast, slow *ta.Series
	rsi, atr   *ta.Series
	regime     *RegimeDetector
}

func NewSMACross(cfg service.StrategyConfig, risk service.RiskConfig) *SMACross {
	return &SMACross{
		cfg:    cfg,
		risk:   risk,
		regime: NewRegimeDetector(),
	}
}

func (s *SMACross) Name() string {
	return fmt.Sprintf("sma_cross(%d,%d)", s.cfg.Trend.FastMA, s.cfg.Trend.SlowMA)
}

func (s *SMACross) Init(ctx *Context) error {
	var err error
	if s.fast, err = ctx.TA().SMA(s.cfg.Trend.FastMA); err != nil {
		return err
	}
	if s.slow, err = ctx.TA().SMA(s.cfg.Trend.SlowMA); err != nil {
		return err
	}

	period := s.risk.ATRPeriod
	if period <= 0 {
		period = 14
	}
	if s.needATR() {
		if s.atr, err = ctx.TA().ATR(period); err != nil {
			return err
		}
	}
	if s.cfg.RegimeFilter {
		if s.rsi, err = ctx.TA().RSI(period); err != nil {
			return err
		}
		if s.atr == nil {
			if s.atr, err = ctx.TA().ATR(period); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *SMACross) needATR() bool {
	return s.risk.DefaultStopLossATRMultiplier > 0 || s.risk.TrailATRMultiplier > 0
}

func (s *SMACross) Next(ctx *Context) error {
	data := ctx.Data()
	if len(data) <= s.cfg.Trend.SlowMA {
		return nil
	}
	fast, slow := ctx.Visible(s.fast), ctx.Visible(s.slow)
	lastClose := data[len(data)-1].Close

	switch {
	case ta.Crossover(fast, slow):
		return s.reverse(ctx, model.Buy, lastClose)
	case ta.Crossover(slow, fast):
		return s.reverse(ctx, model.Sell, lastClose)
	}
	return nil
}

// reverse 平掉反向持仓，并在允许时按 side 开新仓
func (s *SMACross) reverse(ctx *Context, side model.Side, ref float64) error {
	logger := ctx.Logger()

	if !ctx.Position(side.Opposite()).IsFlat() {
		if _, err := ctx.Close(side.Opposite()); err != nil && !isRejection(err) {
			return err
		}
	}
	if !ctx.Position(side).IsFlat() {
		return nil
	}

	if s.cfg.RegimeFilter {
		state := s.detect(ctx, ref)
		if state == StateLowVolRanging || state == StateInitial {
			logger.Debugf("Entry skipped at bar %d: regime %s", ctx.Index(), state)
			return nil
		}
	}

	params := s.entryParams(ctx, side, ref)
	order, err := ctx.Submit(side, params)
	if err != nil {
		if isRejection(err) {
			logger.Debugf("Entry rejected at bar %d: %v", ctx.Index(), err)
			return nil
		}
		return err
	}
	logger.Infof("SIGNAL [%s] bar %d ref %.4f -> %s", side, ctx.Index(), ref, order)
	return nil
}

func (s *SMACross) detect(ctx *Context, price float64) MarketState {
	rsi := lastOf(ctx.Visible(s.rsi))
	atr := lastOf(ctx.Visible(s.atr))
	ma := lastOf(ctx.Visible(s.slow))
	return s.regime.Detect(price, ma, rsi, atr)
}

func (s *SMACross) entryParams(ctx *Context, side model.Side, ref float64) engine.OrderParams {
	var p engine.OrderParams
	if scale := s.risk.PositionScaleFactor; scale > 0 && scale < 1 {
		p.Size = engine.Float(ctx.Equity() * scale / ref)
	}
	if s.atr == nil {
		return p
	}
	atr := lastOf(ctx.Visible(s.atr))
	if atr <= 0 {
		return p
	}

	// 止损距离 = ATR × 倍数，止盈距离 = 止损距离 × 盈亏比
	if m := s.risk.DefaultStopLossATRMultiplier; m > 0 {
		dist := atr * m
		reward := dist * s.risk.DefaultRiskRewardRatio
		if side == model.Buy {
			p.StopLoss = ref - dist
			if reward > 0 {
				p.TakeProfit = ref + reward
			}
		} else {
			p.StopLoss = ref + dist
			if reward > 0 {
				p.TakeProfit = ref - reward
			}
		}
		if p.StopLoss <= 0 {
			p.StopLoss = 0
		}
		if p.TakeProfit < 0 {
			p.TakeProfit = 0
		}
	}
	if m := s.risk.TrailATRMultiplier; m > 0 {
		p.Trail = atr * m
	}
	return p
}

func lastOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return values[len(values)-1]
}

// isRejection 下单被引擎拒绝，策略应当忽略而不是中断回测
func isRejection(err error) bool {
	return errors.Is(err, engine.ErrInvalidPrice) ||
		errors.Is(err, engine.ErrInvalidSize) ||
		errors.Is(err, engine.ErrInsufficientEquity) ||
		errors.Is(err, engine.ErrNoPosition)
}
