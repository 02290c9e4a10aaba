package backtest

import (
	"math"
	"time"

	"crypto-backtester/internal/engine"
	"crypto-backtester/internal/model"
)

// Stats 汇总一次回测的收益与风险指标
type Stats struct {
	Start    time.Time
	End      time.Time
	Duration time.Duration

	ExposurePct      float64 // 持仓 K 线占比
	InitialBalance   float64
	EquityFinal      float64
	EquityPeak       float64
	ReturnPct        float64
	BuyHoldReturnPct float64
	MaxDrawdownPct   float64

	Trades        int
	Wins          int
	Losses        int
	WinRatePct    float64
	BestTradePct  float64
	WorstTradePct float64
	AvgTradePct   float64
	ProfitFactor  float64 // 无亏损交易时为 +Inf
	Expectancy    float64 // 每笔平均净盈亏
	TotalFees     float64
	AvgDuration   time.Duration
}

// ComputeStats 根据 K 线、已平交易和按市值计算的资金曲线生成统计
func ComputeStats(bars []model.Bar, trades []engine.Trade, curve []float64, initial, final float64, exposed int) Stats {
	s := Stats{
		InitialBalance: initial,
		EquityFinal:    final,
	}
	if len(bars) > 0 {
		s.Start = bars[0].Time
		s.End = bars[len(bars)-1].Time
		s.Duration = s.End.Sub(s.Start)
		s.ExposurePct = float64(exposed) / float64(len(bars)) * 100
		if first := bars[0].Open; first > 0 {
			s.BuyHoldReturnPct = (bars[len(bars)-1].Close - first) / first * 100
		}
	}
	if initial > 0 {
		s.ReturnPct = (final - initial) / initial * 100
	}

	peak := initial
	track := func(v float64) {
		if v > peak {
			peak = v
		}
		if dd := (peak - v) / peak * 100; peak > 0 && dd > s.MaxDrawdownPct {
			s.MaxDrawdownPct = dd
		}
	}
	for _, v := range curve {
		track(v)
	}
	track(final)
	s.EquityPeak = peak

	var (
		grossProfit, grossLoss float64
		sumReturn, sumPnL      float64
		sumDuration            time.Duration
	)
	s.BestTradePct = math.Inf(-1)
	s.WorstTradePct = math.Inf(1)
	for _, t := range trades {
		if t.IsOpen() {
			continue
		}
		s.Trades++
		net := t.NetPnL()
		ret := t.ReturnPct() * 100
		sumPnL += net
		sumReturn += ret
		sumDuration += t.Duration()
		s.TotalFees += t.Fee
		s.BestTradePct = math.Max(s.BestTradePct, ret)
		s.WorstTradePct = math.Min(s.WorstTradePct, ret)
		switch {
		case net > 0:
			s.Wins++
			grossProfit += net
		case net < 0:
			s.Losses++
			grossLoss -= net
		}
	}

	if s.Trades == 0 {
		s.BestTradePct, s.WorstTradePct = 0, 0
		return s
	}
	n := float64(s.Trades)
	s.WinRatePct = float64(s.Wins) / n * 100
	s.AvgTradePct = sumReturn / n
	s.Expectancy = sumPnL / n
	s.AvgDuration = sumDuration / time.Duration(s.Trades)
	switch {
	case grossLoss > 0:
		s.ProfitFactor = grossProfit / grossLoss
	case grossProfit > 0:
		s.ProfitFactor = math.Inf(1)
	}
	return s
}
