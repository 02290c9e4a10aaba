package data

import (
	"math"
	"time"

	"crypto-backtester/internal/model"
	"crypto-backtester/internal/service"
)

// BarAggregator 将逐笔成交聚合成固定周期的 K 线
type BarAggregator struct {
	Symbol   string
	Interval string
	duration time.Duration
	current  model.Bar // 正在构建的 K 线，Time 为零值表示尚未开始
}

// NewBarAggregator 创建一个新的聚合器
func NewBarAggregator(symbol string, interval time.Duration) *BarAggregator {
	return &BarAggregator{
		Symbol:   symbol,
		Interval: service.FormatInterval(interval),
		duration: interval,
	}
}

// Add 聚合一笔成交；若该成交开启了新周期，返回已完成的上一根 K 线
func (agg *BarAggregator) Add(tick model.Tick) (model.Bar, bool) {
	tickTime := time.UnixMilli(tick.Timestamp).UTC()
	start := tickTime.Truncate(agg.duration)

	var completed model.Bar
	done := false
	if !agg.current.Time.IsZero() && start.After(agg.current.Time) {
		completed, done = agg.current, true
		agg.current = model.Bar{}
	}

	if agg.current.Time.IsZero() {
		agg.current = model.Bar{
			Symbol:   agg.Symbol,
			Interval: agg.Interval,
			Time:     start,
			Open:     tick.Price,
			High:     tick.Price,
			Low:      tick.Price,
		}
	}

	// 更新 OHLCV
	agg.current.Close = tick.Price
	agg.current.High = math.Max(agg.current.High, tick.Price)
	agg.current.Low = math.Min(agg.current.Low, tick.Price)
	agg.current.Volume += tick.Volume

	return completed, done
}

// Flush 返回仍在构建中的最后一根 K 线
func (agg *BarAggregator) Flush() (model.Bar, bool) {
	if agg.current.Time.IsZero() {
		return model.Bar{}, false
	}
	bar := agg.current
	agg.current = model.Bar{}
	return bar, true
}

// AggregateTicks 将按时间排序的成交序列聚合为 K 线
func AggregateTicks(ticks []model.Tick, symbol string, interval time.Duration) []model.Bar {
	agg := NewBarAggregator(symbol, interval)
	var bars []model.Bar
	for _, tick := range ticks {
		if bar, ok := agg.Add(tick); ok {
			bars = append(bars, bar)
		}
	}
	if bar, ok := agg.Flush(); ok {
		bars = append(bars, bar)
	}
	return bars
}
