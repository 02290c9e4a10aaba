package model

import "time"

// Tick 代表最小粒度的成交数据
type Tick struct {
	Symbol    string  // 所属交易对，例如 "BTC-USDT"
	Timestamp int64   // 毫秒时间戳
	Price     float64 // 成交价格
	Volume    float64 // 成交量
}

// Bar 代表一根历史 K 线 (OHLCV)
type Bar struct {
	Symbol   string
	Interval string // 周期，例如 "1m", "1h"，CSV 读入时可能为空
	Time     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// Contains 判断价格是否落在 [Low, High] 区间内 (含边界)
func (b Bar) Contains(price float64) bool {
	return b.Low <= price && price <= b.High
}
