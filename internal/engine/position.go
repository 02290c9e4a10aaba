package engine

import (
	"time"

	"crypto-backtester/internal/model"
)

// sizeEpsilon 小于该值的剩余仓位视为 0，消除浮点残差
const sizeEpsilon = 1e-12

// Position 单方向的聚合持仓
type Position struct {
	Symbol     string
	Side       model.Side
	Size       float64 // 持仓数量，始终 >= 0
	EntryPrice float64 // 加权平均开仓价，Size 为 0 时无意义
	OpenTime   time.Time
}

func NewPosition(symbol string, side model.Side) *Position {
	return &Position{Symbol: symbol, Side: side}
}

func (p Position) IsFlat() bool {
	return p.Size <= 0
}

// Open 加仓，按成交量加权更新均价
func (p *Position) Open(price, size float64, at time.Time) {
	if size <= 0 {
		return
	}
	if p.IsFlat() {
		p.EntryPrice = price
		p.OpenTime = at
	} else {
		p.EntryPrice = (price*size + p.EntryPrice*p.Size) / (p.Size + size)
	}
	p.Size += size
}

// PnL 按 price 平掉 size 数量时的盈亏
func (p Position) PnL(price, size float64) float64 {
	if p.Side == model.Buy {
		return (price - p.EntryPrice) * size
	}
	return (p.EntryPrice - price) * size
}

// Close 按 price 平仓 size 数量，超出持仓的部分被截断，返回已实现盈亏
func (p *Position) Close(price, size float64) float64 {
	if size <= 0 || p.IsFlat() {
		return 0
	}
	if size > p.Size {
		size = p.Size
	}
	pnl := p.PnL(price, size)

	p.Size -= size
	if p.Size < sizeEpsilon {
		p.Size = 0
		p.EntryPrice = 0
		p.OpenTime = time.Time{}
	}
	return pnl
}
