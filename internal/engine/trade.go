package engine

import (
	"time"

	"crypto-backtester/internal/model"
)

// Trade 记录一次开仓到平仓 (或部分平仓) 的完整周期
type Trade struct {
	ID     int
	Symbol string
	Side   model.Side

	EntrySize    float64 // 创建时的数量
	Size         float64 // 本记录对应的数量，部分平仓后为已平部分
	EntryPrice   float64
	EntryTime    time.Time
	EntryOrderID string

	ExitSize    float64
	ExitPrice   float64
	ExitTime    time.Time
	ExitOrderID string

	Status model.TradeStatus
	PnL    float64 // 已实现盈亏 (不含手续费)
	Fee    float64 // 开仓 + 平仓手续费
}

func (t Trade) IsOpen() bool {
	return t.Status == model.TradeOpen
}

// NetPnL 扣除手续费后的盈亏
func (t Trade) NetPnL() float64 {
	return t.PnL - t.Fee
}

// ReturnPct 单笔收益率
func (t Trade) ReturnPct() float64 {
	if t.EntryPrice == 0 || t.Size == 0 {
		return 0
	}
	return t.NetPnL() / (t.EntryPrice * t.Size)
}

func (t Trade) Duration() time.Duration {
	if t.ExitTime.IsZero() {
		return 0
	}
	return t.ExitTime.Sub(t.EntryTime)
}

func (t Trade) pnl(price, size float64) float64 {
	if t.Side == model.Buy {
		return (price - t.EntryPrice) * size
	}
	return (t.EntryPrice - price) * size
}

// Split 将交易拆成已消耗的 size 部分与剩余部分，返回两条互不共享的记录。
// 开仓手续费按数量比例分摊；调用方负责给剩余部分分配新 ID。
func (t Trade) Split(size float64) (consumed, remainder Trade) {
	if size >= t.Size {
		return t, Trade{}
	}
	ratio := size / t.Size

	consumed = t
	consumed.Size = size
	consumed.Fee = t.Fee * ratio

	remainder = t
	remainder.Size = t.Size - size
	remainder.EntrySize = remainder.Size
	remainder.Fee = t.Fee - consumed.Fee
	remainder.Status = model.TradeOpen
	return consumed, remainder
}

// Close 以 price 平掉整笔交易，size 超出本记录数量的部分作为 excess 返回
func (t *Trade) Close(price, size float64, at time.Time, orderID string, fee float64) (excess float64) {
	excess = size - t.Size
	if excess < sizeEpsilon {
		excess = 0
	}
	t.ExitSize = t.Size
	t.ExitPrice = price
	t.ExitTime = at
	t.ExitOrderID = orderID
	t.PnL = t.pnl(price, t.Size)
	t.Fee += fee
	t.Status = model.TradeClosed
	return excess
}
