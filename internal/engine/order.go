package engine

import (
	"fmt"
	"time"

	"crypto-backtester/internal/model"
)

// OrderParams 下单参数，未设置的字段按注释中的规则解析
type OrderParams struct {
	Size       *float64       // nil: 开仓单用全部可用资金按价格折算；减仓单取对手方持仓数量
	Price      *float64       // nil: 市价单，取当前 K 线开盘价
	Stop       float64        // 触发价，0 表示无触发条件
	TakeProfit float64        // 止盈价，0 表示不设置
	StopLoss   float64        // 止损价，0 表示不设置
	Trail      float64        // 移动止损距离，0 表示不设置
	ExecType   model.ExecType // 默认 TakerFill
	ReduceOnly bool           // 只减仓，不会开新仓
}

// Float 返回指向 v 的指针，用于填写 OrderParams 的可选字段
func Float(v float64) *float64 {
	return &v
}

// Order 是一笔下单意图，提交后只由引擎修改
type Order struct {
	ID         string
	ParentID   string // 由父单成交后派生的止盈/止损单才有
	Symbol     string
	Side       model.Side
	Size       float64
	Price      float64
	Stop       float64
	TakeProfit float64
	StopLoss   float64
	Trail      float64
	ExecType   model.ExecType
	ReduceOnly bool
	Market     bool
	Status     model.OrderStatus
	CreateTime time.Time
	ExecTime   time.Time
	Reserved   float64 // 提交时冻结的资金

	triggered bool // 触发单是否已被触发
}

func (o *Order) String() string {
	kind := "limit"
	if o.Market {
		kind = "market"
	}
	if o.ReduceOnly {
		kind += "/reduce"
	}
	return fmt.Sprintf("ORDER [%s %s %s] %.5f @ %.4f | Stop: %.4f | TP: %.4f | SL: %.4f | Status: %s",
		o.ID[:8], o.Side, kind, o.Size, o.Price, o.Stop, o.TakeProfit, o.StopLoss, o.Status)
}

// Cancel 只改变状态；开启 RefundReserved 时冻结资金在下一次撮合时返还
func (o *Order) Cancel() {
	if o.IsActive() {
		o.Status = model.OrderCanceled
	}
}

// IsActive 订单仍在等待成交
func (o *Order) IsActive() bool {
	return o.Status == model.OrderNew || o.Status == model.OrderCreated
}

// takeProfitCrossed 父单方向为 side 时，止盈价是否被本根 K 线穿越
func takeProfitCrossed(side model.Side, tp float64, bar model.Bar) bool {
	if side == model.Buy {
		return tp >= bar.Low
	}
	return tp <= bar.High
}

// stopLossCrossed 父单方向为 side 时，止损价是否被本根 K 线穿越
func stopLossCrossed(side model.Side, sl float64, bar model.Bar) bool {
	if side == model.Buy {
		return sl <= bar.High
	}
	return sl >= bar.Low
}
