package model

// Side 订单/持仓方向
type Side int

const (
	Buy Side = iota + 1
	Sell
)

// Opposite 返回相反方向
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	}
	return "unknown"
}

// ExecType 成交方式，决定使用 maker 还是 taker 费率
type ExecType int

const (
	TakerFill ExecType = iota
	MakerFill
)

func (e ExecType) String() string {
	if e == MakerFill {
		return "maker"
	}
	return "taker"
}

type OrderStatus string

const (
	OrderNew      OrderStatus = "NEW"
	OrderCreated  OrderStatus = "CREATED" // 已挂单但本根 K 线未成交
	OrderFilled   OrderStatus = "FILLED"
	OrderCanceled OrderStatus = "CANCELED"
	OrderRejected OrderStatus = "REJECTED"
	OrderExpired  OrderStatus = "EXPIRED"
)

type TradeStatus string

const (
	TradeOpen   TradeStatus = "OPEN"
	TradeClosed TradeStatus = "CLOSED"
)

type SymbolType string

const (
	SymbolSpot   SymbolType = "spot"
	SymbolFuture SymbolType = "future"
	SymbolOption SymbolType = "option"
)
