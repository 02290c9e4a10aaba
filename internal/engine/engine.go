package engine

import (
	"errors"
	"fmt"
	"math"

	"crypto-backtester/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var (
	ErrNoBar              = errors.New("engine: no current bar")
	ErrInvalidPrice       = errors.New("engine: order price must be positive")
	ErrInvalidSize        = errors.New("engine: order size must be positive")
	ErrInsufficientEquity = errors.New("engine: insufficient equity")
	ErrNoPosition         = errors.New("engine: no position to reduce")
	ErrOrderNotFound      = errors.New("engine: order not found")
)

// Config 回测引擎配置
type Config struct {
	Symbol          model.SymbolConfig
	InitialBalance  float64
	MakerFee        float64
	TakerFee        float64
	ExclusiveOrders bool // 新开仓单撤销其余未成交开仓单
	KeepUnfilled    bool // 未成交订单保留到下一根 K 线
	CascadeCloses   bool // 减仓数量超过最新一笔交易时，继续平掉更早的交易
	// ReturnPrincipal 平仓时除盈亏外一并返还开仓冻结的本金；默认只计入盈亏
	ReturnPrincipal bool
	// RefundReserved 撤单、过期或未成交丢弃时返还冻结资金；默认撤单只改变状态
	RefundReserved bool
}

// TradingEngine 逐根 K 线撮合挂单，维护双向持仓、交易记录和资金曲线。
// 引擎不是并发安全的，回测按 K 线顺序单线程推进。
type TradingEngine struct {
	cfg    Config
	bars   []model.Bar
	logger *zap.SugaredLogger

	i int // 当前 K 线下标，-1 表示尚未开始

	equity      float64   // 可用资金，下单时扣除冻结部分，平仓时计入盈亏
	equityCurve []float64 // 每根 K 线结束时的资金快照

	positions map[model.Side]*Position
	orders    map[string]*Order   // 所有订单，按 ID 索引
	children  map[string][]*Order // 止盈止损子单，按父单 ID 索引
	pending   []*Order            // 等待本根 K 线撮合的订单，按提交顺序
	trades    []*Trade            // 交易记录，Trade.ID 即下标
}

// NewTradingEngine 构造函数
func NewTradingEngine(cfg Config, bars []model.Bar, logger *zap.SugaredLogger) (*TradingEngine, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("engine: no bars")
	}
	if cfg.InitialBalance <= 0 {
		return nil, fmt.Errorf("engine: initial balance must be positive, got %v", cfg.InitialBalance)
	}
	if cfg.Symbol.TickSize <= 0 {
		return nil, fmt.Errorf("engine: symbol %s has no tick size", cfg.Symbol.Name)
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &TradingEngine{
		cfg:    cfg,
		bars:   bars,
		logger: logger,
		i:      -1,
		equity: cfg.InitialBalance,
		positions: map[model.Side]*Position{
			model.Buy:  NewPosition(cfg.Symbol.Name, model.Buy),
			model.Sell: NewPosition(cfg.Symbol.Name, model.Sell),
		},
		orders:   make(map[string]*Order),
		children: make(map[string][]*Order),
	}, nil
}

// SetBar 将引擎推进到第 i 根 K 线，后续的下单与撮合都基于这根 K 线
func (e *TradingEngine) SetBar(i int) error {
	if i < 0 || i >= len(e.bars) {
		return fmt.Errorf("engine: bar index %d out of range [0, %d)", i, len(e.bars))
	}
	e.i = i
	return nil
}

func (e *TradingEngine) currentBar() (model.Bar, bool) {
	if e.i < 0 {
		return model.Bar{}, false
	}
	return e.bars[e.i], true
}

// BarIndex 当前 K 线下标
func (e *TradingEngine) BarIndex() int { return e.i }

func (e *TradingEngine) Symbol() model.SymbolConfig { return e.cfg.Symbol }

func (e *TradingEngine) Equity() float64 { return e.equity }

func (e *TradingEngine) InitialBalance() float64 { return e.cfg.InitialBalance }

// EquityCurve 返回资金曲线副本
func (e *TradingEngine) EquityCurve() []float64 {
	curve := make([]float64, len(e.equityCurve))
	copy(curve, e.equityCurve)
	return curve
}

// Position 返回 side 方向持仓的副本
func (e *TradingEngine) Position(side model.Side) Position {
	return *e.positions[side]
}

// Trades 返回全部交易记录的副本
func (e *TradingEngine) Trades() []Trade {
	trades := make([]Trade, len(e.trades))
	for i, t := range e.trades {
		trades[i] = *t
	}
	return trades
}

// PendingOrders 返回等待撮合的订单
func (e *TradingEngine) PendingOrders() []*Order {
	orders := make([]*Order, len(e.pending))
	copy(orders, e.pending)
	return orders
}

// Order 按 ID 查找订单
func (e *TradingEngine) Order(id string) (*Order, bool) {
	o, ok := e.orders[id]
	return o, ok
}

// quantize 将数量向下取整到 tick 的整数倍，并截断到最大下单量
func (e *TradingEngine) quantize(size float64) float64 {
	tick := decimal.NewFromFloat(e.cfg.Symbol.TickSize)
	result, _ := decimal.NewFromFloat(size).Div(tick).Floor().Mul(tick).Float64()
	if maxSize := e.cfg.Symbol.MaxOrderSize; maxSize > 0 && result > maxSize {
		result = maxSize
	}
	return result
}

func (e *TradingEngine) feeRate(t model.ExecType) float64 {
	if t == model.MakerFill {
		return e.cfg.MakerFee
	}
	return e.cfg.TakerFee
}

// NewOrder 提交订单。非法输入不会中断回测，而是返回哨兵错误且不改变引擎状态。
// 开仓单在提交时即冻结 size*price 的资金。
// 数量按 tick 向下取整后为 0 或低于最小下单量时同样以 ErrInvalidSize 拒绝，
// 不会产生数量为 0 的订单。
func (e *TradingEngine) NewOrder(side model.Side, p OrderParams) (*Order, error) {
	bar, ok := e.currentBar()
	if !ok {
		return nil, ErrNoBar
	}

	market := p.Price == nil
	var price float64
	switch {
	case !market:
		price = *p.Price
	case p.Stop > 0:
		// 市价触发单按触发价成交
		price = p.Stop
	default:
		price = bar.Open
	}
	if price <= 0 {
		e.logger.Debugf("Order rejected: invalid price %.4f", price)
		return nil, ErrInvalidPrice
	}
	if p.Size != nil && *p.Size <= 0 {
		e.logger.Debugf("Order rejected: invalid size %.8f", *p.Size)
		return nil, ErrInvalidSize
	}

	var size float64
	switch {
	case p.ReduceOnly:
		pos := e.positions[side.Opposite()]
		if pos.IsFlat() {
			return nil, ErrNoPosition
		}
		size = pos.Size
		if p.Size != nil {
			size = *p.Size
		}
	case p.Size == nil:
		size = e.equity / (price * (1 + e.feeRate(p.ExecType)))
	default:
		size = *p.Size
	}

	size = e.quantize(size)
	if size <= 0 || size < e.cfg.Symbol.MinOrderSize {
		e.logger.Debugf("Order rejected: size %.8f below minimum after quantization", size)
		return nil, ErrInvalidSize
	}

	var reserved float64
	if !p.ReduceOnly {
		reserved = size * price
		if reserved > e.equity {
			e.logger.Debugf("Order rejected: insufficient equity. Need: %.2f, Have: %.2f", reserved, e.equity)
			return nil, ErrInsufficientEquity
		}
		if e.cfg.ExclusiveOrders {
			e.cancelOpening()
		}
		e.equity -= reserved
	}

	order := &Order{
		ID:         uuid.NewString(),
		Symbol:     e.cfg.Symbol.Name,
		Side:       side,
		Size:       size,
		Price:      price,
		Stop:       p.Stop,
		TakeProfit: p.TakeProfit,
		StopLoss:   p.StopLoss,
		Trail:      p.Trail,
		ExecType:   p.ExecType,
		ReduceOnly: p.ReduceOnly,
		Market:     market,
		Status:     model.OrderNew,
		CreateTime: bar.Time,
		Reserved:   reserved,
	}
	e.orders[order.ID] = order
	e.pending = append(e.pending, order)

	e.logger.Debugf("Order accepted: %s. Equity: %.4f", order, e.equity)
	return order, nil
}

// CancelOrder 撤销未成交订单，开启 RefundReserved 时返还冻结资金
func (e *TradingEngine) CancelOrder(id string) error {
	order, ok := e.orders[id]
	if !ok || !order.IsActive() {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	e.cancel(order)
	for i, o := range e.pending {
		if o == order {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			break
		}
	}
	return nil
}

func (e *TradingEngine) cancel(o *Order) {
	e.release(o)
	o.Cancel()
}

// release 仅在 RefundReserved 打开时返还冻结资金
func (e *TradingEngine) release(o *Order) {
	if !e.cfg.RefundReserved {
		return
	}
	e.equity += o.Reserved
	o.Reserved = 0
}

// cancelOpening 撤销所有未成交的开仓单
func (e *TradingEngine) cancelOpening() {
	kept := e.pending[:0]
	for _, o := range e.pending {
		if o.ReduceOnly {
			kept = append(kept, o)
			continue
		}
		e.cancel(o)
		e.logger.Debugf("Order canceled by exclusive order: %s", o)
	}
	e.pending = kept
}

// fillPrice 判断订单能否在 bar 内成交，返回成交价
func (e *TradingEngine) fillPrice(o *Order, bar model.Bar) (float64, bool) {
	if o.Stop > 0 && !o.triggered {
		if !bar.Contains(o.Stop) {
			return 0, false
		}
		o.triggered = true
	}
	if o.Market {
		return o.Price, true
	}
	if bar.Contains(o.Price) {
		return o.Price, true
	}
	return 0, false
}

// HandleExecution 撮合当前 K 线上的全部挂单，包括本根 K 线内派生的止盈止损单，
// 然后清空挂单队列并记录资金快照。
func (e *TradingEngine) HandleExecution() error {
	bar, ok := e.currentBar()
	if !ok {
		return ErrNoBar
	}

	queue := e.pending
	e.pending = nil
	var unfilled []*Order

	for n := 0; n < len(queue); n++ {
		order := queue[n]
		if !order.IsActive() {
			e.release(order)
			continue
		}

		price, hit := e.fillPrice(order, bar)
		if !hit {
			order.Status = model.OrderCreated
			unfilled = append(unfilled, order)
			continue
		}

		e.fill(order, price, bar)
		queue = append(queue, e.spawnChildren(order, price, bar)...)
	}

	for _, order := range unfilled {
		if !order.IsActive() {
			continue
		}
		if e.cfg.KeepUnfilled {
			e.trail(order, bar)
			e.pending = append(e.pending, order)
			continue
		}
		e.release(order)
		if order.ParentID != "" {
			delete(e.children, order.ParentID)
		}
	}

	e.equityCurve = append(e.equityCurve, e.equity)
	return nil
}

func (e *TradingEngine) fill(o *Order, price float64, bar model.Bar) {
	o.Price = price
	o.ExecTime = bar.Time
	o.Status = model.OrderFilled

	if o.ReduceOnly {
		pos := e.positions[o.Side.Opposite()]
		closed := math.Min(o.Size, pos.Size)
		if closed < o.Size {
			e.logger.Warnf("Reduce order %s size %.8f exceeds %s position %.8f, clamped",
				o.ID, o.Size, pos.Side, closed)
		}
		if closed <= 0 {
			return
		}
		principal := e.principal(closed, pos.EntryPrice)
		pnl := pos.Close(price, closed)
		fee := price * closed * e.feeRate(o.ExecType)

		e.equity += principal + pnl - fee
		e.closeTrades(o, closed, price, bar, fee)
		e.cancelSiblings(o)

		e.logger.Debugf("Position reduced: %s %.8f @ %.4f. PnL: %.4f. Equity: %.4f",
			pos.Side, closed, price, pnl, e.equity)
		return
	}

	fee := price * o.Size * e.feeRate(o.ExecType)
	e.positions[o.Side].Open(price, o.Size, bar.Time)
	e.equity += o.Reserved - price*o.Size - fee
	o.Reserved = 0

	trade := &Trade{
		ID:           len(e.trades),
		Symbol:       e.cfg.Symbol.Name,
		Side:         o.Side,
		EntrySize:    o.Size,
		Size:         o.Size,
		EntryPrice:   price,
		EntryTime:    bar.Time,
		EntryOrderID: o.ID,
		Status:       model.TradeOpen,
		Fee:          fee,
	}
	e.trades = append(e.trades, trade)

	e.logger.Debugf("Position opened: %s %.8f @ %.4f. Avg: %.4f. Equity: %.4f",
		o.Side, o.Size, price, e.positions[o.Side].EntryPrice, e.equity)
}

// closeTrades 从最新的交易开始，找到对手方向上第一笔未平交易并平仓或拆分
// fee 按各笔交易平掉的数量分摊
func (e *TradingEngine) closeTrades(o *Order, size, price float64, bar model.Bar, fee float64) {
	remaining := size
	for k := len(e.trades) - 1; k >= 0 && remaining > 0; k-- {
		t := e.trades[k]
		if !t.IsOpen() || t.Side != o.Side.Opposite() {
			continue
		}

		if remaining < t.Size {
			consumed, rest := t.Split(remaining)
			consumed.Close(price, remaining, bar.Time, o.ID, fee*remaining/size)
			*t = consumed
			rest.ID = len(e.trades)
			e.trades = append(e.trades, &rest)
			return
		}

		tradeFee := fee * t.Size / size
		remaining = t.Close(price, remaining, bar.Time, o.ID, tradeFee)
		if remaining > 0 && !e.cfg.CascadeCloses {
			e.logger.Warnf("Close order %s leaves %.8f unmatched after trade %d, discarded",
				o.ID, remaining, t.ID)
			return
		}
	}
}

// principal 平仓时返还的本金，默认不返还
func (e *TradingEngine) principal(size, entry float64) float64 {
	if !e.cfg.ReturnPrincipal {
		return 0
	}
	return size * entry
}

// cancelSiblings 止盈/止损其中一个成交后撤销同一父单的其余子单
func (e *TradingEngine) cancelSiblings(o *Order) {
	if o.ParentID == "" {
		return
	}
	for _, other := range e.children[o.ParentID] {
		if other != o && other.IsActive() {
			e.cancel(other)
		}
	}
	delete(e.children, o.ParentID)
}

// spawnChildren 开仓单成交后按止盈/止损/移动止损派生只减仓子单
func (e *TradingEngine) spawnChildren(o *Order, price float64, bar model.Bar) []*Order {
	if o.ReduceOnly {
		return nil
	}

	var children []*Order
	if o.TakeProfit > 0 && (e.cfg.KeepUnfilled || takeProfitCrossed(o.Side, o.TakeProfit, bar)) {
		children = append(children, e.child(o, o.TakeProfit, 0, model.MakerFill))
	}
	if o.StopLoss > 0 && (e.cfg.KeepUnfilled || stopLossCrossed(o.Side, o.StopLoss, bar)) {
		children = append(children, e.child(o, o.StopLoss, 0, model.TakerFill))
	}
	if o.Trail > 0 {
		stop := price - o.Trail
		if o.Side == model.Sell {
			stop = price + o.Trail
		}
		if stop > 0 && (e.cfg.KeepUnfilled || stopLossCrossed(o.Side, stop, bar)) {
			children = append(children, e.child(o, stop, o.Trail, model.TakerFill))
		}
	}
	return children
}

func (e *TradingEngine) child(parent *Order, price, trail float64, execType model.ExecType) *Order {
	order := &Order{
		ID:         uuid.NewString(),
		ParentID:   parent.ID,
		Symbol:     parent.Symbol,
		Side:       parent.Side.Opposite(),
		Size:       parent.Size,
		Price:      price,
		Trail:      trail,
		ExecType:   execType,
		ReduceOnly: true,
		Status:     model.OrderNew,
		CreateTime: parent.ExecTime,
	}
	e.orders[order.ID] = order
	e.children[parent.ID] = append(e.children[parent.ID], order)
	e.logger.Debugf("Child order spawned: %s", order)
	return order
}

// trail 未成交的移动止损单按本根 K 线的极值上移 (多) 或下移 (空) 止损价
func (e *TradingEngine) trail(o *Order, bar model.Bar) {
	if o.Trail <= 0 || !o.ReduceOnly {
		return
	}
	if o.Side == model.Sell {
		if stop := bar.High - o.Trail; stop > o.Price {
			o.Price = stop
		}
		return
	}
	if stop := bar.Low + o.Trail; stop < o.Price {
		o.Price = stop
	}
}

// CloseAll 在当前 K 线收盘价强制平掉所有持仓与未平交易，并撤销剩余挂单
func (e *TradingEngine) CloseAll() error {
	bar, ok := e.currentBar()
	if !ok {
		return ErrNoBar
	}

	for _, o := range e.pending {
		e.release(o)
		o.Status = model.OrderExpired
	}
	e.pending = nil

	for _, side := range []model.Side{model.Buy, model.Sell} {
		pos := e.positions[side]
		if pos.IsFlat() {
			continue
		}
		size := pos.Size
		principal := e.principal(size, pos.EntryPrice)
		pnl := pos.Close(bar.Close, size)
		fee := bar.Close * size * e.cfg.TakerFee
		e.equity += principal + pnl - fee
		e.logger.Debugf("Position force closed: %s %.8f @ %.4f. PnL: %.4f", side, size, bar.Close, pnl)
	}

	for _, t := range e.trades {
		if t.IsOpen() {
			t.Close(bar.Close, t.Size, bar.Time, "", bar.Close*t.Size*e.cfg.TakerFee)
		}
	}
	return nil
}
