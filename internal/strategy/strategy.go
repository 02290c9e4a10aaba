package strategy

import (
	"crypto-backtester/internal/engine"
	"crypto-backtester/internal/model"
	"crypto-backtester/pkg/ta"

	"go.uber.org/zap"
)

// Strategy 是回测驱动的策略接口
type Strategy interface {
	Name() string
	// Init 在第一根 K 线之前调用一次，通常用于注册指标
	Init(ctx *Context) error
	// Next 在每根 K 线撮合之前调用，只能看到当前 K 线之前的数据
	Next(ctx *Context) error
}

// Finisher 可选钩子，回测结束 (强平之前) 调用
type Finisher interface {
	Finish(ctx *Context) error
}

// Broker 策略可用的下单与查询能力，由 engine.TradingEngine 实现
type Broker interface {
	NewOrder(side model.Side, p engine.OrderParams) (*engine.Order, error)
	CancelOrder(id string) error
	Position(side model.Side) engine.Position
	Equity() float64
	BarIndex() int
}

// Context 策略在回测中的视图
type Context struct {
	broker Broker
	bars   []model.Bar
	ta     *ta.Calculator
	logger *zap.SugaredLogger
}

func NewContext(broker Broker, bars []model.Bar, logger *zap.SugaredLogger) *Context {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Context{
		broker: broker,
		bars:   bars,
		ta:     ta.NewCalculator(bars, logger),
		logger: logger,
	}
}

// Index 当前 K 线下标，Init 阶段为 -1
func (c *Context) Index() int { return c.broker.BarIndex() }

// Data 返回当前 K 线之前的全部历史
func (c *Context) Data() []model.Bar {
	i := c.Index()
	if i < 0 {
		return nil
	}
	return c.bars[:i]
}

// TA 指标计算器，指标基于全部历史计算，读取时需用 Visible 截断
func (c *Context) TA() *ta.Calculator { return c.ta }

// Visible 返回指标在当前 K 线之前的部分
func (c *Context) Visible(s *ta.Series) []float64 {
	return s.Upto(c.Index())
}

func (c *Context) Logger() *zap.SugaredLogger { return c.logger }

func (c *Context) Buy(p engine.OrderParams) (*engine.Order, error) {
	return c.broker.NewOrder(model.Buy, p)
}

func (c *Context) Sell(p engine.OrderParams) (*engine.Order, error) {
	return c.broker.NewOrder(model.Sell, p)
}

// Submit 按 side 提交订单
func (c *Context) Submit(side model.Side, p engine.OrderParams) (*engine.Order, error) {
	return c.broker.NewOrder(side, p)
}

// Close 以市价平掉 side 方向的全部持仓
func (c *Context) Close(side model.Side) (*engine.Order, error) {
	return c.broker.NewOrder(side.Opposite(), engine.OrderParams{ReduceOnly: true})
}

func (c *Context) Cancel(o *engine.Order) error {
	return c.broker.CancelOrder(o.ID)
}

func (c *Context) Position(side model.Side) engine.Position {
	return c.broker.Position(side)
}

func (c *Context) Equity() float64 { return c.broker.Equity() }
