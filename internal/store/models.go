package store

import "time"

// RunModel 一次回测的汇总
type RunModel struct {
	ID               string    `gorm:"column:id;primaryKey"`
	Strategy         string    `gorm:"column:strategy;index"`
	Symbol           string    `gorm:"column:symbol;index"`
	StartTime        time.Time `gorm:"column:start_time"`
	EndTime          time.Time `gorm:"column:end_time"`
	InitialBalance   float64   `gorm:"column:initial_balance"`
	FinalBalance     float64   `gorm:"column:final_balance"`
	ReturnPct        float64   `gorm:"column:return_pct"`
	BuyHoldReturnPct float64   `gorm:"column:buy_hold_return_pct"`
	MaxDrawdownPct   float64   `gorm:"column:max_drawdown_pct"`
	Trades           int       `gorm:"column:trades"`
	WinRatePct       float64   `gorm:"column:win_rate_pct"`
	ProfitFactor     float64   `gorm:"column:profit_factor"`
	Expectancy       float64   `gorm:"column:expectancy"`
	TotalFees        float64   `gorm:"column:total_fees"`
	CreatedAt        time.Time `gorm:"column:created_at"`
}

func (RunModel) TableName() string { return "backtest_runs" }

// TradeModel 回测中的一笔交易记录
type TradeModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID      string    `gorm:"column:run_id;index"`
	Seq        int       `gorm:"column:seq"`
	Side       string    `gorm:"column:side"`
	Status     string    `gorm:"column:status"`
	Size       float64   `gorm:"column:size"`
	EntryPrice float64   `gorm:"column:entry_price"`
	EntryTime  time.Time `gorm:"column:entry_time"`
	EntryOrder string    `gorm:"column:entry_order_id"`
	ExitPrice  float64   `gorm:"column:exit_price"`
	ExitTime   time.Time `gorm:"column:exit_time"`
	ExitOrder  string    `gorm:"column:exit_order_id"`
	PnL        float64   `gorm:"column:pnl"`
	Fee        float64   `gorm:"column:fee"`
}

func (TradeModel) TableName() string { return "backtest_trades" }

// EquityPointModel 资金曲线上的一个点
type EquityPointModel struct {
	ID          int64     `gorm:"column:id;primaryKey;autoIncrement"`
	RunID       string    `gorm:"column:run_id;index"`
	BarTime     time.Time `gorm:"column:bar_time"`
	Equity      float64   `gorm:"column:equity"`
	MarketValue float64   `gorm:"column:market_value"`
}

func (EquityPointModel) TableName() string { return "backtest_equity" }
