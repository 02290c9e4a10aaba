// internal/service/config.go
package service

import (
	"errors"
	"fmt"

	"crypto-backtester/internal/model"

	"github.com/spf13/viper"
)

type Config struct {
	Backtest BacktestConfig                `mapstructure:"Backtest"`
	Symbols  map[string]model.SymbolConfig `mapstructure:"Symbols"`
	Strategy StrategyConfig                `mapstructure:"Strategy"`
	Risk     RiskConfig                    `mapstructure:"Risk"`
	Store    StoreConfig                   `mapstructure:"Store"`
}

// BacktestConfig 定义了回测引擎参数
type BacktestConfig struct {
	Symbol          string
	Interval        string  // K 线周期，仅用于 tick 聚合与展示
	InitialBalance  float64 // 初始资金
	MakerFee        float64 // maker 费率 (例如 0.0002)
	TakerFee        float64 // taker 费率 (例如 0.0005)
	ExclusiveOrders bool    // 新开仓单会撤掉其他未成交的开仓单
	KeepUnfilled    bool    // 未成交订单是否保留到下一根 K 线 (默认丢弃)
	CascadeCloses   bool    // 平仓数量超出最新一笔交易时继续平更早的交易 (默认丢弃超出部分)
	ReturnPrincipal bool    // 平仓时返还开仓本金 (默认只计入盈亏)
	RefundReserved  bool    // 撤单/丢弃未成交订单时退回冻结资金 (默认不退)
}

// RiskConfig 定义了仓位与止盈止损参数
type RiskConfig struct {
	PositionScaleFactor          float64 // 每次开仓使用的资金比例 (0, 1]
	ATRPeriod                    int
	DefaultStopLossATRMultiplier float64 // 止损距离 = ATR × 倍数
	DefaultRiskRewardRatio       float64 // 止盈距离 = 止损距离 × 盈亏比
	TrailATRMultiplier           float64 // 0 表示不使用移动止损
}

// StrategyConfig 定义了策略启动参数
type StrategyConfig struct {
	Name         string
	RegimeFilter bool // 低波动震荡时不开仓
	Trend        struct {
		FastMA int
		SlowMA int
	}
}

// StoreConfig 回测结果持久化
type StoreConfig struct {
	Path string // sqlite 文件路径，为空则不落库
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("Backtest.Symbol", model.BTCUSDT.Name)
	v.SetDefault("Backtest.Interval", "1h")
	v.SetDefault("Backtest.InitialBalance", 1000000.0)
	v.SetDefault("Strategy.Name", "sma_cross")
	v.SetDefault("Strategy.Trend.FastMA", 10)
	v.SetDefault("Strategy.Trend.SlowMA", 30)
	v.SetDefault("Risk.PositionScaleFactor", 1.0)
	v.SetDefault("Risk.ATRPeriod", 14)
}

// LoadConfig 读取并解析配置目录下的 config.yaml
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("config file not found in %s: %w", configPath, err)
		}
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 检查配置的基本合法性
func (c *Config) Validate() error {
	if c.Backtest.InitialBalance <= 0 {
		return fmt.Errorf("initial balance must be positive, got %v", c.Backtest.InitialBalance)
	}
	if c.Backtest.MakerFee < 0 || c.Backtest.TakerFee < 0 {
		return fmt.Errorf("fee rates must not be negative")
	}
	if c.Risk.PositionScaleFactor <= 0 || c.Risk.PositionScaleFactor > 1 {
		return fmt.Errorf("position scale factor must be in (0, 1], got %v", c.Risk.PositionScaleFactor)
	}
	if c.Strategy.Trend.FastMA <= 0 || c.Strategy.Trend.FastMA >= c.Strategy.Trend.SlowMA {
		return fmt.Errorf("trend strategy requires 0 < fast MA < slow MA, got %d/%d",
			c.Strategy.Trend.FastMA, c.Strategy.Trend.SlowMA)
	}
	if _, err := ParseIntervalDuration(c.Backtest.Interval); err != nil {
		return err
	}
	return nil
}

// SymbolTable 合并内置交易对与配置中的交易对
func (c *Config) SymbolTable() model.SymbolTable {
	table := model.DefaultSymbols()
	table.Merge(c.Symbols)
	return table
}
