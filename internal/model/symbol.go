package model

import (
	"fmt"
	"strings"
)

// SymbolConfig 交易对的下单约束
type SymbolConfig struct {
	Name         string     `mapstructure:"Name"`
	Exchange     string     `mapstructure:"Exchange"`
	Type         SymbolType `mapstructure:"Type"`
	TickSize     float64    `mapstructure:"TickSize"`     // 数量最小变动单位
	MinOrderSize float64    `mapstructure:"MinOrderSize"` // 最小下单量
	MaxOrderSize float64    `mapstructure:"MaxOrderSize"` // 单笔最大下单量，超出则截断
	Active       bool       `mapstructure:"Active"`
}

func (c SymbolConfig) String() string {
	return fmt.Sprintf("Symbol(%s, %s)", c.Name, c.Type)
}

// BTCUSDT 默认预置交易对
var BTCUSDT = SymbolConfig{
	Name:         "BTC-USDT",
	Exchange:     "binance",
	Type:         SymbolFuture,
	TickSize:     0.00001,
	MinOrderSize: 0.00001,
	MaxOrderSize: 130,
	Active:       true,
}

// SymbolTable 交易对查找表，key 统一为大写
type SymbolTable map[string]SymbolConfig

// DefaultSymbols 返回内置的交易对表
func DefaultSymbols() SymbolTable {
	return SymbolTable{BTCUSDT.Name: BTCUSDT}
}

// Merge 用配置文件中的交易对覆盖/补充内置表
func (t SymbolTable) Merge(extra map[string]SymbolConfig) {
	for name, cfg := range extra {
		if cfg.Name == "" {
			cfg.Name = name
		}
		t[strings.ToUpper(cfg.Name)] = cfg
	}
}

// Lookup 查找交易对配置
func (t SymbolTable) Lookup(name string) (SymbolConfig, error) {
	cfg, ok := t[strings.ToUpper(name)]
	if !ok {
		return SymbolConfig{}, fmt.Errorf("unknown symbol %q", name)
	}
	if !cfg.Active {
		return SymbolConfig{}, fmt.Errorf("symbol %q is not active", name)
	}
	return cfg, nil
}
