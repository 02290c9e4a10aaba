package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("testdata")
	require.NoError(t, err)

	assert.Equal(t, "BTC-USDT", cfg.Backtest.Symbol)
	assert.Equal(t, "4h", cfg.Backtest.Interval)
	assert.Equal(t, 50000.0, cfg.Backtest.InitialBalance)
	assert.Equal(t, 0.0005, cfg.Backtest.TakerFee)
	assert.True(t, cfg.Backtest.KeepUnfilled)
	assert.True(t, cfg.Backtest.ReturnPrincipal)
	assert.False(t, cfg.Backtest.RefundReserved)
	assert.Equal(t, 5, cfg.Strategy.Trend.FastMA)
	assert.Equal(t, 20, cfg.Strategy.Trend.SlowMA)
	assert.Equal(t, 0.5, cfg.Risk.PositionScaleFactor)
	assert.Equal(t, 2.0, cfg.Risk.DefaultStopLossATRMultiplier)

	table := cfg.SymbolTable()
	eth, err := table.Lookup("ETH-USDT")
	require.NoError(t, err)
	assert.Equal(t, 0.001, eth.TickSize)
	_, err = table.Lookup("BTC-USDT")
	assert.NoError(t, err)
}

func TestLoadConfigMissing(t *testing.T) {
	_, err := LoadConfig(t.TempDir())
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	valid := func() Config {
		var c Config
		c.Backtest.InitialBalance = 1000
		c.Backtest.Interval = "1h"
		c.Risk.PositionScaleFactor = 1
		c.Strategy.Trend.FastMA = 5
		c.Strategy.Trend.SlowMA = 10
		return c
	}

	c := valid()
	assert.NoError(t, c.Validate())

	c = valid()
	c.Backtest.InitialBalance = 0
	assert.Error(t, c.Validate())

	c = valid()
	c.Backtest.TakerFee = -0.1
	assert.Error(t, c.Validate())

	c = valid()
	c.Risk.PositionScaleFactor = 1.5
	assert.Error(t, c.Validate())

	c = valid()
	c.Strategy.Trend.FastMA = 10
	assert.Error(t, c.Validate())

	c = valid()
	c.Backtest.Interval = "1w"
	assert.Error(t, c.Validate())
}

func TestIntervalRoundTrip(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"1m", time.Minute},
		{"15m", 15 * time.Minute},
		{"4h", 4 * time.Hour},
		{"1d", 24 * time.Hour},
		{"30s", 30 * time.Second},
	}
	for _, tt := range tests {
		d, err := ParseIntervalDuration(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, d, tt.in)
	}

	assert.Equal(t, "4h", FormatInterval(4*time.Hour))
	assert.Equal(t, "15m", FormatInterval(15*time.Minute))
	assert.Equal(t, "1d", FormatInterval(24*time.Hour))
	assert.Equal(t, "90s", FormatInterval(90*time.Second))
	assert.Equal(t, "1.5s", FormatInterval(1500*time.Millisecond))

	_, err := ParseIntervalDuration("x")
	assert.Error(t, err)
	_, err = ParseIntervalDuration("0m")
	assert.Error(t, err)
	_, err = ParseIntervalDuration("1.5h")
	assert.Error(t, err)
}

func TestStringToFloat(t *testing.T) {
	v, err := StringToFloat(" 101.5 ")
	require.NoError(t, err)
	assert.Equal(t, 101.5, v)

	_, err = StringToFloat("abc")
	assert.Error(t, err)
}
