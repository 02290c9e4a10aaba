package ta

import (
	"fmt"

	"crypto-backtester/internal/model"

	"github.com/markcheno/go-talib"
	"go.uber.org/zap"
)

// Calculator 基于整段 K 线历史计算指标，结果与 K 线逐根对齐
type Calculator struct {
	Close  []float64 // 收盘价序列
	High   []float64 // 最高价序列
	Low    []float64 // 最低价序列
	Volume []float64 // 成交量序列

	indicators []*Series
	Logger     *zap.SugaredLogger
}

// NewCalculator 初始化技术指标计算器
func NewCalculator(bars []model.Bar, logger *zap.SugaredLogger) *Calculator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	tc := &Calculator{
		Close:  make([]float64, len(bars)),
		High:   make([]float64, len(bars)),
		Low:    make([]float64, len(bars)),
		Volume: make([]float64, len(bars)),
		Logger: logger,
	}
	for i, bar := range bars {
		tc.Close[i] = bar.Close
		tc.High[i] = bar.High
		tc.Low[i] = bar.Low
		tc.Volume[i] = bar.Volume
	}
	return tc
}

// Len K 线数量
func (tc *Calculator) Len() int { return len(tc.Close) }

// Indicators 返回已注册的全部指标
func (tc *Calculator) Indicators() []*Series {
	out := make([]*Series, len(tc.indicators))
	copy(out, tc.indicators)
	return out
}

// I 注册一个自定义指标，fn 的输出必须与 K 线数量一致
func (tc *Calculator) I(name string, fn func() ([]float64, error)) (*Series, error) {
	s, err := Compute(name, tc.Len(), fn)
	if err != nil {
		tc.Logger.Warnf("Indicator %s failed: %v", name, err)
		return nil, err
	}
	tc.indicators = append(tc.indicators, s)
	tc.Logger.Debugf("Indicator registered: %s", name)
	return s, nil
}

func (tc *Calculator) requirePeriod(period int) error {
	if period <= 0 {
		return fmt.Errorf("period must be positive, got %d", period)
	}
	if tc.Len() < period {
		return fmt.Errorf("need at least %d bars, have %d", period, tc.Len())
	}
	return nil
}

// SMA 简单移动平均
func (tc *Calculator) SMA(period int) (*Series, error) {
	return tc.I(fmt.Sprintf("SMA(%d)", period), func() ([]float64, error) {
		if err := tc.requirePeriod(period); err != nil {
			return nil, err
		}
		return talib.Sma(tc.Close, period), nil
	})
}

// EMA 指数移动平均
func (tc *Calculator) EMA(period int) (*Series, error) {
	return tc.I(fmt.Sprintf("EMA(%d)", period), func() ([]float64, error) {
		if err := tc.requirePeriod(period); err != nil {
			return nil, err
		}
		return talib.Ema(tc.Close, period), nil
	})
}

// RSI 相对强弱指数
func (tc *Calculator) RSI(period int) (*Series, error) {
	return tc.I(fmt.Sprintf("RSI(%d)", period), func() ([]float64, error) {
		if err := tc.requirePeriod(period + 1); err != nil {
			return nil, err
		}
		return talib.Rsi(tc.Close, period), nil
	})
}

// ATR 平均真实波动范围
func (tc *Calculator) ATR(period int) (*Series, error) {
	return tc.I(fmt.Sprintf("ATR(%d)", period), func() ([]float64, error) {
		if err := tc.requirePeriod(period + 1); err != nil {
			return nil, err
		}
		return talib.Atr(tc.High, tc.Low, tc.Close, period), nil
	})
}

// BBands 布林带，返回上轨、中轨、下轨
func (tc *Calculator) BBands(period int, dev float64) (upper, middle, lower *Series, err error) {
	if err := tc.requirePeriod(period); err != nil {
		return nil, nil, nil, &IndicatorError{Name: fmt.Sprintf("BBands(%d)", period), Err: err}
	}
	up, mid, dn := talib.BBands(tc.Close, period, dev, dev, talib.SMA)
	if upper, err = tc.I(fmt.Sprintf("BBandsUp(%d)", period), func() ([]float64, error) { return up, nil }); err != nil {
		return nil, nil, nil, err
	}
	if middle, err = tc.I(fmt.Sprintf("BBandsMid(%d)", period), func() ([]float64, error) { return mid, nil }); err != nil {
		return nil, nil, nil, err
	}
	if lower, err = tc.I(fmt.Sprintf("BBandsDn(%d)", period), func() ([]float64, error) { return dn, nil }); err != nil {
		return nil, nil, nil, err
	}
	return upper, middle, lower, nil
}

// MACD 返回 MACD 线与柱状图
func (tc *Calculator) MACD(fast, slow, signal int) (macd, hist *Series, err error) {
	name := fmt.Sprintf("MACD(%d,%d,%d)", fast, slow, signal)
	if err := tc.requirePeriod(slow + signal); err != nil {
		return nil, nil, &IndicatorError{Name: name, Err: err}
	}
	line, _, h := talib.Macd(tc.Close, fast, slow, signal)
	if macd, err = tc.I(name, func() ([]float64, error) { return line, nil }); err != nil {
		return nil, nil, err
	}
	if hist, err = tc.I(name+".hist", func() ([]float64, error) { return h, nil }); err != nil {
		return nil, nil, err
	}
	return macd, hist, nil
}
