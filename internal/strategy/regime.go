package strategy

// MarketState 市场状态
type MarketState string

const (
	// 趋势模式 (Up or Down)
	StateStrongUpTrend   MarketState = "STRONG_UP_TREND"
	StateStrongDownTrend MarketState = "STRONG_DOWN_TREND"

	// 震荡模式
	StateHighVolRanging MarketState = "HIGH_VOL_RANGING"
	StateLowVolRanging  MarketState = "LOW_VOL_RANGING"

	// 指标未就绪
	StateInitial MarketState = "INITIALIZING"
)

// RegimeDetector 根据 MA/RSI/ATR 判断市场状态
type RegimeDetector struct {
	TrendThreshold  float64 // RSI 超过该值 (或低于 100-该值) 视为强趋势
	ATRVolThreshold float64 // ATR/价格 超过该值视为高波动
}

func NewRegimeDetector() *RegimeDetector {
	return &RegimeDetector{
		TrendThreshold:  60.0,
		ATRVolThreshold: 0.0005,
	}
}

// Detect 用最新的收盘价、均线、RSI、ATR 判断状态
func (rd *RegimeDetector) Detect(price, ma, rsi, atr float64) MarketState {
	if price <= 0 || ma <= 0 || rsi <= 0 {
		return StateInitial
	}

	if price > ma && rsi >= rd.TrendThreshold {
		return StateStrongUpTrend
	}
	if price < ma && rsi <= 100-rd.TrendThreshold {
		return StateStrongDownTrend
	}

	// 非趋势状态按百分比波动率归类
	if atr/price >= rd.ATRVolThreshold {
		return StateHighVolRanging
	}
	return StateLowVolRanging
}
