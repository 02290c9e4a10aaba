package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// intervalUnits K 线周期单位，按从大到小排列
var intervalUnits = []struct {
	suffix string
	unit   time.Duration
}{
	{"d", 24 * time.Hour},
	{"h", time.Hour},
	{"m", time.Minute},
	{"s", time.Second},
}

// StringToFloat 解析 CSV 单元格中的数字，忽略首尾空白
func StringToFloat(s string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(s), 64)
}

// FormatInterval 聚合出的 K 线周期写回 Bar.Interval，取能整除的最大单位，如 4h、15m、1d
func FormatInterval(d time.Duration) string {
	for _, u := range intervalUnits {
		if d >= u.unit && d%u.unit == 0 {
			return fmt.Sprintf("%d%s", d/u.unit, u.suffix)
		}
	}
	return d.String()
}

// ParseIntervalDuration 解析配置里的 Backtest.Interval，只接受正整数加单位
func ParseIntervalDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid interval format: %s", s)
	}
	for _, u := range intervalUnits {
		value, ok := strings.CutSuffix(s, u.suffix)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(value)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid interval value: %s", value)
		}
		return time.Duration(n) * u.unit, nil
	}
	return 0, fmt.Errorf("unsupported interval unit: %s", s[len(s)-1:])
}
