package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"crypto-backtester/internal/model"
	"crypto-backtester/internal/service"

	"github.com/araddon/dateparse"
)

var ErrNoRows = errors.New("data: no rows")

var timeColumns = []string{"time", "timestamp", "date", "datetime", "open_time"}

// header 列名统一转成小写后的下标
type header map[string]int

func parseHeader(row []string) header {
	h := make(header, len(row))
	for i, name := range row {
		h[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return h
}

func (h header) index(names ...string) (int, bool) {
	for _, name := range names {
		if i, ok := h[name]; ok {
			return i, true
		}
	}
	return 0, false
}

func (h header) require(names ...string) (int, error) {
	i, ok := h.index(names...)
	if !ok {
		return 0, fmt.Errorf("data: missing column %q", names[0])
	}
	return i, nil
}

// ParseTime 解析时间列，支持常见日期格式与秒/毫秒时间戳
func ParseTime(s string) (time.Time, error) {
	t, err := dateparse.ParseIn(strings.TrimSpace(s), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("data: invalid time %q: %w", s, err)
	}
	return t.UTC(), nil
}

// LoadBarsFile 从 CSV 文件读取 K 线
func LoadBarsFile(path, symbol string) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadBars(f, symbol)
}

// ReadBars 读取 OHLC(V) CSV，列名不区分大小写，结果按时间升序
func ReadBars(r io.Reader, symbol string) ([]model.Bar, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("data: read header: %w", err)
	}
	h := parseHeader(first)

	cols := make(map[string]int)
	for _, names := range [][]string{timeColumns, {"open"}, {"high"}, {"low"}, {"close"}} {
		i, err := h.require(names...)
		if err != nil {
			return nil, err
		}
		cols[names[0]] = i
	}
	volumeCol, hasVolume := h.index("volume", "vol")

	var bars []model.Bar
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("data: line %d: %w", line, err)
		}

		bar := model.Bar{Symbol: symbol}
		if bar.Time, err = ParseTime(row[cols["time"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		fields := []struct {
			col string
			dst *float64
		}{
			{"open", &bar.Open}, {"high", &bar.High}, {"low", &bar.Low}, {"close", &bar.Close},
		}
		for _, f := range fields {
			if *f.dst, err = service.StringToFloat(row[cols[f.col]]); err != nil {
				return nil, fmt.Errorf("data: line %d column %s: %w", line, f.col, err)
			}
		}
		if hasVolume {
			if bar.Volume, err = service.StringToFloat(row[volumeCol]); err != nil {
				return nil, fmt.Errorf("data: line %d column volume: %w", line, err)
			}
		}
		bars = append(bars, bar)
	}
	if len(bars) == 0 {
		return nil, ErrNoRows
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	for i := 1; i < len(bars); i++ {
		if !bars[i].Time.After(bars[i-1].Time) {
			return nil, fmt.Errorf("data: duplicate bar time %s", bars[i].Time)
		}
	}
	return bars, nil
}

// ReadTicks 读取逐笔成交 CSV (time/timestamp, price, volume)
func ReadTicks(r io.Reader, symbol string) ([]model.Tick, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoRows
	}
	if err != nil {
		return nil, fmt.Errorf("data: read header: %w", err)
	}
	h := parseHeader(first)
	timeCol, err := h.require(timeColumns...)
	if err != nil {
		return nil, err
	}
	priceCol, err := h.require("price")
	if err != nil {
		return nil, err
	}
	volumeCol, hasVolume := h.index("volume", "qty", "size")

	var ticks []model.Tick
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("data: line %d: %w", line, err)
		}

		ts, err := ParseTime(row[timeCol])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		tick := model.Tick{Symbol: symbol, Timestamp: ts.UnixMilli()}
		if tick.Price, err = service.StringToFloat(row[priceCol]); err != nil {
			return nil, fmt.Errorf("data: line %d column price: %w", line, err)
		}
		if hasVolume {
			if tick.Volume, err = service.StringToFloat(row[volumeCol]); err != nil {
				return nil, fmt.Errorf("data: line %d column volume: %w", line, err)
			}
		}
		ticks = append(ticks, tick)
	}
	if len(ticks) == 0 {
		return nil, ErrNoRows
	}
	sort.SliceStable(ticks, func(i, j int) bool { return ticks[i].Timestamp < ticks[j].Timestamp })
	return ticks, nil
}

// LoadTicksFile 读取成交 CSV 并按 interval 聚合成 K 线
func LoadTicksFile(path, symbol string, interval time.Duration) ([]model.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ticks, err := ReadTicks(f, symbol)
	if err != nil {
		return nil, err
	}
	return AggregateTicks(ticks, symbol, interval), nil
}
