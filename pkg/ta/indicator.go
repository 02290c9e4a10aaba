package ta

import "fmt"

// Series 一条与 K 线逐根对齐的指标序列
type Series struct {
	Name   string
	Values []float64
}

// Len 序列长度
func (s *Series) Len() int { return len(s.Values) }

// Last 返回最新值，序列为空时返回 0
func (s *Series) Last() float64 {
	if len(s.Values) == 0 {
		return 0
	}
	return s.Values[len(s.Values)-1]
}

// Upto 返回前 n 个值 (不含第 n 个)，用于在回测中屏蔽未来数据
func (s *Series) Upto(n int) []float64 {
	if n > len(s.Values) {
		n = len(s.Values)
	}
	if n < 0 {
		n = 0
	}
	return s.Values[:n]
}

// IndicatorError 指标计算失败或形状不匹配
type IndicatorError struct {
	Name string
	Err  error
}

func (e *IndicatorError) Error() string {
	return fmt.Sprintf("indicator %q error: %v", e.Name, e.Err)
}

func (e *IndicatorError) Unwrap() error { return e.Err }

// ShapeError 指标输出长度与 K 线数量不一致
type ShapeError struct {
	Expected int
	Actual   int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("indicators must return a series of the same length as data (data length: %d, indicator length: %d)",
		e.Expected, e.Actual)
}

// Compute 执行指标计算 fn，并校验结果长度等于 length。
// 计算中的 error 或 panic 都会被包装成带指标名称的 IndicatorError。
func Compute(name string, length int, fn func() ([]float64, error)) (s *Series, err error) {
	defer func() {
		if r := recover(); r != nil {
			s = nil
			err = &IndicatorError{Name: name, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	values, err := fn()
	if err != nil {
		return nil, &IndicatorError{Name: name, Err: err}
	}
	if len(values) != length {
		return nil, &IndicatorError{Name: name, Err: &ShapeError{Expected: length, Actual: len(values)}}
	}
	return &Series{Name: name, Values: values}, nil
}
