package ta

// Crossover 判断 a 是否在最新一根上穿 b
func Crossover(a, b []float64) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	return a[len(a)-2] < b[len(b)-2] && a[len(a)-1] > b[len(b)-1]
}

// Cross 判断 a 与 b 在最新一根是否发生交叉 (任意方向)
func Cross(a, b []float64) bool {
	return Crossover(a, b) || Crossover(b, a)
}

// Constant 生成长度为 n 的常数序列，用于与阈值比较
func Constant(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}
