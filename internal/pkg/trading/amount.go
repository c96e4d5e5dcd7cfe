// Package trading 提供仓位数量计算。
package trading

// CloseAmount 返回按比例平仓的数量，结果不超过当前持仓。
func CloseAmount(current, ratio float64) float64 {
	if current <= 0 || ratio <= 0 {
		return 0
	}
	return min(current*ratio, current)
}
