package utils

import "fmt"

func FormatFloat(val float64) string {
	if val == 0 {
		return "0"
	}
	return fmt.Sprintf("%.4f", val)
}

// FormatPercent 把小数比例格式化为带符号百分比，0.0123 -> "+1.23%"。
func FormatPercent(val float64) string {
	return fmt.Sprintf("%+.2f%%", val*100)
}

func FormatRatio(val float64) string {
	return fmt.Sprintf("%.2f%%", val*100)
}
