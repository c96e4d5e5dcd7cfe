// Package text 提供日志与错误信息用的字符串裁剪。
package text

import (
	"strings"
	"unicode/utf8"
)

// Truncate 去掉首尾空白后按字节上限截断，不会切断多字节字符。
func Truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
