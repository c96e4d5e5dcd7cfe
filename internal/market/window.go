package market

import (
	"fmt"
	"time"
)

// Window 是半开区间 [Start, End)，单位毫秒。
type Window struct {
	Start int64
	End   int64
}

func (w Window) Duration() time.Duration {
	return time.Duration(w.End-w.Start) * time.Millisecond
}

func (w Window) Contains(ts int64) bool {
	return ts >= w.Start && ts < w.End
}

func (w Window) Valid() bool {
	return w.End > w.Start
}

// Clip 过滤窗口外的 K 线，保持原顺序。
func (w Window) Clip(rows []Candle) []Candle {
	out := rows[:0:0]
	for _, c := range rows {
		if w.Contains(c.OpenTime) {
			out = append(out, c)
		}
	}
	return out
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)",
		time.UnixMilli(w.Start).UTC().Format(time.RFC3339),
		time.UnixMilli(w.End).UTC().Format(time.RFC3339))
}

// Direction 是翻页方向。
type Direction int

const (
	// Backward 从窗口末端往历史方向翻页。
	Backward Direction = iota
	// Forward 从窗口起点按固定步长往当前方向翻页。
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

// Advanced 判断 next 是否严格越过 prev。
func (d Direction) Advanced(prev, next int64) bool {
	if d == Forward {
		return next > prev
	}
	return next < prev
}

// PageOrder 是交易所单页原始行的时间顺序。
type PageOrder int

const (
	Ascending PageOrder = iota
	Descending
)

func (o PageOrder) String() string {
	if o == Descending {
		return "desc"
	}
	return "asc"
}
