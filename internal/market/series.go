package market

import "sort"

// Series 是同一 (instrument, timeframe) 的 K 线序列，按 OpenTime 严格递增。
type Series []Candle

// First/Last 在空序列上返回零值。
func (s Series) First() Candle {
	if len(s) == 0 {
		return Candle{}
	}
	return s[0]
}

func (s Series) Last() Candle {
	if len(s) == 0 {
		return Candle{}
	}
	return s[len(s)-1]
}

// Closes 返回收盘价序列。
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.CloseFloat()
	}
	return out
}

// Increasing 报告序列是否严格递增。
func (s Series) Increasing() bool {
	for i := 1; i < len(s); i++ {
		if s[i].OpenTime <= s[i-1].OpenTime {
			return false
		}
	}
	return true
}

// SortAscending 原地按 OpenTime 升序排序（稳定排序，保留同一时间戳的相对顺序）。
func SortAscending(rows []Candle) {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].OpenTime < rows[j].OpenTime })
}

// Reverse 原地翻转。
func Reverse(rows []Candle) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}

// Merge 以时间戳为键合并 base 与若干 pages，同一时间戳后写入者覆盖前者，结果升序。
// 输出长度等于所有输入中不同时间戳的个数。
func Merge(base Series, pages ...[]Candle) Series {
	total := len(base)
	for _, p := range pages {
		total += len(p)
	}
	byTS := make(map[int64]Candle, total)
	for _, c := range base {
		byTS[c.OpenTime] = c
	}
	for _, p := range pages {
		for _, c := range p {
			byTS[c.OpenTime] = c
		}
	}
	out := make(Series, 0, len(byTS))
	for _, c := range byTS {
		out = append(out, c)
	}
	SortAscending(out)
	return out
}

// Accumulator 在翻页过程中增量合并，最后一次性排序输出。
type Accumulator struct {
	rows map[int64]Candle
}

func NewAccumulator() *Accumulator {
	return &Accumulator{rows: make(map[int64]Candle)}
}

// Add 合并一页并返回新出现的时间戳数量。
func (a *Accumulator) Add(page []Candle) int {
	added := 0
	for _, c := range page {
		if _, ok := a.rows[c.OpenTime]; !ok {
			added++
		}
		a.rows[c.OpenTime] = c
	}
	return added
}

func (a *Accumulator) Len() int { return len(a.rows) }

// Series 返回升序序列的副本。
func (a *Accumulator) Series() Series {
	out := make(Series, 0, len(a.rows))
	for _, c := range a.rows {
		out = append(out, c)
	}
	SortAscending(out)
	return out
}
