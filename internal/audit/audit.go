// Package audit 检查导出的 K 线文件：缺口、重复与乱序。
package audit

import (
	"fmt"
	"time"

	"klinefetch/internal/market"

	"github.com/jedib0t/go-pretty/v6/table"
)

// Gap 表示缺失的连续 K 线区间（From/To 为缺失 bar 的开始时间，闭区间）。
type Gap struct {
	From  int64 `json:"from"`
	To    int64 `json:"to"`
	Count int64 `json:"count"`
}

// Report 描述文件相对窗口的完整性。
type Report struct {
	Window     market.Window `json:"window"`
	Expected   int64         `json:"expected"`
	Present    int64         `json:"present"`
	Rows       int           `json:"rows"`
	Duplicates int           `json:"duplicates"`
	OutOfOrder int           `json:"out_of_order"`
	Misaligned int           `json:"misaligned"`
	Gaps       []Gap         `json:"gaps"`
}

func (r Report) Missing() int64 {
	var n int64
	for _, g := range r.Gaps {
		n += g.Count
	}
	return n
}

// Clean 表示没有重复与乱序；缺口本身不算错误。
func (r Report) Clean() bool { return r.Duplicates == 0 && r.OutOfOrder == 0 }

// Check 按文件原始顺序统计重复/乱序，再在去重升序后的时间轴上找缺口。
// 窗口无效时用首尾行推导 [first, last+bar)。
func Check(rows []market.Candle, tf market.Timeframe, w market.Window) Report {
	rep := Report{Rows: len(rows)}
	step := tf.Millis()

	seen := make(map[int64]struct{}, len(rows))
	for i, c := range rows {
		if _, dup := seen[c.OpenTime]; dup {
			rep.Duplicates++
		}
		seen[c.OpenTime] = struct{}{}
		if i > 0 && c.OpenTime < rows[i-1].OpenTime {
			rep.OutOfOrder++
		}
		if tf.AlignDown(c.OpenTime) != c.OpenTime {
			rep.Misaligned++
		}
	}

	series := market.Merge(nil, rows)
	if !w.Valid() {
		if len(series) == 0 {
			return rep
		}
		w = market.Window{Start: series.First().OpenTime, End: series.Last().OpenTime + step}
	}
	rep.Window = w
	rep.Expected = tf.ExpectedCandles(w)
	if rep.Expected <= 0 {
		return rep
	}

	cursor := w.Start
	for _, c := range series {
		if !w.Contains(c.OpenTime) {
			continue
		}
		rep.Present++
		if c.OpenTime > cursor {
			missing := (c.OpenTime - cursor) / step
			if missing > 0 {
				rep.Gaps = append(rep.Gaps, Gap{From: cursor, To: cursor + (missing-1)*step, Count: missing})
			}
		}
		if next := c.OpenTime + step; next > cursor {
			cursor = next
		}
	}
	if last := w.Start + rep.Expected*step; cursor < last {
		missing := (last - cursor) / step
		rep.Gaps = append(rep.Gaps, Gap{From: cursor, To: cursor + (missing-1)*step, Count: missing})
	}
	return rep
}

// Render 输出汇总表和（最多 limit 条）缺口明细。
func Render(rep Report, limit int) string {
	summary := table.NewWriter()
	summary.SetStyle(table.StyleLight)
	summary.SetTitle("K 线完整性")
	summary.AppendHeader(table.Row{"窗口", "期望", "实际", "缺失", "缺口", "重复", "乱序", "未对齐"})
	summary.AppendRow(table.Row{
		rep.Window.String(), rep.Expected, rep.Present, rep.Missing(),
		len(rep.Gaps), rep.Duplicates, rep.OutOfOrder, rep.Misaligned,
	})
	out := summary.Render()
	if len(rep.Gaps) == 0 {
		return out
	}

	gaps := table.NewWriter()
	gaps.SetStyle(table.StyleLight)
	gaps.AppendHeader(table.Row{"#", "从", "到", "根数"})
	for i, g := range rep.Gaps {
		if limit > 0 && i >= limit {
			gaps.AppendFooter(table.Row{"", "", fmt.Sprintf("另有 %d 个缺口", len(rep.Gaps)-limit), ""})
			break
		}
		gaps.AppendRow(table.Row{i + 1, formatTS(g.From), formatTS(g.To), g.Count})
	}
	return out + "\n" + gaps.Render()
}

func formatTS(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339)
}
