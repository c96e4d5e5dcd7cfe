package backtest

import (
	"context"
	"fmt"

	"klinefetch/internal/export"
	"klinefetch/internal/market"
	"klinefetch/internal/pkg/utils"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
)

// Replay 是一次基于 CSV 文件的回放。
type Replay struct {
	RunID  string
	Input  string
	Result Result
}

// LoadSeries 读取导出的 CSV，去重后按时间升序返回。
func LoadSeries(path string) (market.Series, error) {
	rows, err := export.ReadCSV(path)
	if err != nil {
		return nil, err
	}
	series := market.Merge(nil, rows)
	if dup := len(rows) - len(series); dup > 0 {
		log.Warnf("%s 含 %d 根重复时间戳，已按后写覆盖", path, dup)
	}
	return series, nil
}

// RunFile 加载 CSV 并回放。
func RunFile(ctx context.Context, path string, cfg Config) (Replay, error) {
	series, err := LoadSeries(path)
	if err != nil {
		return Replay{}, fmt.Errorf("加载 %s 失败: %w", path, err)
	}
	res, err := Run(ctx, series, cfg)
	if err != nil {
		return Replay{}, err
	}
	return Replay{RunID: uuid.NewString(), Input: path, Result: res}, nil
}

// Render 输出汇总表，tradeLimit>0 时追加最近若干笔平仓记录。
func Render(r Replay, tradeLimit int) string {
	st := r.Result.Stats
	summary := table.NewWriter()
	summary.SetStyle(table.StyleLight)
	summary.SetTitle(fmt.Sprintf("回测 %s", r.RunID))
	summary.AppendRows([]table.Row{
		{"数据", r.Input},
		{"K 线", st.Rows},
		{"时间范围", fmt.Sprintf("%s -> %s", st.From.Format(market.ISOLayout), st.To.Format(market.ISOLayout))},
		{"平仓笔数", st.Trades},
		{"盈/亏/平", fmt.Sprintf("%d / %d / %d", st.Wins, st.Losses, st.Flats)},
		{"胜率", utils.FormatRatio(st.WinRate)},
		{"总盈亏", utils.FormatFloat(st.TotalPnL)},
		{"平均盈利", utils.FormatFloat(st.AvgWin)},
		{"平均亏损", utils.FormatFloat(st.AvgLoss)},
		{"初始权益", fmt.Sprintf("%.4f", st.InitialEquity)},
		{"最终权益", fmt.Sprintf("%.4f", st.FinalEquity)},
		{"最大回撤", utils.FormatRatio(st.MaxDrawdownPct)},
		{"总收益率", utils.FormatPercent(st.ReturnPct)},
	})
	out := summary.Render()
	if tradeLimit <= 0 {
		return out
	}

	closed := make([]Trade, 0, len(r.Result.Trades))
	for _, t := range r.Result.Trades {
		if t.Closed() {
			closed = append(closed, t)
		}
	}
	if len(closed) == 0 {
		return out
	}
	if len(closed) > tradeLimit {
		closed = closed[len(closed)-tradeLimit:]
	}
	trades := table.NewWriter()
	trades.SetStyle(table.StyleLight)
	trades.AppendHeader(table.Row{"开仓", "平仓", "方向", "入场", "出场", "原因", "盈亏", "权益"})
	for _, t := range closed {
		side := "多"
		if t.Direction < 0 {
			side = "空"
		}
		trades.AppendRow(table.Row{
			t.OpenedAt.Format(market.ISOLayout), t.ClosedAt.Format(market.ISOLayout), side,
			fmt.Sprintf("%.2f", t.EntryPrice), fmt.Sprintf("%.2f", t.ExitPrice), t.Reason,
			utils.FormatFloat(t.PnL), utils.FormatFloat(t.EquityAfter),
		})
	}
	return out + "\n" + trades.Render()
}
