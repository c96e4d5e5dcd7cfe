package backtest

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"klinefetch/internal/export"
	"klinefetch/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bar15m = int64(15 * time.Minute / time.Millisecond)

// hlc 是测试用的单根 K 线 (high, low, close)。
type hlc [3]float64

func newTestSim(equity float64, rows []hlc, atr float64) *simulator {
	cfg := DefaultConfig()
	b := &bars{}
	for i, r := range rows {
		b.ts = append(b.ts, int64(i)*bar15m)
		b.high = append(b.high, r[0])
		b.low = append(b.low, r[1])
		b.close = append(b.close, r[2])
		b.atr = append(b.atr, atr)
		b.emaFast = append(b.emaFast, 0)
		b.emaSlow = append(b.emaSlow, 0)
		b.rsi = append(b.rsi, 50)
	}
	return &simulator{cfg: cfg, b: b, equity: equity}
}

func longPosition(entry, size, margin float64) position {
	return position{open: true, dir: 1, entry: entry, size: size, margin: margin, peak: entry}
}

func TestATRStopFillsAtStopPrice(t *testing.T) {
	sim := newTestSim(100, []hlc{{101, 92, 95}}, 2)
	sim.pos = longPosition(100, 1, 20)

	sim.step(0)

	require.Len(t, sim.trades, 1)
	tr := sim.trades[0]
	assert.Equal(t, ReasonStop, tr.Reason)
	assert.InDelta(t, 93.0, tr.ExitPrice, 1e-9)
	assert.InDelta(t, -7-93*0.0007, tr.PnL, 1e-9)
	require.NotNil(t, sim.lastWin)
	assert.False(t, *sim.lastWin)
	assert.False(t, sim.pos.open)
	assert.Equal(t, 2.5, sim.atrMult())
}

func TestPartialTakeProfitOnlyOnce(t *testing.T) {
	sim := newTestSim(20, []hlc{{111, 109, 110}, {111, 109, 110}}, 1)
	sim.pos = longPosition(100, 1, 20)

	sim.step(0)
	require.Len(t, sim.trades, 1)
	tp := sim.trades[0]
	assert.Equal(t, ReasonPartialTP, tp.Reason)
	assert.InDelta(t, 110.0, tp.ExitPrice, 1e-9)
	assert.InDelta(t, 5-0.5*110*0.0007, tp.PnL, 1e-9)
	assert.InDelta(t, 10.0, tp.Margin, 1e-9)
	assert.InDelta(t, 0.5, sim.pos.size, 1e-9)
	assert.True(t, sim.pos.open)

	sim.step(1)
	assert.Len(t, sim.trades, 1)
	assert.True(t, sim.pos.open)
}

func TestTrailingStopAfterTrigger(t *testing.T) {
	// 峰值 109 → 移动止损 106.82，高于 ATR 止损。
	sim := newTestSim(20, []hlc{{109, 106, 107}}, 1)
	sim.pos = longPosition(100, 1, 20)

	sim.step(0)

	require.Len(t, sim.trades, 1)
	assert.Equal(t, ReasonStop, sim.trades[0].Reason)
	assert.InDelta(t, 109*0.98, sim.trades[0].ExitPrice, 1e-9)
	require.NotNil(t, sim.lastWin)
	assert.True(t, *sim.lastWin)
	assert.Equal(t, 3.8, sim.atrMult())
}

func TestScaleInThenDrawdownExit(t *testing.T) {
	sim := newTestSim(100, []hlc{{106, 105, 105.5}, {105, 100, 101}}, 0.1)
	sim.pos = longPosition(100, 1, 20)

	sim.step(0)
	require.True(t, sim.pos.scaledIn)
	assert.InDelta(t, 75.0, sim.pos.margin, 1e-9)
	addSize := 55 * 5 / 105.5
	assert.InDelta(t, 1+addSize, sim.pos.size, 1e-9)
	assert.InDelta(t, 375/(1+addSize), sim.pos.entry, 1e-9)
	assert.Empty(t, sim.trades)

	sim.step(1)
	require.Len(t, sim.trades, 1)
	assert.Equal(t, ReasonScaleInDD, sim.trades[0].Reason)
	assert.InDelta(t, 101.0, sim.trades[0].ExitPrice, 1e-9)
	assert.False(t, sim.pos.open)
}

func TestShortStopMirrorsLong(t *testing.T) {
	sim := newTestSim(100, []hlc{{108, 99, 104}}, 2)
	sim.pos = position{open: true, dir: -1, entry: 100, size: 1, margin: 20, peak: 100}

	sim.step(0)

	require.Len(t, sim.trades, 1)
	assert.InDelta(t, 107.0, sim.trades[0].ExitPrice, 1e-9)
	assert.InDelta(t, -7-107*0.0007, sim.trades[0].PnL, 1e-9)
}

func TestOpenRequiresRSIConfirmation(t *testing.T) {
	sim := newTestSim(50, []hlc{{101, 99, 100}, {101, 99, 100}}, 1)
	for i := range sim.b.close {
		sim.b.emaFast[i], sim.b.emaSlow[i] = 101, 100
	}
	sim.b.rsi[0], sim.b.rsi[1] = 50, 60

	sim.step(0)
	assert.False(t, sim.pos.open)

	sim.step(1)
	require.True(t, sim.pos.open)
	assert.Equal(t, 1, sim.pos.dir)
	assert.InDelta(t, 25.0, sim.pos.margin, 1e-9)
	assert.InDelta(t, 1.25, sim.pos.size, 1e-9)
	require.Len(t, sim.trades, 1)
	assert.Equal(t, ReasonOpen, sim.trades[0].Reason)
	assert.InDelta(t, 50-125*0.0007, sim.equity, 1e-9)
}

func TestSummarizeCountsClosedTradesOnly(t *testing.T) {
	trades := []Trade{
		{Reason: ReasonOpen, PnL: -0.1, EquityAfter: 49.9},
		{Reason: ReasonPartialTP, PnL: 3, EquityAfter: 52.9},
		{Reason: ReasonStop, PnL: -5.9, EquityAfter: 47},
		{Reason: ReasonOpen, PnL: -0.1, EquityAfter: 46.9},
		{Reason: ReasonScaleInDD, PnL: 0, EquityAfter: 46.9},
	}
	st := summarize(trades, 50, 46.9)

	assert.Equal(t, 3, st.Trades)
	assert.Equal(t, 1, st.Wins)
	assert.Equal(t, 1, st.Losses)
	assert.Equal(t, 1, st.Flats)
	assert.InDelta(t, 1.0/3, st.WinRate, 1e-9)
	assert.InDelta(t, -2.9, st.TotalPnL, 1e-9)
	assert.InDelta(t, (52.9-46.9)/52.9, st.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, -3.1/50, st.ReturnPct, 1e-9)
}

func waveSeries(n int) market.Series {
	out := make(market.Series, n)
	for i := range out {
		mid := 2000 + 400*math.Sin(float64(i)/90) + 30*math.Sin(float64(i)/7)
		d := func(v float64) decimal.Decimal { return decimal.NewFromFloat(math.Round(v*100) / 100) }
		out[i] = market.Candle{
			OpenTime: int64(i) * bar15m,
			Open:     d(mid - 1),
			High:     d(mid + 6),
			Low:      d(mid - 6),
			Close:    d(mid),
			Volume:   decimal.NewFromInt(10),
		}
	}
	return out
}

func TestRunEquityMatchesTradeLedger(t *testing.T) {
	series := waveSeries(3000)
	res, err := Run(context.Background(), series, Config{})
	require.NoError(t, err)

	sum := res.Config.InitialEquity
	for _, tr := range res.Trades {
		sum += tr.PnL
	}
	assert.InDelta(t, res.Stats.FinalEquity, sum, 1e-6)
	assert.NotEmpty(t, res.Trades)
	assert.Equal(t, 3000-warmup(res.Config), res.Stats.Rows)
	assert.Equal(t, series.Last().Time(), res.Stats.To)
}

func TestRunRejectsShortOrUnsortedInput(t *testing.T) {
	_, err := Run(context.Background(), waveSeries(100), Config{})
	assert.Error(t, err)

	series := waveSeries(400)
	series[10], series[11] = series[11], series[10]
	_, err = Run(context.Background(), series, Config{})
	assert.Error(t, err)
}

func TestRunHonorsCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, waveSeries(3000), Config{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunFileAndRender(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eth.csv")
	require.NoError(t, export.WriteCSV(path, waveSeries(2000)))

	rep, err := RunFile(context.Background(), path, Config{})
	require.NoError(t, err)
	assert.NotEmpty(t, rep.RunID)

	out := Render(rep, 5)
	assert.Contains(t, out, rep.RunID)
	assert.Contains(t, out, "胜率")
	assert.Contains(t, out, path)
}
