package backtest

import (
	"klinefetch/internal/market"

	"github.com/markcheno/go-talib"
	"github.com/shopspring/decimal"
)

type bars struct {
	ts    []int64
	high  []float64
	low   []float64
	close []float64

	emaFast []float64
	emaSlow []float64
	atr     []float64
	rsi     []float64
}

func floatOf(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

// newBars 计算回放所需指标。ATR 为 TR 的简单均值，RSI 为 Wilder 平滑。
func newBars(series market.Series, cfg Config) *bars {
	n := len(series)
	b := &bars{
		ts:    make([]int64, n),
		high:  make([]float64, n),
		low:   make([]float64, n),
		close: make([]float64, n),
	}
	for i, c := range series {
		b.ts[i] = c.OpenTime
		b.high[i] = floatOf(c.High)
		b.low[i] = floatOf(c.Low)
		b.close[i] = floatOf(c.Close)
	}
	b.emaFast = talib.Ema(b.close, cfg.EMAFast)
	b.emaSlow = talib.Ema(b.close, cfg.EMASlow)
	b.atr = talib.Sma(talib.TRange(b.high, b.low, b.close), cfg.ATRPeriod)
	b.rsi = talib.Rsi(b.close, cfg.RSIPeriod)
	return b
}

// warmup 返回第一根所有指标都有效的下标。TR[0] 缺前收盘价，ATR 窗口需避开它。
func warmup(cfg Config) int {
	return max(cfg.EMAFast-1, cfg.EMASlow-1, cfg.ATRPeriod, cfg.RSIPeriod)
}

func (b *bars) trend(i int) int {
	switch {
	case b.emaFast[i] > b.emaSlow[i]:
		return 1
	case b.emaFast[i] < b.emaSlow[i]:
		return -1
	}
	return 0
}
