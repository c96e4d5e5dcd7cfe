package backtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBarsATRIsMeanTrueRange(t *testing.T) {
	series := waveSeries(400)
	cfg := DefaultConfig()
	b := newBars(series, cfg)
	require.Len(t, b.atr, len(series))
	require.Len(t, b.rsi, len(series))

	i := warmup(cfg)
	sum := 0.0
	for k := i - cfg.ATRPeriod + 1; k <= i; k++ {
		h, l, pc := b.high[k], b.low[k], b.close[k-1]
		sum += math.Max(h-l, math.Max(math.Abs(h-pc), math.Abs(l-pc)))
	}
	assert.InDelta(t, sum/float64(cfg.ATRPeriod), b.atr[i], 1e-6)
	assert.Greater(t, b.atr[i], 0.0)
	assert.NotZero(t, b.trend(i))
}
