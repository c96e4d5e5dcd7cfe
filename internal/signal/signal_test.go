package signal

import (
	"testing"

	"klinefetch/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesFrom(closes func(i int) float64, n int) market.Series {
	out := make(market.Series, n)
	for i := range out {
		c := decimal.NewFromFloat(closes(i))
		out[i] = market.Candle{OpenTime: int64(i) * 900000, Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestEvaluateUptrendTradeable(t *testing.T) {
	s := seriesFrom(func(i int) float64 { return 1000 + float64(i)*2 }, 300)
	sig, err := Evaluate(s, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, Long, sig.Direction)
	assert.True(t, sig.Tradeable, sig.Summary())
	assert.Greater(t, sig.SlopePct, 0.0)
	assert.Equal(t, s.Last().OpenTime, sig.Time)
}

func TestEvaluateDowntrend(t *testing.T) {
	s := seriesFrom(func(i int) float64 { return 3000 - float64(i)*2 }, 300)
	sig, err := Evaluate(s, DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, Short, sig.Direction)
	assert.True(t, sig.Tradeable, sig.Summary())
}

func TestEvaluateFlatNotTradeable(t *testing.T) {
	s := seriesFrom(func(int) float64 { return 2000 }, 300)
	sig, err := Evaluate(s, DefaultParams())
	require.NoError(t, err)
	assert.False(t, sig.Tradeable)
	assert.NotEmpty(t, sig.Reasons)
	assert.Equal(t, "flat/false", sig.State())
}

func TestEvaluateNeedsEnoughBars(t *testing.T) {
	p := DefaultParams()
	_, err := Evaluate(seriesFrom(func(int) float64 { return 1 }, p.MinBars()-1), p)
	assert.Error(t, err)
	assert.Equal(t, 148, p.MinBars())
}
