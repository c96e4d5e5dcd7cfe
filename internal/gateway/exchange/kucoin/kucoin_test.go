package kucoin

import (
	"testing"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQuerySeconds(t *testing.T) {
	tf := market.MustTimeframe("15m")
	a := New("")
	q := a.BuildQuery(exchange.Request{
		Instrument: "ETH-USDT",
		Timeframe:  tf,
		Cursor:     1700000000000,
		Window:     market.Window{Start: 1700000000000, End: 1700000000000 + 4*tf.Millis()},
	})
	assert.Equal(t, "15min", q.Get("type"))
	assert.Equal(t, "ETH-USDT", q.Get("symbol"))
	assert.Equal(t, "1700000000", q.Get("startAt"))
	assert.Equal(t, "1700003599", q.Get("endAt"))
	assert.Empty(t, q.Get("limit"))
}

func TestParseRowsColumnOrder(t *testing.T) {
	a := New("")
	text := `{"code":"200000","data":[["1700000900","2001","2002.5","2003","2000","1.5","3003"]]}`
	data, err := exchange.Classify(text, a.Envelope())
	require.NoError(t, err)
	rows, errs := a.ParseRows(data)
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	c := rows[0]
	assert.Equal(t, int64(1700000900000), c.OpenTime)
	assert.Equal(t, "2001", c.Open.String())
	assert.Equal(t, "2002.5", c.Close.String())
	assert.Equal(t, "2003", c.High.String())
	assert.Equal(t, "2000", c.Low.String())
	assert.True(t, c.Consistent())

	_, err = exchange.Classify(`{"code":"400100","msg":"This pair is not provided at present"}`, a.Envelope())
	assert.Error(t, err)
}

func TestType(t *testing.T) {
	assert.Equal(t, "15min", Type(market.MustTimeframe("15m")))
	assert.Equal(t, "1hour", Type(market.MustTimeframe("1h")))
	assert.Equal(t, "1day", Type(market.MustTimeframe("1d")))
}
