package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"klinefetch/internal/export"
	"klinefetch/internal/gateway/notifier"
	"klinefetch/internal/market"
	"klinefetch/internal/signal"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tf15 = market.MustTimeframe("15m")

type fakeCollector struct {
	mu      sync.Mutex
	windows []market.Window
	slope   float64
	err     error
}

func (f *fakeCollector) Collect(_ context.Context, w market.Window) (export.Report, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, w)
	if f.err != nil {
		return export.Report{}, f.err
	}
	var rows market.Series
	i := 0
	for ts := w.Start; ts < w.End; ts += tf15.Millis() {
		c := decimal.NewFromFloat(2000 + f.slope*float64(i))
		rows = append(rows, market.Candle{OpenTime: ts, Open: c, High: c, Low: c, Close: c})
		i++
	}
	return export.Report{Source: "okx", Rows: rows}, nil
}

type recordingNotifier struct {
	msgs []notifier.StructuredMessage
}

func (r *recordingNotifier) SendText(context.Context, string) error { return nil }
func (r *recordingNotifier) Send(_ context.Context, m notifier.StructuredMessage) error {
	r.msgs = append(r.msgs, m)
	return nil
}

func TestTickNotifiesOnStateChangeOnly(t *testing.T) {
	col := &fakeCollector{slope: 2}
	n := &recordingNotifier{}
	p := New(col, n, "ETH/USDT", tf15, Settings{Params: signal.DefaultParams(), LookbackBars: 300})

	closeAt := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)
	sig, err := p.Tick(context.Background(), closeAt)
	require.NoError(t, err)
	assert.True(t, sig.Tradeable)
	require.Len(t, n.msgs, 1)
	assert.Contains(t, n.msgs[0].Title, "可交易")

	_, err = p.Tick(context.Background(), closeAt.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Len(t, n.msgs, 1)

	col.slope = 0
	sig, err = p.Tick(context.Background(), closeAt.Add(30*time.Minute))
	require.NoError(t, err)
	assert.False(t, sig.Tradeable)
	assert.Len(t, n.msgs, 2)

	require.Len(t, col.windows, 3)
	w := col.windows[0]
	assert.Equal(t, closeAt.UnixMilli(), w.End)
	assert.Equal(t, int64(300), tf15.ExpectedCandles(w))
}

func TestTickNotifyEveryTickAndErrors(t *testing.T) {
	col := &fakeCollector{slope: 1}
	n := &recordingNotifier{}
	p := New(col, n, "ETH/USDT", tf15, Settings{Params: signal.DefaultParams(), NotifyEveryTick: true})
	closeAt := time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC)

	_, err := p.Tick(context.Background(), closeAt)
	require.NoError(t, err)
	_, err = p.Tick(context.Background(), closeAt.Add(15*time.Minute))
	require.NoError(t, err)
	assert.Len(t, n.msgs, 2)
	// lookback 被抬高到信号所需的最少根数
	assert.Equal(t, int64(signal.DefaultParams().MinBars()), tf15.ExpectedCandles(col.windows[0]))

	col.err = errors.New("no source")
	_, err = p.Tick(context.Background(), closeAt)
	assert.Error(t, err)
	assert.Len(t, n.msgs, 2)
}

func TestUpdateSettings(t *testing.T) {
	col := &fakeCollector{slope: 2}
	p := New(col, nil, "ETH/USDT", tf15, Settings{Params: signal.DefaultParams(), LookbackBars: 300})
	params := signal.DefaultParams()
	params.Fast, params.Slow = 10, 20
	p.UpdateSettings(Settings{Params: params, LookbackBars: 50})

	_, err := p.Tick(context.Background(), time.Date(2024, 1, 1, 10, 15, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(50), tf15.ExpectedCandles(col.windows[0]))
}
