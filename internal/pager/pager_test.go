package pager

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/gateway/exchange/okx"
	"klinefetch/internal/gateway/fetch"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var (
	tf15 = market.MustTimeframe("15m")
	bar  = tf15.Millis()
	t0   = int64(1699999200000)
)

func flatCandle(ts int64) market.Candle {
	p := decimal.NewFromInt(2000)
	return market.Candle{OpenTime: ts, Open: p, High: p, Low: p, Close: p, Volume: decimal.NewFromInt(1)}
}

// fakeAdapter 是正向升序适配器，next 非空时覆盖游标规则。
type fakeAdapter struct {
	order market.PageOrder
	next  func(exchange.Request, []market.Candle) int64
}

func (fakeAdapter) Name() string                           { return "fake" }
func (fakeAdapter) BaseURL() string                        { return "http://fake" }
func (fakeAdapter) Path() string                           { return "/k" }
func (fakeAdapter) Envelope() exchange.Envelope            { return exchange.Envelope{} }
func (fakeAdapter) Direction() market.Direction            { return market.Forward }
func (f fakeAdapter) PageOrder() market.PageOrder          { return f.order }
func (fakeAdapter) MaxLimit() int                          { return 10 }
func (fakeAdapter) BuildQuery(exchange.Request) url.Values { return url.Values{} }
func (fakeAdapter) ParseRows(gjson.Result) ([]market.Candle, []error) {
	return nil, nil
}
func (f fakeAdapter) NextCursor(req exchange.Request, rows []market.Candle) int64 {
	if f.next != nil {
		return f.next(req, rows)
	}
	return exchange.ForwardNext(req, rows)
}

func stridePage(req exchange.Request) []market.Candle {
	var rows []market.Candle
	for ts := req.Cursor; ts < req.StrideEnd(); ts += bar {
		rows = append(rows, flatCandle(ts))
	}
	return rows
}

func TestRunForwardCoversWindow(t *testing.T) {
	p := New(Config{})
	w := market.Window{Start: t0, End: t0 + 25*bar}
	res, err := p.Run(context.Background(), Plan{
		Source:    "fake",
		Adapter:   fakeAdapter{},
		Timeframe: tf15,
		Window:    w,
		Fetch: func(_ context.Context, req exchange.Request) ([]market.Candle, error) {
			return stridePage(req), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StopWindowDone, res.Stop)
	assert.Equal(t, 3, res.Pages)
	require.Len(t, res.Rows, 25)
	assert.True(t, res.Rows.Increasing())
}

func TestRunStopsOnStalledCursor(t *testing.T) {
	p := New(Config{})
	stuck := t0 + bar
	calls := 0
	res, err := p.Run(context.Background(), Plan{
		Source:    "stall",
		Adapter:   fakeAdapter{next: func(exchange.Request, []market.Candle) int64 { return stuck }},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + 100*bar},
		Fetch: func(_ context.Context, req exchange.Request) ([]market.Candle, error) {
			calls++
			return []market.Candle{flatCandle(req.Cursor)}, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StopStalled, res.Stop)
	assert.Equal(t, 2, calls)
	assert.Len(t, res.Rows, 2)
}

func TestRunStopsOnEmptyStreak(t *testing.T) {
	p := New(Config{MaxEmptyPages: 3})
	res, err := p.Run(context.Background(), Plan{
		Source:    "empty",
		Adapter:   fakeAdapter{},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + 1000*bar},
		Fetch: func(context.Context, exchange.Request) ([]market.Candle, error) {
			return nil, nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StopEmptyStreak, res.Stop)
	assert.Equal(t, 4, res.Pages)
	assert.Empty(t, res.Rows)
}

func TestRunStopsAtPageLimit(t *testing.T) {
	p := New(Config{MaxPages: 2})
	res, err := p.Run(context.Background(), Plan{
		Source:    "bounded",
		Adapter:   fakeAdapter{},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + 100*bar},
		Fetch: func(_ context.Context, req exchange.Request) ([]market.Candle, error) {
			return stridePage(req), nil
		},
	})
	require.NoError(t, err)
	assert.Equal(t, StopPageLimit, res.Stop)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, res.Rows, 20)
}

func TestRunSortsPageThatContradictsDeclaredOrder(t *testing.T) {
	p := New(Config{})
	res, err := p.Run(context.Background(), Plan{
		Source:    "liar",
		Adapter:   fakeAdapter{order: market.Ascending},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + 10*bar},
		Fetch: func(_ context.Context, req exchange.Request) ([]market.Candle, error) {
			rows := stridePage(req)
			market.Reverse(rows)
			return rows, nil
		},
	})
	require.NoError(t, err)
	require.Len(t, res.Rows, 10)
	assert.True(t, res.Rows.Increasing())
	assert.Equal(t, StopWindowDone, res.Stop)
}

func TestRunClipsAndCountsInconsistentRows(t *testing.T) {
	bad := flatCandle(t0 + bar)
	bad.High = decimal.NewFromInt(1)
	fetchFn := func(_ context.Context, req exchange.Request) ([]market.Candle, error) {
		return []market.Candle{flatCandle(t0 - bar), flatCandle(t0), bad}, nil
	}
	plan := Plan{
		Source:    "ohlc",
		Adapter:   fakeAdapter{next: func(exchange.Request, []market.Candle) int64 { return t0 + 2*bar }},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + 2*bar},
		Fetch:     fetchFn,
	}

	res, err := New(Config{}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 1, res.Inconsistent)
	assert.Equal(t, 1, res.DroppedRows)

	res, err = New(Config{DropInconsistent: true}).Run(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, res.Rows, 1)
	assert.Equal(t, 2, res.DroppedRows)
}

func TestRunInconsistentRowWarningNamesSource(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	bad := flatCandle(t0)
	bad.Low = decimal.NewFromInt(2100)
	_, err := New(Config{}).Run(context.Background(), Plan{
		Source:    "okx-mirror",
		Adapter:   fakeAdapter{next: func(exchange.Request, []market.Candle) int64 { return t0 + bar }},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + bar},
		Fetch: func(context.Context, exchange.Request) ([]market.Candle, error) {
			return []market.Candle{bad}, nil
		},
	})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "okx-mirror "+bad.ISO()+" OHLC 不一致")
}

func TestRunReturnsFetchError(t *testing.T) {
	boom := errors.New("boom")
	res, err := New(Config{}).Run(context.Background(), Plan{
		Source:    "broken",
		Adapter:   fakeAdapter{},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + 100*bar},
		Fetch: func(_ context.Context, req exchange.Request) ([]market.Candle, error) {
			if req.Cursor > t0 {
				return nil, boom
			}
			return stridePage(req), nil
		},
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, 2, res.Pages)
	assert.Len(t, res.Rows, 10)
}

func TestRunHonorsCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(Config{}).Run(ctx, Plan{
		Source:    "cancelled",
		Adapter:   fakeAdapter{},
		Timeframe: tf15,
		Window:    market.Window{Start: t0, End: t0 + 100*bar},
		Fetch: func(_ context.Context, req exchange.Request) ([]market.Candle, error) {
			return stridePage(req), nil
		},
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunRejectsInvalidPlan(t *testing.T) {
	_, err := New(Config{}).Run(context.Background(), Plan{Source: "x", Adapter: fakeAdapter{}})
	assert.Error(t, err)
}

// okxServer 模拟 OKX candles：after 为游标，每页 300 根，新到旧；
// 第二页额外带上与上一页相邻的边界时间戳。
func okxServer(t *testing.T, start, end int64) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		after, err := strconv.ParseInt(r.URL.Query().Get("after"), 10, 64)
		require.NoError(t, err)
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var rows []string
		if after == end-300*bar {
			rows = append(rows, okxRow(after))
		}
		for ts := after - bar; ts >= start && ts >= after-int64(limit)*bar; ts -= bar {
			rows = append(rows, okxRow(ts))
		}
		fmt.Fprintf(w, `{"code":"0","msg":"","data":[%s]}`, strings.Join(rows, ","))
	}))
}

func okxRow(ts int64) string {
	return fmt.Sprintf(`["%d","2000","2001","1999","2000.5","1.25","2500","2500","1"]`, ts)
}

func TestRunOKXFourPagesEndToEnd(t *testing.T) {
	w := market.Window{Start: t0, End: t0 + 1200*bar}
	srv := okxServer(t, w.Start, w.End)
	defer srv.Close()

	adapter := okx.New(srv.URL, false)
	fetcher := NewRouteFetcher(adapter, exchange.NewResolver(nil), fetch.NewWithHTTPClient(srv.Client()),
		Backoff{MaxAttempts: 1}, nil)

	res, err := New(Config{}).Run(context.Background(), Plan{
		Source:     "okx",
		Adapter:    adapter,
		Fetch:      fetcher.FetchPage,
		Instrument: "ETH-USDT",
		Timeframe:  tf15,
		Window:     w,
		Limit:      300,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Pages)
	assert.Equal(t, StopWindowDone, res.Stop)
	require.Len(t, res.Rows, 1200)
	for i := 1; i < len(res.Rows); i++ {
		require.Equal(t, int64(900000), res.Rows[i].OpenTime-res.Rows[i-1].OpenTime)
	}
	assert.Equal(t, w.Start, res.Rows.First().OpenTime)
	assert.Equal(t, w.End-bar, res.Rows.Last().OpenTime)
}

func TestRouteFallbackFromHTMLToMirror(t *testing.T) {
	var directHits atomic.Int32
	direct := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		directHits.Add(1)
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte("<!DOCTYPE html><html><body>blocked</body></html>"))
	}))
	defer direct.Close()

	w := market.Window{Start: t0, End: t0 + 300*bar}
	mirror := okxServer(t, w.Start, w.End+300*bar)
	defer mirror.Close()

	adapter := okx.New(direct.URL, false)
	resolver := exchange.NewResolver([]exchange.Mirror{{URL: mirror.URL, Mode: exchange.MirrorPrefix}})
	fetcher := NewRouteFetcher(adapter, resolver, fetch.NewWithHTTPClient(&http.Client{}),
		Backoff{MaxAttempts: 2}, nil)
	var slept int
	fetcher.Sleep = func(context.Context, time.Duration) error { slept++; return nil }

	res, err := New(Config{}).Run(context.Background(), Plan{
		Source:     "okx",
		Adapter:    adapter,
		Fetch:      fetcher.FetchPage,
		Instrument: "ETH-USDT",
		Timeframe:  tf15,
		Window:     w,
		Limit:      300,
	})
	require.NoError(t, err)
	assert.Len(t, res.Rows, 300)
	assert.Equal(t, int32(2), directHits.Load())
	assert.Equal(t, 1, slept)
}
