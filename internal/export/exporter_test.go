package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"klinefetch/internal/market"
	"klinefetch/internal/pager"
	"klinefetch/internal/quality"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	tf15 = market.MustTimeframe("15m")
	bar  = tf15.Millis()
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, plan pager.Plan) (pager.Result, error) {
	args := m.Called(ctx, plan.Source)
	return args.Get(0).(pager.Result), args.Error(1)
}

func series(from, to int64) market.Series {
	var out market.Series
	for ts := from; ts < to; ts += bar {
		out = append(out, sampleRows()[0])
		out[len(out)-1].OpenTime = ts
	}
	return out
}

func newTestExporter(r Runner, sources ...string) *Exporter {
	srcs := make([]Source, 0, len(sources))
	for _, name := range sources {
		srcs = append(srcs, Source{Name: name})
	}
	return NewExporter(srcs, r, quality.New(quality.Config{}, tf15), Options{Timeframe: tf15})
}

func TestExportFallsBackToFirstPassingSource(t *testing.T) {
	w := market.Window{Start: 0, End: 100 * bar}
	r := &mockRunner{}
	r.On("Run", mock.Anything, "okx").Return(pager.Result{Source: "okx", Rows: series(90*bar, 100*bar), Stop: pager.StopStalled}, nil)
	r.On("Run", mock.Anything, "binance").Return(pager.Result{}, errors.New("451 unavailable"))
	r.On("Run", mock.Anything, "bybit").Return(pager.Result{Source: "bybit", Rows: series(0, 100*bar)}, nil)

	out := filepath.Join(t.TempDir(), "eth.csv")
	rep, err := newTestExporter(r, "okx", "binance", "bybit", "gate").Export(context.Background(), Request{Window: w, Output: out})
	require.NoError(t, err)
	assert.Equal(t, "bybit", rep.Source)
	assert.Equal(t, 100, rep.Written)
	require.Len(t, rep.Attempts, 3)
	assert.ErrorIs(t, rep.Attempts[0].Err, quality.ErrRejected)
	assert.NotEmpty(t, rep.RunID)
	r.AssertNotCalled(t, "Run", mock.Anything, "gate")

	rows, err := ReadCSV(out)
	require.NoError(t, err)
	assert.Len(t, rows, 100)
}

func TestExportAllSourcesFailWritesNothing(t *testing.T) {
	w := market.Window{Start: 0, End: 100 * bar}
	r := &mockRunner{}
	r.On("Run", mock.Anything, "okx").Return(pager.Result{Rows: series(0, 10*bar)}, nil)
	r.On("Run", mock.Anything, "kucoin").Return(pager.Result{}, errors.New("timeout"))

	out := filepath.Join(t.TempDir(), "eth.csv")
	_, err := newTestExporter(r, "okx", "kucoin").Export(context.Background(), Request{Window: w, Output: out})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoSourceAvailable)
	assert.ErrorIs(t, err, quality.ErrRejected)
	assert.Contains(t, err.Error(), "kucoin: timeout")

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExportMergesExistingFile(t *testing.T) {
	out := filepath.Join(t.TempDir(), "eth.csv")
	require.NoError(t, WriteCSV(out, series(-10*bar, 5*bar)))

	w := market.Window{Start: 0, End: 100 * bar}
	r := &mockRunner{}
	r.On("Run", mock.Anything, "okx").Return(pager.Result{Rows: series(0, 100*bar)}, nil)

	e := newTestExporter(r, "okx")
	e.opts.MergeExisting = true
	rep, err := e.Export(context.Background(), Request{Window: w, Output: out})
	require.NoError(t, err)
	assert.Equal(t, 110, rep.Written)

	// 再跑一次不应产生新行
	rep, err = e.Export(context.Background(), Request{Window: w, Output: out})
	require.NoError(t, err)
	assert.Equal(t, 110, rep.Written)
	rows, err := ReadCSV(out)
	require.NoError(t, err)
	assert.True(t, market.Series(rows).Increasing())
}

func TestCollectWithoutSources(t *testing.T) {
	_, err := newTestExporter(&mockRunner{}).Collect(context.Background(), market.Window{Start: 0, End: bar})
	assert.ErrorIs(t, err, ErrNoSourceAvailable)
}
