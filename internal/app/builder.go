package app

import (
	"context"
	"fmt"
	"time"

	"klinefetch/internal/config"
	"klinefetch/internal/export"
	"klinefetch/internal/gateway/notifier"
	"klinefetch/internal/logger"
	"klinefetch/internal/pager"
	"klinefetch/internal/poller"
	"klinefetch/internal/quality"
	"klinefetch/internal/signal"
)

type AppBuilder struct {
	cfg *config.Config

	sourcesFn  func(*config.Config, sourceDeps) ([]export.Source, error)
	notifierFn func(config.NtfyConfig) notifier.MessageNotifier
	now        func() time.Time
}

type AppBuilderOption func(*AppBuilder)

// WithSources 替换数据源构建（测试用）。
func WithSources(fn func(*config.Config) ([]export.Source, error)) AppBuilderOption {
	return func(b *AppBuilder) {
		if fn == nil {
			return
		}
		b.sourcesFn = func(cfg *config.Config, _ sourceDeps) ([]export.Source, error) { return fn(cfg) }
	}
}

func WithNotifier(n notifier.MessageNotifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NtfyConfig) notifier.MessageNotifier { return n }
	}
}

func WithClock(now func() time.Time) AppBuilderOption {
	return func(b *AppBuilder) {
		if now != nil {
			b.now = now
		}
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		sourcesFn:  buildSources,
		notifierFn: buildNotifier,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildNotifier(cfg config.NtfyConfig) notifier.MessageNotifier {
	if !cfg.Enabled {
		return nil
	}
	return notifier.NewNtfy(cfg.Server, cfg.Topic, cfg.Token, cfg.Priority)
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)
	tf := cfg.Market.ParsedTimeframe()

	sources, err := b.sourcesFn(cfg, newSourceDeps(cfg))
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("没有启用的数据源")
	}
	logger.Infof("✓ 已加载 %d 个数据源", len(sources))

	pg := pager.New(pager.Config{
		MaxPages:         cfg.Pager.MaxPages,
		MaxEmptyPages:    cfg.Pager.MaxEmptyPages,
		PageDelay:        cfg.Pager.PageDelay(),
		DropInconsistent: cfg.Quality.DropInconsistent,
	})
	gate := quality.New(quality.Config{
		MinCoverageRatio: cfg.Quality.MinCoverageRatio,
		ToleranceBars:    cfg.Quality.ToleranceBars,
	}, tf)
	exp := export.NewExporter(sources, pg, gate, export.Options{
		Timeframe:     tf,
		MergeExisting: cfg.Export.MergeExisting,
	})

	n := b.notifierFn(cfg.Notify.Ntfy)
	if n != nil {
		logger.Infof("✓ ntfy 推送已启用 topic=%s", cfg.Notify.Ntfy.Topic)
	}
	w := poller.New(exp, n, cfg.Market.Instrument, tf, signalSettings(cfg.Signal))

	return &App{
		cfg:      cfg,
		exporter: exp,
		poller:   w,
		notifier: n,
		now:      b.now,
		Summary:  newStartupSummary(cfg, exp.Sources()),
	}, nil
}

func signalSettings(s config.SignalConfig) poller.Settings {
	return poller.Settings{
		Params: signal.Params{
			Fast:           s.Fast,
			Slow:           s.Slow,
			SlopeBars:      s.SlopeBars,
			MinDistancePct: s.MinDistancePct,
			MinSlopePct:    s.MinSlopePct,
		},
		LookbackBars:    s.LookbackBars,
		NotifyEveryTick: s.NotifyEveryTick,
	}
}
