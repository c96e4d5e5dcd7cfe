// Package poller 在每根 K 线收盘后拉取最近一段行情，计算 EMA 信号并在状态变化时推送。
package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"klinefetch/internal/export"
	"klinefetch/internal/gateway/notifier"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"
	"klinefetch/internal/scheduler"
	"klinefetch/internal/signal"

	"golang.org/x/sync/errgroup"
)

// Collector 是带质量门的多源采集（*export.Exporter 实现）。
type Collector interface {
	Collect(ctx context.Context, w market.Window) (export.Report, error)
}

// Settings 是可热更新的部分。
type Settings struct {
	Params          signal.Params
	LookbackBars    int
	NotifyEveryTick bool
}

type Poller struct {
	collector  Collector
	notifier   notifier.MessageNotifier
	instrument string
	tf         market.Timeframe
	log        logger.Tagged

	mu        sync.Mutex
	settings  Settings
	lastState string
}

func New(c Collector, n notifier.MessageNotifier, instrument string, tf market.Timeframe, s Settings) *Poller {
	return &Poller{
		collector:  c,
		notifier:   n,
		instrument: instrument,
		tf:         tf,
		settings:   normalize(s),
		log:        logger.Named("watch"),
	}
}

func normalize(s Settings) Settings {
	if need := s.Params.MinBars(); s.LookbackBars < need {
		s.LookbackBars = need
	}
	return s
}

// UpdateSettings 在下一次 tick 生效。
func (p *Poller) UpdateSettings(s Settings) {
	p.mu.Lock()
	p.settings = normalize(s)
	p.mu.Unlock()
	p.log.Infof("信号参数已更新 fast=%d slow=%d lookback=%d", s.Params.Fast, s.Params.Slow, s.LookbackBars)
}

// Tick 处理一次收盘：采集 [closeAt-lookback, closeAt)、计算信号、按需推送。
// 多次调用互斥执行。
func (p *Poller) Tick(ctx context.Context, closeAt time.Time) (signal.Signal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	end := p.tf.AlignDown(closeAt.UnixMilli())
	w := market.Window{Start: end - int64(p.settings.LookbackBars)*p.tf.Millis(), End: end}
	rep, err := p.collector.Collect(ctx, w)
	if err != nil {
		p.log.Errorf("采集失败 %s: %v", w, err)
		return signal.Signal{}, err
	}
	sig, err := signal.Evaluate(rep.Rows, p.settings.Params)
	if err != nil {
		p.log.Errorf("信号计算失败: %v", err)
		return signal.Signal{}, err
	}
	p.log.Infof("%s %s source=%s %s", p.instrument, p.tf.Key, rep.Source, sig.Summary())

	changed := sig.State() != p.lastState
	p.lastState = sig.State()
	if p.notifier != nil && (changed || p.settings.NotifyEveryTick) {
		if err := p.notifier.Send(ctx, p.message(sig, rep.Source)); err != nil {
			p.log.Warnf("推送失败: %v", err)
		}
	}
	return sig, nil
}

func (p *Poller) message(sig signal.Signal, source string) notifier.StructuredMessage {
	state, tags, priority := "不可交易", []string{"pause_button"}, 2
	if sig.Tradeable {
		state, priority = "可交易", 4
		tags = []string{"chart_with_upwards_trend"}
		if sig.Direction == signal.Short {
			tags = []string{"chart_with_downwards_trend"}
		}
	}
	reasons := append([]string(nil), sig.Reasons...)
	return notifier.StructuredMessage{
		Title:    fmt.Sprintf("%s %s %s %s", p.instrument, p.tf.Key, state, sig.Direction),
		Tags:     tags,
		Priority: priority,
		Sections: []notifier.MessageSection{
			{Title: "EMA", Lines: []string{
				fmt.Sprintf("close=%.2f", sig.Close),
				fmt.Sprintf("ema%d=%.2f ema%d=%.2f", p.settings.Params.Fast, sig.EMAFast, p.settings.Params.Slow, sig.EMASlow),
				fmt.Sprintf("距离=%.3f%% 斜率=%.3f%%", sig.DistancePct, sig.SlopePct),
			}},
			{Title: "原因", Lines: reasons},
		},
		Footer:    "source=" + source,
		Timestamp: time.UnixMilli(sig.Time).Add(p.tf.Duration),
	}
}

// Run 运行对齐调度与配置热更新两个协程，ctx 结束时正常返回。
func (p *Poller) Run(ctx context.Context, sched *scheduler.Aligned, reload <-chan Settings) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx, func(ctx context.Context, closeAt time.Time) {
			_, _ = p.Tick(ctx, closeAt)
		})
	})
	if reload != nil {
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case s, ok := <-reload:
					if !ok {
						return nil
					}
					p.UpdateSettings(s)
				}
			}
		})
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
