package app

import (
	"fmt"
	"strings"
	"time"

	"klinefetch/internal/config"
	"klinefetch/internal/logger"
)

type StartupSummary struct {
	Market  MarketSummary
	Sources []string
	Pager   PagerSummary
	Quality QualitySummary
	Notify  string
}

type MarketSummary struct {
	Instrument string
	Timeframe  string
	WindowDays int
	Output     string
}

type PagerSummary struct {
	MaxPages    int
	PageDelay   time.Duration
	Timeout     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

type QualitySummary struct {
	MinCoverageRatio float64
	ToleranceBars    int
	DropInconsistent bool
}

func newStartupSummary(cfg *config.Config, sources []string) *StartupSummary {
	notify := "(未启用)"
	if cfg.Notify.Ntfy.Enabled {
		notify = fmt.Sprintf("ntfy %s/%s", cfg.Notify.Ntfy.Server, cfg.Notify.Ntfy.Topic)
	}
	return &StartupSummary{
		Market: MarketSummary{
			Instrument: cfg.Market.Instrument,
			Timeframe:  cfg.Market.Timeframe,
			WindowDays: cfg.Market.WindowDays,
			Output:     cfg.Export.Output,
		},
		Sources: sources,
		Pager: PagerSummary{
			MaxPages:    cfg.Pager.MaxPages,
			PageDelay:   cfg.Pager.PageDelay(),
			Timeout:     cfg.Pager.Timeout(),
			MaxAttempts: cfg.Pager.Retry.MaxAttempts,
			BaseDelay:   cfg.Pager.Retry.BaseDelay(),
			Multiplier:  cfg.Pager.Retry.Multiplier,
		},
		Quality: QualitySummary{
			MinCoverageRatio: cfg.Quality.MinCoverageRatio,
			ToleranceBars:    cfg.Quality.ToleranceBars,
			DropInconsistent: cfg.Quality.DropInconsistent,
		},
		Notify: notify,
	}
}

func (s *StartupSummary) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 64)
	fmt.Fprintln(&b, line)
	fmt.Fprintln(&b, "启动配置摘要 (STARTUP SUMMARY)")
	fmt.Fprintln(&b, line)

	fmt.Fprintln(&b, "[行情 (MARKET)]")
	fmt.Fprintf(&b, "  品种: %s  周期: %s  窗口: %d 天\n", s.Market.Instrument, s.Market.Timeframe, s.Market.WindowDays)
	fmt.Fprintf(&b, "  输出: %s\n", s.Market.Output)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[数据源 (SOURCES)]")
	fmt.Fprintf(&b, "  回退顺序: %s\n", formatList(s.Sources))
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[翻页 (PAGER)]")
	fmt.Fprintf(&b, "  最大页数: %d  页间隔: %s  超时: %s\n", s.Pager.MaxPages, s.Pager.PageDelay, s.Pager.Timeout)
	fmt.Fprintf(&b, "  重试: %d 次 base=%s x%.1f\n", s.Pager.MaxAttempts, s.Pager.BaseDelay, s.Pager.Multiplier)
	fmt.Fprintln(&b)

	fmt.Fprintln(&b, "[质量门 (QUALITY)]")
	fmt.Fprintf(&b, "  覆盖率 >= %.2f%%  容差 %d 根  丢弃不一致行: %v\n",
		s.Quality.MinCoverageRatio*100, s.Quality.ToleranceBars, s.Quality.DropInconsistent)
	fmt.Fprintln(&b)

	fmt.Fprintf(&b, "[推送 (NOTIFY)] %s\n", s.Notify)
	fmt.Fprint(&b, line)
	return b.String()
}

// Print 走日志输出，日志文件里也能看到启动参数。
func (s *StartupSummary) Print() {
	logger.InfoBlock(s.String())
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, " → ")
}
