package app

import (
	"context"
	"fmt"
	"time"

	"klinefetch/internal/audit"
	"klinefetch/internal/backtest"
	"klinefetch/internal/config"
	"klinefetch/internal/export"
	"klinefetch/internal/gateway/notifier"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"
	"klinefetch/internal/poller"
	"klinefetch/internal/scheduler"
)

// App 负责应用级编排：导出、完整性检查、信号轮询与回放。
type App struct {
	cfg      *config.Config
	exporter *export.Exporter
	poller   *poller.Poller
	notifier notifier.MessageNotifier
	now      func() time.Time
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）
func NewApp(cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

// Export 导出配置窗口内的 K 线；output 为空时使用 export.output。
func (a *App) Export(ctx context.Context, output string) (export.Report, error) {
	if a == nil || a.exporter == nil {
		return export.Report{}, fmt.Errorf("app not initialized")
	}
	if output == "" {
		output = a.cfg.Export.Output
	}
	w := a.cfg.Market.Window(a.now())
	return a.exporter.Export(ctx, export.Request{Window: w, Output: output})
}

// Audit 重新读取 CSV 并检查缺口、重复与乱序。窗口由数据本身推断。
func (a *App) Audit(path string) (audit.Report, error) {
	if path == "" {
		path = a.cfg.Export.Output
	}
	rows, err := export.ReadCSV(path)
	if err != nil {
		return audit.Report{}, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	return audit.Check(rows, a.cfg.Market.ParsedTimeframe(), market.Window{}), nil
}

// Watch 在每根 K 线收盘后计算信号，配置文件中的 signal 段变更后自动生效。
func (a *App) Watch(ctx context.Context, configPath string) error {
	if a == nil || a.poller == nil {
		return fmt.Errorf("app not initialized")
	}
	sc := a.cfg.Signal
	sched := scheduler.NewAligned("watch", a.cfg.Market.ParsedTimeframe().Duration, sc.Offset())
	sched.RunImmediately = sc.RunImmediately

	var reload chan poller.Settings
	if configPath != "" {
		reload = make(chan poller.Settings, 1)
		err := config.WatchSignal(configPath, func(s config.SignalConfig) {
			settings := signalSettings(s)
			select {
			case reload <- settings:
			default:
				// 丢弃积压的旧值，只保留最新配置
				select {
				case <-reload:
				default:
				}
				reload <- settings
			}
		})
		if err != nil {
			logger.Warnf("配置热更新不可用: %v", err)
			reload = nil
		}
	}
	logger.Infof("开始监控 %s %s offset=%s", a.cfg.Market.Instrument, a.cfg.Market.Timeframe, sc.Offset())
	return a.poller.Run(ctx, sched, reload)
}

// Backtest 回放导出的 CSV；path 为空时使用 backtest.input。
func (a *App) Backtest(ctx context.Context, path string) (backtest.Replay, error) {
	if path == "" {
		path = a.cfg.Backtest.Input
	}
	return backtest.RunFile(ctx, path, backtestConfig(a.cfg.Backtest))
}

func (a *App) Config() *config.Config { return a.cfg }

func backtestConfig(b config.BacktestConfig) backtest.Config {
	cfg := backtest.DefaultConfig()
	if b.InitialEquity > 0 {
		cfg.InitialEquity = b.InitialEquity
	}
	if b.Leverage > 0 {
		cfg.Leverage = b.Leverage
	}
	if b.FeeRate > 0 {
		cfg.FeeRate = b.FeeRate
	}
	if b.EMAFast > 0 {
		cfg.EMAFast = b.EMAFast
	}
	if b.EMASlow > 0 {
		cfg.EMASlow = b.EMASlow
	}
	if b.ATRPeriod > 0 {
		cfg.ATRPeriod = b.ATRPeriod
	}
	if b.RSIPeriod > 0 {
		cfg.RSIPeriod = b.RSIPeriod
	}
	return cfg
}
