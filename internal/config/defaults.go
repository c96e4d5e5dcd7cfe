package config

import (
	"fmt"
	"strings"
)

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultInstrument        = "ETH/USDT"
	defaultTimeframe         = "15m"
	defaultWindowDays        = 365
	defaultMaxPages          = 1000
	defaultMaxEmptyPages     = 3
	defaultPageDelayMS       = 200
	defaultTimeoutSeconds    = 15
	defaultRetryAttempts     = 3
	defaultRetryBaseDelayMS  = 500
	defaultRetryMultiplier   = 2.0
	defaultBreakerThreshold  = 3
	defaultBreakerTimeoutSec = 60
	defaultMinCoverage       = 0.95
	defaultToleranceBars     = 2
	defaultExportOutput      = "data/eth_usdt_15m.csv"
	defaultSignalFast        = 34
	defaultSignalSlow        = 144
	defaultSignalSlopeBars   = 4
	defaultSignalLookback    = 300
	defaultSignalDistance    = 0.2
	defaultSignalSlope       = 0.05
	defaultSignalOffset      = 5
	defaultNtfyServer        = "https://ntfy.sh"
	defaultNtfyPriority      = 3
	defaultBacktestTrades    = 20
)

// defaultSources 是 OKX → Binance → Bybit → KuCoin → Gate 的回退顺序。
func defaultSources() []SourceConfig {
	return []SourceConfig{
		{Name: "okx-history", Kind: KindOKX, OKXHistory: true},
		{Name: "binance", Kind: KindBinance},
		{Name: "bybit", Kind: KindBybit},
		{Name: "kucoin", Kind: KindKuCoin},
		{Name: "gate", Kind: KindGate},
	}
}

// applyDefaults 为所有子配置应用默认值。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Market.applyDefaults(keys)
	c.applySourceDefaults()
	c.Pager.applyDefaults(keys)
	c.Quality.applyDefaults(keys)
	c.Export.applyDefaults(keys)
	c.Signal.applyDefaults(keys)
	c.Notify.Ntfy.applyDefaults(keys)
	c.Backtest.applyDefaults(keys, c.Export.Output)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
	)
}

func (m *MarketConfig) applyDefaults(keys keySet) {
	if m == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("market.instrument", &m.Instrument, defaultInstrument),
		stringFieldDefault("market.timeframe", &m.Timeframe, defaultTimeframe),
		fieldDefault{
			key:   "market.window_days",
			need:  func() bool { return m.WindowDays <= 0 },
			apply: func() { m.WindowDays = defaultWindowDays },
		},
	)
}

func (c *Config) applySourceDefaults() {
	if len(c.Sources) == 0 {
		c.Sources = defaultSources()
	}
	for i := range c.Sources {
		src := &c.Sources[i]
		src.Proxy.normalize()
		src.Kind = strings.ToLower(strings.TrimSpace(src.Kind))
		src.RESTBaseURL = strings.TrimRight(strings.TrimSpace(src.RESTBaseURL), "/")
		if strings.TrimSpace(src.Name) == "" {
			if src.Kind != "" {
				src.Name = src.Kind
			} else {
				src.Name = fmt.Sprintf("source_%d", i)
			}
		}
		// ${VAR} 展开为空的镜像直接忽略
		mirrors := src.Mirrors[:0]
		for _, mr := range src.Mirrors {
			mr.URL = strings.TrimSpace(mr.URL)
			if mr.URL == "" {
				continue
			}
			mr.Mode = strings.ToLower(strings.TrimSpace(mr.Mode))
			if mr.Mode == "" {
				mr.Mode = "prefix"
			}
			mirrors = append(mirrors, mr)
		}
		src.Mirrors = mirrors
	}
}

func (p *PagerConfig) applyDefaults(keys keySet) {
	if p == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "pager.max_pages",
			need:  func() bool { return p.MaxPages <= 0 },
			apply: func() { p.MaxPages = defaultMaxPages },
		},
		fieldDefault{
			key:   "pager.max_empty_pages",
			need:  func() bool { return p.MaxEmptyPages <= 0 },
			apply: func() { p.MaxEmptyPages = defaultMaxEmptyPages },
		},
		fieldDefault{
			key:   "pager.page_delay_ms",
			need:  func() bool { return p.PageDelayMS <= 0 },
			apply: func() { p.PageDelayMS = defaultPageDelayMS },
		},
		fieldDefault{
			key:   "pager.timeout_seconds",
			need:  func() bool { return p.TimeoutSeconds <= 0 },
			apply: func() { p.TimeoutSeconds = defaultTimeoutSeconds },
		},
		fieldDefault{
			key:   "pager.retry.max_attempts",
			need:  func() bool { return p.Retry.MaxAttempts <= 0 },
			apply: func() { p.Retry.MaxAttempts = defaultRetryAttempts },
		},
		fieldDefault{
			key:   "pager.retry.base_delay_ms",
			need:  func() bool { return p.Retry.BaseDelayMS <= 0 },
			apply: func() { p.Retry.BaseDelayMS = defaultRetryBaseDelayMS },
		},
		fieldDefault{
			key:   "pager.retry.multiplier",
			need:  func() bool { return p.Retry.Multiplier <= 0 },
			apply: func() { p.Retry.Multiplier = defaultRetryMultiplier },
		},
		fieldDefault{
			key:   "pager.breaker.threshold",
			need:  func() bool { return p.Breaker.Threshold <= 0 },
			apply: func() { p.Breaker.Threshold = defaultBreakerThreshold },
		},
		fieldDefault{
			key:   "pager.breaker.timeout_seconds",
			need:  func() bool { return p.Breaker.TimeoutSeconds <= 0 },
			apply: func() { p.Breaker.TimeoutSeconds = defaultBreakerTimeoutSec },
		},
	)
}

func (q *QualityConfig) applyDefaults(keys keySet) {
	if q == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "quality.min_coverage_ratio",
			need:  func() bool { return q.MinCoverageRatio <= 0 },
			apply: func() { q.MinCoverageRatio = defaultMinCoverage },
		},
		fieldDefault{
			key:   "quality.tolerance_bars",
			need:  func() bool { return q.ToleranceBars <= 0 },
			apply: func() { q.ToleranceBars = defaultToleranceBars },
		},
	)
}

func (e *ExportConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("export.output", &e.Output, defaultExportOutput),
	)
}

func (s *SignalConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "signal.fast",
			need:  func() bool { return s.Fast <= 0 },
			apply: func() { s.Fast = defaultSignalFast },
		},
		fieldDefault{
			key:   "signal.slow",
			need:  func() bool { return s.Slow <= 0 },
			apply: func() { s.Slow = defaultSignalSlow },
		},
		fieldDefault{
			key:   "signal.slope_bars",
			need:  func() bool { return s.SlopeBars <= 0 },
			apply: func() { s.SlopeBars = defaultSignalSlopeBars },
		},
		fieldDefault{
			key:   "signal.lookback_bars",
			need:  func() bool { return s.LookbackBars <= 0 },
			apply: func() { s.LookbackBars = defaultSignalLookback },
		},
		fieldDefault{
			key:   "signal.min_distance_pct",
			need:  func() bool { return s.MinDistancePct <= 0 },
			apply: func() { s.MinDistancePct = defaultSignalDistance },
		},
		fieldDefault{
			key:   "signal.min_slope_pct",
			need:  func() bool { return s.MinSlopePct <= 0 },
			apply: func() { s.MinSlopePct = defaultSignalSlope },
		},
		fieldDefault{
			key:   "signal.offset_seconds",
			need:  func() bool { return s.OffsetSeconds == 0 },
			apply: func() { s.OffsetSeconds = defaultSignalOffset },
		},
		boolFieldDefault("signal.run_immediately", &s.RunImmediately, true),
	)
}

func (n *NtfyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("notify.ntfy.server", &n.Server, defaultNtfyServer),
		fieldDefault{
			key:   "notify.ntfy.priority",
			need:  func() bool { return n.Priority <= 0 },
			apply: func() { n.Priority = defaultNtfyPriority },
		},
	)
	n.Server = strings.TrimRight(strings.TrimSpace(n.Server), "/")
	n.Topic = strings.TrimSpace(n.Topic)
}

func (b *BacktestConfig) applyDefaults(keys keySet, exportOutput string) {
	if b == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("backtest.input", &b.Input, exportOutput),
		fieldDefault{
			key:   "backtest.trade_limit",
			need:  func() bool { return b.TradeLimit <= 0 },
			apply: func() { b.TradeLimit = defaultBacktestTrades },
		},
	)
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func boolFieldDefault(key string, target *bool, def bool) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
