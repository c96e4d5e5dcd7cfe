package config

import "strings"

// Config 是 klinefetch 的主配置载体。
type Config struct {
	App      AppConfig      `toml:"app" yaml:"app"`
	Market   MarketConfig   `toml:"market" yaml:"market"`
	Sources  []SourceConfig `toml:"sources" yaml:"sources"`
	Pager    PagerConfig    `toml:"pager" yaml:"pager"`
	Quality  QualityConfig  `toml:"quality" yaml:"quality"`
	Export   ExportConfig   `toml:"export" yaml:"export"`
	Signal   SignalConfig   `toml:"signal" yaml:"signal"`
	Notify   NotifyConfig   `toml:"notify" yaml:"notify"`
	Backtest BacktestConfig `toml:"backtest" yaml:"backtest"`
}

type AppConfig struct {
	Env      string `toml:"env" yaml:"env"`
	LogLevel string `toml:"log_level" yaml:"log_level"`
	LogPath  string `toml:"log_path" yaml:"log_path"`
}

// MarketConfig 描述要导出的品种、周期和回溯窗口。
type MarketConfig struct {
	Instrument string `toml:"instrument" yaml:"instrument"`
	Timeframe  string `toml:"timeframe" yaml:"timeframe"`
	WindowDays int    `toml:"window_days" yaml:"window_days"`
	// EndTime 为空时取当前时刻向下对齐到收盘。
	EndTime string `toml:"end_time" yaml:"end_time,omitempty"`
}

// 支持的数据源类型。
const (
	KindOKX        = "okx"
	KindBinance    = "binance"
	KindBybit      = "bybit"
	KindKuCoin     = "kucoin"
	KindGate       = "gate"
	KindBinanceSDK = "binance-sdk"
	KindGateSDK    = "gate-sdk"
)

var supportedKinds = map[string]bool{
	KindOKX: true, KindBinance: true, KindBybit: true, KindKuCoin: true,
	KindGate: true, KindBinanceSDK: true, KindGateSDK: true,
}

// SourceConfig 是按优先级排列的单个数据源。
type SourceConfig struct {
	Name        string         `toml:"name" yaml:"name"`
	Kind        string         `toml:"kind" yaml:"kind"`
	Enabled     *bool          `toml:"enabled" yaml:"enabled,omitempty"`
	RESTBaseURL string         `toml:"rest_base_url" yaml:"rest_base_url,omitempty"`
	Instrument  string         `toml:"instrument" yaml:"instrument,omitempty"`
	Limit       int            `toml:"limit" yaml:"limit,omitempty"`
	OKXHistory  bool           `toml:"okx_history" yaml:"okx_history,omitempty"`
	Mirrors     []MirrorConfig `toml:"mirrors" yaml:"mirrors,omitempty"`
	Proxy       ProxyConfig    `toml:"proxy" yaml:"proxy"`
}

// IsEnabled 未显式配置时视为启用。
func (s SourceConfig) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

type MirrorConfig struct {
	URL  string `toml:"url" yaml:"url"`
	Mode string `toml:"mode" yaml:"mode"`
}

type ProxyConfig struct {
	Enabled bool   `toml:"enabled" yaml:"enabled"`
	RESTURL string `toml:"rest_url" yaml:"rest_url,omitempty"`
}

func (p *ProxyConfig) normalize() {
	if p == nil {
		return
	}
	p.RESTURL = strings.TrimSpace(p.RESTURL)
}

type PagerConfig struct {
	MaxPages       int           `toml:"max_pages" yaml:"max_pages"`
	MaxEmptyPages  int           `toml:"max_empty_pages" yaml:"max_empty_pages"`
	PageDelayMS    int           `toml:"page_delay_ms" yaml:"page_delay_ms"`
	TimeoutSeconds int           `toml:"timeout_seconds" yaml:"timeout_seconds"`
	Retry          RetryConfig   `toml:"retry" yaml:"retry"`
	Breaker        BreakerConfig `toml:"breaker" yaml:"breaker"`
}

type RetryConfig struct {
	MaxAttempts int     `toml:"max_attempts" yaml:"max_attempts"`
	BaseDelayMS int     `toml:"base_delay_ms" yaml:"base_delay_ms"`
	Multiplier  float64 `toml:"multiplier" yaml:"multiplier"`
}

// BreakerConfig 控制单条路由的熔断；Threshold<=0 关闭熔断。
type BreakerConfig struct {
	Threshold      int `toml:"threshold" yaml:"threshold"`
	TimeoutSeconds int `toml:"timeout_seconds" yaml:"timeout_seconds"`
}

type QualityConfig struct {
	MinCoverageRatio float64 `toml:"min_coverage_ratio" yaml:"min_coverage_ratio"`
	ToleranceBars    int     `toml:"tolerance_bars" yaml:"tolerance_bars"`
	DropInconsistent bool    `toml:"drop_inconsistent" yaml:"drop_inconsistent"`
}

type ExportConfig struct {
	Output        string `toml:"output" yaml:"output"`
	MergeExisting bool   `toml:"merge_existing" yaml:"merge_existing"`
}

// SignalConfig 支持热更新（watch 模式下修改配置文件即生效）。
type SignalConfig struct {
	Fast            int     `toml:"fast" yaml:"fast"`
	Slow            int     `toml:"slow" yaml:"slow"`
	SlopeBars       int     `toml:"slope_bars" yaml:"slope_bars"`
	LookbackBars    int     `toml:"lookback_bars" yaml:"lookback_bars"`
	MinDistancePct  float64 `toml:"min_distance_pct" yaml:"min_distance_pct"`
	MinSlopePct     float64 `toml:"min_slope_pct" yaml:"min_slope_pct"`
	OffsetSeconds   int     `toml:"offset_seconds" yaml:"offset_seconds"`
	RunImmediately  bool    `toml:"run_immediately" yaml:"run_immediately"`
	NotifyEveryTick bool    `toml:"notify_every_tick" yaml:"notify_every_tick"`
}

type NotifyConfig struct {
	Ntfy NtfyConfig `toml:"ntfy" yaml:"ntfy"`
}

type NtfyConfig struct {
	Enabled  bool   `toml:"enabled" yaml:"enabled"`
	Server   string `toml:"server" yaml:"server"`
	Topic    string `toml:"topic" yaml:"topic"`
	Token    string `toml:"token" yaml:"token,omitempty"`
	Priority int    `toml:"priority" yaml:"priority"`
}

// BacktestConfig 中比例均为小数，零值字段沿用策略默认参数。
type BacktestConfig struct {
	Input         string  `toml:"input" yaml:"input"`
	TradeLimit    int     `toml:"trade_limit" yaml:"trade_limit"`
	InitialEquity float64 `toml:"initial_equity" yaml:"initial_equity"`
	Leverage      float64 `toml:"leverage" yaml:"leverage"`
	FeeRate       float64 `toml:"fee_rate" yaml:"fee_rate"`
	EMAFast       int     `toml:"ema_fast" yaml:"ema_fast"`
	EMASlow       int     `toml:"ema_slow" yaml:"ema_slow"`
	ATRPeriod     int     `toml:"atr_period" yaml:"atr_period"`
	RSIPeriod     int     `toml:"rsi_period" yaml:"rsi_period"`
}

// keySet 用于追踪配置文件中显式设置的字段路径。
type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

// fieldDefault 描述单个字段的默认值设置规则。
type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
