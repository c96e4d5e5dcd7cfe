package config

import (
	"strings"
	"time"

	"klinefetch/internal/market"
)

// ParsedTimeframe 返回已校验的周期；Load 之后调用不会失败。
func (m MarketConfig) ParsedTimeframe() market.Timeframe {
	tf, err := market.ParseTimeframe(m.Timeframe)
	if err != nil {
		return market.MustTimeframe(defaultTimeframe)
	}
	return tf
}

// Window 返回导出窗口 [end-window_days, end)，end 对齐到最近一根已收盘 K 线。
func (m MarketConfig) Window(now time.Time) market.Window {
	end := now
	if raw := strings.TrimSpace(m.EndTime); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			end = t
		}
	}
	tf := m.ParsedTimeframe()
	bars := int(time.Duration(m.WindowDays) * 24 * time.Hour / tf.Duration)
	return tf.LastWindow(end, bars)
}

// EnabledSources 按配置顺序返回启用的数据源。
func (c *Config) EnabledSources() []SourceConfig {
	out := make([]SourceConfig, 0, len(c.Sources))
	for _, src := range c.Sources {
		if src.IsEnabled() {
			out = append(out, src)
		}
	}
	return out
}

// InstrumentFor 返回数据源的品种，未覆盖时使用 market.instrument。
func (c *Config) InstrumentFor(src SourceConfig) string {
	if strings.TrimSpace(src.Instrument) != "" {
		return src.Instrument
	}
	return c.Market.Instrument
}

func (p PagerConfig) PageDelay() time.Duration {
	return time.Duration(p.PageDelayMS) * time.Millisecond
}

func (p PagerConfig) Timeout() time.Duration {
	return time.Duration(p.TimeoutSeconds) * time.Second
}

func (r RetryConfig) BaseDelay() time.Duration {
	return time.Duration(r.BaseDelayMS) * time.Millisecond
}

func (b BreakerConfig) Timeout() time.Duration {
	return time.Duration(b.TimeoutSeconds) * time.Second
}

func (s SignalConfig) Offset() time.Duration {
	return time.Duration(s.OffsetSeconds) * time.Second
}
