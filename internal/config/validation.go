package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"klinefetch/internal/market"
	"klinefetch/internal/pkg/symbol"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Market.validate(); err != nil {
		return err
	}
	if err := validateSources(c.Sources); err != nil {
		return err
	}
	if err := c.Pager.validate(); err != nil {
		return err
	}
	if err := c.Quality.validate(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Export.Output) == "" {
		return fmt.Errorf("export.output cannot be empty")
	}
	if err := c.Signal.validate(); err != nil {
		return err
	}
	if err := c.Notify.Ntfy.validate(); err != nil {
		return err
	}
	return nil
}

func (m *MarketConfig) validate() error {
	if !symbol.IsValid(m.Instrument) {
		return fmt.Errorf("market.instrument is invalid: %q", m.Instrument)
	}
	if _, err := market.ParseTimeframe(m.Timeframe); err != nil {
		return fmt.Errorf("market.timeframe: %w", err)
	}
	if m.WindowDays <= 0 {
		return fmt.Errorf("market.window_days must be > 0")
	}
	if strings.TrimSpace(m.EndTime) != "" {
		if _, err := time.Parse(time.RFC3339, strings.TrimSpace(m.EndTime)); err != nil {
			return fmt.Errorf("market.end_time must be RFC3339: %w", err)
		}
	}
	return nil
}

func validateSources(sources []SourceConfig) error {
	enabled := 0
	seen := make(map[string]bool, len(sources))
	for i, src := range sources {
		if !supportedKinds[src.Kind] {
			return fmt.Errorf("sources[%d].kind unsupported: %q", i, src.Kind)
		}
		if seen[src.Name] {
			return fmt.Errorf("sources[%d].name duplicated: %s", i, src.Name)
		}
		seen[src.Name] = true
		if src.Instrument != "" && !symbol.IsValid(src.Instrument) {
			return fmt.Errorf("sources.%s.instrument is invalid: %q", src.Name, src.Instrument)
		}
		if src.Limit < 0 {
			return fmt.Errorf("sources.%s.limit must be >= 0", src.Name)
		}
		if src.OKXHistory && src.Kind != KindOKX {
			return fmt.Errorf("sources.%s.okx_history only applies to okx", src.Name)
		}
		if len(src.Mirrors) > 0 && (src.Kind == KindBinanceSDK || src.Kind == KindGateSDK) {
			return fmt.Errorf("sources.%s: mirrors are not supported for sdk sources", src.Name)
		}
		for j, mr := range src.Mirrors {
			if err := validateURL(mr.URL); err != nil {
				return fmt.Errorf("sources.%s.mirrors[%d].url: %w", src.Name, j, err)
			}
			if mr.Mode != "prefix" && mr.Mode != "wrap" {
				return fmt.Errorf("sources.%s.mirrors[%d].mode must be prefix or wrap", src.Name, j)
			}
		}
		if src.Proxy.Enabled {
			if err := validateURL(src.Proxy.RESTURL); err != nil {
				return fmt.Errorf("sources.%s.proxy.rest_url: %w", src.Name, err)
			}
		}
		if src.IsEnabled() {
			enabled++
		}
	}
	if enabled == 0 {
		return fmt.Errorf("sources requires at least one enabled source")
	}
	return nil
}

func validateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("must be an absolute url: %q", raw)
	}
	return nil
}

func (p *PagerConfig) validate() error {
	if p.MaxPages <= 0 {
		return fmt.Errorf("pager.max_pages must be > 0")
	}
	if p.MaxEmptyPages < 0 {
		return fmt.Errorf("pager.max_empty_pages must be >= 0")
	}
	if p.PageDelayMS < 0 {
		return fmt.Errorf("pager.page_delay_ms must be >= 0")
	}
	if p.Retry.MaxAttempts <= 0 {
		return fmt.Errorf("pager.retry.max_attempts must be > 0")
	}
	if p.Retry.Multiplier < 1 {
		return fmt.Errorf("pager.retry.multiplier must be >= 1")
	}
	return nil
}

func (q *QualityConfig) validate() error {
	if q.MinCoverageRatio <= 0 || q.MinCoverageRatio > 1 {
		return fmt.Errorf("quality.min_coverage_ratio must be in (0, 1]")
	}
	if q.ToleranceBars < 0 {
		return fmt.Errorf("quality.tolerance_bars must be >= 0")
	}
	return nil
}

func (s *SignalConfig) validate() error {
	if s.Fast <= 0 || s.Slow <= 0 {
		return fmt.Errorf("signal.fast/slow must be > 0")
	}
	if s.Fast >= s.Slow {
		return fmt.Errorf("signal.fast (%d) must be < signal.slow (%d)", s.Fast, s.Slow)
	}
	if s.OffsetSeconds < 0 {
		return fmt.Errorf("signal.offset_seconds must be >= 0")
	}
	return nil
}

func (n *NtfyConfig) validate() error {
	if !n.Enabled {
		return nil
	}
	if err := validateURL(n.Server); err != nil {
		return fmt.Errorf("notify.ntfy.server: %w", err)
	}
	if n.Topic == "" {
		return fmt.Errorf("notify.ntfy.topic cannot be empty when enabled")
	}
	if n.Priority < 1 || n.Priority > 5 {
		return fmt.Errorf("notify.ntfy.priority must be in [1, 5]")
	}
	return nil
}
