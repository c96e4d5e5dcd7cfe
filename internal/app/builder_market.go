package app

import (
	"fmt"

	"klinefetch/internal/config"
	binancesdk "klinefetch/internal/gateway/binance"
	"klinefetch/internal/gateway/exchange"
	binancerest "klinefetch/internal/gateway/exchange/binance"
	"klinefetch/internal/gateway/exchange/bybit"
	gaterest "klinefetch/internal/gateway/exchange/gate"
	"klinefetch/internal/gateway/exchange/kucoin"
	"klinefetch/internal/gateway/exchange/okx"
	"klinefetch/internal/gateway/fetch"
	gatesdk "klinefetch/internal/gateway/gate"
	"klinefetch/internal/export"
	"klinefetch/internal/pager"
	"klinefetch/internal/pkg/circuit"
	"klinefetch/internal/pkg/symbol"
)

// sourceDeps 是所有数据源共享的依赖。
type sourceDeps struct {
	pager    config.PagerConfig
	breakers *circuit.Set
}

func newSourceDeps(cfg *config.Config) sourceDeps {
	return sourceDeps{
		pager:    cfg.Pager,
		breakers: circuit.NewSet(cfg.Pager.Breaker.Threshold, cfg.Pager.Breaker.Timeout()),
	}
}

func (d sourceDeps) backoff() pager.Backoff {
	return pager.Backoff{
		MaxAttempts: d.pager.Retry.MaxAttempts,
		BaseDelay:   d.pager.Retry.BaseDelay(),
		Multiplier:  d.pager.Retry.Multiplier,
	}
}

// buildSources 按配置顺序构建启用的数据源，任一失败即返回错误。
func buildSources(cfg *config.Config, deps sourceDeps) ([]export.Source, error) {
	enabled := cfg.EnabledSources()
	out := make([]export.Source, 0, len(enabled))
	for _, sc := range enabled {
		src, err := buildSource(sc, cfg.InstrumentFor(sc), deps)
		if err != nil {
			return nil, fmt.Errorf("初始化数据源 %s 失败: %w", sc.Name, err)
		}
		out = append(out, src)
	}
	return out, nil
}

func buildSource(sc config.SourceConfig, instrument string, deps sourceDeps) (export.Source, error) {
	src := export.Source{Name: sc.Name, Limit: sc.Limit}
	switch sc.Kind {
	case config.KindBinanceSDK:
		s, err := binancesdk.New(binancesdk.Config{
			RESTBaseURL:  sc.RESTBaseURL,
			HTTPTimeout:  deps.pager.Timeout(),
			ProxyEnabled: sc.Proxy.Enabled,
			RESTProxyURL: sc.Proxy.RESTURL,
		})
		if err != nil {
			return src, err
		}
		src.Adapter, src.Fetch = s.Adapter(), s.FetchPage
		src.Instrument = symbol.Binance.ToExchange(instrument)
		return src, nil
	case config.KindGateSDK:
		s, err := gatesdk.New(gatesdk.Config{
			RESTBaseURL:  sc.RESTBaseURL,
			HTTPTimeout:  deps.pager.Timeout(),
			ProxyEnabled: sc.Proxy.Enabled,
			RESTProxyURL: sc.Proxy.RESTURL,
		})
		if err != nil {
			return src, err
		}
		src.Adapter, src.Fetch = s.Adapter(), s.FetchPage
		src.Instrument = symbol.Gate.ToExchange(instrument)
		return src, nil
	}

	adapter, conv, err := restAdapter(sc)
	if err != nil {
		return src, err
	}
	mirrors, err := buildMirrors(sc.Mirrors)
	if err != nil {
		return src, err
	}
	client, err := fetch.New(fetch.Config{
		Timeout:      deps.pager.Timeout(),
		ProxyEnabled: sc.Proxy.Enabled,
		ProxyURL:     sc.Proxy.RESTURL,
	})
	if err != nil {
		return src, err
	}
	rf := pager.NewRouteFetcher(adapter, exchange.NewResolver(mirrors), client, deps.backoff(), deps.breakers)
	src.Adapter, src.Fetch = adapter, rf.FetchPage
	src.Instrument = conv.ToExchange(instrument)
	return src, nil
}

func restAdapter(sc config.SourceConfig) (exchange.Adapter, symbol.Converter, error) {
	switch sc.Kind {
	case config.KindOKX:
		return okx.New(sc.RESTBaseURL, sc.OKXHistory), symbol.OKX, nil
	case config.KindBinance:
		return binancerest.New(sc.RESTBaseURL), symbol.Binance, nil
	case config.KindBybit:
		return bybit.New(sc.RESTBaseURL), symbol.Bybit, nil
	case config.KindKuCoin:
		return kucoin.New(sc.RESTBaseURL), symbol.KuCoin, nil
	case config.KindGate:
		return gaterest.New(sc.RESTBaseURL), symbol.Gate, nil
	default:
		return nil, nil, fmt.Errorf("不支持的数据源类型: %s", sc.Kind)
	}
}

func buildMirrors(list []config.MirrorConfig) ([]exchange.Mirror, error) {
	if len(list) == 0 {
		return nil, nil
	}
	out := make([]exchange.Mirror, 0, len(list))
	for _, m := range list {
		mode, err := exchange.ParseMirrorMode(m.Mode)
		if err != nil {
			return nil, err
		}
		out = append(out, exchange.Mirror{URL: m.URL, Mode: mode})
	}
	return out, nil
}
