// Package binance 通过 go-binance SDK 拉取现货 K 线，作为分页器的一种页面获取实现。
// 游标、步长与页序沿用 REST 适配器，只替换传输层。
package binance

import (
	"context"
	"fmt"

	"klinefetch/internal/gateway/exchange"
	adapter "klinefetch/internal/gateway/exchange/binance"
	"klinefetch/internal/gateway/fetch"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"

	sdk "github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// Source 基于 go-binance SDK 的 KlinesService。
type Source struct {
	cfg     Config
	client  *sdk.Client
	adapter *adapter.Adapter
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	httpClient, err := fetch.New(fetch.Config{
		Timeout:      final.HTTPTimeout,
		ProxyEnabled: final.ProxyEnabled,
		ProxyURL:     final.RESTProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("binance sdk http client: %w", err)
	}
	client := sdk.NewClient("", "")
	client.BaseURL = final.RESTBaseURL
	client.HTTPClient = httpClient.HTTPClient()
	return &Source{
		cfg:     final,
		client:  client,
		adapter: adapter.New(final.RESTBaseURL),
	}, nil
}

// Adapter 提供方向、页序与游标规则。
func (s *Source) Adapter() exchange.Adapter { return s.adapter }

// FetchPage 请求 [cursor, strideEnd) 的一页；无法解析的行记录后丢弃。
func (s *Source) FetchPage(ctx context.Context, req exchange.Request) ([]market.Candle, error) {
	if s == nil || s.client == nil {
		return nil, fmt.Errorf("binance source not initialized")
	}
	req.Limit = exchange.ClampLimit(req.Limit, s.adapter.MaxLimit())
	kls, err := s.client.NewKlinesService().
		Symbol(req.Instrument).
		Interval(req.Timeframe.Key).
		StartTime(req.Cursor).
		EndTime(req.StrideEnd() - 1).
		Limit(req.Limit).
		Do(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]market.Candle, 0, len(kls))
	for i, kl := range kls {
		if kl == nil {
			continue
		}
		c, err := convertKline(kl)
		if err != nil {
			logger.Warnf("[binance-sdk] 丢弃第 %d 行: %v", i, err)
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func convertKline(kl *sdk.Kline) (market.Candle, error) {
	c := market.Candle{OpenTime: kl.OpenTime}
	fields := []struct {
		name string
		raw  string
		dst  *decimal.Decimal
	}{
		{"open", kl.Open, &c.Open},
		{"high", kl.High, &c.High},
		{"low", kl.Low, &c.Low},
		{"close", kl.Close, &c.Close},
		{"volume", kl.Volume, &c.Volume},
	}
	for _, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return market.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	if c.OpenTime <= 0 {
		return market.Candle{}, fmt.Errorf("open time: non-positive %d", c.OpenTime)
	}
	return c, nil
}
