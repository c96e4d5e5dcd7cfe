// Package gate 通过 gateapi-go SDK 拉取现货 K 线，作为分页器的一种页面获取实现。
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"klinefetch/internal/gateway/exchange"
	adapter "klinefetch/internal/gateway/exchange/gate"
	"klinefetch/internal/gateway/fetch"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"

	"github.com/antihax/optional"
	gateapi "github.com/gateio/gateapi-go/v7"
	"github.com/tidwall/gjson"
)

const defaultGateREST = "https://api.gateio.ws/api/v4"

type Source struct {
	cfg     Config
	rest    *gateapi.APIClient
	adapter *adapter.Adapter
}

func New(cfg Config) (*Source, error) {
	final := cfg.withDefaults()
	restClient, err := newRESTClient(final)
	if err != nil {
		return nil, err
	}
	return &Source{
		cfg:     final,
		rest:    restClient,
		adapter: adapter.New(strings.TrimSuffix(final.RESTBaseURL, "/api/v4")),
	}, nil
}

func newRESTClient(cfg Config) (*gateapi.APIClient, error) {
	conf := gateapi.NewConfiguration()
	conf.BasePath = cfg.RESTBaseURL
	if conf.BasePath == "" {
		conf.BasePath = defaultGateREST
	} else if !strings.HasSuffix(conf.BasePath, "/api/v4") {
		conf.BasePath += "/api/v4"
	}
	httpClient, err := fetch.New(fetch.Config{
		Timeout:      cfg.HTTPTimeout,
		ProxyEnabled: cfg.ProxyEnabled,
		ProxyURL:     cfg.RESTProxyURL,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid gate REST proxy url: %w", err)
	}
	conf.HTTPClient = httpClient.HTTPClient()
	return gateapi.NewAPIClient(conf), nil
}

func (s *Source) Adapter() exchange.Adapter { return s.adapter }

// FetchPage 用 from/to（秒）请求一个步长；SDK 返回 [][]string，行解析沿用 REST 适配器，
// 未收盘（closed=false）的 K 线同样被过滤。
func (s *Source) FetchPage(ctx context.Context, req exchange.Request) ([]market.Candle, error) {
	if s == nil || s.rest == nil {
		return nil, fmt.Errorf("gate source not initialized")
	}
	req.Limit = exchange.ClampLimit(req.Limit, s.adapter.MaxLimit())
	opts := &gateapi.ListCandlesticksOpts{
		From:     optional.NewInt64(req.Cursor / 1000),
		To:       optional.NewInt64((req.StrideEnd() - 1) / 1000),
		Interval: optional.NewString(req.Timeframe.Key),
	}
	raw, _, err := s.rest.SpotApi.ListCandlesticks(ctx, req.Instrument, opts)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	rows, rowErrs := s.adapter.ParseRows(gjson.ParseBytes(body))
	for _, e := range rowErrs {
		logger.Warnf("[gate-sdk] %v", e)
	}
	return rows, nil
}
