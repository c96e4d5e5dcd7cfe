// Package kucoin 适配 KuCoin /api/v1/market/candles（秒级时间，正向步长分页，页内新到旧）。
package kucoin

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/market"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.kucoin.com"

// 行格式 [time, open, close, high, low, volume, turnover]，注意 close 在 high 之前。
var columns = exchange.Columns{Time: 0, Open: 1, Close: 2, High: 3, Low: 4, Volume: 5, Seconds: true}

type Adapter struct {
	baseURL string
}

func New(baseURL string) *Adapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: baseURL}
}

func (a *Adapter) Name() string    { return "kucoin" }
func (a *Adapter) BaseURL() string { return a.baseURL }
func (a *Adapter) Path() string    { return "/api/v1/market/candles" }

func (a *Adapter) Envelope() exchange.Envelope {
	return exchange.Envelope{CodePath: "code", MsgPath: "msg", SuccessCodes: []string{"200000"}, DataPath: "data"}
}

func (a *Adapter) Direction() market.Direction { return market.Forward }
func (a *Adapter) PageOrder() market.PageOrder { return market.Descending }
func (a *Adapter) MaxLimit() int               { return 1500 }

// BuildQuery 没有 limit 参数，步长由 [startAt, endAt] 控制。
func (a *Adapter) BuildQuery(req exchange.Request) url.Values {
	req.Limit = exchange.ClampLimit(req.Limit, a.MaxLimit())
	q := url.Values{}
	q.Set("type", Type(req.Timeframe))
	q.Set("symbol", req.Instrument)
	q.Set("startAt", strconv.FormatInt(req.Cursor/1000, 10))
	q.Set("endAt", strconv.FormatInt((req.StrideEnd()-1)/1000, 10))
	return q
}

func (a *Adapter) ParseRows(data gjson.Result) ([]market.Candle, []error) {
	return exchange.ParseArrayRows(a.Name(), data, columns, nil)
}

func (a *Adapter) NextCursor(req exchange.Request, rows []market.Candle) int64 {
	req.Limit = exchange.ClampLimit(req.Limit, a.MaxLimit())
	return exchange.ForwardNext(req, rows)
}

// Type 返回 KuCoin 的周期写法，如 15min / 1hour / 1day。
func Type(tf market.Timeframe) string {
	n, unit := tf.Unit()
	switch unit {
	case 'h':
		return fmt.Sprintf("%dhour", n)
	case 'd':
		return fmt.Sprintf("%dday", n)
	default:
		return fmt.Sprintf("%dmin", n)
	}
}
