// Package binance 适配 Binance 现货 /api/v3/klines（正向步长分页）。
package binance

import (
	"net/url"
	"strconv"
	"strings"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/market"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.binance.com"

var columns = exchange.Columns{Time: 0, Open: 1, High: 2, Low: 3, Close: 4, Volume: 5}

type Adapter struct {
	baseURL string
}

func New(baseURL string) *Adapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: baseURL}
}

func (a *Adapter) Name() string    { return "binance" }
func (a *Adapter) BaseURL() string { return a.baseURL }
func (a *Adapter) Path() string    { return "/api/v3/klines" }

// Envelope 成功时返回裸数组，失败时返回 {"code":-1121,"msg":"..."}。
func (a *Adapter) Envelope() exchange.Envelope {
	return exchange.Envelope{CodePath: "code", MsgPath: "msg"}
}

func (a *Adapter) Direction() market.Direction { return market.Forward }
func (a *Adapter) PageOrder() market.PageOrder { return market.Ascending }
func (a *Adapter) MaxLimit() int               { return 1000 }

// BuildQuery 请求 [cursor, strideEnd) 步长；endTime 为闭区间，故减 1ms。
func (a *Adapter) BuildQuery(req exchange.Request) url.Values {
	req.Limit = exchange.ClampLimit(req.Limit, a.MaxLimit())
	q := url.Values{}
	q.Set("symbol", req.Instrument)
	q.Set("interval", req.Timeframe.Key)
	q.Set("startTime", strconv.FormatInt(req.Cursor, 10))
	q.Set("endTime", strconv.FormatInt(req.StrideEnd()-1, 10))
	q.Set("limit", strconv.Itoa(req.Limit))
	return q
}

func (a *Adapter) ParseRows(data gjson.Result) ([]market.Candle, []error) {
	return exchange.ParseArrayRows(a.Name(), data, columns, nil)
}

func (a *Adapter) NextCursor(req exchange.Request, rows []market.Candle) int64 {
	req.Limit = exchange.ClampLimit(req.Limit, a.MaxLimit())
	return exchange.ForwardNext(req, rows)
}
