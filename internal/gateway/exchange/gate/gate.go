// Package gate 适配 Gate v4 /api/v4/spot/candlesticks（秒级时间，正向步长分页）。
package gate

import (
	"net/url"
	"strconv"
	"strings"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/market"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.gateio.ws"

// 行格式 [t, quote_volume, close, high, low, open, base_volume, closed]。
var columns = exchange.Columns{Time: 0, Close: 2, High: 3, Low: 4, Open: 5, Volume: 6, Seconds: true}

type Adapter struct {
	baseURL string
}

func New(baseURL string) *Adapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: baseURL}
}

func (a *Adapter) Name() string    { return "gate" }
func (a *Adapter) BaseURL() string { return a.baseURL }
func (a *Adapter) Path() string    { return "/api/v4/spot/candlesticks" }

// Envelope 成功时返回裸数组，失败时返回 {"label":"...","message":"..."}。
func (a *Adapter) Envelope() exchange.Envelope {
	return exchange.Envelope{CodePath: "label", MsgPath: "message"}
}

func (a *Adapter) Direction() market.Direction { return market.Forward }
func (a *Adapter) PageOrder() market.PageOrder { return market.Ascending }
func (a *Adapter) MaxLimit() int               { return 1000 }

// BuildQuery 指定 from/to 时 Gate 不接受 limit，步长由时间区间控制。
func (a *Adapter) BuildQuery(req exchange.Request) url.Values {
	req.Limit = exchange.ClampLimit(req.Limit, a.MaxLimit())
	q := url.Values{}
	q.Set("currency_pair", req.Instrument)
	q.Set("interval", req.Timeframe.Key)
	q.Set("from", strconv.FormatInt(req.Cursor/1000, 10))
	q.Set("to", strconv.FormatInt((req.StrideEnd()-1)/1000, 10))
	return q
}

// ParseRows 丢弃 closed=="false" 的未收盘 K 线（旧版接口没有该列）。
func (a *Adapter) ParseRows(data gjson.Result) ([]market.Candle, []error) {
	return exchange.ParseArrayRows(a.Name(), data, columns, func(row gjson.Result) bool {
		closed := row.Get("7")
		return closed.Exists() && closed.String() == "false"
	})
}

func (a *Adapter) NextCursor(req exchange.Request, rows []market.Candle) int64 {
	req.Limit = exchange.ClampLimit(req.Limit, a.MaxLimit())
	return exchange.ForwardNext(req, rows)
}
