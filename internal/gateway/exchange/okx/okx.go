// Package okx 适配 OKX v5 行情 K 线接口（反向游标分页）。
package okx

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/market"

	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://www.okx.com"
	historyPath    = "/api/v5/market/history-candles"
	recentPath     = "/api/v5/market/candles"
)

var columns = exchange.Columns{Time: 0, Open: 1, High: 2, Low: 3, Close: 4, Volume: 5}

// Adapter 从窗口末端往历史翻页：after=游标，返回早于游标的数据，新到旧排列。
// history=true 走 history-candles（单页 100），否则 candles（单页 300，仅覆盖近期）。
type Adapter struct {
	baseURL string
	history bool
}

func New(baseURL string, history bool) *Adapter {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	return &Adapter{baseURL: baseURL, history: history}
}

func (a *Adapter) Name() string    { return "okx" }
func (a *Adapter) BaseURL() string { return a.baseURL }

func (a *Adapter) Path() string {
	if a.history {
		return historyPath
	}
	return recentPath
}

func (a *Adapter) Envelope() exchange.Envelope {
	return exchange.Envelope{CodePath: "code", MsgPath: "msg", SuccessCodes: []string{"0"}, DataPath: "data"}
}

func (a *Adapter) Direction() market.Direction { return market.Backward }
func (a *Adapter) PageOrder() market.PageOrder { return market.Descending }

func (a *Adapter) MaxLimit() int {
	if a.history {
		return 100
	}
	return 300
}

func (a *Adapter) BuildQuery(req exchange.Request) url.Values {
	q := url.Values{}
	q.Set("instId", req.Instrument)
	q.Set("bar", Bar(req.Timeframe))
	q.Set("after", strconv.FormatInt(req.Cursor, 10))
	q.Set("limit", strconv.Itoa(exchange.ClampLimit(req.Limit, a.MaxLimit())))
	return q
}

// ParseRows 丢弃 confirm=="0" 的未收盘 K 线。
func (a *Adapter) ParseRows(data gjson.Result) ([]market.Candle, []error) {
	return exchange.ParseArrayRows(a.Name(), data, columns, func(row gjson.Result) bool {
		confirm := row.Get("8")
		return confirm.Exists() && confirm.String() == "0"
	})
}

// NextCursor 取本页最早的时间戳；空页返回原游标，由分页器判定停滞。
func (a *Adapter) NextCursor(req exchange.Request, rows []market.Candle) int64 {
	if len(rows) == 0 {
		return req.Cursor
	}
	return rows[0].OpenTime
}

// Bar 返回 OKX 的周期写法：分钟小写，小时/天大写（15m / 1H / 1D）。
func Bar(tf market.Timeframe) string {
	n, unit := tf.Unit()
	switch unit {
	case 'h':
		return fmt.Sprintf("%dH", n)
	case 'd':
		return fmt.Sprintf("%dD", n)
	default:
		return tf.Key
	}
}
