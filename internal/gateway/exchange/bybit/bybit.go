// Package bybit 适配 Bybit v5 /v5/market/kline（现货，正向步长分页，页内新到旧）。
package bybit

import (
	"net/url"
	"strconv"
	"strings"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/market"

	"github.com/tidwall/gjson"
)

const DefaultBaseURL = "https://api.bybit.com"

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

func (a *Adapter) Name() string    { return "bybit" }
func (a *Adapter) BaseURL() string { return a.baseURL }
func (a *Adapter) Path() string    { return "/v5/market/kline" }

func (a *Adapter) Envelope() exchange.Envelope {
	return exchange.Envelope{CodePath: "retCode", MsgPath: "retMsg", SuccessCodes: []string{"0"}, DataPath: "result.list"}
}

func (a *Adapter) Direction() market.Direction { return market.Forward }
func (a *Adapter) PageOrder() market.PageOrder { return market.Descending }
func (a *Adapter) MaxLimit() int               { return 1000 }

func (a *Adapter) BuildQuery(req exchange.Request) url.Values {
	req.Limit = exchange.ClampLimit(req.Limit, a.MaxLimit())
	q := url.Values{}
	q.Set("category", "spot")
	q.Set("symbol", req.Instrument)
	q.Set("interval", Interval(req.Timeframe))
	q.Set("start", strconv.FormatInt(req.Cursor, 10))
	q.Set("end", strconv.FormatInt(req.StrideEnd()-1, 10))
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

// Interval 返回 Bybit 的周期写法：分钟数，日线为 D。
func Interval(tf market.Timeframe) string {
	if _, unit := tf.Unit(); unit == 'd' {
		return "D"
	}
	return strconv.Itoa(tf.Minutes())
}
