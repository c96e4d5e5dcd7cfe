// Package exchange 定义各交易所 K 线 REST 接口的统一适配契约：
// 请求参数构造、响应分类、行解析与游标推进。
package exchange

import (
	"net/url"

	"klinefetch/internal/market"

	"github.com/tidwall/gjson"
)

// Request 是一次翻页请求的通用描述。
type Request struct {
	Instrument string // 交易所原生交易对，如 ETH-USDT / ETHUSDT / ETH_USDT
	Timeframe  market.Timeframe
	Cursor     int64 // 毫秒
	Limit      int
	Window     market.Window
}

// StrideEnd 返回正向分页本次步长的终点（不含），不超过窗口末端。
func (r Request) StrideEnd() int64 {
	end := r.Cursor + int64(r.Limit)*r.Timeframe.Millis()
	if end > r.Window.End {
		end = r.Window.End
	}
	return end
}

// Adapter 把通用请求翻译成交易所的原生参数与行格式。
type Adapter interface {
	Name() string
	BaseURL() string
	Path() string
	Envelope() Envelope
	Direction() market.Direction
	PageOrder() market.PageOrder
	MaxLimit() int
	BuildQuery(Request) url.Values
	// ParseRows 返回可用的 K 线（保持交易所原始顺序）与被丢弃行的 *RowError。
	ParseRows(gjson.Result) ([]market.Candle, []error)
	// NextCursor 接收已按升序排列的本页数据。
	NextCursor(Request, []market.Candle) int64
}

// StartCursor 返回遍历起点：反向从窗口末端开始，正向从窗口起点开始。
func StartCursor(d market.Direction, w market.Window) int64 {
	if d == market.Backward {
		return w.End
	}
	return w.Start
}

// Exhausted 判断游标是否已越过窗口边界。
func Exhausted(d market.Direction, cursor int64, w market.Window) bool {
	if d == market.Backward {
		return cursor <= w.Start
	}
	return cursor >= w.End
}

// ClampLimit 把配置的 limit 限制在 (0, max]。
func ClampLimit(limit, max int) int {
	if limit <= 0 || limit > max {
		return max
	}
	return limit
}

// ForwardNext 是正向步长分页的游标推进规则：空页直接跳到步长终点，否则为最后一根 + bar。
func ForwardNext(req Request, rows []market.Candle) int64 {
	if len(rows) == 0 {
		return req.StrideEnd()
	}
	return rows[len(rows)-1].OpenTime + req.Timeframe.Millis()
}
