package market

import (
	"time"

	"github.com/shopspring/decimal"
)

// ISOLayout 是导出 CSV 中 iso 列使用的格式（UTC，毫秒精度）。
const ISOLayout = "2006-01-02T15:04:05.000Z"

// Candle 是一根 OHLCV K 线；OpenTime 为 UTC 毫秒时间戳，指向 bar 的开始时刻。
// 价格与成交量保持交易所返回的十进制文本精度。成交量单位随交易所而异，不做换算。
type Candle struct {
	OpenTime int64           `json:"ts"`
	Open     decimal.Decimal `json:"open"`
	High     decimal.Decimal `json:"high"`
	Low      decimal.Decimal `json:"low"`
	Close    decimal.Decimal `json:"close"`
	Volume   decimal.Decimal `json:"vol"`
}

// Time 返回 bar 开始时刻（UTC）。
func (c Candle) Time() time.Time {
	return time.UnixMilli(c.OpenTime).UTC()
}

// ISO 返回 OpenTime 的 ISO-8601 文本。
func (c Candle) ISO() string {
	return c.Time().Format(ISOLayout)
}

// Consistent 检查 low <= open,close <= high。
func (c Candle) Consistent() bool {
	if c.Low.GreaterThan(c.High) {
		return false
	}
	for _, v := range []decimal.Decimal{c.Open, c.Close} {
		if v.LessThan(c.Low) || v.GreaterThan(c.High) {
			return false
		}
	}
	return true
}

// CloseFloat 供指标计算使用。
func (c Candle) CloseFloat() float64 {
	f, _ := c.Close.Float64()
	return f
}
