package exchange

import (
	"fmt"

	"klinefetch/internal/market"
	"klinefetch/internal/pkg/convert"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// RowError 表示单行缺字段或字段非数字；该行被丢弃，不影响整页。
type RowError struct {
	Exchange string
	Index    int
	Reason   string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s row %d: %s", e.Exchange, e.Index, e.Reason)
}

// Columns 描述数组行中各字段的下标。
type Columns struct {
	Time, Open, High, Low, Close, Volume int
	// Seconds 为 true 时时间列单位为秒。
	Seconds bool
}

func (c Columns) width() int {
	return max(c.Time, c.Open, c.High, c.Low, c.Close, c.Volume) + 1
}

// ParseArrayRows 解析 array-of-arrays 形式的行。skip 返回 true 的行静默跳过（如未收盘的 K 线）。
func ParseArrayRows(exchange string, data gjson.Result, cols Columns, skip func(gjson.Result) bool) ([]market.Candle, []error) {
	var (
		rows []market.Candle
		errs []error
	)
	idx := 0
	data.ForEach(func(_, row gjson.Result) bool {
		i := idx
		idx++
		if skip != nil && skip(row) {
			return true
		}
		c, err := parseRow(row, cols)
		if err != nil {
			errs = append(errs, &RowError{Exchange: exchange, Index: i, Reason: err.Error()})
			return true
		}
		rows = append(rows, c)
		return true
	})
	return rows, errs
}

func parseRow(row gjson.Result, cols Columns) (market.Candle, error) {
	if !row.IsArray() {
		return market.Candle{}, fmt.Errorf("not an array")
	}
	fields := row.Array()
	if len(fields) < cols.width() {
		return market.Candle{}, fmt.Errorf("expected at least %d fields, got %d", cols.width(), len(fields))
	}
	ts, err := convert.Int64(fields[cols.Time])
	if err != nil {
		return market.Candle{}, fmt.Errorf("time: %w", err)
	}
	if cols.Seconds {
		ts *= 1000
	}
	if ts <= 0 {
		return market.Candle{}, fmt.Errorf("time: non-positive %d", ts)
	}
	c := market.Candle{OpenTime: ts}
	for _, f := range []struct {
		name string
		idx  int
		dst  *decimal.Decimal
	}{
		{"open", cols.Open, &c.Open},
		{"high", cols.High, &c.High},
		{"low", cols.Low, &c.Low},
		{"close", cols.Close, &c.Close},
		{"volume", cols.Volume, &c.Volume},
	} {
		v, err := convert.Decimal(fields[f.idx])
		if err != nil {
			return market.Candle{}, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return c, nil
}
