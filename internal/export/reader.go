package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"klinefetch/internal/market"

	"github.com/shopspring/decimal"
)

// ReadCSV 读回导出文件，保留文件中的原始顺序（审计需要据此发现重复与乱序）。
func ReadCSV(path string) ([]market.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRows(f)
}

// ReadRows 按表头列名取值，iso 列被忽略（由 ts 推导）。
func ReadRows(r io.Reader) ([]market.Candle, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("空文件")
		}
		return nil, err
	}
	idx := make(map[string]int, len(head))
	for i, name := range head {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	cols := make([]int, 0, 6)
	for _, name := range []string{"ts", "open", "high", "low", "close", "vol"} {
		i, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("缺少列 %q", name)
		}
		cols = append(cols, i)
	}

	var out []market.Candle
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		c, err := parseRecord(rec, cols)
		if err != nil {
			return nil, fmt.Errorf("第 %d 行: %w", line, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseRecord(rec []string, cols []int) (market.Candle, error) {
	get := func(i int) (string, error) {
		if cols[i] >= len(rec) {
			return "", fmt.Errorf("字段数不足")
		}
		return strings.TrimSpace(rec[cols[i]]), nil
	}
	raw, err := get(0)
	if err != nil {
		return market.Candle{}, err
	}
	ts, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("ts: %w", err)
	}
	c := market.Candle{OpenTime: ts}
	for i, dst := range []*decimal.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
		raw, err := get(i + 1)
		if err != nil {
			return market.Candle{}, err
		}
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return market.Candle{}, fmt.Errorf("%s: %w", Header[i+2], err)
		}
		*dst = v
	}
	return c, nil
}
