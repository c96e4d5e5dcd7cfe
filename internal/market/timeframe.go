package market

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Timeframe 描述 K 线周期（内部 key + 时长）。
type Timeframe struct {
	Key      string
	Duration time.Duration
}

var supportedTimeframes = map[string]Timeframe{
	"1m":  {Key: "1m", Duration: time.Minute},
	"5m":  {Key: "5m", Duration: 5 * time.Minute},
	"15m": {Key: "15m", Duration: 15 * time.Minute},
	"30m": {Key: "30m", Duration: 30 * time.Minute},
	"1h":  {Key: "1h", Duration: time.Hour},
	"4h":  {Key: "4h", Duration: 4 * time.Hour},
	"1d":  {Key: "1d", Duration: 24 * time.Hour},
}

// ParseTimeframe 返回标准化周期定义。
func ParseTimeframe(input string) (Timeframe, error) {
	key := strings.ToLower(strings.TrimSpace(input))
	tf, ok := supportedTimeframes[key]
	if !ok {
		return Timeframe{}, fmt.Errorf("不支持的周期: %s（可选 %s）", input, strings.Join(SupportedTimeframes(), ","))
	}
	return tf, nil
}

// MustTimeframe 用于常量周期，非法输入直接 panic。
func MustTimeframe(input string) Timeframe {
	tf, err := ParseTimeframe(input)
	if err != nil {
		panic(err)
	}
	return tf
}

// SupportedTimeframes 返回所有支持的 key（排序后）。
func SupportedTimeframes() []string {
	keys := make([]string, 0, len(supportedTimeframes))
	for k := range supportedTimeframes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Millis 返回周期毫秒数。
func (tf Timeframe) Millis() int64 {
	return tf.Duration.Milliseconds()
}

// Minutes 返回周期分钟数。
func (tf Timeframe) Minutes() int {
	return int(tf.Duration / time.Minute)
}

// Unit 拆出数量与单位，如 "15m" -> (15, 'm')。
func (tf Timeframe) Unit() (int, byte) {
	if len(tf.Key) < 2 {
		return 0, 0
	}
	n, err := strconv.Atoi(tf.Key[:len(tf.Key)-1])
	if err != nil {
		return 0, 0
	}
	return n, tf.Key[len(tf.Key)-1]
}

// AlignDown 把毫秒时间戳向下对齐到周期网格。
func (tf Timeframe) AlignDown(ts int64) int64 {
	step := tf.Millis()
	if step <= 0 {
		return ts
	}
	rem := ts % step
	if rem < 0 {
		rem += step
	}
	return ts - rem
}

// ExpectedCandles 返回窗口 [Start, End) 内完整周期数 floor(duration/bar)。
func (tf Timeframe) ExpectedCandles(w Window) int64 {
	step := tf.Millis()
	if step <= 0 || w.End <= w.Start {
		return 0
	}
	return (w.End - w.Start) / step
}

// LastWindow 返回截止 now（向下对齐）往前 bars 根 K 线的窗口。
func (tf Timeframe) LastWindow(now time.Time, bars int) Window {
	end := tf.AlignDown(now.UnixMilli())
	return Window{Start: end - int64(bars)*tf.Millis(), End: end}
}
