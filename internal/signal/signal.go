// Package signal 基于 EMA 快慢线计算"可交易/不可交易"信号。
package signal

import (
	"fmt"
	"math"
	"strings"

	"klinefetch/internal/market"

	"github.com/markcheno/go-talib"
)

type Direction string

const (
	Long  Direction = "long"
	Short Direction = "short"
	Flat  Direction = "flat"
)

// Params 中的百分比均以百分数表示（0.2 即 0.2%）。
type Params struct {
	Fast           int
	Slow           int
	SlopeBars      int
	MinDistancePct float64
	MinSlopePct    float64
}

func DefaultParams() Params {
	return Params{Fast: 34, Slow: 144, SlopeBars: 4, MinDistancePct: 0.2, MinSlopePct: 0.05}
}

func (p Params) withDefaults() Params {
	def := DefaultParams()
	if p.Fast <= 0 {
		p.Fast = def.Fast
	}
	if p.Slow <= 0 {
		p.Slow = def.Slow
	}
	if p.SlopeBars <= 0 {
		p.SlopeBars = def.SlopeBars
	}
	return p
}

// MinBars 返回计算所需的最少 K 线数。
func (p Params) MinBars() int {
	p = p.withDefaults()
	return max(p.Fast, p.Slow) + p.SlopeBars
}

type Signal struct {
	Time        int64     `json:"ts"`
	Close       float64   `json:"close"`
	EMAFast     float64   `json:"ema_fast"`
	EMASlow     float64   `json:"ema_slow"`
	DistancePct float64   `json:"distance_pct"`
	SlopePct    float64   `json:"slope_pct"`
	Direction   Direction `json:"direction"`
	Tradeable   bool      `json:"tradeable"`
	Reasons     []string  `json:"reasons,omitempty"`
}

// State 用于判断信号是否发生变化。
func (s Signal) State() string {
	return fmt.Sprintf("%s/%t", s.Direction, s.Tradeable)
}

func (s Signal) Summary() string {
	state := "不可交易"
	if s.Tradeable {
		state = "可交易"
	}
	out := fmt.Sprintf("%s %s close=%.2f ema_fast=%.2f ema_slow=%.2f 距离=%.3f%% 斜率=%.3f%%",
		state, s.Direction, s.Close, s.EMAFast, s.EMASlow, s.DistancePct, s.SlopePct)
	if len(s.Reasons) > 0 {
		out += " (" + strings.Join(s.Reasons, "; ") + ")"
	}
	return out
}

// Evaluate 在最后一根已收盘 K 线上计算信号：
// 快线在慢线上方为多、下方为空；两线距离与快线斜率都达到阈值且斜率与方向一致时可交易。
func Evaluate(series market.Series, p Params) (Signal, error) {
	p = p.withDefaults()
	if need := p.MinBars(); len(series) < need {
		return Signal{}, fmt.Errorf("K 线不足: %d < %d", len(series), need)
	}
	closes := series.Closes()
	fast := talib.Ema(closes, p.Fast)
	slow := talib.Ema(closes, p.Slow)
	last := len(closes) - 1

	sig := Signal{
		Time:    series.Last().OpenTime,
		Close:   closes[last],
		EMAFast: fast[last],
		EMASlow: slow[last],
	}
	if sig.Close <= 0 || sig.EMAFast <= 0 || sig.EMASlow <= 0 {
		return Signal{}, fmt.Errorf("无效价格 close=%f", sig.Close)
	}
	sig.DistancePct = math.Abs(sig.EMAFast-sig.EMASlow) / sig.Close * 100
	if prev := fast[last-p.SlopeBars]; prev > 0 {
		sig.SlopePct = (sig.EMAFast - prev) / prev * 100
	}

	eps := sig.Close * 1e-9
	switch {
	case sig.EMAFast-sig.EMASlow > eps:
		sig.Direction = Long
	case sig.EMASlow-sig.EMAFast > eps:
		sig.Direction = Short
	default:
		sig.Direction = Flat
	}

	sig.Tradeable = true
	if sig.Direction == Flat {
		sig.Tradeable = false
		sig.Reasons = append(sig.Reasons, "快慢线重合")
	}
	if sig.DistancePct < p.MinDistancePct {
		sig.Tradeable = false
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("距离 %.3f%% < %.3f%%", sig.DistancePct, p.MinDistancePct))
	}
	slope := sig.SlopePct
	if sig.Direction == Short {
		slope = -slope
	}
	if slope < p.MinSlopePct {
		sig.Tradeable = false
		sig.Reasons = append(sig.Reasons, fmt.Sprintf("斜率 %.3f%% 未达 %.3f%%", sig.SlopePct, p.MinSlopePct))
	}
	return sig, nil
}
