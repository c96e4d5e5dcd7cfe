// Package quality 在采用某个数据源的结果之前校验行数与时间覆盖。
package quality

import (
	"errors"
	"fmt"
	"math"

	"klinefetch/internal/market"
)

var ErrRejected = errors.New("quality gate rejected")

// RejectError 说明拒绝原因；errors.Is(err, ErrRejected) 为 true。
type RejectError struct {
	Reason string
}

func (e *RejectError) Error() string { return "quality gate rejected: " + e.Reason }
func (e *RejectError) Is(target error) bool { return target == ErrRejected }

type Config struct {
	MinCoverageRatio float64
	ToleranceBars    int
}

func (c Config) withDefaults() Config {
	if c.MinCoverageRatio <= 0 || c.MinCoverageRatio > 1 {
		c.MinCoverageRatio = 0.95
	}
	if c.ToleranceBars <= 0 {
		c.ToleranceBars = 2
	}
	return c
}

type Gate struct {
	cfg Config
	tf  market.Timeframe
}

func New(cfg Config, tf market.Timeframe) *Gate {
	return &Gate{cfg: cfg.withDefaults(), tf: tf}
}

// MinRows 返回窗口所需的最少行数 ceil(floor(window/bar) * ratio)。
func (g *Gate) MinRows(w market.Window) int {
	expected := g.tf.ExpectedCandles(w)
	return int(math.Ceil(float64(expected) * g.cfg.MinCoverageRatio))
}

// Accept 同时检查行数和首尾覆盖，rows 须为升序。
func (g *Gate) Accept(rows market.Series, w market.Window) error {
	expected := g.tf.ExpectedCandles(w)
	if expected == 0 {
		return &RejectError{Reason: fmt.Sprintf("窗口 %s 不足一根 K 线", w)}
	}
	if len(rows) == 0 {
		return &RejectError{Reason: "没有数据"}
	}
	if need := g.MinRows(w); len(rows) < need {
		return &RejectError{Reason: fmt.Sprintf("行数不足 %d < %d (期望 %d, 比例 %.2f)",
			len(rows), need, expected, g.cfg.MinCoverageRatio)}
	}
	tol := int64(g.cfg.ToleranceBars) * g.tf.Millis()
	first, last := rows.First(), rows.Last()
	if lag := first.OpenTime - w.Start; lag > tol {
		return &RejectError{Reason: fmt.Sprintf("起点覆盖不足: 首根 %s 晚于窗口起点 %d 根",
			first.ISO(), lag/g.tf.Millis())}
	}
	if lag := (w.End - g.tf.Millis()) - last.OpenTime; lag > tol {
		return &RejectError{Reason: fmt.Sprintf("终点覆盖不足: 末根 %s 早于窗口末端 %d 根",
			last.ISO(), lag/g.tf.Millis())}
	}
	return nil
}
