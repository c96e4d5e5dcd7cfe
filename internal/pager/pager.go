// Package pager 驱动单个数据源的完整翻页：游标推进、去重合并、停滞与空页检测、窗口边界停止。
package pager

import (
	"context"
	"fmt"
	"time"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"

	"golang.org/x/time/rate"
)

// PageFunc 获取一页 K 线（任意顺序）；REST 源由 RouteFetcher 实现，SDK 源由各自的 Source 实现。
type PageFunc func(ctx context.Context, req exchange.Request) ([]market.Candle, error)

type StopReason int

const (
	StopWindowDone StopReason = iota
	StopStalled
	StopEmptyStreak
	StopPageLimit
)

func (r StopReason) String() string {
	switch r {
	case StopWindowDone:
		return "window_done"
	case StopStalled:
		return "cursor_stalled"
	case StopEmptyStreak:
		return "empty_streak"
	case StopPageLimit:
		return "page_limit"
	default:
		return "unknown"
	}
}

type Config struct {
	MaxPages         int
	MaxEmptyPages    int
	PageDelay        time.Duration
	DropInconsistent bool
}

func (c Config) withDefaults() Config {
	if c.MaxPages <= 0 {
		c.MaxPages = 1000
	}
	if c.MaxEmptyPages <= 0 {
		c.MaxEmptyPages = 3
	}
	if c.PageDelay < 0 {
		c.PageDelay = 0
	}
	return c
}

// Plan 描述一次翻页任务。Limit<=0 时使用适配器的最大值。
type Plan struct {
	Source     string
	Adapter    exchange.Adapter
	Fetch      PageFunc
	Instrument string
	Timeframe  market.Timeframe
	Window     market.Window
	Limit      int
}

type Result struct {
	Source       string
	Rows         market.Series
	Pages        int
	Stop         StopReason
	DroppedRows  int // 窗口外或（开启时）OHLC 不一致而丢弃的行
	Inconsistent int
}

type Pager struct {
	cfg Config
	log logger.Tagged
}

func New(cfg Config) *Pager {
	return &Pager{cfg: cfg.withDefaults(), log: logger.Named("pager")}
}

// Run 顺序翻页直到越过窗口、游标停滞、连续空页超限或达到页数上限。
// 任一页在所有路由上都失败时返回错误，交由上层切换数据源。
func (p *Pager) Run(ctx context.Context, plan Plan) (Result, error) {
	res := Result{Source: plan.Source}
	if plan.Adapter == nil || plan.Fetch == nil {
		return res, fmt.Errorf("%s: adapter 和 fetch 不能为空", plan.Source)
	}
	if !plan.Window.Valid() {
		return res, fmt.Errorf("%s: 无效窗口 %s", plan.Source, plan.Window)
	}

	a := plan.Adapter
	dir := a.Direction()
	limit := exchange.ClampLimit(plan.Limit, a.MaxLimit())
	limiter := rate.NewLimiter(rate.Inf, 1)
	if p.cfg.PageDelay > 0 {
		limiter = rate.NewLimiter(rate.Every(p.cfg.PageDelay), 1)
	}

	acc := market.NewAccumulator()
	cursor := exchange.StartCursor(dir, plan.Window)
	emptyStreak := 0
	stopped := false

	p.log.Infof("%s 开始翻页 %s dir=%s limit=%d", plan.Source, plan.Window, dir, limit)
	for res.Pages < p.cfg.MaxPages {
		if exchange.Exhausted(dir, cursor, plan.Window) {
			res.Stop, stopped = StopWindowDone, true
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			res.Rows = acc.Series()
			return res, err
		}

		req := exchange.Request{
			Instrument: plan.Instrument,
			Timeframe:  plan.Timeframe,
			Cursor:     cursor,
			Limit:      limit,
			Window:     plan.Window,
		}
		raw, err := plan.Fetch(ctx, req)
		res.Pages++
		if err != nil {
			res.Rows = acc.Series()
			return res, fmt.Errorf("%s 第 %d 页 (cursor=%d): %w", plan.Source, res.Pages, cursor, err)
		}

		rows := p.normalize(plan.Source, raw, a.PageOrder())
		next := a.NextCursor(req, rows)

		kept := p.filter(plan.Source, rows, plan.Window, &res)
		added := acc.Add(kept)
		p.log.Debugf("%s 第 %d 页 rows=%d new=%d cursor=%d->%d", plan.Source, res.Pages, len(rows), added, cursor, next)

		if len(rows) == 0 {
			emptyStreak++
			if emptyStreak > p.cfg.MaxEmptyPages {
				res.Stop, stopped = StopEmptyStreak, true
				p.log.Warnf("%s 连续 %d 页为空，停止", plan.Source, emptyStreak)
				break
			}
		} else {
			emptyStreak = 0
		}

		if !dir.Advanced(cursor, next) {
			res.Stop, stopped = StopStalled, true
			p.log.Warnf("%s 游标未推进 (%d -> %d)，停止", plan.Source, cursor, next)
			break
		}
		cursor = next
	}
	if !stopped {
		if exchange.Exhausted(dir, cursor, plan.Window) {
			res.Stop = StopWindowDone
		} else {
			res.Stop = StopPageLimit
			p.log.Warnf("%s 达到页数上限 %d", plan.Source, p.cfg.MaxPages)
		}
	}

	res.Rows = acc.Series()
	p.log.Infof("%s 翻页结束 pages=%d rows=%d stop=%s dropped=%d inconsistent=%d",
		plan.Source, res.Pages, len(res.Rows), res.Stop, res.DroppedRows, res.Inconsistent)
	return res, nil
}

// normalize 按声明的页序转为升序；实际顺序与声明不符时稳定排序并告警。
func (p *Pager) normalize(source string, raw []market.Candle, order market.PageOrder) []market.Candle {
	rows := make([]market.Candle, len(raw))
	copy(rows, raw)
	if order == market.Descending {
		market.Reverse(rows)
	}
	if !market.Series(rows).Increasing() {
		p.log.Warnf("%s 返回的页与声明顺序 %s 不符，已重新排序", source, order)
		market.SortAscending(rows)
	}
	return rows
}

func (p *Pager) filter(source string, rows []market.Candle, w market.Window, res *Result) []market.Candle {
	in := w.Clip(rows)
	res.DroppedRows += len(rows) - len(in)
	out := in[:0]
	for _, c := range in {
		if !c.Consistent() {
			res.Inconsistent++
			p.log.Warnf("%s %s OHLC 不一致 o=%s h=%s l=%s c=%s", source, c.ISO(), c.Open, c.High, c.Low, c.Close)
			if p.cfg.DropInconsistent {
				res.DroppedRows++
				continue
			}
		}
		out = append(out, c)
	}
	return out
}
