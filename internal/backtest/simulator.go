package backtest

import (
	"context"
	"fmt"
	"math"
	"time"

	"klinefetch/internal/logger"
	"klinefetch/internal/market"
	"klinefetch/internal/pkg/trading"
)

const marginEps = 1e-12

var log = logger.Named("backtest")

// position 是单向持仓状态。
type position struct {
	open     bool
	dir      int
	entry    float64
	size     float64
	margin   float64
	peak     float64
	scaledIn bool
	tpTaken  bool
	openedAt int64
}

type simulator struct {
	cfg     Config
	b       *bars
	equity  float64
	pos     position
	lastWin *bool
	trades  []Trade
}

// Run 在升序 K 线上逐根回放策略，返回全部交易记录与汇总。
func Run(ctx context.Context, series market.Series, cfg Config) (Result, error) {
	cfg = cfg.withDefaults()
	start := warmup(cfg)
	if len(series) <= start {
		return Result{}, fmt.Errorf("K 线不足: %d <= %d", len(series), start)
	}
	if !series.Increasing() {
		return Result{}, fmt.Errorf("K 线未按时间严格递增")
	}
	sim := &simulator{cfg: cfg, b: newBars(series, cfg), equity: cfg.InitialEquity}
	for i := start; i < len(series); i++ {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return Result{}, err
			}
		}
		sim.step(i)
	}
	stats := summarize(sim.trades, cfg.InitialEquity, sim.equity)
	stats.Rows = len(series) - start
	stats.From = series[start].Time()
	stats.To = series.Last().Time()
	log.Infof("回放完成 bars=%d trades=%d equity=%.4f return=%.2f%%",
		stats.Rows, stats.Trades, stats.FinalEquity, stats.ReturnPct*100)
	return Result{Config: cfg, Stats: stats, Trades: sim.trades}, nil
}

func (s *simulator) atrMult() float64 {
	switch {
	case s.lastWin == nil:
		return s.cfg.ATRMultBase
	case *s.lastWin:
		return s.cfg.ATRMultWin
	default:
		return s.cfg.ATRMultLoss
	}
}

func (s *simulator) step(i int) {
	if s.pos.open && s.pos.size > 0 {
		s.manage(i)
	}
	if !s.pos.open && s.equity > 0 {
		s.tryOpen(i)
	}
}

func (s *simulator) manage(i int) {
	cfg := s.cfg
	p := &s.pos
	c, h, l := s.b.close[i], s.b.high[i], s.b.low[i]
	dir := float64(p.dir)

	if p.dir == 1 {
		p.peak = math.Max(p.peak, h)
	} else {
		p.peak = math.Min(p.peak, l)
	}

	// 浮盈达到阈值后把保证金加到权益的目标比例，按名义价值加权入场价。
	pnl := (c - p.entry) * dir * p.size
	if !p.scaledIn && pnl/(p.margin+marginEps) >= cfg.ScaleInTrigger && s.equity > 0 {
		target := s.equity * cfg.ScaleInEquityRatio
		if target > p.margin*1.01 {
			addNotional := (target - p.margin) * cfg.Leverage
			addSize := addNotional / c
			notional := p.margin*cfg.Leverage + addNotional
			p.size += addSize
			p.entry = notional / p.size
			p.margin = target
			p.scaledIn = true
		}
	}

	gain := (p.peak - p.entry) / p.entry * dir
	ddFromPeak := (p.peak - c) / p.peak * dir

	if !p.tpTaken && gain >= cfg.PartialTPTrigger {
		s.partialTakeProfit(i)
		if !p.open {
			return
		}
	}

	stop := p.entry - dir*s.b.atr[i]*s.atrMult()
	if gain >= cfg.TrailTrigger {
		trail := p.peak * (1 - dir*cfg.TrailBack)
		if p.dir == 1 {
			stop = math.Max(stop, trail)
		} else {
			stop = math.Min(stop, trail)
		}
	}

	switch {
	case p.scaledIn && ddFromPeak >= cfg.ScaleInDDExit:
		s.close(i, c, ReasonScaleInDD)
	case p.dir == 1 && l <= stop, p.dir == -1 && h >= stop:
		s.close(i, stop, ReasonStop)
	}
}

func (s *simulator) partialTakeProfit(i int) {
	cfg := s.cfg
	p := &s.pos
	dir := float64(p.dir)
	price := p.entry * (1 + dir*cfg.PartialTPTrigger)
	closeSize := trading.CloseAmount(p.size, cfg.PartialTPFraction)
	fee := closeSize * price * cfg.FeeRate
	pnl := (price-p.entry)*dir*closeSize - fee
	s.equity += pnl

	remain := p.size - closeSize
	if p.size > 0 {
		p.margin *= remain / p.size
	}
	p.size = remain
	p.tpTaken = true
	s.trades = append(s.trades, Trade{
		OpenedAt:       time.UnixMilli(p.openedAt).UTC(),
		ClosedAt:       time.UnixMilli(s.b.ts[i]).UTC(),
		Direction:      p.dir,
		EntryPrice:     p.entry,
		ExitPrice:      price,
		Reason:         ReasonPartialTP,
		Margin:         p.margin,
		PnL:            pnl,
		PnLPctOnMargin: pnl / (p.margin + marginEps),
		EquityAfter:    s.equity,
	})
	if p.size <= 0 {
		*p = position{}
	}
}

func (s *simulator) close(i int, price float64, reason string) {
	cfg := s.cfg
	p := s.pos
	fee := p.size * price * cfg.FeeRate
	pnl := (price-p.entry)*float64(p.dir)*p.size - fee
	s.equity += pnl
	win := pnl > 0
	s.lastWin = &win
	s.trades = append(s.trades, Trade{
		OpenedAt:       time.UnixMilli(p.openedAt).UTC(),
		ClosedAt:       time.UnixMilli(s.b.ts[i]).UTC(),
		Direction:      p.dir,
		EntryPrice:     p.entry,
		ExitPrice:      price,
		Reason:         reason,
		Margin:         p.margin,
		PnL:            pnl,
		PnLPctOnMargin: pnl / (p.margin + marginEps),
		EquityAfter:    s.equity,
	})
	s.pos = position{}
}

func (s *simulator) tryOpen(i int) {
	cfg := s.cfg
	trend := s.b.trend(i)
	if trend == 0 {
		return
	}
	rsi := s.b.rsi[i]
	if (trend == 1 && rsi <= cfg.RSILong) || (trend == -1 && rsi >= cfg.RSIShort) {
		return
	}
	c := s.b.close[i]
	margin := s.equity * cfg.InitialMarginRatio
	notional := margin * cfg.Leverage
	if margin <= 0 || c <= 0 {
		return
	}
	fee := notional * cfg.FeeRate
	s.equity -= fee
	s.pos = position{
		open:     true,
		dir:      trend,
		entry:    c,
		size:     notional / c,
		margin:   margin,
		peak:     c,
		openedAt: s.b.ts[i],
	}
	s.trades = append(s.trades, Trade{
		OpenedAt:    time.UnixMilli(s.b.ts[i]).UTC(),
		Direction:   trend,
		EntryPrice:  c,
		Reason:      ReasonOpen,
		Margin:      margin,
		PnL:         -fee,
		EquityAfter: s.equity,
	})
}

// summarize 只统计平仓记录，最大回撤按全部记录的权益曲线计算。
func summarize(trades []Trade, initial, final float64) Stats {
	st := Stats{InitialEquity: initial, FinalEquity: final}
	var winSum, lossSum float64
	for _, t := range trades {
		if !t.Closed() {
			continue
		}
		st.Trades++
		st.TotalPnL += t.PnL
		switch {
		case t.PnL > 0:
			st.Wins++
			winSum += t.PnL
		case t.PnL < 0:
			st.Losses++
			lossSum += t.PnL
		default:
			st.Flats++
		}
	}
	if st.Trades > 0 {
		st.WinRate = float64(st.Wins) / float64(st.Trades)
	}
	if st.Wins > 0 {
		st.AvgWin = winSum / float64(st.Wins)
	}
	if st.Losses > 0 {
		st.AvgLoss = lossSum / float64(st.Losses)
	}

	peak := initial
	for _, t := range trades {
		peak = math.Max(peak, t.EquityAfter)
		if peak > 0 {
			st.MaxDrawdownPct = math.Max(st.MaxDrawdownPct, (peak-t.EquityAfter)/peak)
		}
	}
	if initial > 0 {
		st.ReturnPct = (final - initial) / initial
	}
	return st
}
