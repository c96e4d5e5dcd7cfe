// Package backtest 用导出的 K 线 CSV 回放 EMA34/EMA144 趋势策略（ATR 自适应止损、RSI 过滤、
// 移动止盈、分级止盈、分段加仓）。
package backtest

import "time"

// Config 记录本次回放的参数快照。比例均为小数（0.08 即 8%）。
type Config struct {
	InitialEquity float64 `json:"initial_equity"`
	Leverage      float64 `json:"leverage"`
	FeeRate       float64 `json:"fee_rate"`

	EMAFast   int `json:"ema_fast"`
	EMASlow   int `json:"ema_slow"`
	ATRPeriod int `json:"atr_period"`
	RSIPeriod int `json:"rsi_period"`

	ATRMultBase float64 `json:"atr_mult_base"`
	ATRMultWin  float64 `json:"atr_mult_win"`
	ATRMultLoss float64 `json:"atr_mult_loss"`

	RSILong  float64 `json:"rsi_long"`
	RSIShort float64 `json:"rsi_short"`

	InitialMarginRatio float64 `json:"initial_margin_ratio"`
	TrailTrigger       float64 `json:"trail_trigger"`
	TrailBack          float64 `json:"trail_back"`
	PartialTPTrigger   float64 `json:"partial_tp_trigger"`
	PartialTPFraction  float64 `json:"partial_tp_fraction"`
	ScaleInTrigger     float64 `json:"scale_in_trigger"`
	ScaleInEquityRatio float64 `json:"scale_in_equity_ratio"`
	ScaleInDDExit      float64 `json:"scale_in_dd_exit"`
}

func DefaultConfig() Config {
	return Config{
		InitialEquity:      50,
		Leverage:           5,
		FeeRate:            0.0007,
		EMAFast:            34,
		EMASlow:            144,
		ATRPeriod:          34,
		RSIPeriod:          14,
		ATRMultBase:        3.5,
		ATRMultWin:         3.8,
		ATRMultLoss:        2.5,
		RSILong:            55,
		RSIShort:           45,
		InitialMarginRatio: 0.5,
		TrailTrigger:       0.08,
		TrailBack:          0.02,
		PartialTPTrigger:   0.10,
		PartialTPFraction:  0.5,
		ScaleInTrigger:     0.05,
		ScaleInEquityRatio: 0.75,
		ScaleInDDExit:      0.03,
	}
}

// withDefaults 用默认值填补零值字段。
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	fill := func(v *float64, d float64) {
		if *v <= 0 {
			*v = d
		}
	}
	fillInt := func(v *int, d int) {
		if *v <= 0 {
			*v = d
		}
	}
	fill(&c.InitialEquity, def.InitialEquity)
	fill(&c.Leverage, def.Leverage)
	if c.FeeRate < 0 {
		c.FeeRate = def.FeeRate
	}
	fillInt(&c.EMAFast, def.EMAFast)
	fillInt(&c.EMASlow, def.EMASlow)
	fillInt(&c.ATRPeriod, def.ATRPeriod)
	fillInt(&c.RSIPeriod, def.RSIPeriod)
	fill(&c.ATRMultBase, def.ATRMultBase)
	fill(&c.ATRMultWin, def.ATRMultWin)
	fill(&c.ATRMultLoss, def.ATRMultLoss)
	fill(&c.RSILong, def.RSILong)
	fill(&c.RSIShort, def.RSIShort)
	fill(&c.InitialMarginRatio, def.InitialMarginRatio)
	fill(&c.TrailTrigger, def.TrailTrigger)
	fill(&c.TrailBack, def.TrailBack)
	fill(&c.PartialTPTrigger, def.PartialTPTrigger)
	fill(&c.PartialTPFraction, def.PartialTPFraction)
	fill(&c.ScaleInTrigger, def.ScaleInTrigger)
	fill(&c.ScaleInEquityRatio, def.ScaleInEquityRatio)
	fill(&c.ScaleInDDExit, def.ScaleInDDExit)
	return c
}

const (
	ReasonOpen      = "open"
	ReasonPartialTP = "partial_tp"
	ReasonStop      = "atr_sl_or_trail"
	ReasonScaleInDD = "scalein_dd_exit"
)

// Trade 记录一次开仓、部分止盈或平仓。
type Trade struct {
	OpenedAt       time.Time `json:"opened_at"`
	ClosedAt       time.Time `json:"closed_at,omitempty"`
	Direction      int       `json:"direction"` // 1=多 -1=空
	EntryPrice     float64   `json:"entry_price"`
	ExitPrice      float64   `json:"exit_price,omitempty"`
	Reason         string    `json:"reason"`
	Margin         float64   `json:"margin"`
	PnL            float64   `json:"pnl"`
	PnLPctOnMargin float64   `json:"pnl_pct_on_margin"`
	EquityAfter    float64   `json:"equity_after"`
}

func (t Trade) Closed() bool { return t.Reason != ReasonOpen }

// Stats 汇总回放结果，胜负只统计平仓（含部分止盈）记录。
type Stats struct {
	Rows           int       `json:"rows"`
	From           time.Time `json:"from"`
	To             time.Time `json:"to"`
	Trades         int       `json:"trades"`
	Wins           int       `json:"wins"`
	Losses         int       `json:"losses"`
	Flats          int       `json:"flats"`
	WinRate        float64   `json:"win_rate"`
	TotalPnL       float64   `json:"total_pnl"`
	AvgWin         float64   `json:"avg_win"`
	AvgLoss        float64   `json:"avg_loss"`
	InitialEquity  float64   `json:"initial_equity"`
	FinalEquity    float64   `json:"final_equity"`
	MaxDrawdownPct float64   `json:"max_drawdown_pct"`
	ReturnPct      float64   `json:"return_pct"`
}

type Result struct {
	Config Config  `json:"config"`
	Stats  Stats   `json:"stats"`
	Trades []Trade `json:"trades"`
}
