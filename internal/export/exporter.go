package export

import (
	"context"
	"errors"
	"fmt"
	"os"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"
	"klinefetch/internal/pager"

	"github.com/google/uuid"
)

// ErrNoSourceAvailable 表示所有数据源都失败或被质量门拒绝。
var ErrNoSourceAvailable = errors.New("no source available")

// Source 是回退链上的一个数据源。
type Source struct {
	Name       string
	Adapter    exchange.Adapter
	Fetch      pager.PageFunc
	Instrument string
	Limit      int
}

// Runner 运行单个数据源的翻页（*pager.Pager 实现）。
type Runner interface {
	Run(ctx context.Context, plan pager.Plan) (pager.Result, error)
}

// Acceptor 是质量门（*quality.Gate 实现）。
type Acceptor interface {
	Accept(rows market.Series, w market.Window) error
}

type Options struct {
	Timeframe     market.Timeframe
	MergeExisting bool
}

type Exporter struct {
	sources []Source
	runner  Runner
	gate    Acceptor
	opts    Options
	log     logger.Tagged
}

func NewExporter(sources []Source, runner Runner, gate Acceptor, opts Options) *Exporter {
	return &Exporter{
		sources: sources,
		runner:  runner,
		gate:    gate,
		opts:    opts,
		log:     logger.Named("export"),
	}
}

// Request 描述一次导出；Output 为空时只采集不写文件。
type Request struct {
	Window market.Window
	Output string
}

// Attempt 记录一个数据源的尝试结果。
type Attempt struct {
	Source string
	Pages  int
	Rows   int
	Stop   pager.StopReason
	Err    error
}

type Report struct {
	RunID    string
	Source   string
	Window   market.Window
	Rows     market.Series
	Output   string
	Written  int
	Attempts []Attempt
}

// Sources 返回回退链中的数据源名称（按优先级）。
func (e *Exporter) Sources() []string {
	names := make([]string, 0, len(e.sources))
	for _, s := range e.sources {
		names = append(names, s.Name)
	}
	return names
}

// Collect 按优先级依次运行数据源，返回第一个通过质量门的结果。
func (e *Exporter) Collect(ctx context.Context, w market.Window) (Report, error) {
	rep := Report{RunID: uuid.NewString(), Window: w}
	if len(e.sources) == 0 {
		return rep, fmt.Errorf("%w: 未配置数据源", ErrNoSourceAvailable)
	}
	e.log.Infof("run=%s 窗口 %s 数据源 %v", rep.RunID, w, e.Sources())

	var failures []error
	for _, src := range e.sources {
		if err := ctx.Err(); err != nil {
			return rep, err
		}
		res, err := e.runner.Run(ctx, pager.Plan{
			Source:     src.Name,
			Adapter:    src.Adapter,
			Fetch:      src.Fetch,
			Instrument: src.Instrument,
			Timeframe:  e.opts.Timeframe,
			Window:     w,
			Limit:      src.Limit,
		})
		attempt := Attempt{Source: src.Name, Pages: res.Pages, Rows: len(res.Rows), Stop: res.Stop}
		if err == nil {
			err = e.gate.Accept(res.Rows, w)
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return rep, ctxErr
			}
			attempt.Err = err
			rep.Attempts = append(rep.Attempts, attempt)
			failures = append(failures, fmt.Errorf("%s: %w", src.Name, err))
			e.log.Warnf("run=%s 数据源 %s 未通过 (pages=%d rows=%d stop=%s): %v",
				rep.RunID, src.Name, res.Pages, len(res.Rows), res.Stop, err)
			continue
		}
		rep.Attempts = append(rep.Attempts, attempt)
		rep.Source = src.Name
		rep.Rows = res.Rows
		e.log.Infof("run=%s 采用数据源 %s rows=%d", rep.RunID, src.Name, len(res.Rows))
		return rep, nil
	}

	for _, f := range failures {
		e.log.Errorf("run=%s %v", rep.RunID, f)
	}
	return rep, errors.Join(append([]error{ErrNoSourceAvailable}, failures...)...)
}

// Export 采集并原子写入 CSV；没有数据源通过时不产生任何文件。
func (e *Exporter) Export(ctx context.Context, req Request) (Report, error) {
	rep, err := e.Collect(ctx, req.Window)
	if err != nil {
		return rep, err
	}
	if req.Output == "" {
		return rep, nil
	}
	rows := rep.Rows
	if e.opts.MergeExisting {
		existing, err := ReadCSV(req.Output)
		switch {
		case err == nil:
			rows = market.Merge(existing, rows)
			e.log.Infof("run=%s 合并已有文件 %d 行 -> %d 行", rep.RunID, len(existing), len(rows))
		case errors.Is(err, os.ErrNotExist):
		default:
			return rep, fmt.Errorf("读取已有文件 %s 失败: %w", req.Output, err)
		}
	}
	if err := WriteCSV(req.Output, rows); err != nil {
		return rep, err
	}
	rep.Output = req.Output
	rep.Written = len(rows)
	e.log.Infof("run=%s 已写入 %s (%d 行)", rep.RunID, req.Output, len(rows))
	return rep, nil
}
