// Package scheduler 提供与 K 线收盘对齐的周期调度。
package scheduler

import (
	"context"
	"time"

	"klinefetch/internal/logger"
)

// Aligned 在每根 K 线收盘后 Offset 处执行任务：收盘时间按 Interval 对齐 UTC。
type Aligned struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	RunImmediately bool

	nowFn  func() time.Time
	waitFn func(ctx context.Context, d time.Duration) bool
}

func NewAligned(name string, interval, offset time.Duration) *Aligned {
	return &Aligned{
		Name:     name,
		Interval: interval,
		Offset:   offset,
		nowFn:    time.Now,
		waitFn:   wait,
	}
}

// NextRun 返回 now 之后（不含）的下一个执行时刻。
func (s *Aligned) NextRun(now time.Time) time.Time {
	now = now.UTC()
	offset := s.Offset % s.Interval
	if offset < 0 {
		offset = 0
	}
	next := now.Truncate(s.Interval).Add(offset)
	for !next.After(now) {
		next = next.Add(s.Interval)
	}
	return next
}

// Run 阻塞直到 ctx 结束；task 收到本次触发对应的收盘时刻。任务串行执行，
// 任务耗时超过一个周期时错过的触发点直接跳过。
func (s *Aligned) Run(ctx context.Context, task func(ctx context.Context, closeAt time.Time)) error {
	if s.Interval <= 0 {
		logger.Warnf("[scheduler] %s: invalid interval=%s, exit", s.Name, s.Interval)
		return nil
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.waitFn == nil {
		s.waitFn = wait
	}
	logger.Infof("[scheduler] %s: started interval=%s offset=%s run_immediately=%v",
		s.Name, s.Interval, s.Offset, s.RunImmediately)

	if s.RunImmediately {
		now := s.nowFn().UTC()
		task(ctx, now.Truncate(s.Interval))
	}
	for {
		now := s.nowFn().UTC()
		next := s.NextRun(now)
		closeAt := next.Truncate(s.Interval)
		logger.Infof("[scheduler] %s: 距离K线收盘=%s 下次执行=%s (in %s)",
			s.Name,
			closeAt.Add(s.Interval).Sub(now).Truncate(time.Second),
			next.Format(time.RFC3339),
			next.Sub(now).Truncate(time.Second))
		if !s.waitFn(ctx, next.Sub(now)) {
			logger.Infof("[scheduler] %s: ctx done, exit", s.Name)
			return ctx.Err()
		}
		task(ctx, closeAt)
	}
}

func wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
