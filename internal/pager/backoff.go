package pager

import (
	"context"
	"math"
	"time"
)

// Backoff 是所有数据源共用的重试策略：第 n 次失败后等待 base * multiplier^(n-1)。
type Backoff struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

func DefaultBackoff() Backoff {
	return Backoff{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2}
}

func (b Backoff) withDefaults() Backoff {
	def := DefaultBackoff()
	if b.MaxAttempts <= 0 {
		b.MaxAttempts = def.MaxAttempts
	}
	if b.BaseDelay < 0 {
		b.BaseDelay = 0
	}
	if b.Multiplier < 1 {
		b.Multiplier = 1
	}
	return b
}

// Delay 返回第 attempt 次（从 1 开始）失败后的等待时长。
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return time.Duration(float64(b.BaseDelay) * math.Pow(b.Multiplier, float64(attempt-1)))
}

// SleepFunc 可在测试中替换为不等待的实现。
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
