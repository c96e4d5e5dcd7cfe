package pager

import (
	"context"
	"errors"
	"fmt"

	"klinefetch/internal/gateway/exchange"
	"klinefetch/internal/logger"
	"klinefetch/internal/market"
	"klinefetch/internal/pkg/circuit"
)

// TextFetcher 是 HTTP 取数层的最小接口（fetch.Client 实现）。
type TextFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// RouteFetcher 是 REST 数据源的 PageFunc：按路由顺序尝试，每条路由内按 Backoff 重试，
// 取数或分类失败才切换到下一条路由。
type RouteFetcher struct {
	Adapter  exchange.Adapter
	Resolver *exchange.Resolver
	Client   TextFetcher
	Backoff  Backoff
	Breakers *circuit.Set
	Sleep    SleepFunc

	log logger.Tagged
}

func NewRouteFetcher(a exchange.Adapter, r *exchange.Resolver, c TextFetcher, b Backoff, breakers *circuit.Set) *RouteFetcher {
	return &RouteFetcher{
		Adapter:  a,
		Resolver: r,
		Client:   c,
		Backoff:  b.withDefaults(),
		Breakers: breakers,
		log:      logger.Named(a.Name()),
	}
}

// FetchPage 满足 PageFunc。
func (f *RouteFetcher) FetchPage(ctx context.Context, req exchange.Request) ([]market.Candle, error) {
	routes := f.Resolver.Routes(f.Adapter, f.Adapter.BuildQuery(req))
	backoff := f.Backoff.withDefaults()
	sleep := f.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var failures []error
	for i, route := range routes {
		last := i == len(routes)-1
		var cb *circuit.CircuitBreaker
		if f.Breakers != nil {
			cb = f.Breakers.Get(f.Adapter.Name() + "/" + route.Name)
			if !last && !cb.Allow() {
				f.log.Debugf("路由 %s 熔断中，跳过", route.Name)
				continue
			}
		}
		rows, err := f.tryRoute(ctx, route, backoff, sleep)
		if err == nil {
			if cb != nil {
				cb.RecordSuccess()
			}
			if i > 0 {
				f.log.Infof("回退路由 %s 成功", route.Name)
			}
			return rows, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if cb != nil {
			cb.RecordFailure()
		}
		f.log.Warnf("路由 %s 失败: %v", route.Name, err)
		failures = append(failures, fmt.Errorf("%s: %w", route.Name, err))
	}
	return nil, fmt.Errorf("%s 全部 %d 条路由失败: %w", f.Adapter.Name(), len(routes), errors.Join(failures...))
}

func (f *RouteFetcher) tryRoute(ctx context.Context, route exchange.Route, b Backoff, sleep SleepFunc) ([]market.Candle, error) {
	var lastErr error
	for attempt := 1; attempt <= b.MaxAttempts; attempt++ {
		rows, err := f.fetchOnce(ctx, route)
		if err == nil {
			return rows, nil
		}
		lastErr = err
		if attempt == b.MaxAttempts {
			break
		}
		f.log.Debugf("%s 第 %d 次失败: %v", route.Name, attempt, err)
		if err := sleep(ctx, b.Delay(attempt)); err != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

func (f *RouteFetcher) fetchOnce(ctx context.Context, route exchange.Route) ([]market.Candle, error) {
	text, err := f.Client.FetchText(ctx, route.URL)
	if err != nil {
		return nil, err
	}
	data, err := exchange.Classify(text, f.Adapter.Envelope())
	if err != nil {
		return nil, err
	}
	rows, rowErrs := f.Adapter.ParseRows(data)
	for _, e := range rowErrs {
		f.log.Warnf("丢弃异常行: %v", e)
	}
	return rows, nil
}
