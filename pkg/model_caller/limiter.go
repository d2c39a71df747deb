package model_caller

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/time/rate"
)

// SlotLimiter 并发槽位限制器，本地信号量与 Redis 限制器均实现该接口
type SlotLimiter interface {
	Acquire(ctx context.Context, key string) error
	Release(ctx context.Context, key string)
}

// ConcurrencyLimiter 进程内并发限制器
type ConcurrencyLimiter struct {
	maxConcurrent int
	semaphore     chan struct{}
}

// NewConcurrencyLimiter 创建并发限制器
func NewConcurrencyLimiter(maxConcurrent int) *ConcurrencyLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &ConcurrencyLimiter{
		maxConcurrent: maxConcurrent,
		semaphore:     make(chan struct{}, maxConcurrent),
	}
}

// Acquire 获取并发槽位，阻塞直到有空位或 ctx 结束
func (cl *ConcurrencyLimiter) Acquire(ctx context.Context, key string) error {
	select {
	case cl.semaphore <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放并发槽位
func (cl *ConcurrencyLimiter) Release(ctx context.Context, key string) {
	select {
	case <-cl.semaphore:
	default:
	}
}

// GetMaxConcurrent 获取最大并发数
func (cl *ConcurrencyLimiter) GetMaxConcurrent() int {
	return cl.maxConcurrent
}

// LimitedCaller 为 StructuredCaller 加上并发槽位与速率限制
type LimitedCaller struct {
	next    StructuredCaller
	slots   SlotLimiter
	rate    *rate.Limiter
	slotKey string
}

// NewLimitedCaller 创建带限制的调用器；slots 为 nil 表示不限并发，rps<=0 表示不限速
func NewLimitedCaller(next StructuredCaller, slots SlotLimiter, slotKey string, rps float64) *LimitedCaller {
	lc := &LimitedCaller{next: next, slots: slots, slotKey: slotKey}
	if rps > 0 {
		burst := int(rps)
		if burst < 1 {
			burst = 1
		}
		lc.rate = rate.NewLimiter(rate.Limit(rps), burst)
	}
	return lc
}

// GenerateStructured 获取槽位与令牌后调用下游
func (lc *LimitedCaller) GenerateStructured(ctx context.Context, req StructuredRequest, out interface{}) error {
	if lc.rate != nil {
		if err := lc.rate.Wait(ctx); err != nil {
			err = fmt.Errorf("等待速率令牌失败: %w", err)
			// 令牌到达时间超过截止时间时 Wait 直接返回，不会等到 ctx 超时
			if _, ok := ctx.Deadline(); ok && !errors.Is(ctx.Err(), context.Canceled) {
				return &GenerationTimeout{Err: err}
			}
			return classifyError(err)
		}
	}
	if lc.slots != nil {
		if err := lc.slots.Acquire(ctx, lc.slotKey); err != nil {
			return classifyError(fmt.Errorf("获取并发槽位失败: %w", err))
		}
		defer lc.slots.Release(context.WithoutCancel(ctx), lc.slotKey)
	}
	return lc.next.GenerateStructured(ctx, req, out)
}
