package redis_limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// acquireScript 当前值小于上限时加一并续期，否则返回上限加一表示失败
var acquireScript = redis.NewScript(`local current = redis.call('GET', KEYS[1])
if current == false then
	current = 0
else
	current = tonumber(current)
end

if current >= tonumber(ARGV[1]) then
	return tonumber(ARGV[1]) + 1
end

local newCount = redis.call('INCR', KEYS[1])
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
return newCount`)

// releaseScript 减一，归零后删除 key
var releaseScript = redis.NewScript(`local count = redis.call('DECR', KEYS[1])
if tonumber(count) <= 0 then
	redis.call('DEL', KEYS[1])
	return 0
end
redis.call('EXPIRE', KEYS[1], tonumber(ARGV[1]))
return count`)

// ErrSlotsExhausted 在等待时间内没有拿到槽位
type ErrSlotsExhausted struct {
	Key           string
	MaxConcurrent int
}

func (e *ErrSlotsExhausted) Error() string {
	return fmt.Sprintf("模型 %s 并发已达上限: %d", e.Key, e.MaxConcurrent)
}

// RedisLimiter 基于Redis的跨实例模型并发限制器
type RedisLimiter struct {
	client        redis.Scripter
	maxConcurrent int
	keyPrefix     string
	ttl           time.Duration
	pollInterval  time.Duration
	logger        *logrus.Logger
}

// NewRedisLimiter 创建基于Redis的并发限制器
func NewRedisLimiter(client redis.Scripter, maxConcurrent int, keyPrefix string, ttl time.Duration, logger *logrus.Logger) *RedisLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RedisLimiter{
		client:        client,
		maxConcurrent: maxConcurrent,
		keyPrefix:     keyPrefix,
		ttl:           ttl,
		pollInterval:  200 * time.Millisecond,
		logger:        logger,
	}
}

// TryAcquire 尝试获取一个槽位，不等待
func (rl *RedisLimiter) TryAcquire(ctx context.Context, key string) (bool, error) {
	redisKey := rl.keyPrefix + key

	result, err := acquireScript.Run(ctx, rl.client, []string{redisKey}, rl.maxConcurrent, int(rl.ttl.Seconds())).Int()
	if err != nil {
		return false, fmt.Errorf("执行Lua脚本失败: %w", err)
	}

	if result > rl.maxConcurrent {
		rl.logger.WithFields(logrus.Fields{"model": key, "max": rl.maxConcurrent}).Debug("模型槽位已满")
		return false, nil
	}

	rl.logger.WithFields(logrus.Fields{"model": key, "current": result, "max": rl.maxConcurrent}).Debug("获取模型槽位")
	return true, nil
}

// Acquire 轮询获取槽位，直到成功或 ctx 结束
func (rl *RedisLimiter) Acquire(ctx context.Context, key string) error {
	ticker := time.NewTicker(rl.pollInterval)
	defer ticker.Stop()

	for {
		ok, err := rl.TryAcquire(ctx, key)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ctx.Err(), &ErrSlotsExhausted{Key: key, MaxConcurrent: rl.maxConcurrent})
		case <-ticker.C:
		}
	}
}

// Release 释放槽位
func (rl *RedisLimiter) Release(ctx context.Context, key string) {
	redisKey := rl.keyPrefix + key

	remaining, err := releaseScript.Run(ctx, rl.client, []string{redisKey}, int(rl.ttl.Seconds())).Int()
	if err != nil {
		rl.logger.WithError(err).WithField("model", key).Warn("释放模型槽位失败")
		return
	}
	rl.logger.WithFields(logrus.Fields{"model": key, "remaining": remaining}).Debug("释放模型槽位")
}

// GetMaxConcurrent 获取最大并发数
func (rl *RedisLimiter) GetMaxConcurrent() int {
	return rl.maxConcurrent
}
