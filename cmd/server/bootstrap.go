package main

import (
	"context"
	"fmt"
	"os"

	"corpus-gen/internal/config"
	"corpus-gen/pkg/model_caller"
	"corpus-gen/pkg/redis_limiter"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Redis 中模型并发计数的 key 前缀
const modelSlotPrefix = "corpus_gen:model_concurrent:"

// loadConfig 加载配置并初始化日志
func loadConfig(configPath string) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("加载配置失败: %w", err)
	}

	// 初始化日志
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return cfg, logger, nil
}

// namedCaller 可报告自身提供方与模型名的调用器
type namedCaller interface {
	model_caller.StructuredCaller
	Name() string
}

// buildCaller 按配置创建模型调用器，并加上并发槽位与速率限制
func buildCaller(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (model_caller.StructuredCaller, func(), error) {
	cleanup := func() {}

	var base namedCaller
	switch cfg.Model.Provider {
	case config.ProviderGemini:
		gemini, err := model_caller.NewGeminiCaller(ctx, cfg.Model.APIKey, cfg.Model.Model)
		if err != nil {
			return nil, cleanup, err
		}
		base = gemini
	default:
		base = model_caller.NewModelCaller(cfg.Model.APIBase, cfg.Model.APIKey, cfg.Model.Model, cfg.Model.GetTimeout())
	}

	var slots model_caller.SlotLimiter
	if cfg.Redis.Enabled {
		// 初始化Redis
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddress(),
			DB:       cfg.Redis.DB,
			Password: cfg.Redis.Password,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			_ = redisClient.Close()
			return nil, cleanup, fmt.Errorf("连接Redis失败: %w", err)
		}
		cleanup = func() { _ = redisClient.Close() }
		slots = redis_limiter.NewRedisLimiter(redisClient, cfg.Model.MaxConcurrent, modelSlotPrefix, cfg.Redis.GetSlotTTL(), logger)
		logger.WithField("addr", cfg.Redis.GetAddress()).Info("使用Redis模型并发限制")
	} else {
		slots = model_caller.NewConcurrencyLimiter(cfg.Model.MaxConcurrent)
	}

	logger.WithFields(logrus.Fields{
		"caller":         base.Name(),
		"max_concurrent": cfg.Model.MaxConcurrent,
		"rps":            cfg.Model.RequestsPerSecond,
	}).Info("模型调用器已就绪")

	return model_caller.NewLimitedCaller(base, slots, cfg.Model.Model, cfg.Model.RequestsPerSecond), cleanup, nil
}
