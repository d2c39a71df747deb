package service

import (
	"context"
	"errors"
	"time"

	"corpus-gen/internal/prompt"
	"corpus-gen/pkg/model_caller"

	"github.com/sirupsen/logrus"
)

// PhraseBatch 单轮生成的结构化输出
type PhraseBatch struct {
	Phrases []string `json:"phrases" validate:"required,dive,required"`
}

// PhraseBatchSchema 每轮生成要求模型满足的输出结构
func PhraseBatchSchema() model_caller.Schema {
	return model_caller.Schema{
		Name:        "PhraseBatch",
		Description: "Phrases a user would say to the voice assistant",
		Definition: map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"phrases": map[string]interface{}{
					"type":        "array",
					"description": "generated phrases, placeholders kept in curly braces",
					"items":       map[string]interface{}{"type": "string"},
				},
			},
			"required":             []string{"phrases"},
			"additionalProperties": false,
		},
	}
}

// GeneratorOptions 生成器参数
type GeneratorOptions struct {
	Model       string
	Temperature float64
	// RoundTimeout 单轮调用超时，0 表示只受调用方 ctx 限制
	RoundTimeout time.Duration
}

// StructuredGenerator 按轮次调用模型生成短语批次
type StructuredGenerator struct {
	caller model_caller.StructuredCaller
	opts   GeneratorOptions
	logger *logrus.Logger
}

// NewStructuredGenerator 创建结构化生成器
func NewStructuredGenerator(caller model_caller.StructuredCaller, opts GeneratorOptions, logger *logrus.Logger) *StructuredGenerator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &StructuredGenerator{caller: caller, opts: opts, logger: logger}
}

// Generate 依次执行 runs 轮生成，结果按轮次顺序返回
//
// 某一轮失败时停止后续轮次，返回已成功的批次以及 *RoundError。
// 不做去重，也不自动重试。
func (g *StructuredGenerator) Generate(ctx context.Context, p prompt.Prompt, schema model_caller.Schema, runs int) ([]PhraseBatch, error) {
	if runs < 1 {
		return nil, &ConfigError{Field: "runs", Reason: "必须大于等于1"}
	}

	entry := g.logger.WithFields(logrus.Fields{
		"style": string(p.Style),
		"model": g.opts.Model,
		"runs":  runs,
	})

	batches := make([]PhraseBatch, 0, runs)
	for round := 1; round <= runs; round++ {
		start := time.Now()
		batch, err := g.generateRound(ctx, p, schema)
		roundLog := entry.WithFields(logrus.Fields{
			"round":   round,
			"elapsed": time.Since(start).String(),
		})
		if err != nil {
			roundLog.WithError(err).WithField("kind", errorKind(err)).Warn("生成轮次失败")
			return batches, &RoundError{Round: round, Runs: runs, Err: err}
		}
		roundLog.WithField("phrases", len(batch.Phrases)).Info("生成轮次完成")
		batches = append(batches, batch)
	}
	return batches, nil
}

func (g *StructuredGenerator) generateRound(ctx context.Context, p prompt.Prompt, schema model_caller.Schema) (PhraseBatch, error) {
	if g.opts.RoundTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.opts.RoundTimeout)
		defer cancel()
	}

	var batch PhraseBatch
	err := g.caller.GenerateStructured(ctx, model_caller.StructuredRequest{
		Prompt:      p.Text,
		Schema:      schema,
		Model:       g.opts.Model,
		Temperature: g.opts.Temperature,
		Tags:        map[string]string{"style": string(p.Style)},
	}, &batch)
	if err != nil {
		// 调用方实现未归类的超时统一视为 GenerationTimeout
		if errors.Is(err, context.DeadlineExceeded) && !model_caller.IsTimeout(err) {
			err = &model_caller.GenerationTimeout{Err: err}
		}
		return PhraseBatch{}, err
	}
	return batch, nil
}

// errorKind 日志中使用的错误类别
func errorKind(err error) string {
	var schemaErr *model_caller.SchemaValidationError
	var transport *model_caller.TransportError
	switch {
	case model_caller.IsTimeout(err):
		return "timeout"
	case errors.As(err, &schemaErr):
		return "schema"
	case errors.As(err, &transport):
		return "transport"
	default:
		return "unknown"
	}
}
