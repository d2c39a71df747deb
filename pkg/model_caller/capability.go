package model_caller

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Schema 结构化输出的描述
type Schema struct {
	Name        string
	Description string
	// Definition JSON Schema 定义
	Definition map[string]interface{}
}

// StructuredRequest 一次结构化生成请求
type StructuredRequest struct {
	Prompt      string
	Schema      Schema
	Model       string
	Temperature float64
	// Tags 仅用于日志
	Tags map[string]string
}

// StructuredCaller 根据提示词生成符合结构的数据
//
// 实现方负责把模型输出解码到 out；无法解码或校验失败时返回 *SchemaValidationError，
// 超时返回 *GenerationTimeout，其余网络或服务端错误返回 *TransportError。
type StructuredCaller interface {
	GenerateStructured(ctx context.Context, req StructuredRequest, out interface{}) error
}

var structValidator = validator.New()

// DecodeStructured 解码模型输出并按 validate 标签校验
func DecodeStructured(schema Schema, raw string, out interface{}) error {
	text := strings.TrimSpace(raw)
	if text == "" {
		return &SchemaValidationError{Schema: schema.Name, Raw: raw, Err: ErrEmptyResponse}
	}
	if err := json.Unmarshal([]byte(text), out); err != nil {
		return &SchemaValidationError{Schema: schema.Name, Raw: raw, Err: fmt.Errorf("解析JSON失败: %w", err)}
	}
	if err := structValidator.Struct(out); err != nil {
		if _, ok := err.(*validator.InvalidValidationError); ok {
			return nil
		}
		return &SchemaValidationError{Schema: schema.Name, Raw: raw, Err: err}
	}
	return nil
}
