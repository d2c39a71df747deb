package model_caller

import (
	"context"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"
)

// GeminiCaller 基于官方 genai 客户端的结构化生成
type GeminiCaller struct {
	cli   *genai.Client
	model string
}

// NewGeminiCaller 创建 Gemini 调用客户端，apiKey 为空时由 genai 从环境变量读取
func NewGeminiCaller(ctx context.Context, apiKey, model string) (*GeminiCaller, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &GeminiCaller{cli: cli, model: model}, nil
}

// Name 客户端名称
func (g *GeminiCaller) Name() string { return "gemini:" + g.model }

// GenerateStructured 以 ResponseSchema 约束输出并解码
func (g *GeminiCaller) GenerateStructured(ctx context.Context, req StructuredRequest, out interface{}) error {
	model := req.Model
	if model == "" {
		model = g.model
	}

	temperature := float32(req.Temperature)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}
	if req.Schema.Definition != nil {
		schema, err := toGenaiSchema(req.Schema.Definition)
		if err != nil {
			return &SchemaValidationError{Schema: req.Schema.Name, Err: err}
		}
		cfg.ResponseSchema = schema
	}

	resp, err := g.cli.Models.GenerateContent(ctx, model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: req.Prompt}}}},
		cfg,
	)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return &TransportError{StatusCode: apiErr.Code, Err: err}
		}
		return classifyError(err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return &SchemaValidationError{Schema: req.Schema.Name, Err: ErrEmptyResponse}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil {
			sb.WriteString(part.Text)
		}
	}
	return DecodeStructured(req.Schema, sb.String(), out)
}

// toGenaiSchema 将 JSON Schema 子集转换为 genai.Schema
//
// 支持 object/array/string/number/integer/boolean 以及 properties、items、required、description。
func toGenaiSchema(def map[string]interface{}) (*genai.Schema, error) {
	s := &genai.Schema{}
	typ, _ := def["type"].(string)
	switch typ {
	case "object":
		s.Type = genai.TypeObject
	case "array":
		s.Type = genai.TypeArray
	case "string":
		s.Type = genai.TypeString
	case "number":
		s.Type = genai.TypeNumber
	case "integer":
		s.Type = genai.TypeInteger
	case "boolean":
		s.Type = genai.TypeBoolean
	default:
		return nil, fmt.Errorf("不支持的 schema 类型: %q", typ)
	}

	if desc, ok := def["description"].(string); ok {
		s.Description = desc
	}

	if props, ok := def["properties"].(map[string]interface{}); ok {
		s.Properties = make(map[string]*genai.Schema, len(props))
		for name, raw := range props {
			child, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("属性 %s 的定义无效", name)
			}
			converted, err := toGenaiSchema(child)
			if err != nil {
				return nil, fmt.Errorf("属性 %s: %w", name, err)
			}
			s.Properties[name] = converted
		}
	}

	if items, ok := def["items"].(map[string]interface{}); ok {
		converted, err := toGenaiSchema(items)
		if err != nil {
			return nil, fmt.Errorf("items: %w", err)
		}
		s.Items = converted
	}

	switch req := def["required"].(type) {
	case []string:
		s.Required = append(s.Required, req...)
	case []interface{}:
		for _, r := range req {
			if name, ok := r.(string); ok {
				s.Required = append(s.Required, name)
			}
		}
	}

	return s, nil
}
