package model_caller

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Message 对话消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest OpenAI 兼容的 /chat/completions 请求
type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Schema      map[string]interface{} `json:"schema"`
	Strict      bool                   `json:"strict"`
}

// chatResponse 模型调用响应
type chatResponse struct {
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			Refusal string `json:"refusal,omitempty"`
		} `json:"message"`
		FinishReason string `json:"finish_reason,omitempty"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// ModelCaller OpenAI 兼容接口的模型调用客户端
type ModelCaller struct {
	client  *http.Client
	apiBase string
	apiKey  string
	model   string
}

// NewModelCaller 创建模型调用客户端
func NewModelCaller(apiBase, apiKey, model string, timeout time.Duration) *ModelCaller {
	return &ModelCaller{
		client: &http.Client{
			Timeout: timeout,
		},
		apiBase: strings.TrimRight(apiBase, "/"),
		apiKey:  apiKey,
		model:   model,
	}
}

// Name 客户端名称
func (mc *ModelCaller) Name() string { return "openai:" + mc.model }

// GenerateStructured 以 json_schema 响应格式调用模型并解码
func (mc *ModelCaller) GenerateStructured(ctx context.Context, req StructuredRequest, out interface{}) error {
	model := req.Model
	if model == "" {
		model = mc.model
	}

	// 构建请求体
	body := chatRequest{
		Model: model,
		Messages: []Message{
			{Role: "user", Content: req.Prompt},
		},
		Temperature: req.Temperature,
	}
	if req.Schema.Definition != nil {
		body.ResponseFormat = &responseFormat{
			Type: "json_schema",
			JSONSchema: &jsonSchema{
				Name:        req.Schema.Name,
				Description: req.Schema.Description,
				Schema:      req.Schema.Definition,
				Strict:      true,
			},
		}
	} else {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	// 构建HTTP请求
	url := mc.apiBase + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}

	// 设置请求头
	httpReq.Header.Set("Content-Type", "application/json")
	if mc.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+mc.apiKey)
	}

	// 发送请求
	resp, err := mc.client.Do(httpReq)
	if err != nil {
		return classifyError(err)
	}
	defer resp.Body.Close()

	// 读取响应
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyError(fmt.Errorf("读取响应失败: %w", err))
	}

	// 检查HTTP状态码
	if resp.StatusCode != http.StatusOK {
		return &TransportError{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("body=%s", truncate(string(respBody), 512)),
		}
	}

	// 解析响应
	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("解析响应失败: %w", err)}
	}
	if len(result.Choices) == 0 {
		return &SchemaValidationError{Schema: req.Schema.Name, Err: ErrEmptyResponse}
	}
	choice := result.Choices[0]
	if choice.Message.Refusal != "" {
		return &SchemaValidationError{Schema: req.Schema.Name, Err: fmt.Errorf("模型拒绝生成: %s", choice.Message.Refusal)}
	}

	return DecodeStructured(req.Schema, choice.Message.Content, out)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
