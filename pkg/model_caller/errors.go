package model_caller

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// SchemaValidationError 模型输出无法转换为要求的结构
type SchemaValidationError struct {
	Schema string
	Raw    string
	Err    error
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("模型输出不符合结构 %s: %v", e.Schema, e.Err)
}

func (e *SchemaValidationError) Unwrap() error { return e.Err }

// GenerationTimeout 模型调用超时
type GenerationTimeout struct {
	Err error
}

func (e *GenerationTimeout) Error() string {
	return fmt.Sprintf("模型调用超时: %v", e.Err)
}

func (e *GenerationTimeout) Unwrap() error { return e.Err }

// TransportError 网络或服务端错误
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("模型服务返回错误: status=%d: %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("模型服务请求失败: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ErrEmptyResponse 模型返回空内容
var ErrEmptyResponse = errors.New("模型返回空响应")

// classifyError 将底层调用错误归类为超时或传输错误
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	var timeout *GenerationTimeout
	var transport *TransportError
	var schema *SchemaValidationError
	if errors.As(err, &timeout) || errors.As(err, &transport) || errors.As(err, &schema) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GenerationTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &GenerationTimeout{Err: err}
	}
	return &TransportError{Err: err}
}

// IsTimeout 是否为超时错误
func IsTimeout(err error) bool {
	var timeout *GenerationTimeout
	return errors.As(err, &timeout)
}
