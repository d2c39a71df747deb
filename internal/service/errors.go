package service

import (
	"errors"
	"fmt"
)

// 会话状态相关错误
var (
	ErrSessionNotFound = errors.New("暂存会话不存在或已过期")
	ErrCommitInFlight  = errors.New("该会话正在导入，请勿重复提交")
	ErrSessionBusy     = errors.New("会话正在导入，暂不能修改")
	ErrNothingStaged   = errors.New("暂存区没有候选语料")
)

// ConfigError 生成请求参数不合法，在调用模型之前拒绝
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("生成参数错误: %s", e.Reason)
	}
	return fmt.Sprintf("生成参数错误: %s %s", e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ValidationError 暂存区编辑校验失败，暂存内容保持不变
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("校验失败: %s", e.Reason)
	}
	return fmt.Sprintf("校验失败: %s %s", e.Field, e.Reason)
}

// IndexError 暂存区下标越界
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("下标越界: %d (共 %d 条)", e.Index, e.Len)
}

// ImportRowError 单行插入失败，该行跳过，批次继续
type ImportRowError struct {
	Index int
	Err   error
}

func (e *ImportRowError) Error() string {
	return fmt.Sprintf("第 %d 行导入失败: %v", e.Index, e.Err)
}

func (e *ImportRowError) Unwrap() error { return e.Err }

// TransactionError 批次事务开启或提交失败；已执行但未提交的行状态不确定
type TransactionError struct {
	Err    error
	Result *ImportResult
}

func (e *TransactionError) Error() string {
	return fmt.Sprintf("导入事务失败: %v", e.Err)
}

func (e *TransactionError) Unwrap() error { return e.Err }

// RoundError 第 Round 轮生成失败，之后的轮次不再执行
type RoundError struct {
	Round int
	Runs  int
	Err   error
}

func (e *RoundError) Error() string {
	return fmt.Sprintf("第 %d/%d 轮生成失败: %v", e.Round, e.Runs, e.Err)
}

func (e *RoundError) Unwrap() error { return e.Err }
