package dto

import "corpus-gen/internal/models"

// GenerateRequest 语料生成请求
type GenerateRequest struct {
	IntentID uint     `json:"intent_id" validate:"required"`
	Style    string   `json:"style" validate:"required,style"`
	Examples []string `json:"examples"`
	// ExamplesText 按行分隔的示例，与 Examples 合并
	ExamplesText string `json:"examples_text"`
	SlotGlossary string `json:"slot_glossary"`
	Count        int    `json:"count" validate:"min=1"`
	Runs         int    `json:"runs" validate:"min=1"`
	// ExtraContext 为空时使用意图所属功能的描述
	ExtraContext string `json:"extra_context"`
}

// EditCandidateRequest 编辑候选语料请求
type EditCandidateRequest struct {
	Field string `json:"field" binding:"required,oneof=text score slot_id"`
	Value string `json:"value"`
}

// SelectCandidatesRequest 选中/取消选中请求，All 为 true 时忽略 Indices
type SelectCandidatesRequest struct {
	Indices  []int `json:"indices"`
	All      bool  `json:"all"`
	Selected bool  `json:"selected"`
}

// RemoveCandidatesRequest 删除候选语料请求
type RemoveCandidatesRequest struct {
	Indices []int `json:"indices" binding:"required"`
}

// GenerateResponse 生成结果
type GenerateResponse struct {
	Session     interface{} `json:"session"`
	Rounds      int         `json:"rounds"`
	Phrases     int         `json:"phrases"`
	Prompt      string      `json:"prompt,omitempty"`
	FailedRound int         `json:"failed_round,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// CommitResponse 导入结果
type CommitResponse struct {
	Result  interface{} `json:"result"`
	Session interface{} `json:"session"`
	Error   string      `json:"error,omitempty"`
}

// StyleListResponse 风格列表响应
type StyleListResponse struct {
	Styles interface{} `json:"styles"`
}

// IntentSummary 意图及其已导入的语料数
type IntentSummary struct {
	models.Intent
	CorpusCount int64 `json:"corpus_count"`
}
