package service

import (
	"context"
	"fmt"

	"corpus-gen/internal/models"
	"corpus-gen/internal/repository"

	"github.com/sirupsen/logrus"
)

// CorpusWriter 语料写入事务的提供方
type CorpusWriter interface {
	Begin(ctx context.Context) (repository.CorpusTx, error)
}

// ImportFailure 一行导入失败的原因
type ImportFailure struct {
	Index     int             `json:"index"`
	Candidate CorpusCandidate `json:"candidate"`
	Reason    string          `json:"reason"`
}

// ImportResult 一次导入的结果统计
type ImportResult struct {
	SuccessCount int             `json:"success_count"`
	FailureCount int             `json:"failure_count"`
	Failures     []ImportFailure `json:"failures"`
}

// CorpusImporter 将候选语料批量写入语料表
type CorpusImporter struct {
	writer CorpusWriter
	logger *logrus.Logger
}

// NewCorpusImporter 创建导入器
func NewCorpusImporter(writer CorpusWriter, logger *logrus.Logger) *CorpusImporter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CorpusImporter{writer: writer, logger: logger}
}

// Commit 按顺序逐行插入，单行失败计数后继续，最后统一提交一次事务
//
// 候选自带 IntentID 时使用候选的值，否则使用 intentID。不去重，重复导入会产生重复记录。
// 事务开启或提交失败时返回 *TransactionError，其中带有逐行结果。
func (im *CorpusImporter) Commit(ctx context.Context, candidates []CorpusCandidate, intentID uint) (*ImportResult, error) {
	result := &ImportResult{Failures: []ImportFailure{}}

	tx, err := im.writer.Begin(ctx)
	if err != nil {
		im.logger.WithError(err).Error("开启导入事务失败")
		return result, &TransactionError{Err: fmt.Errorf("开启事务失败: %w", err), Result: result}
	}

	for i, c := range candidates {
		record := &models.Corpus{
			IntentID: intentID,
			SlotID:   c.SlotID,
			IntentEn: c.Text,
			Score:    c.Score,
			IsActive: true,
		}
		if c.IntentID != 0 {
			record.IntentID = c.IntentID
		}

		if err := tx.Insert(record); err != nil {
			rowErr := &ImportRowError{Index: i, Err: err}
			failed := c
			failed.Status = CandidateRejected
			result.FailureCount++
			result.Failures = append(result.Failures, ImportFailure{
				Index:     i,
				Candidate: failed,
				Reason:    rowErr.Error(),
			})
			im.logger.WithFields(logrus.Fields{
				"index":     i,
				"intent_id": record.IntentID,
				"text":      c.Text,
			}).WithError(err).Warn("语料行导入失败")
			continue
		}
		result.SuccessCount++
	}

	if err := tx.Commit(); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			im.logger.WithError(rbErr).Warn("回滚导入事务失败")
		}
		im.logger.WithError(err).WithFields(logrus.Fields{
			"executed": result.SuccessCount,
			"failed":   result.FailureCount,
		}).Error("提交导入事务失败")
		return result, &TransactionError{Err: fmt.Errorf("提交事务失败: %w", err), Result: result}
	}

	im.logger.WithFields(logrus.Fields{
		"intent_id": intentID,
		"total":     len(candidates),
		"success":   result.SuccessCount,
		"failed":    result.FailureCount,
	}).Info("语料导入完成")
	return result, nil
}
