package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"corpus-gen/internal/config"
	"corpus-gen/internal/dto"
	"corpus-gen/internal/models"
	"corpus-gen/internal/prompt"
	"corpus-gen/internal/utils"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// IntentResolver 根据意图ID带出产品与功能
type IntentResolver interface {
	GetIntent(ctx context.Context, intentID uint) (*models.Intent, error)
}

// CSVHeaders 暂存导出的列
var CSVHeaders = []string{"intent_id", "slot_id", "text", "score"}

// GenerateOutcome 一次生成调用的结果
type GenerateOutcome struct {
	Session SessionSnapshot
	Prompt  prompt.Prompt
	Rounds  int
	Phrases int
}

// CorpusGenService 语料生成与导入流程
type CorpusGenService struct {
	intents   IntentResolver
	generator *StructuredGenerator
	importer  *CorpusImporter
	sessions  *SessionStore
	limits    config.GenerationConfig
	logger    *logrus.Logger
}

// NewCorpusGenService 创建语料生成服务
func NewCorpusGenService(
	intents IntentResolver,
	generator *StructuredGenerator,
	importer *CorpusImporter,
	sessions *SessionStore,
	limits config.GenerationConfig,
	logger *logrus.Logger,
) *CorpusGenService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &CorpusGenService{
		intents:   intents,
		generator: generator,
		importer:  importer,
		sessions:  sessions,
		limits:    limits,
		logger:    logger,
	}
}

// NewGenerateRequest 带默认值的生成请求
func (s *CorpusGenService) NewGenerateRequest() dto.GenerateRequest {
	count := s.limits.DefaultCount
	if count <= 0 {
		count = 10
	}
	return dto.GenerateRequest{
		Style: prompt.StyleNormal.Label(),
		Count: count,
		Runs:  1,
	}
}

// CreateSession 新建暂存会话
func (s *CorpusGenService) CreateSession() SessionSnapshot {
	session := s.sessions.Create()
	s.logger.WithField("session_id", session.ID()).Info("创建暂存会话")
	return session.Snapshot()
}

// GetSession 获取会话快照
func (s *CorpusGenService) GetSession(sessionID string) (SessionSnapshot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// DeleteSession 丢弃会话及其暂存内容
func (s *CorpusGenService) DeleteSession(sessionID string) error {
	return s.sessions.Delete(sessionID)
}

// BuildPrompt 校验请求并构建提示词，不访问模型
func (s *CorpusGenService) BuildPrompt(ctx context.Context, req *dto.GenerateRequest) (prompt.Prompt, error) {
	style, err := s.validateRequest(req)
	if err != nil {
		return prompt.Prompt{}, err
	}

	intent, err := s.intents.GetIntent(ctx, req.IntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return prompt.Prompt{}, &ConfigError{Field: "intent_id", Reason: fmt.Sprintf("意图不存在: %d", req.IntentID), Err: err}
		}
		return prompt.Prompt{}, fmt.Errorf("查询意图失败: %w", err)
	}

	subject := ""
	if intent.Product != nil {
		subject = intent.Product.Name
	}
	extra := req.ExtraContext
	if extra == "" && intent.Feature != nil {
		extra = intent.Feature.Description
	}

	examples := append([]string(nil), req.Examples...)
	examples = append(examples, prompt.SplitExamples(req.ExamplesText)...)

	p, err := prompt.Build(prompt.Request{
		Subject:      subject,
		Operation:    intent.DisplayName(),
		Style:        style,
		Examples:     examples,
		SlotGlossary: req.SlotGlossary,
		Count:        req.Count,
		ExtraContext: extra,
	})
	if err != nil {
		return prompt.Prompt{}, &ConfigError{Field: "style", Reason: err.Error(), Err: err}
	}
	return p, nil
}

// Generate 构建提示词、执行多轮生成并写入暂存
//
// 至少一轮成功时用新结果替换暂存；全部失败时保留原有暂存。
// 某轮失败时同时返回已写入暂存的结果与 *RoundError。
func (s *CorpusGenService) Generate(ctx context.Context, sessionID string, req *dto.GenerateRequest) (*GenerateOutcome, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if session.State() == StateImporting {
		return nil, ErrSessionBusy
	}

	p, err := s.BuildPrompt(ctx, req)
	if err != nil {
		return nil, err
	}

	log := s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"intent_id":  req.IntentID,
		"count":      req.Count,
		"runs":       req.Runs,
	})
	log.Info("开始生成语料")

	batches, genErr := s.generator.Generate(ctx, p, PhraseBatchSchema(), req.Runs)

	outcome := &GenerateOutcome{Prompt: p, Rounds: len(batches)}
	for _, b := range batches {
		outcome.Phrases += len(b.Phrases)
	}

	if len(batches) > 0 {
		if err := session.Seed(req.IntentID, batches); err != nil {
			return nil, err
		}
	}
	outcome.Session = session.Snapshot()

	if genErr != nil {
		log.WithError(genErr).WithField("rounds_ok", len(batches)).Warn("语料生成未全部完成")
		return outcome, genErr
	}
	log.WithField("phrases", outcome.Phrases).Info("语料生成完成")
	return outcome, nil
}

// EditCandidate 编辑一条候选
func (s *CorpusGenService) EditCandidate(sessionID string, index int, field, value string) (SessionSnapshot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	if err := session.Edit(index, field, value); err != nil {
		return SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// RemoveCandidates 删除候选
func (s *CorpusGenService) RemoveCandidates(sessionID string, indices []int) (SessionSnapshot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	if err := session.Remove(indices); err != nil {
		return SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// SelectCandidates 选中或取消选中
func (s *CorpusGenService) SelectCandidates(sessionID string, req *dto.SelectCandidatesRequest) (SessionSnapshot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	if req.All {
		err = session.SelectAll(req.Selected)
	} else {
		err = session.Select(req.Indices, req.Selected)
	}
	if err != nil {
		return SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// Commit 导入选中的候选，结束后会话进入 Done 且暂存清空
func (s *CorpusGenService) Commit(ctx context.Context, sessionID string) (*ImportResult, SessionSnapshot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return nil, SessionSnapshot{}, err
	}

	candidates, intentID, err := session.BeginImport()
	if err != nil {
		return nil, session.Snapshot(), err
	}

	s.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"intent_id":  intentID,
		"selected":   len(candidates),
	}).Info("开始导入语料")

	result, err := s.importer.Commit(ctx, candidates, intentID)
	session.FinishImport(result, err)
	return result, session.Snapshot(), err
}

// Reset 清空会话回到 Idle
func (s *CorpusGenService) Reset(sessionID string) (SessionSnapshot, error) {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return SessionSnapshot{}, err
	}
	if err := session.Reset(); err != nil {
		return SessionSnapshot{}, err
	}
	return session.Snapshot(), nil
}

// ExportCSV 以 CSV 导出暂存内容
func (s *CorpusGenService) ExportCSV(sessionID string, w io.Writer) error {
	session, err := s.sessions.Get(sessionID)
	if err != nil {
		return err
	}
	return WriteCandidatesCSV(w, session.Candidates(), true)
}

// WriteCandidatesCSV 按 intent_id,slot_id,text,score 写出候选
func WriteCandidatesCSV(w io.Writer, candidates []CorpusCandidate, withBOM bool) error {
	rows := make([][]string, 0, len(candidates))
	for _, c := range candidates {
		slot := ""
		if c.SlotID != nil {
			slot = strconv.FormatUint(uint64(*c.SlotID), 10)
		}
		rows = append(rows, []string{
			strconv.FormatUint(uint64(c.IntentID), 10),
			slot,
			c.Text,
			strconv.FormatFloat(c.Score, 'f', -1, 64),
		})
	}
	return utils.WriteCSV(w, CSVHeaders, rows, withBOM)
}

// validateRequest 在调用模型之前校验参数
func (s *CorpusGenService) validateRequest(req *dto.GenerateRequest) (prompt.Style, error) {
	if req == nil {
		return "", &ConfigError{Reason: "请求为空"}
	}
	if err := utils.ValidateStruct(req); err != nil {
		var fieldErrs utils.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			return "", &ConfigError{Field: fieldErrs[0].Field, Reason: err.Error(), Err: err}
		}
		return "", &ConfigError{Reason: err.Error(), Err: err}
	}
	if s.limits.MaxCount > 0 && req.Count > s.limits.MaxCount {
		return "", &ConfigError{Field: "count", Reason: fmt.Sprintf("不能大于%d", s.limits.MaxCount)}
	}
	if s.limits.MaxRuns > 0 && req.Runs > s.limits.MaxRuns {
		return "", &ConfigError{Field: "runs", Reason: fmt.Sprintf("不能大于%d", s.limits.MaxRuns)}
	}

	style, err := prompt.ParseStyle(req.Style)
	if err != nil {
		return "", &ConfigError{Field: "style", Reason: err.Error(), Err: err}
	}
	return style, nil
}
