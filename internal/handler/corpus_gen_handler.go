package handler

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"corpus-gen/internal/dto"
	"corpus-gen/internal/middleware"
	"corpus-gen/internal/prompt"
	"corpus-gen/internal/service"
	"corpus-gen/internal/utils"
	"corpus-gen/pkg/model_caller"

	"github.com/gin-gonic/gin"
)

// CorpusGenHandler 语料生成处理器
type CorpusGenHandler struct {
	corpusGenService *service.CorpusGenService
}

// NewCorpusGenHandler 创建语料生成处理器
func NewCorpusGenHandler(corpusGenService *service.CorpusGenService) *CorpusGenHandler {
	return &CorpusGenHandler{
		corpusGenService: corpusGenService,
	}
}

// ListStyles 获取风格列表
func (h *CorpusGenHandler) ListStyles(c *gin.Context) {
	utils.SuccessResponse(c, dto.StyleListResponse{Styles: prompt.StyleOptions()})
}

// CreateSession 创建暂存会话
func (h *CorpusGenHandler) CreateSession(c *gin.Context) {
	session := h.corpusGenService.CreateSession()
	middleware.SetSessionID(c, session.ID)
	utils.SuccessWithMessage(c, "会话已创建", session)
}

// GetSession 获取会话状态与候选语料
func (h *CorpusGenHandler) GetSession(c *gin.Context) {
	session, err := h.corpusGenService.GetSession(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// DeleteSession 丢弃会话
func (h *CorpusGenHandler) DeleteSession(c *gin.Context) {
	if err := h.corpusGenService.DeleteSession(c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	utils.SuccessWithMessage(c, "会话已删除", gin.H{"success": true})
}

// Generate 生成候选语料并写入暂存
func (h *CorpusGenHandler) Generate(c *gin.Context) {
	req := h.corpusGenService.NewGenerateRequest()
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	outcome, err := h.corpusGenService.Generate(c.Request.Context(), c.Param("id"), &req)
	if err != nil && outcome == nil {
		writeServiceError(c, err)
		return
	}

	resp := dto.GenerateResponse{
		Session: outcome.Session,
		Rounds:  outcome.Rounds,
		Phrases: outcome.Phrases,
		Prompt:  outcome.Prompt.Text,
	}
	if err != nil {
		c.Error(err)
		resp.Error = err.Error()
		var roundErr *service.RoundError
		if errors.As(err, &roundErr) {
			resp.FailedRound = roundErr.Round
		}
		status := http.StatusBadGateway
		if model_caller.IsTimeout(err) {
			status = http.StatusGatewayTimeout
		}
		utils.ErrorWithData(c, status, err.Error(), resp)
		return
	}

	utils.SuccessWithMessage(c, "生成完成", resp)
}

// EditCandidate 编辑候选语料
func (h *CorpusGenHandler) EditCandidate(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		utils.BadRequest(c, "无效的下标")
		return
	}

	var req dto.EditCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	session, err := h.corpusGenService.EditCandidate(c.Param("id"), index, req.Field, req.Value)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// SelectCandidates 选中或取消选中候选语料
func (h *CorpusGenHandler) SelectCandidates(c *gin.Context) {
	var req dto.SelectCandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	session, err := h.corpusGenService.SelectCandidates(c.Param("id"), &req)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// RemoveCandidates 删除候选语料
func (h *CorpusGenHandler) RemoveCandidates(c *gin.Context) {
	var req dto.RemoveCandidatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, err.Error())
		return
	}

	session, err := h.corpusGenService.RemoveCandidates(c.Param("id"), req.Indices)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// Commit 导入选中的候选语料
func (h *CorpusGenHandler) Commit(c *gin.Context) {
	result, session, err := h.corpusGenService.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		var txErr *service.TransactionError
		if errors.As(err, &txErr) {
			c.Error(err)
			utils.ErrorWithData(c, http.StatusInternalServerError, err.Error(), dto.CommitResponse{
				Result:  result,
				Session: session,
				Error:   err.Error(),
			})
			return
		}
		writeServiceError(c, err)
		return
	}

	message := fmt.Sprintf("导入完成: 成功 %d 条, 失败 %d 条", result.SuccessCount, result.FailureCount)
	utils.SuccessWithMessage(c, message, dto.CommitResponse{Result: result, Session: session})
}

// Reset 清空会话
func (h *CorpusGenHandler) Reset(c *gin.Context) {
	session, err := h.corpusGenService.Reset(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	utils.SuccessResponse(c, session)
}

// ExportCSV 以CSV导出暂存内容
func (h *CorpusGenHandler) ExportCSV(c *gin.Context) {
	var buf bytes.Buffer
	if err := h.corpusGenService.ExportCSV(c.Param("id"), &buf); err != nil {
		writeServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("generated_corpus_%s.csv", time.Now().Format("20060102_150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// writeServiceError 按错误类型返回对应状态码
func writeServiceError(c *gin.Context, err error) {
	c.Error(err)

	var cfgErr *service.ConfigError
	var valErr *service.ValidationError
	var idxErr *service.IndexError
	switch {
	case errors.As(err, &cfgErr), errors.As(err, &valErr), errors.As(err, &idxErr),
		errors.Is(err, service.ErrNothingStaged):
		utils.BadRequest(c, err.Error())
	case errors.Is(err, service.ErrSessionNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, service.ErrCommitInFlight), errors.Is(err, service.ErrSessionBusy):
		utils.Conflict(c, err.Error())
	default:
		utils.InternalError(c, err.Error())
	}
}
