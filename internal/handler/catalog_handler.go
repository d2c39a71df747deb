package handler

import (
	"strconv"

	"corpus-gen/internal/dto"
	"corpus-gen/internal/repository"
	"corpus-gen/internal/utils"

	"github.com/gin-gonic/gin"
)

// CatalogHandler 产品/功能/槽位/意图的级联查询
type CatalogHandler struct {
	catalogRepo *repository.CatalogRepository
}

// NewCatalogHandler 创建级联查询处理器
func NewCatalogHandler(catalogRepo *repository.CatalogRepository) *CatalogHandler {
	return &CatalogHandler{
		catalogRepo: catalogRepo,
	}
}

// ListProducts 获取产品列表
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	products, err := h.catalogRepo.ListProducts(c.Request.Context())
	if err != nil {
		utils.InternalError(c, "获取产品列表失败")
		return
	}
	utils.SuccessResponse(c, products)
}

// ListFeatures 获取产品下的功能
func (h *CatalogHandler) ListFeatures(c *gin.Context) {
	productID, ok := parseUintParam(c, c.Param("id"))
	if !ok {
		return
	}
	features, err := h.catalogRepo.ListFeaturesByProduct(c.Request.Context(), productID)
	if err != nil {
		utils.InternalError(c, "获取功能列表失败")
		return
	}
	utils.SuccessResponse(c, features)
}

// ListSlots 获取产品下的槽位
func (h *CatalogHandler) ListSlots(c *gin.Context) {
	productID, ok := parseUintParam(c, c.Param("id"))
	if !ok {
		return
	}
	slots, err := h.catalogRepo.ListSlotsByProduct(c.Request.Context(), productID)
	if err != nil {
		utils.InternalError(c, "获取槽位列表失败")
		return
	}
	utils.SuccessResponse(c, slots)
}

// ListIntents 获取意图列表及各意图已有语料数，feature_id 可选
func (h *CatalogHandler) ListIntents(c *gin.Context) {
	if c.Query("product_id") == "" {
		utils.BadRequest(c, "缺少product_id参数")
		return
	}
	productID, ok := parseUintParam(c, c.Query("product_id"))
	if !ok {
		return
	}

	var featureID uint
	if raw := c.Query("feature_id"); raw != "" {
		if featureID, ok = parseUintParam(c, raw); !ok {
			return
		}
	}

	ctx := c.Request.Context()
	intents, err := h.catalogRepo.ListIntents(ctx, productID, featureID)
	if err != nil {
		utils.InternalError(c, "获取意图列表失败")
		return
	}

	ids := make([]uint, len(intents))
	for i := range intents {
		ids[i] = intents[i].IntentID
	}
	counts, err := h.catalogRepo.CountCorpusByIntents(ctx, ids)
	if err != nil {
		utils.InternalError(c, "统计语料数量失败")
		return
	}

	summaries := make([]dto.IntentSummary, len(intents))
	for i, intent := range intents {
		summaries[i] = dto.IntentSummary{Intent: intent, CorpusCount: counts[intent.IntentID]}
	}
	utils.SuccessResponse(c, summaries)
}

func parseUintParam(c *gin.Context, raw string) (uint, bool) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		utils.BadRequest(c, "无效的ID")
		return 0, false
	}
	return uint(id), true
}
