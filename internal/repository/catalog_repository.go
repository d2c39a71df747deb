package repository

import (
	"context"

	"corpus-gen/internal/models"

	"gorm.io/gorm"
)

// CatalogRepository 产品/功能/槽位/意图的只读数据访问层
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建CatalogRepository
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

// ListProducts 获取产品列表
func (r *CatalogRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	var products []models.Product
	err := r.db.WithContext(ctx).Order("product_id ASC").Find(&products).Error
	return products, err
}

// ListFeaturesByProduct 获取产品下的功能
func (r *CatalogRepository) ListFeaturesByProduct(ctx context.Context, productID uint) ([]models.Feature, error) {
	var features []models.Feature
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("feature_id ASC").Find(&features).Error
	return features, err
}

// ListSlotsByProduct 获取产品下的槽位
func (r *CatalogRepository) ListSlotsByProduct(ctx context.Context, productID uint) ([]models.Slot, error) {
	var slots []models.Slot
	err := r.db.WithContext(ctx).Where("product_id = ?", productID).Order("slot_id ASC").Find(&slots).Error
	return slots, err
}

// ListIntents 获取产品功能下的意图
func (r *CatalogRepository) ListIntents(ctx context.Context, productID, featureID uint) ([]models.Intent, error) {
	var intents []models.Intent
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if featureID != 0 {
		query = query.Where("feature_id = ?", featureID)
	}
	err := query.Order("intent_id ASC").Find(&intents).Error
	return intents, err
}

// GetIntent 根据ID获取意图，并带出所属产品与功能
func (r *CatalogRepository) GetIntent(ctx context.Context, intentID uint) (*models.Intent, error) {
	var intent models.Intent
	err := r.db.WithContext(ctx).Preload("Product").Preload("Feature").First(&intent, intentID).Error
	if err != nil {
		return nil, err
	}
	return &intent, nil
}

// CountCorpusByIntents 按意图统计已有语料数量，没有语料的意图不出现在结果中
func (r *CatalogRepository) CountCorpusByIntents(ctx context.Context, intentIDs []uint) (map[uint]int64, error) {
	counts := make(map[uint]int64, len(intentIDs))
	if len(intentIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		IntentID uint
		Total    int64
	}
	err := r.db.WithContext(ctx).Model(&models.Corpus{}).
		Select("intent_id, COUNT(*) AS total").
		Where("intent_id IN ?", intentIDs).
		Group("intent_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.IntentID] = row.Total
	}
	return counts, nil
}
