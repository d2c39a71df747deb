package repository

import (
	"context"
	"fmt"

	"corpus-gen/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CorpusTx 一次导入批次的事务
type CorpusTx interface {
	// Insert 插入一行语料；失败时只回滚该行，事务保持可用
	Insert(record *models.Corpus) error
	Commit() error
	Rollback() error
}

// CorpusRepository 语料数据访问层
type CorpusRepository struct {
	db *gorm.DB
}

// NewCorpusRepository 创建语料Repository
func NewCorpusRepository(db *gorm.DB) *CorpusRepository {
	return &CorpusRepository{db: db}
}

// Begin 开启导入事务
func (r *CorpusRepository) Begin(ctx context.Context) (CorpusTx, error) {
	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormCorpusTx{tx: tx}, nil
}

// ListByIntent 获取意图下的语料
func (r *CorpusRepository) ListByIntent(ctx context.Context, intentID uint) ([]models.Corpus, error) {
	var records []models.Corpus
	err := r.db.WithContext(ctx).Where("intent_id = ?", intentID).Order("corpus_id ASC").Find(&records).Error
	return records, err
}

// Count 统计语料总数
func (r *CorpusRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Corpus{}).Count(&count).Error
	return count, err
}

type gormCorpusTx struct {
	tx   *gorm.DB
	rows int
}

// Insert 每行使用独立保存点，postgres 下单行约束失败不会使整个事务失效
func (t *gormCorpusTx) Insert(record *models.Corpus) error {
	t.rows++
	sp := fmt.Sprintf("corpus_row_%d", t.rows)

	if err := t.tx.SavePoint(sp).Error; err != nil {
		return fmt.Errorf("创建保存点失败: %w", err)
	}
	if err := t.tx.Omit(clause.Associations).Create(record).Error; err != nil {
		if rbErr := t.tx.RollbackTo(sp).Error; rbErr != nil {
			return fmt.Errorf("%w (回滚保存点失败: %v)", err, rbErr)
		}
		return err
	}
	return nil
}

func (t *gormCorpusTx) Commit() error {
	return t.tx.Commit().Error
}

func (t *gormCorpusTx) Rollback() error {
	return t.tx.Rollback().Error
}
