package models

import (
	"time"
)

// Product 产品
type Product struct {
	ProductID   uint      `gorm:"column:product_id;primaryKey;autoIncrement" json:"product_id"`
	Name        string    `gorm:"column:name;type:text" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
}

// TableName 指定表名
func (Product) TableName() string {
	return "products"
}

// Feature 产品功能
type Feature struct {
	FeatureID   uint      `gorm:"column:feature_id;primaryKey;autoIncrement" json:"feature_id"`
	ProductID   uint      `gorm:"column:product_id;index" json:"product_id"`
	Name        string    `gorm:"column:name;type:text" json:"name"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	IsActive    bool      `gorm:"column:is_active" json:"is_active"`

	// 关联（belongs-to，外键列按 <字段名>ID 推断）
	Product *Product `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"product,omitempty"`
}

// TableName 指定表名
func (Feature) TableName() string {
	return "features"
}

// Slot 槽位，语料中的占位符类型
type Slot struct {
	SlotID      uint   `gorm:"column:slot_id;primaryKey;autoIncrement" json:"slot_id"`
	ProductID   uint   `gorm:"column:product_id;index" json:"product_id"`
	Name        string `gorm:"column:name;type:text" json:"name"`
	Description string `gorm:"column:description;type:text" json:"description"`
	Examples    string `gorm:"column:examples;type:text" json:"examples"`
	IsActive    bool   `gorm:"column:is_active" json:"is_active"`

	// 关联（belongs-to，外键列按 <字段名>ID 推断）
	Product *Product `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"product,omitempty"`
}

// TableName 指定表名
func (Slot) TableName() string {
	return "slots"
}

// Intent 意图，语料生成的目标
type Intent struct {
	IntentID    uint      `gorm:"column:intent_id;primaryKey;autoIncrement" json:"intent_id"`
	ProductID   uint      `gorm:"column:product_id;not null;index" json:"product_id"`
	FeatureID   uint      `gorm:"column:feature_id;not null;index" json:"feature_id"`
	SlotID      *uint     `gorm:"column:slot_id" json:"slot_id"`
	IntentCh    string    `gorm:"column:intent_ch;type:text" json:"intent_ch"`
	IntentEn    string    `gorm:"column:intent_en;type:text" json:"intent_en"`
	Description string    `gorm:"column:description;type:text" json:"description"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"created_at"`
	IsActive    bool      `gorm:"column:is_active" json:"is_active"`

	// 关联（belongs-to，外键列按 <字段名>ID 推断）
	Product *Product `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"product,omitempty"`
	Feature *Feature `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"feature,omitempty"`
	Slot    *Slot    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"slot,omitempty"`
}

// TableName 指定表名
func (Intent) TableName() string {
	return "intents"
}

// DisplayName 意图展示名，优先中文名
func (i *Intent) DisplayName() string {
	if i.IntentCh != "" {
		return i.IntentCh
	}
	return i.IntentEn
}

// Corpus 语料记录
//
// intent_en 列沿用历史命名，存放的是生成的语料句子而不是意图名。
type Corpus struct {
	CorpusID uint    `gorm:"column:corpus_id;primaryKey;autoIncrement" json:"corpus_id"`
	IntentID uint    `gorm:"column:intent_id;not null;index" json:"intent_id"`
	SlotID   *uint   `gorm:"column:slot_id" json:"slot_id"`
	IntentEn string  `gorm:"column:intent_en;type:text" json:"intent_en"`
	Score    float64 `gorm:"column:score" json:"score"`
	IsActive bool    `gorm:"column:is_active" json:"is_active"`

	// 关联（belongs-to，外键列按 <字段名>ID 推断）
	Intent *Intent `gorm:"constraint:OnUpdate:CASCADE,OnDelete:RESTRICT" json:"intent,omitempty"`
	Slot   *Slot   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL" json:"slot,omitempty"`
}

// TableName 指定表名
func (Corpus) TableName() string {
	return "corpus"
}
