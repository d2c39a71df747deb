package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"corpus-gen/internal/config"
	"corpus-gen/internal/models"
	"corpus-gen/pkg/model_caller"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// scriptedResponse 一次模型调用的预设结果
type scriptedResponse struct {
	phrases []string
	raw     string
	err     error
	delay   time.Duration
}

// scriptedCaller 按顺序返回预设结果的 StructuredCaller
type scriptedCaller struct {
	mu        sync.Mutex
	responses []scriptedResponse
	requests  []model_caller.StructuredRequest
}

func (f *scriptedCaller) GenerateStructured(ctx context.Context, req model_caller.StructuredRequest, out interface{}) error {
	f.mu.Lock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if i >= len(f.responses) {
		return fmt.Errorf("unexpected call %d", i+1)
	}
	r := f.responses[i]
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if r.err != nil {
		return r.err
	}
	raw := r.raw
	if raw == "" {
		b, err := json.Marshal(map[string]interface{}{"phrases": r.phrases})
		if err != nil {
			return err
		}
		raw = string(b)
	}
	return model_caller.DecodeStructured(req.Schema, raw, out)
}

func (f *scriptedCaller) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestDB 打开带外键约束的内存 sqlite
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := models.OpenDB(config.DatabaseConfig{
		Driver: config.DriverSQLite,
		Path:   fmt.Sprintf("file:%s?mode=memory&cache=shared", name),
	})
	require.NoError(t, err)
	require.NoError(t, models.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

type catalogFixture struct {
	product models.Product
	feature models.Feature
	slot    models.Slot
	intent  models.Intent
}

func seedCatalog(t *testing.T, db *gorm.DB) catalogFixture {
	t.Helper()
	fx := catalogFixture{}
	fx.product = models.Product{Name: "Robot Vacuum", Description: "扫地机器人"}
	require.NoError(t, db.Create(&fx.product).Error)

	fx.feature = models.Feature{ProductID: fx.product.ProductID, Name: "清扫", Description: "Users control cleaning sessions.", IsActive: true}
	require.NoError(t, db.Create(&fx.feature).Error)

	fx.slot = models.Slot{ProductID: fx.product.ProductID, Name: "room", Description: "a room in the house", Examples: "kitchen", IsActive: true}
	require.NoError(t, db.Create(&fx.slot).Error)

	fx.intent = models.Intent{
		ProductID: fx.product.ProductID,
		FeatureID: fx.feature.FeatureID,
		IntentCh:  "开始清扫",
		IntentEn:  "start cleaning",
		IsActive:  true,
	}
	require.NoError(t, db.Create(&fx.intent).Error)
	return fx
}

// fakeResolver 内存中的意图查询
type fakeResolver struct {
	intents map[uint]*models.Intent
}

func (f *fakeResolver) GetIntent(ctx context.Context, intentID uint) (*models.Intent, error) {
	intent, ok := f.intents[intentID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return intent, nil
}

func texts(candidates []CorpusCandidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.Text
	}
	return out
}

var errBoom = errors.New("boom")
