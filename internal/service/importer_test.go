package service

import (
	"context"
	"errors"
	"testing"

	"corpus-gen/internal/models"
	"corpus-gen/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func candidatesFor(intentID uint, phrases ...string) []CorpusCandidate {
	out := make([]CorpusCandidate, len(phrases))
	for i, p := range phrases {
		out[i] = CorpusCandidate{IntentID: intentID, Text: p, Score: DefaultScore, Selected: true, Status: CandidatePending}
	}
	return out
}

func TestImportContinuesPastRowFailure(t *testing.T) {
	db := newTestDB(t)
	fx := seedCatalog(t, db)
	repo := repository.NewCorpusRepository(db)
	importer := NewCorpusImporter(repo, quietLogger())

	candidates := candidatesFor(fx.intent.IntentID, "one", "two", "three", "four", "five")
	candidates[2].IntentID = 9999

	result, err := importer.Commit(context.Background(), candidates, fx.intent.IntentID)
	require.NoError(t, err)
	assert.Equal(t, 4, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, 2, result.Failures[0].Index)
	assert.Equal(t, "three", result.Failures[0].Candidate.Text)
	assert.Equal(t, CandidateRejected, result.Failures[0].Candidate.Status)
	assert.NotEmpty(t, result.Failures[0].Reason)

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)

	rows, err := repo.ListByIntent(context.Background(), fx.intent.IntentID)
	require.NoError(t, err)
	var got []string
	for _, r := range rows {
		got = append(got, r.IntentEn)
		assert.True(t, r.IsActive)
		assert.Equal(t, 0.9, r.Score)
		assert.Nil(t, r.SlotID)
	}
	assert.Equal(t, []string{"one", "two", "four", "five"}, got)
}

func TestImportDoesNotDedup(t *testing.T) {
	db := newTestDB(t)
	fx := seedCatalog(t, db)
	repo := repository.NewCorpusRepository(db)
	importer := NewCorpusImporter(repo, quietLogger())

	selection := candidatesFor(fx.intent.IntentID, "start cleaning", "begin cleaning")
	for i := 0; i < 2; i++ {
		result, err := importer.Commit(context.Background(), selection, fx.intent.IntentID)
		require.NoError(t, err)
		assert.Equal(t, 2, result.SuccessCount)
	}

	count, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), count)
}

func TestImportSlotReference(t *testing.T) {
	db := newTestDB(t)
	fx := seedCatalog(t, db)
	repo := repository.NewCorpusRepository(db)
	importer := NewCorpusImporter(repo, quietLogger())

	missing := uint(777)
	candidates := candidatesFor(0, "clean the {room}", "vacuum the {room}")
	candidates[0].SlotID = &fx.slot.SlotID
	candidates[1].SlotID = &missing

	result, err := importer.Commit(context.Background(), candidates, fx.intent.IntentID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)

	rows, err := repo.ListByIntent(context.Background(), fx.intent.IntentID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.NotNil(t, rows[0].SlotID)
	assert.Equal(t, fx.slot.SlotID, *rows[0].SlotID)
}

// fakeTx 记录插入并按配置返回错误
type fakeTx struct {
	inserted   []*models.Corpus
	failOn     map[int]error
	commitErr  error
	rolledBack bool
}

func (f *fakeTx) Insert(record *models.Corpus) error {
	idx := len(f.inserted)
	f.inserted = append(f.inserted, record)
	if err, ok := f.failOn[idx]; ok {
		return err
	}
	return nil
}

func (f *fakeTx) Commit() error { return f.commitErr }

func (f *fakeTx) Rollback() error {
	f.rolledBack = true
	return nil
}

type fakeWriter struct {
	tx       *fakeTx
	beginErr error
}

func (f *fakeWriter) Begin(ctx context.Context) (repository.CorpusTx, error) {
	if f.beginErr != nil {
		return nil, f.beginErr
	}
	return f.tx, nil
}

func TestImportCommitFailureIsTransactionError(t *testing.T) {
	tx := &fakeTx{
		failOn:    map[int]error{1: errors.New("FOREIGN KEY constraint failed")},
		commitErr: errBoom,
	}
	importer := NewCorpusImporter(&fakeWriter{tx: tx}, quietLogger())

	result, err := importer.Commit(context.Background(), candidatesFor(5, "a", "b", "c"), 5)
	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.ErrorIs(t, err, errBoom)
	assert.True(t, tx.rolledBack)

	require.NotNil(t, result)
	assert.Same(t, result, txErr.Result)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 1, result.FailureCount)
	assert.Contains(t, result.Failures[0].Reason, "FOREIGN KEY")
}

func TestImportBeginFailure(t *testing.T) {
	importer := NewCorpusImporter(&fakeWriter{beginErr: errBoom}, quietLogger())

	result, err := importer.Commit(context.Background(), candidatesFor(5, "a"), 5)
	var txErr *TransactionError
	require.True(t, errors.As(err, &txErr))
	assert.Zero(t, result.SuccessCount)
}

func TestImportUsesBatchIntentWhenCandidateHasNone(t *testing.T) {
	tx := &fakeTx{}
	importer := NewCorpusImporter(&fakeWriter{tx: tx}, quietLogger())

	candidates := candidatesFor(0, "a")
	candidates = append(candidates, candidatesFor(9, "b")...)
	_, err := importer.Commit(context.Background(), candidates, 5)
	require.NoError(t, err)

	require.Len(t, tx.inserted, 2)
	assert.Equal(t, uint(5), tx.inserted[0].IntentID)
	assert.Equal(t, uint(9), tx.inserted[1].IntentID)
	assert.Equal(t, "a", tx.inserted[0].IntentEn)
	assert.True(t, tx.inserted[0].IsActive)
}
