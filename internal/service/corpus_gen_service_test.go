package service

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"corpus-gen/internal/config"
	"corpus-gen/internal/dto"
	"corpus-gen/internal/repository"
	"corpus-gen/pkg/model_caller"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimits = config.GenerationConfig{DefaultCount: 10, MaxCount: 100, MaxRuns: 5, DefaultScore: DefaultScore}

type serviceFixture struct {
	svc    *CorpusGenService
	caller *scriptedCaller
	repo   *repository.CorpusRepository
	fx     catalogFixture
}

func newServiceFixture(t *testing.T, responses ...scriptedResponse) *serviceFixture {
	t.Helper()
	db := newTestDB(t)
	fx := seedCatalog(t, db)

	caller := &scriptedCaller{responses: responses}
	repo := repository.NewCorpusRepository(db)
	sessions, err := NewSessionStore(8, testLimits.DefaultScore)
	require.NoError(t, err)

	svc := NewCorpusGenService(
		repository.NewCatalogRepository(db),
		NewStructuredGenerator(caller, GeneratorOptions{Model: "gpt-4o-mini", Temperature: 1}, quietLogger()),
		NewCorpusImporter(repo, quietLogger()),
		sessions,
		testLimits,
		quietLogger(),
	)
	return &serviceFixture{svc: svc, caller: caller, repo: repo, fx: fx}
}

func (f *serviceFixture) request() *dto.GenerateRequest {
	req := f.svc.NewGenerateRequest()
	req.IntentID = f.fx.intent.IntentID
	return &req
}

func TestServiceGenerateEditCommit(t *testing.T) {
	f := newServiceFixture(t,
		scriptedResponse{phrases: []string{"Start cleaning", "Clean the {room}"}},
		scriptedResponse{phrases: []string{"Begin vacuuming"}},
	)
	ctx := context.Background()
	session := f.svc.CreateSession()
	assert.Equal(t, StateIdle, session.State)

	req := f.request()
	req.Runs = 2
	req.Style = "正式(Formal)"
	outcome, err := f.svc.Generate(ctx, session.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Rounds)
	assert.Equal(t, 3, outcome.Phrases)
	assert.Equal(t, StateGenerated, outcome.Session.State)
	assert.Equal(t, []string{"Start cleaning", "Clean the {room}", "Begin vacuuming"}, texts(outcome.Session.Candidates))

	_, err = f.svc.EditCandidate(session.ID, 1, FieldSlotID, "1")
	require.NoError(t, err)
	_, err = f.svc.RemoveCandidates(session.ID, []int{2})
	require.NoError(t, err)
	snap, err := f.svc.SelectCandidates(session.ID, &dto.SelectCandidatesRequest{All: true, Selected: true})
	require.NoError(t, err)
	assert.Equal(t, 2, snap.SelectedCount)

	result, snap, err := f.svc.Commit(ctx, session.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, StateDone, snap.State)
	assert.Empty(t, snap.Candidates)

	rows, err := f.repo.ListByIntent(ctx, f.fx.intent.IntentID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Clean the {room}", rows[1].IntentEn)
	require.NotNil(t, rows[1].SlotID)

	_, _, err = f.svc.Commit(ctx, session.ID)
	assert.ErrorIs(t, err, ErrNothingStaged)

	snap, err = f.svc.Reset(session.ID)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)
}

func TestServicePromptResolvesIntent(t *testing.T) {
	f := newServiceFixture(t, scriptedResponse{phrases: []string{"a"}})
	session := f.svc.CreateSession()

	req := f.request()
	req.ExamplesText = "Start cleaning\n\n  Clean the {room}  \n"
	req.SlotGlossary = "{room}: a room in the house"
	_, err := f.svc.Generate(context.Background(), session.ID, req)
	require.NoError(t, err)

	require.Equal(t, 1, f.caller.calls())
	text := f.caller.requests[0].Prompt
	assert.Contains(t, text, "A Robot Vacuum app")
	assert.Contains(t, text, `operation "开始清扫."`)
	assert.Contains(t, text, "Spoken style: Normal.")
	assert.Contains(t, text, `phrases: ["Start cleaning","Clean the {room}"]`)
	assert.Contains(t, text, "Users control cleaning sessions.")
	assert.Contains(t, text, "Please generate 10 phrases on each run.")
	assert.Equal(t, "normal", f.caller.requests[0].Tags["style"])
}

func TestServiceRejectsBadRequestBeforeCalling(t *testing.T) {
	cases := map[string]func(r *dto.GenerateRequest){
		"unknown style":  func(r *dto.GenerateRequest) { r.Style = "Shouty" },
		"zero count":     func(r *dto.GenerateRequest) { r.Count = 0 },
		"negative runs":  func(r *dto.GenerateRequest) { r.Runs = -1 },
		"count too big":  func(r *dto.GenerateRequest) { r.Count = 101 },
		"too many runs":  func(r *dto.GenerateRequest) { r.Runs = 6 },
		"missing intent": func(r *dto.GenerateRequest) { r.IntentID = 0 },
		"unknown intent": func(r *dto.GenerateRequest) { r.IntentID = 404 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			f := newServiceFixture(t, scriptedResponse{phrases: []string{"a"}})
			session := f.svc.CreateSession()

			req := f.request()
			mutate(req)
			_, err := f.svc.Generate(context.Background(), session.ID, req)

			var cfgErr *ConfigError
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Zero(t, f.caller.calls())
			snap, err := f.svc.GetSession(session.ID)
			require.NoError(t, err)
			assert.Equal(t, StateIdle, snap.State)
		})
	}
}

func TestServiceGenerateFailureKeepsPreviousStaging(t *testing.T) {
	f := newServiceFixture(t,
		scriptedResponse{phrases: []string{"kept"}},
		scriptedResponse{err: &model_caller.GenerationTimeout{Err: context.DeadlineExceeded}},
	)
	ctx := context.Background()
	session := f.svc.CreateSession()

	_, err := f.svc.Generate(ctx, session.ID, f.request())
	require.NoError(t, err)

	outcome, err := f.svc.Generate(ctx, session.ID, f.request())
	require.Error(t, err)
	assert.True(t, model_caller.IsTimeout(err))
	assert.Zero(t, outcome.Rounds)
	assert.Equal(t, []string{"kept"}, texts(outcome.Session.Candidates))
}

func TestServiceGeneratePartialRoundsReplaceStaging(t *testing.T) {
	f := newServiceFixture(t,
		scriptedResponse{phrases: []string{"a"}},
		scriptedResponse{raw: "{}"},
	)
	session := f.svc.CreateSession()

	req := f.request()
	req.Runs = 3
	outcome, err := f.svc.Generate(context.Background(), session.ID, req)

	var roundErr *RoundError
	require.True(t, errors.As(err, &roundErr))
	assert.Equal(t, 2, roundErr.Round)
	assert.Equal(t, 1, outcome.Rounds)
	assert.Equal(t, []string{"a"}, texts(outcome.Session.Candidates))
	assert.Equal(t, StateGenerated, outcome.Session.State)
	assert.Equal(t, 2, f.caller.calls())
}

func TestServiceCommitGuard(t *testing.T) {
	f := newServiceFixture(t, scriptedResponse{phrases: []string{"a"}})
	ctx := context.Background()
	snap := f.svc.CreateSession()
	_, err := f.svc.Generate(ctx, snap.ID, f.request())
	require.NoError(t, err)
	_, err = f.svc.SelectCandidates(snap.ID, &dto.SelectCandidatesRequest{Indices: []int{0}, Selected: true})
	require.NoError(t, err)

	session, err := f.svc.sessions.Get(snap.ID)
	require.NoError(t, err)
	_, _, err = session.BeginImport()
	require.NoError(t, err)

	_, _, err = f.svc.Commit(ctx, snap.ID)
	assert.ErrorIs(t, err, ErrCommitInFlight)
	_, err = f.svc.Generate(ctx, snap.ID, f.request())
	assert.ErrorIs(t, err, ErrSessionBusy)

	count, err := f.repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestServiceCommitEmptySelection(t *testing.T) {
	f := newServiceFixture(t, scriptedResponse{phrases: []string{"a", "b"}})
	ctx := context.Background()
	snap := f.svc.CreateSession()
	_, err := f.svc.Generate(ctx, snap.ID, f.request())
	require.NoError(t, err)

	_, snap, err = f.svc.Commit(ctx, snap.ID)
	var vErr *ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, StateGenerated, snap.State)
	assert.Len(t, snap.Candidates, 2)
}

func TestServiceUnknownSession(t *testing.T) {
	f := newServiceFixture(t)
	_, err := f.svc.GetSession("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = f.svc.Generate(context.Background(), "nope", f.request())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, f.svc.DeleteSession("nope"), ErrSessionNotFound)
}

func TestServiceExportCSV(t *testing.T) {
	f := newServiceFixture(t, scriptedResponse{phrases: []string{"Start cleaning", `Say "hi", {room}`}})
	snap := f.svc.CreateSession()
	_, err := f.svc.Generate(context.Background(), snap.ID, f.request())
	require.NoError(t, err)
	_, err = f.svc.EditCandidate(snap.ID, 0, FieldScore, "0.5")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportCSV(snap.ID, &buf))

	out := strings.TrimPrefix(buf.String(), "\xEF\xBB\xBF")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "intent_id,slot_id,text,score", lines[0])
	assert.Equal(t, "1,,Start cleaning,0.5", lines[1])
	assert.Equal(t, `1,,"Say ""hi"", {room}",0.9`, lines[2])
}
