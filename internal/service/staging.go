package service

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// CandidateStatus 候选语料状态
type CandidateStatus string

const (
	CandidatePending  CandidateStatus = "pending"
	CandidateRejected CandidateStatus = "rejected"
)

// CorpusCandidate 暂存中、尚未入库的语料
type CorpusCandidate struct {
	IntentID uint            `json:"intent_id"`
	SlotID   *uint           `json:"slot_id"`
	Text     string          `json:"text"`
	Score    float64         `json:"score"`
	Selected bool            `json:"selected"`
	Status   CandidateStatus `json:"status"`
}

// SessionState 暂存会话状态
type SessionState string

const (
	StateIdle      SessionState = "idle"
	StateGenerated SessionState = "generated"
	StateEditing   SessionState = "editing"
	StateImporting SessionState = "importing"
	StateDone      SessionState = "done"
)

// 可编辑字段
const (
	FieldText   = "text"
	FieldScore  = "score"
	FieldSlotID = "slot_id"
)

// DefaultScore 新生成候选的默认分数
const DefaultScore = 0.9

// StagingSession 单个审核会话的暂存区
//
// 状态流转: Idle -> Generated -> (Editing) -> Importing -> Done，Reset 回到 Idle。
type StagingSession struct {
	mu           sync.Mutex
	id           string
	state        SessionState
	intentID     uint
	candidates   []CorpusCandidate
	defaultScore float64
	lastImport   *ImportResult
	lastError    string
	createdAt    time.Time
	updatedAt    time.Time
}

// SessionSnapshot 会话当前内容的只读副本
type SessionSnapshot struct {
	ID            string            `json:"id"`
	State         SessionState      `json:"state"`
	IntentID      uint              `json:"intent_id"`
	Candidates    []CorpusCandidate `json:"candidates"`
	SelectedCount int               `json:"selected_count"`
	LastImport    *ImportResult     `json:"last_import,omitempty"`
	LastError     string            `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// NewStagingSession 创建空会话，defaultScore 不在 [0,1] 时使用 DefaultScore
func NewStagingSession(id string, defaultScore float64) *StagingSession {
	if defaultScore < 0 || defaultScore > 1 {
		defaultScore = DefaultScore
	}
	now := time.Now()
	return &StagingSession{
		id:           id,
		state:        StateIdle,
		defaultScore: defaultScore,
		createdAt:    now,
		updatedAt:    now,
	}
}

// ID 会话ID
func (s *StagingSession) ID() string { return s.id }

// State 当前状态
func (s *StagingSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// IntentID 暂存内容所属意图
func (s *StagingSession) IntentID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.intentID
}

// Seed 用生成结果替换暂存内容，每条短语一条候选
func (s *StagingSession) Seed(intentID uint, batches []PhraseBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateImporting {
		return ErrSessionBusy
	}

	var candidates []CorpusCandidate
	for _, batch := range batches {
		for _, phrase := range batch.Phrases {
			candidates = append(candidates, CorpusCandidate{
				IntentID: intentID,
				Text:     phrase,
				Score:    s.defaultScore,
				Status:   CandidatePending,
			})
		}
	}

	s.intentID = intentID
	s.candidates = candidates
	s.lastImport = nil
	s.lastError = ""
	s.state = StateGenerated
	s.touch()
	return nil
}

// Edit 修改一条候选的 text、score 或 slot_id
//
// score 超出 [0,1] 时返回 ValidationError，不做截断；slot_id 为空或 0 表示清除。
func (s *StagingSession) Edit(index int, field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	if index < 0 || index >= len(s.candidates) {
		return &IndexError{Index: index, Len: len(s.candidates)}
	}

	c := &s.candidates[index]
	switch field {
	case FieldText:
		c.Text = value
	case FieldScore:
		score, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return &ValidationError{Field: FieldScore, Reason: fmt.Sprintf("不是有效的数字: %q", value)}
		}
		if err := ValidateScore(score); err != nil {
			return err
		}
		c.Score = score
	case FieldSlotID:
		slotID, err := parseSlotID(value)
		if err != nil {
			return err
		}
		c.SlotID = slotID
	default:
		return &ValidationError{Field: field, Reason: "不支持编辑该字段"}
	}

	s.state = StateEditing
	s.touch()
	return nil
}

// Remove 删除给定下标的候选，下标按当前顺序，全部校验通过后才删除
func (s *StagingSession) Remove(indices []int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	drop, err := s.indexSet(indices)
	if err != nil {
		return err
	}
	if len(drop) == 0 {
		return nil
	}

	kept := make([]CorpusCandidate, 0, len(s.candidates)-len(drop))
	for i, c := range s.candidates {
		if !drop[i] {
			kept = append(kept, c)
		}
	}
	s.candidates = kept
	s.state = StateEditing
	s.touch()
	return nil
}

// Select 设置给定下标候选的选中状态
func (s *StagingSession) Select(indices []int, selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	set, err := s.indexSet(indices)
	if err != nil {
		return err
	}
	for i := range set {
		s.candidates[i].Selected = selected
	}
	s.state = StateEditing
	s.touch()
	return nil
}

// SelectAll 全选或全不选
func (s *StagingSession) SelectAll(selected bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkMutable(); err != nil {
		return err
	}
	for i := range s.candidates {
		s.candidates[i].Selected = selected
	}
	s.state = StateEditing
	s.touch()
	return nil
}

// SelectedSubset 按暂存顺序返回已选中的候选，可能为空
func (s *StagingSession) SelectedSubset() []CorpusCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []CorpusCandidate{}
	for _, c := range s.candidates {
		if c.Selected {
			out = append(out, c)
		}
	}
	return out
}

// Candidates 返回全部候选的副本
func (s *StagingSession) Candidates() []CorpusCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CorpusCandidate(nil), s.candidates...)
}

// Snapshot 返回会话快照
func (s *StagingSession) Snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidates := append([]CorpusCandidate{}, s.candidates...)
	selected := 0
	for _, c := range candidates {
		if c.Selected {
			selected++
		}
	}
	return SessionSnapshot{
		ID:            s.id,
		State:         s.state,
		IntentID:      s.intentID,
		Candidates:    candidates,
		SelectedCount: selected,
		LastImport:    s.lastImport,
		LastError:     s.lastError,
		CreatedAt:     s.createdAt,
		UpdatedAt:     s.updatedAt,
	}
}

// BeginImport 进入 Importing 状态并取出待导入的选中候选
//
// 同一会话同时只允许一个导入；未选中任何候选时返回 ValidationError，暂存保持不变。
func (s *StagingSession) BeginImport() ([]CorpusCandidate, uint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateImporting {
		return nil, 0, ErrCommitInFlight
	}
	if len(s.candidates) == 0 {
		return nil, 0, ErrNothingStaged
	}

	var selected []CorpusCandidate
	for _, c := range s.candidates {
		if c.Selected {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 {
		return nil, 0, &ValidationError{Reason: "没有选中任何候选语料"}
	}

	s.state = StateImporting
	s.touch()
	return selected, s.intentID, nil
}

// FinishImport 结束导入，清空暂存并进入 Done
func (s *StagingSession) FinishImport(result *ImportResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.candidates = nil
	s.lastImport = result
	s.lastError = ""
	if err != nil {
		s.lastError = err.Error()
	}
	s.state = StateDone
	s.touch()
}

// Reset 清空暂存回到 Idle，导入过程中不可重置
func (s *StagingSession) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateImporting {
		return ErrSessionBusy
	}
	s.candidates = nil
	s.intentID = 0
	s.lastImport = nil
	s.lastError = ""
	s.state = StateIdle
	s.touch()
	return nil
}

// ValidateScore 分数必须在 [0,1] 内
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 1 {
		return &ValidationError{Field: FieldScore, Reason: fmt.Sprintf("必须在 [0,1] 范围内: %v", score)}
	}
	return nil
}

func (s *StagingSession) checkMutable() error {
	if s.state == StateImporting {
		return ErrSessionBusy
	}
	return nil
}

// indexSet 校验下标并去重
func (s *StagingSession) indexSet(indices []int) (map[int]bool, error) {
	set := make(map[int]bool, len(indices))
	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)
	for _, i := range sorted {
		if i < 0 || i >= len(s.candidates) {
			return nil, &IndexError{Index: i, Len: len(s.candidates)}
		}
		set[i] = true
	}
	return set, nil
}

func (s *StagingSession) touch() {
	s.updatedAt = time.Now()
}

func parseSlotID(value string) (*uint, error) {
	value = strings.TrimSpace(value)
	if value == "" || value == "null" {
		return nil, nil
	}
	n, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return nil, &ValidationError{Field: FieldSlotID, Reason: fmt.Sprintf("不是有效的ID: %q", value)}
	}
	if n == 0 {
		return nil, nil
	}
	id := uint(n)
	return &id, nil
}

// SessionStore 进程内的暂存会话表，超过容量时淘汰最久未使用的会话
type SessionStore struct {
	cache        *lru.Cache[string, *StagingSession]
	defaultScore float64
}

// NewSessionStore 创建会话表
func NewSessionStore(maxSessions int, defaultScore float64) (*SessionStore, error) {
	if maxSessions <= 0 {
		maxSessions = 256
	}
	cache, err := lru.New[string, *StagingSession](maxSessions)
	if err != nil {
		return nil, fmt.Errorf("创建会话缓存失败: %w", err)
	}
	return &SessionStore{cache: cache, defaultScore: defaultScore}, nil
}

// Create 新建会话
func (st *SessionStore) Create() *StagingSession {
	session := NewStagingSession(uuid.NewString(), st.defaultScore)
	st.cache.Add(session.ID(), session)
	return session
}

// Get 获取会话
func (st *SessionStore) Get(id string) (*StagingSession, error) {
	session, ok := st.cache.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Delete 删除会话，导入中的会话不可删除
func (st *SessionStore) Delete(id string) error {
	session, ok := st.cache.Peek(id)
	if !ok {
		return ErrSessionNotFound
	}
	if session.State() == StateImporting {
		return ErrSessionBusy
	}
	st.cache.Remove(id)
	return nil
}

// Len 当前会话数
func (st *SessionStore) Len() int {
	return st.cache.Len()
}
