package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"talent-copilot/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New()
	require.NoError(t, err)
	return s
}

func TestNewSessionID(t *testing.T) {
	a := newTestSession(t)
	b := newTestSession(t)
	assert.NotEqual(t, a.ID, b.ID)
	assert.True(t, ValidID(a.ID))
	assert.False(t, ValidID("../../etc/passwd"))
	assert.False(t, ValidID(""))
}

// TestEnsureResumeTextRunsOnce 已有文本时不再调用提取
func TestEnsureResumeTextRunsOnce(t *testing.T) {
	s := newTestSession(t)
	calls := 0
	produce := func(context.Context) (string, error) {
		calls++
		return "resume text", nil
	}

	for i := 0; i < 3; i++ {
		text, err := s.EnsureResumeText(context.Background(), produce)
		require.NoError(t, err)
		assert.Equal(t, "resume text", text)
	}
	assert.Equal(t, 1, calls)
}

func TestEnsureResumeTextError(t *testing.T) {
	s := newTestSession(t)
	boom := errors.New("boom")
	_, err := s.EnsureResumeText(context.Background(), func(context.Context) (string, error) { return "", boom })
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, s.ResumeText)
}

// TestEnsureResumeDataRetriesFailure 解析失败不缓存，成功后不再调用模型
func TestEnsureResumeDataRetriesFailure(t *testing.T) {
	s := newTestSession(t)
	s.ResumeText = "text"
	calls := 0
	produce := func(_ context.Context, text string) (types.LLMResult[*types.ResumeRecord], error) {
		calls++
		assert.Equal(t, "text", text)
		if calls == 1 {
			return types.Failure[*types.ResumeRecord]("not json"), nil
		}
		return types.Success(types.NewResumeRecord(map[string]any{"Full Name": "Ada"}), "{}"), nil
	}

	res, err := s.EnsureResumeData(context.Background(), produce)
	require.NoError(t, err)
	assert.False(t, res.OK)

	for i := 0; i < 2; i++ {
		res, err = s.EnsureResumeData(context.Background(), produce)
		require.NoError(t, err)
		assert.True(t, res.OK)
		assert.Equal(t, "Ada", res.Value.FullName)
	}
	assert.Equal(t, 2, calls)
}

func TestEnsureResumeDataErrorNotCached(t *testing.T) {
	s := newTestSession(t)
	llmErr := errors.New("llm down")
	_, err := s.EnsureResumeData(context.Background(), func(context.Context, string) (types.LLMResult[*types.ResumeRecord], error) {
		return types.LLMResult[*types.ResumeRecord]{}, llmErr
	})
	assert.ErrorIs(t, err, llmErr)
	assert.Nil(t, s.ResumeData, "调用失败后应允许重试")
}

// TestAttachResumeResets 换文件后清空下游结果，同一文件不重置
func TestAttachResumeResets(t *testing.T) {
	s := newTestSession(t)
	assert.True(t, s.AttachResume("a.pdf", []byte("one")))

	s.ResumeText = "text"
	rec := types.Success(types.NewResumeRecord(map[string]any{"Full Name": "Ada"}), "{}")
	s.ResumeData = &rec
	s.SetQuestions(types.Success(types.QuestionSet{{Name: "Coding Questions", Items: []types.QuestionItem{types.NewQuestionItem("Q")}}}, ""), nil, types.TierJunior, 1)
	s.AnswerSet().Set("Coding Questions", 1, "Q", "A")
	s.SetEvaluation("good")

	assert.False(t, s.AttachResume("a.pdf", []byte("one")))
	assert.Equal(t, "text", s.ResumeText)
	assert.Equal(t, "good", s.Evaluation)

	assert.True(t, s.AttachResume("a.pdf", []byte("two")), "内容变化")
	assert.Empty(t, s.ResumeText)
	assert.Nil(t, s.ResumeData)
	assert.Nil(t, s.Questions)
	assert.Nil(t, s.Answers)
	assert.Empty(t, s.Evaluation)

	assert.True(t, s.AttachResume("b.pdf", []byte("two")), "文件名变化")
}

// TestSetQuestionsClearsAnswers 重新生成问题后旧答案作废
func TestSetQuestionsClearsAnswers(t *testing.T) {
	s := newTestSession(t)
	s.AnswerSet().Set("Coding Questions", 1, "Q", "A")
	s.SetEvaluation("ok")

	s.SetQuestions(types.Failure[types.QuestionSet]("oops"), nil, types.TierMid, 5)
	assert.Nil(t, s.Answers)
	assert.Empty(t, s.Evaluation)
	assert.Nil(t, s.QuestionSet(), "解析失败时没有可用问题")
	assert.Equal(t, types.TierMid, s.Tier)
	assert.Equal(t, 5, s.TotalExperience)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	s := newTestSession(t)
	s.AttachResume("cv.docx", []byte("data"))
	s.ResumeText = "hello"
	rec := types.Success(types.NewResumeRecord(map[string]any{"Full Name": "Ada", "Skills": "Go, SQL"}), "raw")
	s.ResumeData = &rec
	qs := types.QuestionSet{
		{Name: "Project-based Questions", Items: []types.QuestionItem{types.NewQuestionItem("Which DB?")}},
		{Name: "Coding Questions", Items: []types.QuestionItem{types.NewQuestionItem("Reverse a list")}},
	}
	s.SetQuestions(types.Success(qs, "raw"), []string{"warn"}, types.TierSenior, 12)
	s.AnswerSet().Set("Coding Questions", 1, "Reverse a list", "use two pointers")
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.ResumeText)
	require.NotNil(t, got.ResumeData)
	assert.True(t, got.ResumeData.OK)
	assert.Equal(t, "Ada", got.ResumeData.Value.FullName)
	assert.Equal(t, []string{"Go", "SQL"}, got.ResumeData.Value.Skills)

	gotQs := got.QuestionSet()
	require.Len(t, gotQs, 2)
	assert.Equal(t, "Project-based Questions", gotQs[0].Name)
	assert.Equal(t, "Coding Questions", gotQs[1].Name)
	answer, ok := got.Answers.Get("Coding Questions", 1)
	assert.True(t, ok)
	assert.Equal(t, "use two pointers", answer)
	assert.Equal(t, []string{"warn"}, got.QuestionWarnings)

	// 修改副本不影响存储
	got.ResumeText = "changed"
	again, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", again.ResumeText)

	require.NoError(t, store.Delete(ctx, s.ID))
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.NoError(t, store.Delete(ctx, s.ID))
}

func TestMemoryStoreFailureVariantSurvives(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	s := newTestSession(t)
	fail := types.Failure[*types.ResumeRecord]("garbage")
	s.ResumeData = &fail
	s.SetQuestions(types.Failure[types.QuestionSet]("more garbage"), nil, types.TierJunior, 0)
	require.NoError(t, store.Save(ctx, s))

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ResumeData)
	assert.False(t, got.ResumeData.OK)
	assert.Equal(t, "garbage", got.ResumeData.Raw)
	require.NotNil(t, got.Questions)
	assert.False(t, got.Questions.OK)
}

func TestMemoryStoreExpires(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(time.Millisecond)
	s := newTestSession(t)
	require.NoError(t, store.Save(ctx, s))
	time.Sleep(5 * time.Millisecond)
	_, err := store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedStore(ttl time.Duration) (*MemoryStore, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	store := NewMemoryStore(ttl)
	store.now = clock.now
	return store, clock
}

// TestMemoryStoreEvictKeepsRefreshedSession Get 判定过期后、删除前有 Save 刷新时，新数据保留
func TestMemoryStoreEvictKeepsRefreshedSession(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(time.Minute)
	s := newTestSession(t)
	require.NoError(t, store.Save(ctx, s))

	clock.advance(2 * time.Minute)
	s.Evaluation = "fresh"
	require.NoError(t, store.Save(ctx, s))
	store.evictIfExpired(s.ID)

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "fresh", got.Evaluation)

	clock.advance(2 * time.Minute)
	store.evictIfExpired(s.ID)
	_, err = store.Get(ctx, s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// TestMemoryStoreSweepsOnSave 不再读取的过期会话在后续写入时被清理
func TestMemoryStoreSweepsOnSave(t *testing.T) {
	ctx := context.Background()
	store, clock := newClockedStore(time.Minute)
	stale := newTestSession(t)
	require.NoError(t, store.Save(ctx, stale))

	clock.advance(30 * time.Second)
	live := newTestSession(t)
	require.NoError(t, store.Save(ctx, live))

	clock.advance(45 * time.Second)
	require.NoError(t, store.Save(ctx, newTestSession(t)))

	store.mu.RLock()
	_, staleKept := store.sessions[stale.ID]
	_, liveKept := store.sessions[live.ID]
	size := len(store.sessions)
	store.mu.RUnlock()
	assert.False(t, staleKept)
	assert.True(t, liveKept)
	assert.Equal(t, 2, size)
}

func TestMemoryStoreRejectsEmptyID(t *testing.T) {
	store := NewMemoryStore(0)
	assert.Error(t, store.Save(context.Background(), &Session{}))
	assert.Error(t, store.Save(context.Background(), nil))
}

// TestMemoryStoreConcurrent 并发写同一个会话时后写者生效，不会出现数据竞争
func TestMemoryStoreConcurrent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	s := newTestSession(t)
	require.NoError(t, store.Save(ctx, s))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			cp, err := store.Get(ctx, s.ID)
			if err != nil {
				return
			}
			cp.Evaluation = "writer"
			_ = store.Save(ctx, cp)
		}(i)
	}
	wg.Wait()

	got, err := store.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "writer", got.Evaluation)
}

func TestNewStoreFallsBackToMemory(t *testing.T) {
	store := NewStore(nil, "", time.Hour)
	_, ok := store.(*MemoryStore)
	assert.True(t, ok)

	_, err := NewRedisStore(nil, "", 0)
	assert.Error(t, err)
}
