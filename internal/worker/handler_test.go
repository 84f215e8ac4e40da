package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"
	"github.com/NickZhezl/LiveCodeInno/internal/tasks"
)

// versionRepoStub 记录 Save 调用，按需返回错误
type versionRepoStub struct {
	saved   []domain.SavedVersion
	saveErr error
}

func (s *versionRepoStub) Save(_ context.Context, version *domain.SavedVersion) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saved = append(s.saved, *version)
	return nil
}

func (s *versionRepoStub) ListByRoom(_ context.Context, _ string, _ int) ([]domain.SavedVersion, error) {
	return nil, nil
}

// stateRepoStub 只实现清理用到的方法，其余走嵌入接口 (调用即 panic)
type stateRepoStub struct {
	repository.StateRepository
	purged    int
	purgeErr  error
	gotOlder  time.Duration
	purgeRuns int
}

func (s *stateRepoStub) PurgeStaleCursors(_ context.Context, olderThan time.Duration) (int, error) {
	s.purgeRuns++
	s.gotOlder = olderThan
	return s.purged, s.purgeErr
}

func TestVersionPersistHandler_SavesVersion(t *testing.T) {
	repo := &versionRepoStub{}
	handler := NewVersionPersistHandler(repo)

	version := domain.SavedVersion{
		RoomID:    "room42",
		Seq:       3,
		Code:      "print('hi')",
		Language:  "python",
		Timestamp: time.Unix(1700000000, 0),
	}
	payload, err := tasks.NewVersionPersistTask(version)
	require.NoError(t, err)

	task := asynq.NewTask(tasks.TypeVersionPersist, payload)
	err = handler.ProcessTask(context.Background(), task)

	require.NoError(t, err)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "room42", repo.saved[0].RoomID)
	assert.Equal(t, int64(3), repo.saved[0].Seq)
	assert.Equal(t, "print('hi')", repo.saved[0].Code)
}

func TestVersionPersistHandler_BadPayloadSkipsRetry(t *testing.T) {
	repo := &versionRepoStub{}
	handler := NewVersionPersistHandler(repo)

	task := asynq.NewTask(tasks.TypeVersionPersist, []byte("not json"))
	err := handler.ProcessTask(context.Background(), task)

	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "corrupt payload should not be retried")
	assert.Empty(t, repo.saved)
}

func TestVersionPersistHandler_RepoFailureIsRetryable(t *testing.T) {
	repo := &versionRepoStub{saveErr: errors.New("db gone")}
	handler := NewVersionPersistHandler(repo)

	payload, err := tasks.NewVersionPersistTask(domain.SavedVersion{RoomID: "room42", Seq: 1})
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeVersionPersist, payload))

	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "transient DB errors should be retried")
}

func TestCursorSweepHandler_PurgesWithSweepAge(t *testing.T) {
	repo := &stateRepoStub{purged: 7}
	handler := NewCursorSweepHandler(repo)

	payload, err := tasks.NewCursorSweepTask()
	require.NoError(t, err)

	err = handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeCursorSweep, payload))

	require.NoError(t, err)
	assert.Equal(t, 1, repo.purgeRuns)
	assert.Equal(t, cursorSweepAge, repo.gotOlder)
}

func TestCursorSweepHandler_ErrorIsNotRetried(t *testing.T) {
	repo := &stateRepoStub{purgeErr: errors.New("redis scan failed")}
	handler := NewCursorSweepHandler(repo)

	err := handler.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeCursorSweep, nil))

	// 部分清理也有价值，错误只记录日志
	require.NoError(t, err)
	assert.Equal(t, 1, repo.purgeRuns)
}
