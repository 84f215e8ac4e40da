package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"
)

// stateStub 是 StateRepository 的内存实现，单房间，测试用。
// 发布的事件收进 published，测试断言广播行为。
type stateStub struct {
	mu        sync.Mutex
	doc       domain.RoomDoc
	seeded    bool
	cursors   map[string]domain.Cursor
	runSeq    int64
	saveSeq   int64
	published []dto.Event
}

func newStateStub() *stateStub {
	return &stateStub{cursors: make(map[string]domain.Cursor)}
}

func (s *stateStub) GetRoomDoc(_ context.Context, _ string) (domain.RoomDoc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seeded {
		return domain.RoomDoc{}, repository.ErrNotFound
	}
	return s.doc, nil
}

func (s *stateStub) SeedRoomDoc(_ context.Context, _ string, doc domain.RoomDoc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seeded {
		s.doc = doc
		s.seeded = true
	}
	return nil
}

func (s *stateStub) SetCode(_ context.Context, _ string, code string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeded = true
	s.doc.Code = code
	s.doc.Version++
	return s.doc.Version, nil
}

func (s *stateStub) SetLanguage(_ context.Context, _ string, language, seedCode string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seeded = true
	s.doc.Language = language
	if seedCode != "" {
		s.doc.Code = seedCode
	}
	s.doc.Version++
	return s.doc.Version, nil
}

func (s *stateStub) SetTimer(_ context.Context, _ string, timer domain.TimerState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Timer = timer
	return nil
}

func (s *stateStub) SetLastRun(_ context.Context, _ string, run domain.LastRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.LastRun = &run
	return nil
}

func (s *stateStub) NextRunSeq(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runSeq++
	return s.runSeq, nil
}

func (s *stateStub) LatestRunSeq(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runSeq, nil
}

func (s *stateStub) NextSaveSeq(_ context.Context, _ string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSeq++
	return s.saveSeq, nil
}

func (s *stateStub) SetCursor(_ context.Context, _ string, cursor domain.Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[cursor.UserName] = cursor
	return nil
}

func (s *stateStub) ListCursors(_ context.Context, _ string) ([]domain.Cursor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Cursor, 0, len(s.cursors))
	for _, c := range s.cursors {
		out = append(out, c)
	}
	return out, nil
}

func (s *stateStub) RemoveCursor(_ context.Context, _ string, userName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, userName)
	return nil
}

func (s *stateStub) PurgeStaleCursors(_ context.Context, olderThan time.Duration) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := time.Now().Add(-olderThan).UnixMilli()
	purged := 0
	for name, c := range s.cursors {
		if c.UpdatedAt < cutoff {
			delete(s.cursors, name)
			purged++
		}
	}
	return purged, nil
}

func (s *stateStub) CheckRateLimit(_ context.Context, _ string, _ int, _ time.Duration) (bool, error) {
	return false, nil
}

func (s *stateStub) PublishEvent(_ context.Context, event dto.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published = append(s.published, event)
	return nil
}

func (s *stateStub) SubscribeRoom(_ context.Context, _ string) (<-chan dto.Event, func() error, error) {
	ch := make(chan dto.Event)
	close(ch)
	return ch, func() error { return nil }, nil
}

func (s *stateStub) events() []dto.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.Event, len(s.published))
	copy(out, s.published)
	return out
}

// fakeExecutor 返回预设结果，记录收到的提交。
type fakeExecutor struct {
	mu       sync.Mutex
	result   exec.RunResult
	err      error
	language string
	source   string
	// 非 nil 时在每次执行前调用，用来在执行间隙插入并发行为
	beforeReturn func()
}

func (f *fakeExecutor) Execute(_ context.Context, language, source string) (exec.RunResult, error) {
	f.mu.Lock()
	f.language = language
	f.source = source
	hook := f.beforeReturn
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return f.result, f.err
}
