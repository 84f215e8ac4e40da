package service

import (
	"context"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/NickZhezl/LiveCodeInno/internal/metrics"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"

	"github.com/sirupsen/logrus"
)

// Executor 是 RunnerService 看到的执行入口。
type Executor interface {
	Execute(ctx context.Context, language, source string) (exec.RunResult, error)
}

// RunnerService 负责 "运行代码" 的完整回合：
// 领取运行序号、执行、写入 lastRun、广播 run.result。
// 并发运行时只有最后领号的那次能落盘，先领号后完成的旧结果被丢弃。
type RunnerService struct {
	executor  Executor
	stateRepo repository.StateRepository
}

// NewRunnerService 创建 RunnerService 实例。
func NewRunnerService(executor Executor, stateRepo repository.StateRepository) *RunnerService {
	if executor == nil || stateRepo == nil {
		panic("Executor and StateRepository cannot be nil for RunnerService")
	}
	return &RunnerService{executor: executor, stateRepo: stateRepo}
}

// Run 执行一次运行请求。
// 结果被更新的请求取代时返回 ErrStaleRun，调用方不必告知用户。
func (s *RunnerService) Run(ctx context.Context, roomID, userName, language, source string) (*domain.LastRun, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "user_name": userName, "language": language})

	// 1. 领取运行序号
	seq, err := s.stateRepo.NextRunSeq(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Run: failed to acquire run seq")
		return nil, ErrInternalServer
	}
	logCtx = logCtx.WithField("run_seq", seq)

	// 2. 执行。执行器故障 (沙箱不可达等) 也作为结果呈现给房间
	result, err := s.executor.Execute(ctx, language, source)
	if err != nil {
		logCtx.WithError(err).Warn("Run: executor unavailable")
		result = exec.RunResult{Stderr: err.Error()}
	}

	// 3. 比对最新序号，旧结果直接丢弃
	latest, err := s.stateRepo.LatestRunSeq(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Run: failed to read latest run seq")
		return nil, ErrInternalServer
	}
	if latest != seq {
		logCtx.WithField("latest_seq", latest).Info("Run: result superseded, discarding")
		metrics.RunsTotal.WithLabelValues(language, "stale").Inc()
		return nil, ErrStaleRun
	}

	// 4. 写入 lastRun 并广播
	lastRun := domain.LastRun{
		By:        userName,
		Language:  language,
		Output:    result.Stdout,
		Stderr:    result.Stderr,
		OK:        result.OK(),
		Seq:       seq,
		UpdatedAt: time.Now().UnixMilli(),
	}
	if err := s.stateRepo.SetLastRun(ctx, roomID, lastRun); err != nil {
		logCtx.WithError(err).Error("Run: failed to store lastRun")
		return nil, ErrInternalServer
	}

	msg, err := dto.NewEnvelope(dto.TypeRunResult, dto.RunResultMsg{LastRun: lastRun})
	if err != nil {
		return nil, ErrInternalServer
	}
	if err := s.stateRepo.PublishEvent(ctx, dto.Event{RoomID: roomID, Message: msg}); err != nil {
		logCtx.WithError(err).Error("Run: failed to publish run.result")
		return nil, ErrInternalServer
	}

	outcome := "ok"
	if !lastRun.OK {
		outcome = "error"
	}
	metrics.RunsTotal.WithLabelValues(language, outcome).Inc()
	logCtx.WithField("ok", lastRun.OK).Info("Run completed")
	return &lastRun, nil
}
