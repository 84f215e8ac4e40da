package service

import (
	"context"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"

	"github.com/sirupsen/logrus"
)

// TimerService 协调房间的共享计时器。
// 只存状态机 (status + startTime + elapsed)，不存滴答：
// 显示秒数由各端从 startTime 推算，服务端不广播每秒更新。
type TimerService struct {
	stateRepo repository.StateRepository
	now       func() time.Time
}

// NewTimerService 创建 TimerService 实例。
func NewTimerService(stateRepo repository.StateRepository) *TimerService {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for TimerService")
	}
	return &TimerService{stateRepo: stateRepo, now: time.Now}
}

// Start 启动计时器，从 0 重新计时。
// 停止后再启动不是恢复：冻结的秒数被丢弃。
// 已在运行时是幂等操作，保持原 startTime。
func (s *TimerService) Start(ctx context.Context, roomID string) error {
	doc, err := s.stateRepo.GetRoomDoc(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Timer.Start: failed to read room doc")
		return ErrInternalServer
	}
	if doc.Timer.Status == domain.TimerRunning && doc.Timer.StartTime != nil {
		return s.broadcast(ctx, roomID, doc.Timer)
	}

	startMillis := s.now().UnixMilli()
	timer := domain.TimerState{
		Status:    domain.TimerRunning,
		StartTime: &startMillis,
		Elapsed:   0,
	}
	return s.setAndBroadcast(ctx, roomID, timer)
}

// Stop 停止计时器并冻结秒数。
// elapsed 是发起端推算的显示值；<0 时由服务端自行推算。
func (s *TimerService) Stop(ctx context.Context, roomID string, elapsed int) error {
	doc, err := s.stateRepo.GetRoomDoc(ctx, roomID)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Timer.Stop: failed to read room doc")
		return ErrInternalServer
	}
	if elapsed < 0 {
		elapsed = doc.Timer.DisplaySeconds(s.now())
	}
	timer := domain.TimerState{
		Status:  domain.TimerStopped,
		Elapsed: elapsed,
	}
	return s.setAndBroadcast(ctx, roomID, timer)
}

// Reset 重置计时器为初始空闲状态。
func (s *TimerService) Reset(ctx context.Context, roomID string) error {
	return s.setAndBroadcast(ctx, roomID, domain.NewIdleTimer())
}

func (s *TimerService) setAndBroadcast(ctx context.Context, roomID string, timer domain.TimerState) error {
	if err := s.stateRepo.SetTimer(ctx, roomID, timer); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Timer: failed to set timer state")
		return ErrInternalServer
	}
	return s.broadcast(ctx, roomID, timer)
}

// broadcast 发布 timer.sync。计时器变化对所有人可见，包括发起者。
func (s *TimerService) broadcast(ctx context.Context, roomID string, timer domain.TimerState) error {
	msg, err := dto.NewEnvelope(dto.TypeTimerSync, dto.TimerSync{Timer: timer})
	if err != nil {
		return ErrInternalServer
	}
	if err := s.stateRepo.PublishEvent(ctx, dto.Event{RoomID: roomID, Message: msg}); err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("Timer: failed to publish timer.sync")
		return ErrInternalServer
	}
	return nil
}
