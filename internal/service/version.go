package service

import (
	"context"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/repository"
	"github.com/NickZhezl/LiveCodeInno/internal/tasks"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
)

// TaskEnqueuer 是 VersionService 看到的任务队列入口，由 asynq.Client 满足。
type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// VersionService 负责代码版本存档。
// 存档序号在 Redis 原子领取，落库交给后台任务队列，
// 请求路径上只做入队，不等数据库。
type VersionService struct {
	stateRepo   repository.StateRepository
	versionRepo repository.SavedVersionRepository
	queue       TaskEnqueuer
}

// NewVersionService 创建 VersionService 实例。
func NewVersionService(stateRepo repository.StateRepository, versionRepo repository.SavedVersionRepository, queue TaskEnqueuer) *VersionService {
	if stateRepo == nil || versionRepo == nil || queue == nil {
		panic("all dependencies must be provided for VersionService")
	}
	return &VersionService{stateRepo: stateRepo, versionRepo: versionRepo, queue: queue}
}

// SaveVersion 存档房间当前代码，返回分配的存档序号。
// timestamp 是发起端的墙上时钟毫秒，仅作展示。
func (s *VersionService) SaveVersion(ctx context.Context, roomID string, timestamp int64) (int64, error) {
	logCtx := logrus.WithField("room_id", roomID)

	doc, err := s.stateRepo.GetRoomDoc(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("SaveVersion: failed to read room doc")
		return 0, ErrInternalServer
	}
	seq, err := s.stateRepo.NextSaveSeq(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("SaveVersion: failed to acquire save seq")
		return 0, ErrInternalServer
	}

	// 发起端时间戳缺失或非法时退回服务器时间
	savedAt := time.UnixMilli(timestamp)
	if timestamp <= 0 {
		savedAt = time.Now()
	}
	version := domain.SavedVersion{
		RoomID:    roomID,
		Seq:       seq,
		Code:      doc.Code,
		Language:  doc.Language,
		Timestamp: savedAt,
	}
	payload, err := tasks.NewVersionPersistTask(version)
	if err != nil {
		logCtx.WithError(err).Error("SaveVersion: failed to build task payload")
		return 0, ErrInternalServer
	}
	task := asynq.NewTask(tasks.TypeVersionPersist, payload)
	if _, err := s.queue.EnqueueContext(ctx, task, asynq.MaxRetry(5), asynq.Timeout(30*time.Second)); err != nil {
		logCtx.WithError(err).Error("SaveVersion: failed to enqueue persist task")
		return 0, ErrInternalServer
	}

	// 广播 save.ack，让房间里所有人看到存档序号更新
	msg, err := dto.NewEnvelope(dto.TypeSaveAck, dto.SaveAck{Seq: seq})
	if err != nil {
		return 0, ErrInternalServer
	}
	if err := s.stateRepo.PublishEvent(ctx, dto.Event{RoomID: roomID, Message: msg}); err != nil {
		logCtx.WithError(err).Warn("SaveVersion: failed to publish save.ack")
	}

	logCtx.WithField("save_seq", seq).Info("Version save enqueued")
	return seq, nil
}

// History 返回房间的历史版本，按存档序号倒序。
func (s *VersionService) History(ctx context.Context, roomID string, limit int) ([]domain.SavedVersion, error) {
	versions, err := s.versionRepo.ListByRoom(ctx, roomID, limit)
	if err != nil {
		logrus.WithError(err).WithField("room_id", roomID).Error("History: failed to list versions")
		return nil, ErrInternalServer
	}
	return versions, nil
}
