package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/NickZhezl/LiveCodeInno/internal/repository"
	"github.com/NickZhezl/LiveCodeInno/internal/tasks"
)

// VersionPersistHandler 处理代码版本存档落库任务
type VersionPersistHandler struct {
	versionRepo repository.SavedVersionRepository
}

// NewVersionPersistHandler 创建 Handler 实例
func NewVersionPersistHandler(versionRepo repository.SavedVersionRepository) *VersionPersistHandler {
	return &VersionPersistHandler{versionRepo: versionRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *VersionPersistHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)

	logCtx := logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
	logCtx.Info("Processing version persist task...")

	var payload tasks.VersionPersistPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		// payload 坏了重试也没用
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	if err := h.versionRepo.Save(ctx, &payload.Version); err != nil {
		logCtx.WithError(err).Errorf("Failed to save version (room %s, seq %d)", payload.Version.RoomID, payload.Version.Seq)
		return fmt.Errorf("failed to save version seq %d: %w", payload.Version.Seq, err)
	}

	logCtx.WithFields(logrus.Fields{"room_id": payload.Version.RoomID, "save_seq": payload.Version.Seq}).
		Info("Version persist task processed successfully")
	return nil
}
