package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/NickZhezl/LiveCodeInno/internal/repository"
)

// 光标清理的存活窗口要比广播过滤的窗口宽：
// 广播侧 60 秒就不再显示，这里只负责把彻底失活的条目从 Redis 删掉。
const cursorSweepAge = 10 * time.Minute

// CursorSweepHandler 处理周期性的失活光标清理任务
type CursorSweepHandler struct {
	stateRepo repository.StateRepository
}

// NewCursorSweepHandler 创建 Handler 实例
func NewCursorSweepHandler(stateRepo repository.StateRepository) *CursorSweepHandler {
	if stateRepo == nil {
		panic("StateRepository cannot be nil for CursorSweepHandler")
	}
	return &CursorSweepHandler{stateRepo: stateRepo}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *CursorSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := logrus.WithField("task_type", t.Type())
	logCtx.Info("Processing periodic cursor sweep task...")

	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	purged, err := h.stateRepo.PurgeStaleCursors(sweepCtx, cursorSweepAge)
	if err != nil {
		// 部分清理也有价值，记录错误但不重试整个扫描
		logCtx.WithError(err).WithField("purged", purged).Error("Cursor sweep finished with errors")
		return nil
	}
	logCtx.WithField("purged", purged).Info("Cursor sweep completed")
	return nil
}
