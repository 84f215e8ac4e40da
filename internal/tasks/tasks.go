package tasks

import (
	"encoding/json"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
)

// 定义任务类型常量
const (
	TypeVersionPersist = "version:persist" // 代码版本存档落库
	TypeCursorSweep    = "cursor:sweep"    // 周期清理失活光标
)

// VersionPersistPayload 定义了版本存档任务的数据结构
type VersionPersistPayload struct {
	Version domain.SavedVersion
}

// NewVersionPersistTask 序列化一个版本存档任务的 payload
func NewVersionPersistTask(version domain.SavedVersion) ([]byte, error) {
	payloadBytes, err := json.Marshal(VersionPersistPayload{Version: version})
	if err != nil {
		return nil, err
	}
	return payloadBytes, nil
}

// NewCursorSweepTask 构建周期光标清理任务的 payload (当前无参数)
func NewCursorSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}
