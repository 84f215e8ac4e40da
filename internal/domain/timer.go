package domain

import "time"

// 计时器的三个状态。所有状态切换都通过文档通道写入，
// 房间内每个参与者 (包括发起者) 都通过通知观察到切换。
const (
	TimerIdle    = "idle"    // 秒数为 0，不走表
	TimerRunning = "running" // 从 StartTime 起走表
	TimerStopped = "stopped" // 冻结在 Elapsed
)

// TimerState 是共享的计时器记录。
// 不变式: Status == "running" 时 StartTime 非 nil 且 Elapsed 已过期
// (展示值必须按 now-StartTime 重算)；其他状态下展示值就是 Elapsed。
type TimerState struct {
	Status    string `json:"status"`
	StartTime *int64 `json:"startTime"` // epoch ms，非 running 状态为 nil
	Elapsed   int    `json:"elapsed"`   // 秒
}

// DisplaySeconds 推导当前应展示的秒数。
// 每个客户端独立地从共享的 StartTime 重算，因此各端时钟只需要
// 秒级精度就能得到一致的显示 (派生值模式，而非存储-读取)。
func (t TimerState) DisplaySeconds(now time.Time) int {
	if t.Status == TimerRunning && t.StartTime != nil {
		diff := int((now.UnixMilli() - *t.StartTime) / 1000)
		if diff < 0 {
			diff = 0
		}
		return diff
	}
	if t.Status == TimerIdle {
		return 0
	}
	return t.Elapsed
}

// NewIdleTimer 返回初始 (归零) 计时器状态。
func NewIdleTimer() TimerState {
	return TimerState{Status: TimerIdle, StartTime: nil, Elapsed: 0}
}
