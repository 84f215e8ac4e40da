package dto

import (
	"encoding/json"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
)

// WebSocket 消息类型。客户端 → 服务端:
const (
	TypeDocUpdate    = "doc.update"    // 编辑共享缓冲区
	TypeLangUpdate   = "lang.update"   // 切换语言
	TypeCursorUpdate = "cursor.update" // 光标移动
	TypeTimerStart   = "timer.start"
	TypeTimerStop    = "timer.stop"
	TypeTimerReset   = "timer.reset"
	TypeRunRequest   = "run.request"   // 执行当前代码
	TypeSaveRequest  = "save.request"  // 存档当前代码版本
)

// 服务端 → 客户端:
const (
	TypeDocSync    = "doc.sync"
	TypeCursorSync = "cursor.sync"
	TypeTimerSync  = "timer.sync"
	TypeRunResult  = "run.result"
	TypeSaveAck    = "save.ack"
	TypeError      = "error"
)

// Envelope 是 WebSocket 上传输的统一信封。
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope 序列化 payload 并装入信封。
func NewEnvelope(msgType string, payload interface{}) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Type: msgType, Payload: raw}, nil
}

// --- 客户端 payload ---

type DocUpdate struct {
	Code string `json:"code"`
	Rev  uint64 `json:"rev"` // 客户端本地生成的写序号，回声判定用
}

type LangUpdate struct {
	Language string `json:"language"`
}

type CursorUpdate struct {
	LineNumber int `json:"lineNumber"` // 1 起始
	Column     int `json:"column"`     // 1 起始
}

type TimerStop struct {
	Elapsed int `json:"elapsed"` // 发起者本地推算的当前秒数
}

type RunRequest struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

type SaveRequest struct {
	Timestamp int64 `json:"timestamp"` // 发起端墙上时钟毫秒，仅作展示
}

// --- 服务端 payload ---

// Origin 标记一次文档变更的来源，接收方用它判断
// 一条通知是否只是自己写入的回声。
type Origin struct {
	UserName string `json:"userName"`
	Rev      uint64 `json:"rev"`
}

type DocSync struct {
	Code     string  `json:"code"`
	Language string  `json:"language"`
	Version  uint64  `json:"version"`
	Origin   *Origin `json:"origin,omitempty"`
}

type CursorSync struct {
	Cursors []domain.Cursor `json:"cursors"`
}

type TimerSync struct {
	Timer domain.TimerState `json:"timer"`
}

type RunResultMsg struct {
	LastRun domain.LastRun `json:"lastRun"`
}

type SaveAck struct {
	Seq int64 `json:"seq"`
}

type ErrorMsg struct {
	Message string `json:"message"`
}

// Event 是通过 Redis Pub/Sub 在实例间扇出的载体。
// OriginConn 非空时表示来源连接，不向它回发；为空时广播给所有客户端
// (计时器与运行结果按约定对发起者也可见)。
type Event struct {
	RoomID     string   `json:"roomId"`
	OriginConn string   `json:"originConn,omitempty"`
	Message    Envelope `json:"message"`
}
