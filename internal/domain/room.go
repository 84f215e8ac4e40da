package domain

import "time"

// Room 表示一个面试房间的注册记录 (MySQL)。
// 实时共享状态 (代码/语言/计时器/最近一次运行结果) 不在这里，
// 而是作为 RoomDoc 存储在 Redis 中。
type Room struct {
	ID         string    `gorm:"primaryKey;size:32"`      // 房间标识符，用户自选或随机生成的短字符串
	Passcode   string    `gorm:"size:191"`                // 可选的进入口令 (bcrypt 哈希)，为空表示开放房间
	Language   string    `gorm:"size:32;not null"`        // 创建房间时选择的语言
	CreatedAt  time.Time `gorm:"autoCreateTime"`          // GORM 自动填充
	LastActive time.Time `gorm:"index"`                   // 最后活跃时间，供清理任务使用
	UpdatedAt  time.Time `gorm:"autoUpdateTime"`
}

// RoomDoc 是房间的共享文档：所有参与者的本地镜像都从它对账。
// 外部存储 (Redis) 是唯一的持久所有者，客户端只持有可变副本。
type RoomDoc struct {
	Code     string     `json:"code"`
	Language string     `json:"language"`
	Timer    TimerState `json:"timer"`
	LastRun  *LastRun   `json:"lastRun,omitempty"`
	Version  uint64     `json:"version"` // 每次 code 写入递增，用于回声判定
}

// LastRun 记录房间内最近一次代码执行的结果，向所有参与者同步。
type LastRun struct {
	By        string `json:"by"`
	Language  string `json:"language"`
	Output    string `json:"output"`
	Stderr    string `json:"stderr"`
	OK        bool   `json:"ok"`
	Seq       int64  `json:"seq"`       // 房间内单调递增的执行序号，丢弃过期结果用
	UpdatedAt int64  `json:"updatedAt"` // 服务端分配的时间戳 (epoch ms)
}
