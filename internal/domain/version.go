package domain

import "time"

// SavedVersion 是某个时刻的代码快照存档 (MySQL)。
// 只追加、写后不再参与同步流程，仅供面试报告页回看。
type SavedVersion struct {
	ID        uint      `gorm:"primaryKey"`
	RoomID    string    `gorm:"index;size:32;not null"`
	Seq       int64     `gorm:"not null"`           // 房间内单调递增的存档序号
	Code      string    `gorm:"type:text;not null"`
	Language  string    `gorm:"size:32;not null"`
	Timestamp time.Time `gorm:"not null"`           // 发起保存时的墙钟时间
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
