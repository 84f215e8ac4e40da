package domain

import "fmt"

// Cursor 表示某个用户在某个房间内的光标记录。
// 每次光标移动都整条覆盖写入；不会被显式删除，
// 过期记录由活性窗口过滤 + 后台清理任务处理。
type Cursor struct {
	UserName   string `json:"userName"`
	Color      string `json:"color"` // 由用户名推导，不独立存储语义
	LineNumber int    `json:"lineNumber"`
	Column     int    `json:"column"`
	UpdatedAt  int64  `json:"updatedAt"` // 服务端时间戳 (epoch ms)
}

// ColorFor 把用户名折叠成一个 24 位 RGB 颜色，格式 "#RRGGBB"。
// 纯函数：同一个用户名在任何会话中都得到同一个颜色，
// 因此不需要在任何地方存储颜色分配。
// 哈希: hash = charCode + ((hash << 5) - hash)，按 int32 语义运算后取低 24 位。
func ColorFor(userName string) string {
	var hash int32
	for _, c := range userName {
		hash = int32(c) + ((hash << 5) - hash)
	}
	return fmt.Sprintf("#%06X", uint32(hash)&0x00FFFFFF)
}
