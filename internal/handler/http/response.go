package http

import "github.com/gin-gonic/gin"

// ErrorResponse 写出统一的错误响应体 {"error": "..."}。
// 沙箱代理路径依赖这个格式把上游配置错误原样透给前端。
func ErrorResponse(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// SuccessResponse 直接序列化 data 作为响应体，不包外层信封。
func SuccessResponse(c *gin.Context, code int, data interface{}) {
	c.JSON(code, data)
}
