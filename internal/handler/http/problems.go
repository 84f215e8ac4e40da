package http

import (
	"net/http"

	"github.com/NickZhezl/LiveCodeInno/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ProblemHandler 封装练习题相关的 HTTP 处理逻辑
type ProblemHandler struct {
	checker *service.CheckerService
}

// NewProblemHandler 创建 ProblemHandler 实例
func NewProblemHandler(checker *service.CheckerService) *ProblemHandler {
	return &ProblemHandler{checker: checker}
}

// List 返回题目列表。答案字段 (testWrapper, expectedOutput) 不序列化。
func (h *ProblemHandler) List(c *gin.Context) {
	SuccessResponse(c, http.StatusOK, gin.H{"problems": h.checker.ListProblems()})
}

// CheckRequest 定义判题请求的结构体
type CheckRequest struct {
	Code string `json:"code" binding:"required"`
}

// Check 判定一次提交
func (h *ProblemHandler) Check(c *gin.Context) {
	problemID := c.Param("id")

	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "Invalid input: code is required")
		return
	}

	result, err := h.checker.Check(c.Request.Context(), problemID, req.Code)
	if err != nil {
		logrus.WithError(err).WithField("problem", problemID).Warn("Handler.Check: check failed")
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, result)
}
