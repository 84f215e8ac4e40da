package http

import (
	"net/http"
	"strconv"

	"github.com/NickZhezl/LiveCodeInno/internal/service"

	"github.com/gin-gonic/gin"
)

// VersionHandler 封装版本存档历史的 HTTP 处理逻辑
type VersionHandler struct {
	versions *service.VersionService
}

// NewVersionHandler 创建 VersionHandler 实例
func NewVersionHandler(versions *service.VersionService) *VersionHandler {
	return &VersionHandler{versions: versions}
}

// History 返回房间的历史版本，按存档序号倒序。
// ?limit= 控制条数，默认 50。
func (h *VersionHandler) History(c *gin.Context) {
	roomID := c.Param("roomId")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			ErrorResponse(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = parsed
	}

	versions, err := h.versions.History(c.Request.Context(), roomID, limit)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"versions": versions})
}
