package http

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ExecuteHandler 把执行请求原样转发给沙箱 API。
// 前端统一打本服务，沙箱地址只在服务端配置。
type ExecuteHandler struct {
	pistonURL string
	client    *http.Client
}

// NewExecuteHandler 创建 ExecuteHandler 实例。pistonURL 可以为空，
// 此时每个请求都以配置错误失败。
func NewExecuteHandler(pistonURL string) *ExecuteHandler {
	return &ExecuteHandler{
		pistonURL: pistonURL,
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Proxy 转发一次执行请求
func (h *ExecuteHandler) Proxy(c *gin.Context) {
	if h.pistonURL == "" {
		// 缺少上游地址是部署配置错误，不是客户端问题
		ErrorResponse(c, http.StatusInternalServerError, "PISTON_URL is not set")
		return
	}

	req, err := http.NewRequestWithContext(c.Request.Context(), http.MethodPost, h.pistonURL+"/api/v2/execute", c.Request.Body)
	if err != nil {
		logrus.WithError(err).Error("Handler.Execute: failed to build upstream request")
		ErrorResponse(c, http.StatusInternalServerError, "Failed to reach execution sandbox")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		logrus.WithError(err).Warn("Handler.Execute: upstream request failed")
		ErrorResponse(c, http.StatusBadGateway, "Execution sandbox unreachable")
		return
	}
	defer resp.Body.Close()

	// 状态码和响应体原样透传
	c.Status(resp.StatusCode)
	c.Header("Content-Type", resp.Header.Get("Content-Type"))
	if _, err := io.Copy(c.Writer, resp.Body); err != nil {
		logrus.WithError(err).Warn("Handler.Execute: failed to stream upstream response")
	}
}
