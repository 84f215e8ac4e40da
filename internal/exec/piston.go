package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// ErrSandboxNotConfigured 表示沙箱 API 地址没有配置。
var ErrSandboxNotConfigured = errors.New("sandbox base URL is not set")

// SandboxClient 调用远程执行沙箱 (Piston 兼容 API)。
type SandboxClient struct {
	baseURL string
	client  *http.Client
}

// NewSandboxClient 创建 SandboxClient。baseURL 可以为空，
// 此时每次执行都返回 ErrSandboxNotConfigured。
func NewSandboxClient(baseURL string, timeout time.Duration) *SandboxClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SandboxClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Configured 为真表示沙箱地址已设置。
func (c *SandboxClient) Configured() bool {
	return c.baseURL != ""
}

type sandboxRequest struct {
	Language string        `json:"language"`
	Version  string        `json:"version"`
	Files    []sandboxFile `json:"files"`
}

type sandboxFile struct {
	Content string `json:"content"`
}

type sandboxResponse struct {
	Run struct {
		Stdout string  `json:"stdout"`
		Output string  `json:"output"`
		Stderr *string `json:"stderr"`
	} `json:"run"`
	Message string `json:"message"`
}

// Execute 把源代码转发给沙箱执行。
// 版本号取固定版本表，未登记的语言用 "*" 请求最新可用版本。
func (c *SandboxClient) Execute(ctx context.Context, language, source string) (RunResult, error) {
	if c.baseURL == "" {
		return RunResult{}, ErrSandboxNotConfigured
	}

	version, ok := Versions[language]
	if !ok {
		version = "*"
	}
	body, err := json.Marshal(sandboxRequest{
		Language: language,
		Version:  version,
		Files:    []sandboxFile{{Content: source}},
	})
	if err != nil {
		return RunResult{}, fmt.Errorf("sandbox: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/execute", bytes.NewReader(body))
	if err != nil {
		return RunResult{}, fmt.Errorf("sandbox: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return RunResult{}, fmt.Errorf("sandbox: request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed sandboxResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return RunResult{}, fmt.Errorf("sandbox: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := parsed.Message
		if msg == "" {
			msg = fmt.Sprintf("sandbox returned status %d", resp.StatusCode)
		}
		return RunResult{}, fmt.Errorf("sandbox: %s", msg)
	}

	// run.stdout 优先，为空时退回 run.output
	stdout := parsed.Run.Stdout
	if stdout == "" {
		stdout = parsed.Run.Output
	}
	result := RunResult{Stdout: stdout}
	if parsed.Run.Stderr != nil {
		result.Stderr = *parsed.Run.Stderr
	}
	return result, nil
}
