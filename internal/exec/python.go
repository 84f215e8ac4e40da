package exec

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// PythonRunner 通过本地解释器子进程执行 Python 代码。
// 源代码经 stdin 喂入，stdout/stderr 分开捕获；
// 解释器报错时把错误信息并入 stderr，而不是当作执行器故障。
type PythonRunner struct {
	bin     string
	timeout time.Duration

	resolveOnce sync.Once
	resolved    string
	resolveErr  error
}

// NewPythonRunner 创建 PythonRunner。
// bin 为空时在 PATH 中查找 python3，再退回 python。
func NewPythonRunner(bin string, timeout time.Duration) *PythonRunner {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PythonRunner{bin: bin, timeout: timeout}
}

// resolve 确定解释器路径，只做一次。
func (p *PythonRunner) resolve() (string, error) {
	p.resolveOnce.Do(func() {
		if p.bin != "" {
			p.resolved, p.resolveErr = exec.LookPath(p.bin)
			return
		}
		for _, candidate := range []string{"python3", "python"} {
			if path, err := exec.LookPath(candidate); err == nil {
				p.resolved = path
				return
			}
		}
		p.resolveErr = errors.New("python interpreter not found in PATH")
	})
	return p.resolved, p.resolveErr
}

// Run 执行一段 Python 源代码。
func (p *PythonRunner) Run(ctx context.Context, source string) (RunResult, error) {
	bin, err := p.resolve()
	if err != nil {
		return RunResult{}, err
	}

	runCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// "-" 让解释器从 stdin 读取脚本，避免落盘
	cmd := exec.CommandContext(runCtx, bin, "-")
	cmd.Stdin = strings.NewReader(source)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	result := RunResult{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			result.Stderr = appendLine(result.Stderr, "execution timed out")
		} else if !errors.As(runErr, &exitErr) || result.Stderr == "" {
			// 非正常退出且解释器没写 stderr 时才补上进程错误
			result.Stderr = appendLine(result.Stderr, runErr.Error())
		}
		logrus.WithError(runErr).Debug("python execution finished with error")
	}
	return result, nil
}

func appendLine(base, line string) string {
	if base == "" {
		return line
	}
	return base + "\n" + line
}
