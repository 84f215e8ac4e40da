package exec

import (
	"context"
	"fmt"
)

// RunResult 是所有执行器归一化后的输出形状。
type RunResult struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// OK 为真表示执行没有产生错误输出。
func (r RunResult) OK() bool {
	return r.Stderr == ""
}

// Runner 执行一段源代码并返回归一化结果。
// 执行失败属于结果 (写入 Stderr)；error 只表示执行器本身不可用。
type Runner interface {
	Run(ctx context.Context, source string) (RunResult, error)
}

// Backend 按语言标识把源代码分发给三类执行器之一:
// 本地解释器 (python)、内嵌 SQL 引擎 (sqlite3/postgresql)、远程沙箱 API。
// 未识别的语言不接触任何执行器，直接返回 stderr 提示。
type Backend struct {
	python  Runner
	engine  Runner
	sandbox *SandboxClient
}

// NewBackend 构造执行分发器。三个执行器都必须非 nil。
func NewBackend(python, engine Runner, sandbox *SandboxClient) *Backend {
	if python == nil || engine == nil || sandbox == nil {
		panic("all executors must be provided for Backend")
	}
	return &Backend{python: python, engine: engine, sandbox: sandbox}
}

// engineLanguages 由内嵌 SQL 引擎处理的语言标识。
var engineLanguages = map[string]bool{
	"sqlite3":    true,
	"postgresql": true,
}

// Execute 分发一次执行。
func (b *Backend) Execute(ctx context.Context, language, source string) (RunResult, error) {
	switch {
	case language == "python":
		return b.python.Run(ctx, source)
	case engineLanguages[language]:
		return b.engine.Run(ctx, source)
	default:
		if _, known := Versions[language]; known {
			return b.sandbox.Execute(ctx, language, source)
		}
		return RunResult{Stdout: "", Stderr: fmt.Sprintf("Unsupported language: %s", language)}, nil
	}
}
