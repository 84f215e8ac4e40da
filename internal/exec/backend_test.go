package exec_test

import (
	"context"
	"testing"

	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingRunner 记录是否被调用，返回固定结果
type recordingRunner struct {
	called bool
	result exec.RunResult
}

func (r *recordingRunner) Run(_ context.Context, _ string) (exec.RunResult, error) {
	r.called = true
	return r.result, nil
}

func TestBackend_Execute_PythonRouted(t *testing.T) {
	python := &recordingRunner{result: exec.RunResult{Stdout: "hello"}}
	engine := &recordingRunner{}
	backend := exec.NewBackend(python, engine, exec.NewSandboxClient("", 0))

	result, err := backend.Execute(context.Background(), "python", "print('hello')")

	require.NoError(t, err)
	assert.True(t, python.called, "python 代码应路由到解释器")
	assert.False(t, engine.called, "不应触碰 SQL 引擎")
	assert.Equal(t, "hello", result.Stdout)
}

func TestBackend_Execute_EngineRouted(t *testing.T) {
	python := &recordingRunner{}
	engine := &recordingRunner{result: exec.RunResult{Stdout: "1|Alice"}}
	backend := exec.NewBackend(python, engine, exec.NewSandboxClient("", 0))

	for _, language := range []string{"sqlite3", "postgresql"} {
		engine.called = false
		result, err := backend.Execute(context.Background(), language, "SELECT 1")
		require.NoError(t, err)
		assert.True(t, engine.called, "SQL 语言 %s 应路由到内嵌引擎", language)
		assert.Equal(t, "1|Alice", result.Stdout)
	}
	assert.False(t, python.called)
}

func TestBackend_Execute_UnsupportedLanguage(t *testing.T) {
	python := &recordingRunner{}
	engine := &recordingRunner{}
	backend := exec.NewBackend(python, engine, exec.NewSandboxClient("", 0))

	result, err := backend.Execute(context.Background(), "cobol", "DISPLAY 'HI'.")

	// 未识别的语言不是错误，而是带提示的结果
	require.NoError(t, err)
	assert.Equal(t, exec.RunResult{Stdout: "", Stderr: "Unsupported language: cobol"}, result)
	assert.False(t, python.called, "不应触碰任何执行器")
	assert.False(t, engine.called, "不应触碰任何执行器")
}

func TestBackend_Execute_SandboxNotConfigured(t *testing.T) {
	backend := exec.NewBackend(&recordingRunner{}, &recordingRunner{}, exec.NewSandboxClient("", 0))

	_, err := backend.Execute(context.Background(), "javascript", "console.log(1)")

	assert.ErrorIs(t, err, exec.ErrSandboxNotConfigured)
}

func TestRunResult_OK(t *testing.T) {
	assert.True(t, exec.RunResult{Stdout: "out"}.OK())
	assert.False(t, exec.RunResult{Stderr: "boom"}.OK())
}

func TestStarterSnippet(t *testing.T) {
	assert.NotEmpty(t, exec.StarterSnippet("javascript"))
	assert.NotEmpty(t, exec.StarterSnippet(exec.DefaultLanguage))
	assert.Empty(t, exec.StarterSnippet("cobol"), "未登记的语言返回空串")
}
