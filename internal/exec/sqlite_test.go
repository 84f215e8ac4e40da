package exec_test

import (
	"context"
	"testing"

	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngineRunner_Run_BasicScript(t *testing.T) {
	runner := exec.NewEngineRunner()

	result, err := runner.Run(context.Background(), `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT);
		INSERT INTO users (name) VALUES ('Alice');
		SELECT COUNT(*) FROM users;
	`)

	require.NoError(t, err)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, "1", result.Stdout)
}

func TestEngineRunner_Run_FreshDatabasePerCall(t *testing.T) {
	runner := exec.NewEngineRunner()
	script := `
		CREATE TABLE t (v INTEGER);
		INSERT INTO t VALUES (42);
		SELECT v FROM t;
	`

	// 两次执行同一个建表脚本：没有残留状态，结果一致且不报 "table exists"
	first, err := runner.Run(context.Background(), script)
	require.NoError(t, err)
	second, err := runner.Run(context.Background(), script)
	require.NoError(t, err)

	assert.Empty(t, first.Stderr)
	assert.Empty(t, second.Stderr)
	assert.Equal(t, first.Stdout, second.Stdout)
	assert.Equal(t, "42", first.Stdout)
}

func TestEngineRunner_Run_MultipleResultSets(t *testing.T) {
	runner := exec.NewEngineRunner()

	result, err := runner.Run(context.Background(), `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, age INTEGER);
		INSERT INTO users (name, age) VALUES ('Alice', 30);
		INSERT INTO users (name, age) VALUES ('Bob', 25);
		SELECT name, age FROM users ORDER BY id;
		SELECT COUNT(*) FROM users;
	`)

	require.NoError(t, err)
	assert.Empty(t, result.Stderr)
	// 结果行用 "|" 连接，结果集之间空行分隔
	assert.Equal(t, "Alice|30\nBob|25\n\n2", result.Stdout)
}

func TestEngineRunner_Run_EmptyResultSetProducesNoOutput(t *testing.T) {
	runner := exec.NewEngineRunner()

	result, err := runner.Run(context.Background(), `
		CREATE TABLE t (v INTEGER);
		SELECT v FROM t WHERE v > 100;
		INSERT INTO t VALUES (1);
		SELECT v FROM t;
	`)

	require.NoError(t, err)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, "1", result.Stdout, "没有返回行的查询不应留下空行分隔符")
}

func TestEngineRunner_Run_CommentsAndQuotedSemicolons(t *testing.T) {
	runner := exec.NewEngineRunner()

	result, err := runner.Run(context.Background(), `
		-- setup; this comment mentions a semicolon
		CREATE TABLE notes (body TEXT);
		INSERT INTO notes VALUES ('first; second');
		SELECT body FROM notes;
	`)

	require.NoError(t, err)
	assert.Empty(t, result.Stderr)
	assert.Equal(t, "first; second", result.Stdout, "字符串字面量里的分号不应切分语句")
}

func TestEngineRunner_Run_ErrorGoesToStderr(t *testing.T) {
	runner := exec.NewEngineRunner()

	result, err := runner.Run(context.Background(), "SELECT * FROM missing_table;")

	// SQL 错误属于结果，不是执行器故障
	require.NoError(t, err)
	assert.NotEmpty(t, result.Stderr)
	assert.Empty(t, result.Stdout)
}

func TestEngineRunner_Run_ErrorKeepsEarlierOutput(t *testing.T) {
	runner := exec.NewEngineRunner()

	result, err := runner.Run(context.Background(), `
		CREATE TABLE t (v INTEGER);
		INSERT INTO t VALUES (7);
		SELECT v FROM t;
		SELECT * FROM missing_table;
	`)

	require.NoError(t, err)
	assert.Equal(t, "7", result.Stdout, "出错前的结果集应保留")
	assert.NotEmpty(t, result.Stderr)
}
