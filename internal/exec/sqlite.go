package exec

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite" // 纯 Go 的 SQLite 驱动，无 cgo
)

// EngineRunner 在内嵌 SQL 引擎里执行 SQL 脚本。
// 每次调用打开一个全新的内存数据库，执行结束即丢弃，
// 因此两次相同的执行互不影响、结果一致。
type EngineRunner struct{}

// NewEngineRunner 创建 EngineRunner。
func NewEngineRunner() *EngineRunner {
	return &EngineRunner{}
}

// Run 按顺序执行脚本中的语句。
// 查询语句的结果按行输出，列值用 "|" 连接；
// 多个结果集之间以空行分隔，没有返回行的语句不产生任何输出。
// 任一语句出错即停止，错误进 stderr。
func (e *EngineRunner) Run(ctx context.Context, source string) (RunResult, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return RunResult{}, fmt.Errorf("open in-memory engine: %w", err)
	}
	defer db.Close()
	// 内存库只允许一个连接，多开会得到彼此独立的空库
	db.SetMaxOpenConns(1)

	var sets []string
	for _, stmt := range splitStatements(source) {
		if isQuery(stmt) {
			rowsOut, err := e.query(ctx, db, stmt)
			if err != nil {
				return RunResult{Stdout: strings.Join(sets, "\n\n"), Stderr: err.Error()}, nil
			}
			// 没有返回行的查询不产生输出
			if rowsOut != "" {
				sets = append(sets, rowsOut)
			}
		} else {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return RunResult{Stdout: strings.Join(sets, "\n\n"), Stderr: err.Error()}, nil
			}
		}
	}
	return RunResult{Stdout: strings.Join(sets, "\n\n")}, nil
}

func (e *EngineRunner) query(ctx context.Context, db *sql.DB, stmt string) (string, error) {
	rows, err := db.QueryContext(ctx, stmt)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", err
	}

	var lines []string
	for rows.Next() {
		values := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return "", err
		}
		fields := make([]string, len(values))
		for i, v := range values {
			fields[i] = formatValue(v)
		}
		lines = append(lines, strings.Join(fields, "|"))
	}
	if err := rows.Err(); err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

// 查询语句的前缀，这些返回结果集，其余走 Exec
var queryPrefixes = []string{"SELECT", "WITH", "VALUES", "PRAGMA", "EXPLAIN"}

func isQuery(stmt string) bool {
	upper := strings.ToUpper(stmt)
	for _, prefix := range queryPrefixes {
		if strings.HasPrefix(upper, prefix) {
			return true
		}
	}
	return false
}

// splitStatements 按分号切分 SQL 脚本，
// 跳过单引号/双引号字符串和 "--" 行注释里的分号。
func splitStatements(source string) []string {
	var stmts []string
	var buf strings.Builder
	var inSingle, inDouble, inComment bool

	for i := 0; i < len(source); i++ {
		ch := source[i]
		switch {
		case inComment:
			if ch == '\n' {
				inComment = false
			}
			buf.WriteByte(ch)
			continue
		case inSingle:
			if ch == '\'' {
				inSingle = false
			}
			buf.WriteByte(ch)
			continue
		case inDouble:
			if ch == '"' {
				inDouble = false
			}
			buf.WriteByte(ch)
			continue
		}
		switch ch {
		case '\'':
			inSingle = true
			buf.WriteByte(ch)
		case '"':
			inDouble = true
			buf.WriteByte(ch)
		case '-':
			if i+1 < len(source) && source[i+1] == '-' {
				inComment = true
			}
			buf.WriteByte(ch)
		case ';':
			if stmt := cleanStatement(buf.String()); stmt != "" {
				stmts = append(stmts, stmt)
			}
			buf.Reset()
		default:
			buf.WriteByte(ch)
		}
	}
	if stmt := cleanStatement(buf.String()); stmt != "" {
		stmts = append(stmts, stmt)
	}
	return stmts
}

// cleanStatement 去掉注释行和首尾空白，纯注释段返回空串。
func cleanStatement(raw string) string {
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}
