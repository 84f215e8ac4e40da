package service

import (
	"context"
	"strings"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/metrics"

	"github.com/sirupsen/logrus"
)

// QueryMarker 是 SQL 题目 testWrapper 中分隔 "环境准备" 和
// "用户查询占位" 的标记，标记之后的内容被丢弃。
const QueryMarker = "-- [USER_QUERY]"

// 判定结果
const (
	VerdictPass  = "pass"
	VerdictFail  = "fail"
	VerdictError = "error"
)

// CheckResult 是一次练习题提交的判定。
type CheckResult struct {
	Verdict  string `json:"verdict"`
	Detail   string `json:"detail,omitempty"`
	Expected string `json:"expected,omitempty"`
	Actual   string `json:"actual,omitempty"`
}

// 内置练习题。testWrapper 和 expectedOutput 不随 API 下发。
var builtinProblems = []domain.Problem{
	{
		ID:          "py-factorial",
		Title:       "Factorial",
		Language:    "python",
		Description: "Define a function factorial(n) that returns n! for n >= 0.",
		StarterCode: "def factorial(n):\n    # your code here\n    pass\n",
		TestWrapper: "print(factorial(1))\nprint(factorial(5))",
		ExpectedOutput: "1\n120",
	},
	{
		ID:          "py-reverse",
		Title:       "Reverse a String",
		Language:    "python",
		Description: "Define a function reverse(s) that returns s reversed.",
		StarterCode: "def reverse(s):\n    # your code here\n    pass\n",
		TestWrapper: "print(reverse('live'))\nprint(reverse('code'))",
		ExpectedOutput: "evil\nedoc",
	},
	{
		ID:          "sql-adults",
		Title:       "Find the Adults",
		Language:    "sqlite3",
		Description: "The table people(name TEXT, age INTEGER) is already populated. Select the names of everyone aged 18 or older, ordered by name.",
		StarterCode: "-- write your query here\n",
		TestWrapper: "CREATE TABLE people (name TEXT, age INTEGER);\n" +
			"INSERT INTO people VALUES ('Alice', 30);\n" +
			"INSERT INTO people VALUES ('Bob', 19);\n" +
			"INSERT INTO people VALUES ('Eve', 12);\n" +
			QueryMarker + "\nSELECT name FROM people WHERE age >= 18 ORDER BY name;",
		ExpectedOutput: "Alice\nBob",
	},
}

// sql 引擎处理的题目语言，决定拼装方式
var checkerEngineLanguages = map[string]bool{
	"sqlite3":    true,
	"postgresql": true,
}

// CheckerService 负责练习题的列表和判题。
type CheckerService struct {
	executor Executor
	problems []domain.Problem
	byID     map[string]*domain.Problem
}

// NewCheckerService 创建 CheckerService 实例，装入内置题库。
func NewCheckerService(executor Executor) *CheckerService {
	if executor == nil {
		panic("Executor cannot be nil for CheckerService")
	}
	s := &CheckerService{
		executor: executor,
		problems: builtinProblems,
		byID:     make(map[string]*domain.Problem, len(builtinProblems)),
	}
	for i := range s.problems {
		s.byID[s.problems[i].ID] = &s.problems[i]
	}
	return s
}

// ListProblems 返回题目列表 (不含答案字段)。
func (s *CheckerService) ListProblems() []domain.Problem {
	return s.problems
}

// FindProblem 按 ID 查找题目。
func (s *CheckerService) FindProblem(id string) (*domain.Problem, error) {
	problem, ok := s.byID[id]
	if !ok {
		return nil, ErrProblemNotFound
	}
	return problem, nil
}

// Check 判定一次提交。
// 用户代码和题目自带的测试装置拼成最终提交，交给执行器，
// 输出去掉首尾空白后与期望输出精确比较。
func (s *CheckerService) Check(ctx context.Context, problemID, userCode string) (*CheckResult, error) {
	problem, err := s.FindProblem(problemID)
	if err != nil {
		return nil, err
	}

	submission := assembleSubmission(problem, userCode)
	result, err := s.executor.Execute(ctx, problem.Language, submission)
	if err != nil {
		logrus.WithError(err).WithField("problem", problemID).Warn("Check: executor unavailable")
		metrics.ChecksTotal.WithLabelValues(problemID, VerdictError).Inc()
		return &CheckResult{Verdict: VerdictError, Detail: err.Error()}, nil
	}

	verdict := judge(problem, result.Stdout, result.Stderr)
	metrics.ChecksTotal.WithLabelValues(problemID, verdict.Verdict).Inc()
	return verdict, nil
}

// assembleSubmission 按语言类型拼装最终提交。
// 解释器语言：用户代码在前，测试装置追加在后。
// SQL 语言：装置中标记之前的部分 (建表和数据) 在前，用户查询在后。
func assembleSubmission(problem *domain.Problem, userCode string) string {
	if checkerEngineLanguages[problem.Language] {
		setup := problem.TestWrapper
		if idx := strings.Index(setup, QueryMarker); idx >= 0 {
			setup = setup[:idx]
		}
		return setup + "\n" + userCode
	}
	return userCode + "\n" + problem.TestWrapper
}

func judge(problem *domain.Problem, stdout, stderr string) *CheckResult {
	if stderr != "" {
		return &CheckResult{Verdict: VerdictError, Detail: stderr}
	}
	actual := strings.TrimSpace(stdout)
	expected := strings.TrimSpace(problem.ExpectedOutput)
	if actual == expected {
		return &CheckResult{Verdict: VerdictPass}
	}
	return &CheckResult{Verdict: VerdictFail, Expected: expected, Actual: actual}
}
