package http

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/NickZhezl/LiveCodeInno/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeExecutor 返回固定结果，记录收到的提交
type fakeExecutor struct {
	result   exec.RunResult
	language string
	source   string
}

func (f *fakeExecutor) Execute(_ context.Context, language, source string) (exec.RunResult, error) {
	f.language = language
	f.source = source
	return f.result, nil
}

func performRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestExecuteProxy_MissingUpstreamURL(t *testing.T) {
	router := gin.New()
	router.POST("/api/execute", NewExecuteHandler("").Proxy)

	w := performRequest(router, http.MethodPost, "/api/execute", `{"language":"python"}`)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "PISTON_URL is not set", body["error"])
}

func TestExecuteProxy_ForwardsRequestAndResponse(t *testing.T) {
	var gotPath, gotBody string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		raw, _ := io.ReadAll(r.Body)
		gotBody = string(raw)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"run":{"stdout":"hi\n"}}`))
	}))
	defer upstream.Close()

	router := gin.New()
	router.POST("/api/execute", NewExecuteHandler(upstream.URL).Proxy)

	payload := `{"language":"python","version":"3.10.0","files":[{"content":"print('hi')"}]}`
	w := performRequest(router, http.MethodPost, "/api/execute", payload)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v2/execute", gotPath)
	assert.JSONEq(t, payload, gotBody)
	assert.JSONEq(t, `{"run":{"stdout":"hi\n"}}`, w.Body.String())
}

func TestExecuteProxy_UpstreamUnreachable(t *testing.T) {
	router := gin.New()
	// 没有进程监听的端口
	router.POST("/api/execute", NewExecuteHandler("http://127.0.0.1:1").Proxy)

	w := performRequest(router, http.MethodPost, "/api/execute", `{}`)

	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestProblemList_ReturnsBuiltinProblems(t *testing.T) {
	checker := service.NewCheckerService(&fakeExecutor{})
	router := gin.New()
	router.GET("/api/problems", NewProblemHandler(checker).List)

	w := performRequest(router, http.MethodGet, "/api/problems", "")

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Problems []map[string]interface{} `json:"problems"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body.Problems)
	for _, p := range body.Problems {
		// 答案字段不能泄漏给客户端
		assert.NotContains(t, p, "testWrapper")
		assert.NotContains(t, p, "expectedOutput")
	}
}

func TestProblemCheck_RequiresCode(t *testing.T) {
	checker := service.NewCheckerService(&fakeExecutor{})
	router := gin.New()
	router.POST("/api/problems/:id/check", NewProblemHandler(checker).Check)

	w := performRequest(router, http.MethodPost, "/api/problems/py-factorial/check", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProblemCheck_UnknownProblem(t *testing.T) {
	checker := service.NewCheckerService(&fakeExecutor{})
	router := gin.New()
	router.POST("/api/problems/:id/check", NewProblemHandler(checker).Check)

	w := performRequest(router, http.MethodPost, "/api/problems/no-such/check", `{"code":"x = 1"}`)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProblemCheck_ReturnsVerdict(t *testing.T) {
	executor := &fakeExecutor{result: exec.RunResult{Stdout: "1\n120"}}
	checker := service.NewCheckerService(executor)
	router := gin.New()
	router.POST("/api/problems/:id/check", NewProblemHandler(checker).Check)

	code := "def factorial(n):\n    return 1 if n <= 1 else n * factorial(n - 1)"
	w := performRequest(router, http.MethodPost, "/api/problems/py-factorial/check", `{"code":`+mustJSON(t, code)+`}`)

	require.Equal(t, http.StatusOK, w.Code)
	var result service.CheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, service.VerdictPass, result.Verdict)
	assert.Equal(t, "python", executor.language)
	assert.Contains(t, executor.source, "factorial")
}

func TestHandleServiceError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		code int
	}{
		{service.ErrInvalidPasscode, http.StatusUnauthorized},
		{service.ErrRoomNotFound, http.StatusNotFound},
		{service.ErrProblemNotFound, http.StatusNotFound},
		{service.ErrInvalidUserName, http.StatusBadRequest},
		{service.ErrInvalidLanguage, http.StatusBadRequest},
		{service.ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		HandleServiceError(c, tc.err)
		assert.Equalf(t, tc.code, w.Code, "error %v", tc.err)
	}
}

func mustJSON(t *testing.T, s string) string {
	t.Helper()
	raw, err := json.Marshal(s)
	require.NoError(t, err)
	return string(raw)
}
