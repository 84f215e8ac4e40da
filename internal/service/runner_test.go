package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/exec"
	"github.com/NickZhezl/LiveCodeInno/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunnerService_Run_Success(t *testing.T) {
	state := newStateStub()
	state.seeded = true
	executor := &fakeExecutor{result: exec.RunResult{Stdout: "hello"}}
	runner := service.NewRunnerService(executor, state)

	lastRun, err := runner.Run(context.Background(), "room1", "alice", "python", "print('hello')")

	require.NoError(t, err)
	require.NotNil(t, lastRun)
	assert.Equal(t, "alice", lastRun.By)
	assert.Equal(t, "hello", lastRun.Output)
	assert.True(t, lastRun.OK)
	assert.Equal(t, int64(1), lastRun.Seq)
	require.NotNil(t, state.doc.LastRun, "结果应写入房间文档")

	events := state.events()
	require.Len(t, events, 1)
	assert.Equal(t, dto.TypeRunResult, events[0].Message.Type)
	assert.Empty(t, events[0].OriginConn, "运行结果对发起者也可见")
}

func TestRunnerService_Run_ExecutorFailureBecomesResult(t *testing.T) {
	state := newStateStub()
	state.seeded = true
	executor := &fakeExecutor{err: errors.New("sandbox unreachable")}
	runner := service.NewRunnerService(executor, state)

	lastRun, err := runner.Run(context.Background(), "room1", "alice", "javascript", "1+1")

	// 执行器故障不是服务错误，而是带 stderr 的结果
	require.NoError(t, err)
	require.NotNil(t, lastRun)
	assert.False(t, lastRun.OK)
	assert.Equal(t, "sandbox unreachable", lastRun.Stderr)
}

func TestRunnerService_Run_StaleResultDiscarded(t *testing.T) {
	state := newStateStub()
	state.seeded = true
	executor := &fakeExecutor{result: exec.RunResult{Stdout: "slow"}}
	// 第一次执行还没返回时，另一个请求领走了更新的序号
	executor.beforeReturn = func() {
		executor.beforeReturn = nil
		_, _ = state.NextRunSeq(context.Background(), "room1")
	}
	runner := service.NewRunnerService(executor, state)

	lastRun, err := runner.Run(context.Background(), "room1", "alice", "python", "slow()")

	assert.ErrorIs(t, err, service.ErrStaleRun)
	assert.Nil(t, lastRun)
	assert.Nil(t, state.doc.LastRun, "过期结果不应落盘")
	assert.Empty(t, state.events(), "过期结果不应广播")
}
