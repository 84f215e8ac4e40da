package service_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/NickZhezl/LiveCodeInno/internal/domain"
	"github.com/NickZhezl/LiveCodeInno/internal/dto"
	"github.com/NickZhezl/LiveCodeInno/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastTimerSync(t *testing.T, state *stateStub) domain.TimerState {
	t.Helper()
	events := state.events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	require.Equal(t, dto.TypeTimerSync, last.Message.Type)
	var payload dto.TimerSync
	require.NoError(t, json.Unmarshal(last.Message.Payload, &payload))
	return payload.Timer
}

func TestTimerService_StartStopReset(t *testing.T) {
	state := newStateStub()
	state.seeded = true
	state.doc.Timer = domain.NewIdleTimer()
	timerSvc := service.NewTimerService(state)
	ctx := context.Background()

	// Start: 进入 running 并带 startTime
	require.NoError(t, timerSvc.Start(ctx, "room1"))
	started := lastTimerSync(t, state)
	assert.Equal(t, domain.TimerRunning, started.Status)
	require.NotNil(t, started.StartTime)

	// Stop: 冻结发起端推算的秒数
	require.NoError(t, timerSvc.Stop(ctx, "room1", 17))
	stopped := lastTimerSync(t, state)
	assert.Equal(t, domain.TimerStopped, stopped.Status)
	assert.Equal(t, 17, stopped.Elapsed)
	assert.Nil(t, stopped.StartTime)
	assert.Equal(t, 17, stopped.DisplaySeconds(time.Now().Add(time.Hour)), "停止后的秒数永远冻结")

	// Reset: 回到空闲
	require.NoError(t, timerSvc.Reset(ctx, "room1"))
	reset := lastTimerSync(t, state)
	assert.Equal(t, domain.TimerIdle, reset.Status)
	assert.Equal(t, 0, reset.DisplaySeconds(time.Now()))
}

func TestTimerService_StartWhileRunningKeepsStartTime(t *testing.T) {
	state := newStateStub()
	state.seeded = true
	start := time.Now().Add(-30 * time.Second).UnixMilli()
	state.doc.Timer = domain.TimerState{Status: domain.TimerRunning, StartTime: &start}
	timerSvc := service.NewTimerService(state)

	require.NoError(t, timerSvc.Start(context.Background(), "room1"))

	// 重复 start 是幂等的，不应把计时器清零
	assert.Equal(t, &start, state.doc.Timer.StartTime)
	broadcast := lastTimerSync(t, state)
	require.NotNil(t, broadcast.StartTime)
	assert.Equal(t, start, *broadcast.StartTime)
}

func TestTimerService_StartAfterStopRestartsFromZero(t *testing.T) {
	state := newStateStub()
	state.seeded = true
	state.doc.Timer = domain.TimerState{Status: domain.TimerStopped, Elapsed: 42}
	timerSvc := service.NewTimerService(state)

	require.NoError(t, timerSvc.Start(context.Background(), "room1"))

	restarted := lastTimerSync(t, state)
	assert.Equal(t, domain.TimerRunning, restarted.Status)
	require.NotNil(t, restarted.StartTime)
	// 停止后再启动不是恢复：冻结的 42 秒被丢弃，从 0 重新计时
	assert.Equal(t, 0, restarted.Elapsed)
	assert.InDelta(t, 0, restarted.DisplaySeconds(time.Now()), 1)
}
