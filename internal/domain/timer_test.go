package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func msPtr(v int64) *int64 { return &v }

func TestDisplaySecondsRunning(t *testing.T) {
	start := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	state := TimerState{Status: TimerRunning, StartTime: msPtr(start.UnixMilli()), Elapsed: 0}

	// startTime + 5000ms 时展示 5 秒
	assert.Equal(t, 5, state.DisplaySeconds(start.Add(5*time.Second)))
	assert.Equal(t, 0, state.DisplaySeconds(start))
	// 亚秒部分向下取整
	assert.Equal(t, 4, state.DisplaySeconds(start.Add(4900*time.Millisecond)))
}

func TestDisplaySecondsClampsNegative(t *testing.T) {
	// 本地时钟落后于发起者的时钟时不出现负数
	start := time.Now().Add(10 * time.Second)
	state := TimerState{Status: TimerRunning, StartTime: msPtr(start.UnixMilli())}
	assert.Equal(t, 0, state.DisplaySeconds(time.Now()))
}

func TestDisplaySecondsStoppedIsFrozen(t *testing.T) {
	state := TimerState{Status: TimerStopped, StartTime: nil, Elapsed: 42}
	now := time.Now()
	// stopped 状态下无论过了多久都精确等于存储的 elapsed
	assert.Equal(t, 42, state.DisplaySeconds(now))
	assert.Equal(t, 42, state.DisplaySeconds(now.Add(24*time.Hour)))
}

func TestDisplaySecondsIdle(t *testing.T) {
	assert.Equal(t, 0, NewIdleTimer().DisplaySeconds(time.Now()))
}

func TestRunningWithoutStartTimeFallsBack(t *testing.T) {
	// 防御：status 为 running 但 startTime 缺失时退回存储值
	state := TimerState{Status: TimerRunning, StartTime: nil, Elapsed: 7}
	assert.Equal(t, 7, state.DisplaySeconds(time.Now()))
}
