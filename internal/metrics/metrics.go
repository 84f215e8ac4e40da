package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RunsTotal 按语言和结果统计代码运行次数。
	// outcome: ok / error / stale
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livecode_runs_total",
		Help: "Code executions by language and outcome.",
	}, []string{"language", "outcome"})

	// WSConnections 当前在线的 WebSocket 连接数。
	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "livecode_ws_connections",
		Help: "Currently open WebSocket connections.",
	})

	// ChecksTotal 按题目和判定结果统计练习题提交次数。
	ChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "livecode_checks_total",
		Help: "Problem check submissions by problem and verdict.",
	}, []string{"problem", "verdict"})
)
