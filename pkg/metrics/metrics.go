// Package metrics holds the Prometheus collectors for sessions, chat turns
// and tool calls.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Error stages.
const (
	StageTools  = "tools"
	StageModel  = "model"
	StageStream = "stream"
)

// Tool call statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	reg prometheus.Gatherer

	SessionsTotal prometheus.Counter
	ChatTurns     prometheus.Counter
	ChatErrors    *prometheus.CounterVec
	TurnDuration  prometheus.Histogram
	ToolCalls     *prometheus.CounterVec
	ModelSteps    prometheus.Histogram
}

// New creates the collectors on a fresh registry. activeSessions is sampled
// on every scrape.
func New(activeSessions func() int) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	m := &Metrics{
		reg: reg,

		SessionsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "nevernood_sessions_total",
			Help: "Total number of streaming sessions established",
		}),

		ChatTurns: f.NewCounter(prometheus.CounterOpts{
			Name: "nevernood_chat_turns_total",
			Help: "Total number of chat turns started",
		}),

		ChatErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nevernood_chat_errors_total",
			Help: "Total number of chat errors by stage",
		}, []string{"stage"}),

		TurnDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nevernood_chat_turn_duration_seconds",
			Help:    "Chat turn duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),

		ToolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "nevernood_tool_calls_total",
			Help: "Total number of tool executions by tool and status",
		}, []string{"tool", "status"}),

		ModelSteps: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "nevernood_model_steps",
			Help:    "Number of model invocations per chat turn",
			Buckets: []float64{1, 2, 3, 4, 5, 8},
		}),
	}

	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "nevernood_sessions_active",
		Help: "Number of sessions currently in the registry",
	}, func() float64 {
		if activeSessions == nil {
			return 0
		}
		return float64(activeSessions())
	})

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
}

func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.ChatTurns.Inc()
}

// TurnFinished records the duration and step count of a completed turn.
func (m *Metrics) TurnFinished(start time.Time, steps int) {
	if m == nil {
		return
	}
	m.TurnDuration.Observe(time.Since(start).Seconds())
	m.ModelSteps.Observe(float64(steps))
}

func (m *Metrics) Error(stage string) {
	if m == nil {
		return
	}
	m.ChatErrors.WithLabelValues(stage).Inc()
}

func (m *Metrics) ToolCall(tool string, err error) {
	if m == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	m.ToolCalls.WithLabelValues(tool, status).Inc()
}
