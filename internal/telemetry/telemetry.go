package telemetry

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmux/taskmux/config"
)

// Telemetry tracks dispatch cycles, per-task executions and oracle calls. It
// owns a private Prometheus registry so multiple instances (tests, embedded
// use) never collide on metric registration.
type Telemetry struct {
	config   config.TelemetryConfig
	logger   *log.Logger
	registry *prometheus.Registry

	dispatchesTotal  *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	tasksTotal       *prometheus.CounterVec
	planFallbacks    prometheus.Counter
	droppedTasks     prometheus.Counter
	oracleCallsTotal *prometheus.CounterVec
	oracleDuration   prometheus.Histogram
}

// NewTelemetry creates a new telemetry instance
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	var w io.Writer = log.Writer()
	if cfg.LogFile != "" {
		if f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			w = f
		}
	}

	reg := prometheus.NewRegistry()
	t := &Telemetry{
		config:   cfg,
		logger:   log.New(w, "[TELEMETRY] ", log.LstdFlags),
		registry: reg,
		dispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmux_dispatches_total",
			Help: "Dispatch cycles by outcome.",
		}, []string{"outcome"}),
		dispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskmux_dispatch_duration_seconds",
			Help:    "End-to-end dispatch cycle duration.",
			Buckets: prometheus.DefBuckets,
		}),
		tasksTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmux_tasks_total",
			Help: "Task executions by action and outcome.",
		}, []string{"action", "outcome"}),
		planFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskmux_plan_fallbacks_total",
			Help: "Malformed oracle plans recovered as empty plans.",
		}),
		droppedTasks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "taskmux_dropped_tasks_total",
			Help: "Tasks dropped because no provider is registered for the action.",
		}),
		oracleCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "taskmux_oracle_calls_total",
			Help: "Completion oracle calls by outcome.",
		}, []string{"outcome"}),
		oracleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskmux_oracle_call_duration_seconds",
			Help:    "Completion oracle call latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		t.dispatchesTotal,
		t.dispatchDuration,
		t.tasksTotal,
		t.planFallbacks,
		t.droppedTasks,
		t.oracleCallsTotal,
		t.oracleDuration,
	)
	return t
}

// Registry exposes the metrics registry for the HTTP /metrics endpoint.
func (t *Telemetry) Registry() *prometheus.Registry {
	return t.registry
}

// RecordDispatch records the outcome of one dispatch cycle.
func (t *Telemetry) RecordDispatch(success bool, duration time.Duration) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.dispatchesTotal.WithLabelValues(outcome(success)).Inc()
	t.dispatchDuration.Observe(duration.Seconds())
	if t.config.PeriodicLogs {
		t.logger.Printf("dispatch completed success=%t duration=%v", success, duration)
	}
}

// RecordTask records one provider invocation.
func (t *Telemetry) RecordTask(action string, success bool, duration time.Duration) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.tasksTotal.WithLabelValues(action, outcome(success)).Inc()
	if t.config.PeriodicLogs {
		t.logger.Printf("task %s success=%t duration=%v", action, success, duration)
	}
}

// RecordPlanFallback records a malformed plan recovered as an empty plan.
func (t *Telemetry) RecordPlanFallback() {
	if t == nil || !t.config.Enabled {
		return
	}
	t.planFallbacks.Inc()
}

// RecordDroppedTask records a task skipped for want of a provider.
func (t *Telemetry) RecordDroppedTask(action string) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.droppedTasks.Inc()
	t.logger.Printf("dropped task for unregistered action %q", action)
}

// RecordOracleCall records one completion oracle round trip.
func (t *Telemetry) RecordOracleCall(success bool, duration time.Duration) {
	if t == nil || !t.config.Enabled {
		return
	}
	t.oracleCallsTotal.WithLabelValues(outcome(success)).Inc()
	t.oracleDuration.Observe(duration.Seconds())
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
