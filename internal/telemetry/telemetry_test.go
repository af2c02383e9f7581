package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/taskmux/taskmux/config"
)

func TestRecordDispatchCountsOutcomes(t *testing.T) {
	tel := NewTelemetry(config.TelemetryConfig{Enabled: true})
	tel.RecordDispatch(true, 10*time.Millisecond)
	tel.RecordDispatch(true, 10*time.Millisecond)
	tel.RecordDispatch(false, 10*time.Millisecond)

	if got := testutil.ToFloat64(tel.dispatchesTotal.WithLabelValues("success")); got != 2 {
		t.Fatalf("expected 2 successful dispatches, got %v", got)
	}
	if got := testutil.ToFloat64(tel.dispatchesTotal.WithLabelValues("failure")); got != 1 {
		t.Fatalf("expected 1 failed dispatch, got %v", got)
	}
}

func TestDisabledTelemetryRecordsNothing(t *testing.T) {
	tel := NewTelemetry(config.TelemetryConfig{Enabled: false})
	tel.RecordDispatch(true, time.Millisecond)
	tel.RecordTask("translate", true, time.Millisecond)
	tel.RecordPlanFallback()
	tel.RecordOracleCall(true, time.Millisecond)

	if got := testutil.ToFloat64(tel.planFallbacks); got != 0 {
		t.Fatalf("expected no metrics when disabled, got %v fallbacks", got)
	}
	if got := testutil.ToFloat64(tel.dispatchesTotal.WithLabelValues("success")); got != 0 {
		t.Fatalf("expected no dispatch metrics when disabled, got %v", got)
	}
}

func TestNilTelemetryIsSafe(t *testing.T) {
	var tel *Telemetry
	tel.RecordDispatch(true, time.Millisecond)
	tel.RecordTask("summarize", false, time.Millisecond)
	tel.RecordDroppedTask("make_coffee")
	tel.RecordOracleCall(false, time.Millisecond)
	tel.RecordPlanFallback()
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	a := NewTelemetry(config.TelemetryConfig{Enabled: true})
	b := NewTelemetry(config.TelemetryConfig{Enabled: true})
	a.RecordPlanFallback()
	if got := testutil.ToFloat64(b.planFallbacks); got != 0 {
		t.Fatalf("registries should be independent, got %v", got)
	}
}
