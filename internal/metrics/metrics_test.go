package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestWritePrometheusCountsReloads(t *testing.T) {
	registry := &Registry{}
	registry.IncReloadStarted()
	registry.IncReloadStarted()
	registry.RecordReload(100*time.Millisecond, nil, 0)
	registry.RecordReload(200*time.Millisecond, errors.New("boom"), 2)

	builder := &strings.Builder{}
	if err := registry.WritePrometheus(builder); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	output := builder.String()

	expectations := []string{
		"reflex_reloads_started_total 2",
		"reflex_reloads_succeeded_total 1",
		"reflex_reloads_failed_total 1",
		"reflex_reload_retries_total 2",
		"reflex_reload_duration_seconds_sum 0.300000",
	}
	for _, expected := range expectations {
		if !strings.Contains(output, expected) {
			t.Fatalf("missing %q in output:\n%s", expected, output)
		}
	}
}

func TestWritePrometheusBusLabels(t *testing.T) {
	registry := &Registry{}
	registry.IncEventPublished("notifications")
	registry.IncEventPublished("notifications")
	registry.IncEventDropped("notifications")
	registry.IncEventPublished("")

	builder := &strings.Builder{}
	if err := registry.WritePrometheus(builder); err != nil {
		t.Fatalf("WritePrometheus: %v", err)
	}
	output := builder.String()

	if !strings.Contains(output, `reflex_events_published_total{bus="notifications"} 2`) {
		t.Fatalf("missing published counter:\n%s", output)
	}
	if !strings.Contains(output, `reflex_events_dropped_total{bus="notifications"} 1`) {
		t.Fatalf("missing dropped counter:\n%s", output)
	}
	if !strings.Contains(output, `reflex_events_published_total{bus="unknown"} 1`) {
		t.Fatalf("missing unknown bus counter:\n%s", output)
	}
}

func TestNilRegistryIsSafe(t *testing.T) {
	var registry *Registry
	registry.IncReloadStarted()
	registry.RecordReload(time.Second, nil, 1)
	registry.IncEventPublished("x")
	registry.IncEventDropped("x")
	if err := registry.WritePrometheus(&strings.Builder{}); err != nil {
		t.Fatalf("WritePrometheus on nil: %v", err)
	}
}
