package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Registry accumulates process-wide counters. All methods are safe on
// a nil receiver so call sites never need to guard.
type Registry struct {
	reloadsStarted   atomic.Int64
	reloadsSucceeded atomic.Int64
	reloadsFailed    atomic.Int64
	reloadRetries    atomic.Int64
	reloadNanos      atomic.Int64
	watcherEvents    atomic.Int64
	batchesResolved  atomic.Int64
	buses            sync.Map
}

type busStats struct {
	published atomic.Int64
	dropped   atomic.Int64
}

var Default = &Registry{}

func (registry *Registry) IncReloadStarted() {
	if registry == nil {
		return
	}
	registry.reloadsStarted.Add(1)
}

func (registry *Registry) RecordReload(duration time.Duration, err error, retries int) {
	if registry == nil {
		return
	}
	if err != nil {
		registry.reloadsFailed.Add(1)
	} else {
		registry.reloadsSucceeded.Add(1)
	}
	if retries > 0 {
		registry.reloadRetries.Add(int64(retries))
	}
	registry.reloadNanos.Add(duration.Nanoseconds())
}

func (registry *Registry) IncWatcherEvent() {
	if registry == nil {
		return
	}
	registry.watcherEvents.Add(1)
}

func (registry *Registry) IncBatchResolved() {
	if registry == nil {
		return
	}
	registry.batchesResolved.Add(1)
}

func (registry *Registry) IncEventPublished(bus string) {
	if registry == nil {
		return
	}
	registry.bus(bus).published.Add(1)
}

func (registry *Registry) IncEventDropped(bus string) {
	if registry == nil {
		return
	}
	registry.bus(bus).dropped.Add(1)
}

func (registry *Registry) WritePrometheus(writer io.Writer) error {
	if registry == nil {
		return nil
	}

	writeCounter(writer, "reflex_reloads_started_total", "Total route reloads dispatched", registry.reloadsStarted.Load())
	writeCounter(writer, "reflex_reloads_succeeded_total", "Total route reloads that succeeded", registry.reloadsSucceeded.Load())
	writeCounter(writer, "reflex_reloads_failed_total", "Total route reloads that failed after retries", registry.reloadsFailed.Load())
	writeCounter(writer, "reflex_reload_retries_total", "Total reload retry attempts", registry.reloadRetries.Load())
	writeCounter(writer, "reflex_watcher_events_total", "Total filesystem change events observed", registry.watcherEvents.Load())
	writeCounter(writer, "reflex_batches_resolved_total", "Total debounced change batches resolved", registry.batchesResolved.Load())

	writeHelp(writer, "reflex_reload_duration_seconds_sum", "Cumulative reload wall time in seconds")
	fmt.Fprintln(writer, "# TYPE reflex_reload_duration_seconds_sum counter")
	fmt.Fprintf(writer, "reflex_reload_duration_seconds_sum %.6f\n", float64(registry.reloadNanos.Load())/float64(time.Second))

	names := registry.busNames()
	sort.Strings(names)

	writeHelp(writer, "reflex_events_published_total", "Events published per bus")
	fmt.Fprintln(writer, "# TYPE reflex_events_published_total counter")
	writeHelp(writer, "reflex_events_dropped_total", "Events dropped per bus")
	fmt.Fprintln(writer, "# TYPE reflex_events_dropped_total counter")

	for _, name := range names {
		stats := registry.bus(name)
		label := formatLabel(name)
		fmt.Fprintf(writer, "reflex_events_published_total{bus=%s} %d\n", label, stats.published.Load())
		fmt.Fprintf(writer, "reflex_events_dropped_total{bus=%s} %d\n", label, stats.dropped.Load())
	}

	return nil
}

func (registry *Registry) bus(name string) *busStats {
	if strings.TrimSpace(name) == "" {
		name = "unknown"
	}
	value, _ := registry.buses.LoadOrStore(name, &busStats{})
	return value.(*busStats)
}

func (registry *Registry) busNames() []string {
	if registry == nil {
		return nil
	}
	var names []string
	registry.buses.Range(func(key, value any) bool {
		if name, ok := key.(string); ok {
			names = append(names, name)
		}
		return true
	})
	return names
}

func writeHelp(writer io.Writer, metric, help string) {
	fmt.Fprintf(writer, "# HELP %s %s\n", metric, help)
}

func writeCounter(writer io.Writer, metric, help string, value int64) {
	writeHelp(writer, metric, help)
	fmt.Fprintf(writer, "# TYPE %s counter\n", metric)
	fmt.Fprintf(writer, "%s %d\n", metric, value)
}

func formatLabel(value string) string {
	escaped := strings.ReplaceAll(value, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	return "\"" + escaped + "\""
}
