package reload

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"reflex/internal/depgraph"
	"reflex/internal/logging"
	"reflex/internal/metrics"
	"reflex/internal/notification"
	"reflex/internal/routes"
)

const (
	// DefaultDebounce coalesces a burst of change events into one batch.
	DefaultDebounce = 200 * time.Millisecond
	// DefaultTimeout bounds a single executor invocation.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxRetries bounds re-attempts after a failed reload.
	DefaultMaxRetries = 2
)

// ChangeClass is the watcher's classification of a changed file.
type ChangeClass int

const (
	// ClassModule is an ordinary source file; strategy comes from the
	// dependency graph.
	ClassModule ChangeClass = iota
	// ClassConfig is shared process configuration; every route is
	// considered stale.
	ClassConfig
	// ClassEnv is an environment file; every route is stale and a
	// process restart is advisable because the environment was read
	// once at startup.
	ClassEnv
)

// FileChange is one debounced unit of work.
type FileChange struct {
	Path  string
	Class ChangeClass
}

// Phase names the coordinator's batch pipeline state.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseResolving  Phase = "resolving"
	PhaseReloading  Phase = "reloading"
)

// Options configures a Coordinator.
type Options struct {
	Graph      *depgraph.Graph
	Registry   *routes.Registry
	Executor   Executor
	Debounce   time.Duration
	Timeout    time.Duration
	MaxRetries int
	Logger     *logging.Logger
	Metrics    *metrics.Registry
	// Notify overrides the notification sink; nil publishes to the
	// process-wide notification bus.
	Notify func(notification.Event)
}

// Coordinator consumes file-change events, debounces them into
// batches, resolves each batch to a reload strategy, drives the
// executor, and reports outcomes. A reload failure is never fatal:
// the coordinator keeps processing subsequent batches.
type Coordinator struct {
	graph      *depgraph.Graph
	registry   *routes.Registry
	executor   Executor
	debounce   time.Duration
	timeout    time.Duration
	maxRetries int
	logger     *logging.Logger
	metrics    *metrics.Registry
	notify     func(notification.Event)
	stats      statsRecorder

	mu         sync.Mutex
	pending    []FileChange
	pendingSet map[string]struct{}
	timer      *time.Timer
	phase      Phase
	closed     bool

	// runMu serializes batch execution: a batch whose timer fires
	// while a previous batch is still reloading waits its turn, so
	// notification order within each batch stays deterministic.
	runMu  sync.Mutex
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a coordinator. Graph, Registry, and Executor are
// required; everything else has defaults.
func New(options Options) *Coordinator {
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	timeout := options.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxRetries := options.MaxRetries
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	registry := options.Metrics
	if registry == nil {
		registry = metrics.Default
	}
	notify := options.Notify
	if notify == nil {
		notify = notification.Publish
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Coordinator{
		graph:      options.Graph,
		registry:   options.Registry,
		executor:   options.Executor,
		debounce:   debounce,
		timeout:    timeout,
		maxRetries: maxRetries,
		logger:     options.Logger,
		metrics:    registry,
		notify:     notify,
		pendingSet: make(map[string]struct{}),
		phase:      PhaseIdle,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnFileChanged enqueues a change into the current pending batch and
// (re)starts the debounce timer. Non-blocking; returns immediately.
// Duplicate paths within a batch collapse to the first occurrence.
func (coordinator *Coordinator) OnFileChanged(change FileChange) {
	if coordinator == nil || change.Path == "" {
		return
	}
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if coordinator.closed {
		return
	}

	if _, seen := coordinator.pendingSet[change.Path]; !seen {
		coordinator.pendingSet[change.Path] = struct{}{}
		coordinator.pending = append(coordinator.pending, change)
	}
	if coordinator.phase == PhaseIdle {
		coordinator.phase = PhaseCollecting
	}

	if coordinator.timer == nil {
		coordinator.timer = time.AfterFunc(coordinator.debounce, coordinator.onTimer)
		return
	}
	coordinator.timer.Reset(coordinator.debounce)
}

// Phase reports the current pipeline phase.
func (coordinator *Coordinator) Phase() Phase {
	if coordinator == nil {
		return PhaseIdle
	}
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return coordinator.phase
}

// Stats returns the accumulated reload statistics.
func (coordinator *Coordinator) Stats() Stats {
	if coordinator == nil {
		return Stats{}
	}
	return coordinator.stats.Snapshot()
}

// UpdateStats records one reload outcome directly. The batch pipeline
// calls this for every executed reload; it is exported for hosts that
// drive reloads outside the coordinator.
func (coordinator *Coordinator) UpdateStats(success bool, duration time.Duration) {
	if coordinator == nil {
		return
	}
	coordinator.stats.Update(success, duration)
}

// Close stops the debounce timer and waits for in-flight batches.
// Dispatched reloads are not cancelled; they run to completion.
func (coordinator *Coordinator) Close() {
	if coordinator == nil {
		return
	}
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return
	}
	coordinator.closed = true
	if coordinator.timer != nil {
		coordinator.timer.Stop()
	}
	coordinator.mu.Unlock()

	coordinator.wg.Wait()
	coordinator.cancel()
}

func (coordinator *Coordinator) onTimer() {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return
	}
	coordinator.wg.Add(1)
	coordinator.mu.Unlock()

	go func() {
		defer coordinator.wg.Done()
		coordinator.runBatch()
	}()
}

func (coordinator *Coordinator) runBatch() {
	coordinator.runMu.Lock()
	defer coordinator.runMu.Unlock()

	coordinator.mu.Lock()
	batch := coordinator.pending
	coordinator.pending = nil
	coordinator.pendingSet = make(map[string]struct{})
	coordinator.timer = nil
	coordinator.phase = PhaseResolving
	coordinator.mu.Unlock()

	if len(batch) == 0 {
		coordinator.setPhaseAfterBatch()
		return
	}

	resolution := coordinator.resolve(batch)
	coordinator.metrics.IncBatchResolved()

	if len(resolution.files) == 0 && len(resolution.infra) == 0 {
		coordinator.logDebug("batch resolved to skip", map[string]string{
			"changes": strconv.Itoa(len(batch)),
		})
		coordinator.setPhaseAfterBatch()
		return
	}

	coordinator.mu.Lock()
	coordinator.phase = PhaseReloading
	coordinator.mu.Unlock()

	// infra outcomes are announced up front so clients know the whole
	// route set is about to churn
	for _, infra := range resolution.infra {
		coordinator.notify(infra)
	}

	failed := coordinator.executeAll(resolution.files)
	coordinator.emitOutcomes(resolution, failed)
	coordinator.setPhaseAfterBatch()
}

func (coordinator *Coordinator) setPhaseAfterBatch() {
	coordinator.mu.Lock()
	if len(coordinator.pending) > 0 {
		coordinator.phase = PhaseCollecting
	} else {
		coordinator.phase = PhaseIdle
	}
	coordinator.mu.Unlock()
}

// resolution is a batch translated into work: the ordered route files
// to reload, the per-change outcomes to announce, and any infra
// events.
type resolution struct {
	files    []string
	outcomes []outcome
	infra    []notification.Event
}

type outcome struct {
	change   FileChange
	strategy depgraph.Strategy
}

func (coordinator *Coordinator) resolve(batch []FileChange) resolution {
	known := coordinator.registry.Known()

	var resolved resolution
	full := false
	seen := make(map[string]struct{})

	for _, change := range batch {
		infra := change.Class != ClassModule
		strategy := coordinator.graph.Determine(change.Path, known, infra, infraReason(change.Class))

		switch strategy.Kind {
		case depgraph.StrategyFull:
			full = true
			resolved.infra = append(resolved.infra, infraEvent(change))
		case depgraph.StrategySkip:
			// nothing to contribute
		default:
			resolved.outcomes = append(resolved.outcomes, outcome{change: change, strategy: strategy})
			for _, file := range strategy.Routes {
				if _, ok := seen[file]; ok {
					continue
				}
				seen[file] = struct{}{}
				resolved.files = append(resolved.files, file)
			}
		}
	}

	if full {
		// Full dominates the batch: reload every known route, in
		// sorted order so a fixed input batch reloads reproducibly.
		resolved.outcomes = nil
		resolved.files = make([]string, 0, len(known))
		for file := range known {
			resolved.files = append(resolved.files, file)
		}
		sort.Strings(resolved.files)
	}

	return resolved
}

// executeAll drives the executor once per route file, sequentially and
// in deterministic order, recording stats per reload. It returns the
// set of files whose reload failed after retries.
func (coordinator *Coordinator) executeAll(files []string) map[string]reloadOutcome {
	failed := make(map[string]reloadOutcome)

	for _, file := range files {
		coordinator.metrics.IncReloadStarted()
		result := coordinator.execute(coordinator.ctx, file)
		coordinator.stats.Update(result.err == nil, result.duration)
		coordinator.metrics.RecordReload(result.duration, result.err, result.retries)

		if result.err != nil {
			failed[file] = result
			coordinator.logWarn("route reload failed", map[string]string{
				"path":    file,
				"error":   result.err.Error(),
				"retries": strconv.Itoa(result.retries),
			})
			continue
		}
		coordinator.logDebug("route reloaded", map[string]string{
			"path":        file,
			"duration_ms": strconv.FormatInt(result.duration.Milliseconds(), 10),
		})
	}
	return failed
}

// emitOutcomes announces per-change results in first-seen order, then
// one reload-error per failed file.
func (coordinator *Coordinator) emitOutcomes(resolved resolution, failed map[string]reloadOutcome) {
	for _, entry := range resolved.outcomes {
		switch entry.strategy.Kind {
		case depgraph.StrategySingle:
			file := entry.strategy.Routes[0]
			if _, isFailed := failed[file]; isFailed {
				continue
			}
			coordinator.notify(notification.NewRouteUpdated(coordinator.routePath(file), file))
		case depgraph.StrategySelective:
			var affected []string
			for _, file := range entry.strategy.Routes {
				if _, isFailed := failed[file]; isFailed {
					continue
				}
				affected = append(affected, coordinator.routePath(file))
			}
			if len(affected) == 0 {
				continue
			}
			coordinator.notify(notification.NewDependencyUpdated(entry.change.Path, affected))
		}
	}

	// deterministic error order
	var failedFiles []string
	for file := range failed {
		failedFiles = append(failedFiles, file)
	}
	sort.Strings(failedFiles)
	for _, file := range failedFiles {
		result := failed[file]
		coordinator.notify(notification.NewReloadError(file, result.err, result.retries))
	}
}

func (coordinator *Coordinator) routePath(file string) string {
	if route, ok := coordinator.registry.RoutePath(file); ok {
		return route
	}
	return file
}

func infraReason(class ChangeClass) string {
	switch class {
	case ClassConfig:
		return "shared configuration changed"
	case ClassEnv:
		return "environment file changed"
	default:
		return ""
	}
}

func infraEvent(change FileChange) notification.Event {
	if change.Class == ClassEnv {
		return notification.NewEnvUpdated(change.Path, true)
	}
	// a soft reload of every route suffices for config files; the
	// process itself does not need to restart
	return notification.NewConfigUpdated(change.Path, false)
}

func (coordinator *Coordinator) logDebug(message string, fields map[string]string) {
	if coordinator.logger == nil {
		return
	}
	coordinator.logger.Debug(message, withComponent(fields))
}

func (coordinator *Coordinator) logWarn(message string, fields map[string]string) {
	if coordinator.logger == nil {
		return
	}
	coordinator.logger.Warn(message, withComponent(fields))
}

func withComponent(fields map[string]string) map[string]string {
	merged := make(map[string]string, len(fields)+1)
	merged["component"] = "reload"
	for key, value := range fields {
		merged[key] = value
	}
	return merged
}
