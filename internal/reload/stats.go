package reload

import (
	"sync"
	"time"
)

// Stats is the diagnostics snapshot exposed by the coordinator.
type Stats struct {
	TotalReloads        int64   `json:"totalReloads"`
	SuccessfulReloads   int64   `json:"successfulReloads"`
	FailedReloads       int64   `json:"failedReloads"`
	AverageReloadTimeMs float64 `json:"averageReloadTimeMs"`
}

// statsRecorder accumulates reload outcomes. Counters only ever grow;
// the average is recomputed from the running duration sum on each
// update. Failed reloads' durations count toward the average exactly
// like successes: the average measures total latency cost, not
// success latency.
type statsRecorder struct {
	mu              sync.Mutex
	total           int64
	successful      int64
	failed          int64
	durationMsTotal float64
}

// Update records one completed reload. Each call is one atomic
// increment; concurrent reloads never read-modify-write across a
// suspension point.
func (recorder *statsRecorder) Update(success bool, duration time.Duration) {
	if recorder == nil {
		return
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	recorder.total++
	if success {
		recorder.successful++
	} else {
		recorder.failed++
	}
	recorder.durationMsTotal += float64(duration) / float64(time.Millisecond)
}

func (recorder *statsRecorder) Snapshot() Stats {
	if recorder == nil {
		return Stats{}
	}
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	snapshot := Stats{
		TotalReloads:      recorder.total,
		SuccessfulReloads: recorder.successful,
		FailedReloads:     recorder.failed,
	}
	if recorder.total > 0 {
		snapshot.AverageReloadTimeMs = recorder.durationMsTotal / float64(recorder.total)
	}
	return snapshot
}
