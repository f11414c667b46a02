package core

// run_limiter.go caps how many import runs execute at once and keeps two
// runs in this process from importing the same table together. Runs in
// other processes are not coordinated.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyRuns is returned when every run slot stays taken for the whole
// wait period. Clients should retry after a short delay.
var ErrTooManyRuns = errors.New("too many concurrent imports, please try again later")

const (
	DefaultMaxConcurrentRuns = 5
	DefaultMaxWaitTime       = 30 * time.Second
)

// RunLimiter is a semaphore over import runs plus a per-table busy set.
type RunLimiter struct {
	semaphore chan struct{}
	maxWait   time.Duration

	mu     sync.Mutex
	active int
	tables map[string]bool
}

// NewRunLimiter allows maxConcurrent simultaneous runs. Acquire gives up
// after maxWait with ErrTooManyRuns.
func NewRunLimiter(maxConcurrent int, maxWait time.Duration) *RunLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentRuns
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWaitTime
	}
	return &RunLimiter{
		semaphore: make(chan struct{}, maxConcurrent),
		maxWait:   maxWait,
		tables:    make(map[string]bool),
	}
}

// Acquire takes a run slot. The caller must Release it.
func (l *RunLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.semaphore <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-timer.C:
		return ErrTooManyRuns
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot taken by Acquire.
func (l *RunLimiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()
	<-l.semaphore
}

// Lock marks table busy. It fails with ErrTableBusy instead of waiting.
func (l *RunLimiter) Lock(table string) (func(), error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.tables[table] {
		return nil, ErrTableBusy
	}
	l.tables[table] = true

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.tables, table)
			l.mu.Unlock()
		})
	}, nil
}

// Busy reports whether a run currently holds table.
func (l *RunLimiter) Busy(table string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tables[table]
}

// WaitForDrain blocks until no run is active or ctx ends.
func (l *RunLimiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.Status().Active == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunLimiterStatus is a snapshot of the limiter.
type RunLimiterStatus struct {
	Active        int      `json:"active"`
	Available     int      `json:"available"`
	MaxConcurrent int      `json:"maxConcurrent"`
	BusyTables    []string `json:"busyTables,omitempty"`
}

func (l *RunLimiter) Status() RunLimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	busy := make([]string, 0, len(l.tables))
	for t := range l.tables {
		busy = append(busy, t)
	}
	return RunLimiterStatus{
		Active:        l.active,
		Available:     cap(l.semaphore) - len(l.semaphore),
		MaxConcurrent: cap(l.semaphore),
		BusyTables:    busy,
	}
}
