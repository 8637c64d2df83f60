package scheduler

import (
	"runtime"
	"time"
)

// LoadLevel is the scheduler's assessment of ingest pressure.
type LoadLevel int

const (
	// LoadNormal: all priorities eligible.
	LoadNormal LoadLevel = iota
	// LoadElevated: P3 skipped; P2 runs at half frequency.
	LoadElevated
	// LoadCritical: P2 and P3 both skipped.
	LoadCritical
)

func (l LoadLevel) String() string {
	return [...]string{"Normal", "Elevated", "Critical"}[l]
}

// Config tunes the scheduler.
type Config struct {
	// Workers is the pool size; zero defaults to the CPU count.
	Workers int

	// TickInterval is the scheduling loop period.
	TickInterval time.Duration

	// Default cadences per priority level.
	P1Interval time.Duration
	P2Interval time.Duration
	P3Interval time.Duration

	// Ingest queue depths at which load escalates.
	ElevatedQueueDepth int
	CriticalQueueDepth int
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Workers:            0,
		TickInterval:       100 * time.Millisecond,
		P1Interval:         time.Second,
		P2Interval:         5 * time.Minute,
		P3Interval:         time.Hour,
		ElevatedQueueDepth: 1_000,
		CriticalQueueDepth: 10_000,
	}
}

// ResolvedWorkers returns the effective pool size.
func (c Config) ResolvedWorkers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.NumCPU()
}

// IntervalFor returns the default cadence for a priority level.
func (c Config) IntervalFor(p Priority) time.Duration {
	switch p {
	case P1:
		return c.P1Interval
	case P2:
		return c.P2Interval
	case P3:
		return c.P3Interval
	}
	return 0
}

// AssessLoad classifies the ingest queue depth.
func (c Config) AssessLoad(queueDepth int) LoadLevel {
	switch {
	case queueDepth >= c.CriticalQueueDepth:
		return LoadCritical
	case queueDepth >= c.ElevatedQueueDepth:
		return LoadElevated
	}
	return LoadNormal
}
