package scheduler

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/stupid-db/stupid-db/pkg/knowledge"
)

// Scheduler dispatches registered tasks onto a fixed worker pool. Every
// tick it classifies ingest load, filters tasks by priority, worker
// availability, and dependencies, and spawns the runnable ones. A single
// task failure never aborts the scheduler.
type Scheduler struct {
	cfg   Config
	state *knowledge.Shared

	mu           sync.Mutex
	tasks        []Task
	dependencies []Dependency
	lastRun      map[string]time.Time

	metrics       *metricsStore
	queueDepth    atomic.Int64
	activeWorkers atomic.Int64
	shutdown      atomic.Bool

	wg   sync.WaitGroup
	slot chan struct{}
}

// New creates a scheduler over the shared knowledge state.
func New(cfg Config, state *knowledge.Shared) *Scheduler {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = 100 * time.Millisecond
	}
	return &Scheduler{
		cfg:     cfg,
		state:   state,
		lastRun: make(map[string]time.Time),
		metrics: newMetricsStore(),
		slot:    make(chan struct{}, cfg.ResolvedWorkers()),
	}
}

// RegisterTask adds a periodic task (P1-P3).
func (s *Scheduler) RegisterTask(task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
	slog.Info("registered task", "task", task.Name(), "priority", task.Priority().String())
}

// AddDependency declares that `from` must complete before `to` runs.
func (s *Scheduler) AddDependency(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dependencies = append(s.dependencies, Dependency{From: from, To: to})
}

// SetIngestQueueDepth updates the backpressure signal; called by the
// ingest pipeline.
func (s *Scheduler) SetIngestQueueDepth(depth int) {
	s.queueDepth.Store(int64(depth))
}

// Metrics returns a snapshot of the scheduler metrics.
func (s *Scheduler) Metrics() Metrics {
	return s.metrics.snapshot()
}

// Shutdown requests a cooperative stop: the tick loop exits and
// in-flight tasks run to completion.
func (s *Scheduler) Shutdown() {
	slog.Info("scheduler shutdown requested")
	s.shutdown.Store(true)
}

// ExecuteImmediate runs a P0 task synchronously on the calling
// goroutine, holding the state write lock for the duration.
func (s *Scheduler) ExecuteImmediate(task Task) error {
	var result Result
	var err error
	s.state.Write(func(state *knowledge.State) {
		result, err = task.Execute(state)
	})
	if err != nil {
		return err
	}
	s.metrics.recordExecution(task.Name(), result.Duration)
	s.recordLastRun(task.Name())
	return nil
}

// Run drives the tick loop until Shutdown. Each tick snapshots the
// ingest queue depth, classifies load, collects runnable tasks, and
// spawns them onto the pool. Blocks; returns after in-flight tasks
// drain.
func (s *Scheduler) Run() {
	workers := s.cfg.ResolvedWorkers()
	slog.Info("scheduler starting", "workers", workers, "tasks", len(s.tasks))

	for !s.shutdown.Load() {
		s.Tick()
		time.Sleep(s.cfg.TickInterval)
	}

	s.wg.Wait()
	slog.Info("scheduler stopped")
}

// Tick performs one scheduling round. Exposed for tests and for callers
// embedding the scheduler into their own loop.
func (s *Scheduler) Tick() {
	depth := int(s.queueDepth.Load())
	load := s.cfg.AssessLoad(depth)

	workers := s.cfg.ResolvedWorkers()
	active := int(s.activeWorkers.Load())
	s.metrics.setLoad(load, depth, float64(active)/float64(workers))

	for _, task := range s.collectRunnable(load, workers, active) {
		s.spawn(task)
	}
}

// collectRunnable applies, in order: the load filter, the worker
// availability gate, the dependency gate, and the task's own ShouldRun.
func (s *Scheduler) collectRunnable(load LoadLevel, workers, active int) []Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	available := workers - active
	var runnable []Task

	for _, task := range s.tasks {
		priority := task.Priority()

		switch load {
		case LoadCritical:
			if priority == P2 || priority == P3 {
				continue
			}
		case LoadElevated:
			if priority == P3 {
				continue
			}
			if priority == P2 {
				// Half frequency: require double the interval since the
				// last run.
				last, ok := s.lastRun[task.Name()]
				if ok && time.Since(last) < 2*s.cfg.IntervalFor(P2) {
					continue
				}
			}
		}

		// Reserve headroom for immediate work.
		switch priority {
		case P2:
			if available <= 2 {
				continue
			}
		case P3:
			if available <= 4 {
				continue
			}
		}

		if !s.dependenciesMetLocked(task.Name()) {
			continue
		}

		last := s.lastRun[task.Name()]
		due := false
		s.state.Read(func(state *knowledge.State) {
			due = task.ShouldRun(last, state)
		})
		if due {
			runnable = append(runnable, task)
		}
	}
	return runnable
}

// dependenciesMetLocked checks that every `from` feeding this task has a
// recorded completion. Callers hold s.mu.
func (s *Scheduler) dependenciesMetLocked(taskName string) bool {
	for _, dep := range s.dependencies {
		if dep.To != taskName {
			continue
		}
		if _, ok := s.lastRun[dep.From]; !ok {
			return false
		}
	}
	return true
}

func (s *Scheduler) recordLastRun(taskName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[taskName] = time.Now().UTC()
}

// spawn runs the task on the worker pool. The slot channel bounds
// concurrency to the pool size.
func (s *Scheduler) spawn(task Task) {
	s.wg.Add(1)
	s.activeWorkers.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.activeWorkers.Add(-1)

		s.slot <- struct{}{}
		defer func() { <-s.slot }()

		var result Result
		var err error
		s.state.Write(func(state *knowledge.State) {
			result, err = task.Execute(state)
		})

		switch e := err.(type) {
		case nil:
			slog.Debug("task completed", "task", task.Name(), "duration", result.Duration)
			s.metrics.recordExecution(task.Name(), result.Duration)
			s.recordLastRun(task.Name())
		case *SkippedError:
			slog.Info("task skipped", "task", task.Name(), "reason", e.Reason)
		default:
			slog.Warn("task failed", "task", task.Name(), "err", err)
		}
	}()
}
