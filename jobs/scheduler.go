package jobs

import (
	"fmt"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/alitto/pond/v2"
	"github.com/dominikbraun/graph"

	"github.com/forgelabs/assetforge/core"
)

// Scheduler runs a DAG of Jobs to completion, respecting prerequisite
// edges and priority ordering within the ready set, using a pond worker
// pool for the actual goroutine fan-out (SPEC_FULL.md §11 domain stack).
type Scheduler struct {
	mu       sync.Mutex
	dag      graph.Graph[string, string]
	jobs     map[string]*Job
	indegree map[string]int
	pending  map[string]struct{}

	pool pond.Pool
	wg   sync.WaitGroup

	failed atomic.Bool

	awaitMu sync.Mutex
	awaited map[string]bool // jobs currently suspended via AwaitExternalFinish

	done chan struct{}
}

// NewScheduler creates a scheduler backed by a pool of workers goroutines.
// workers <= 0 defaults to runtime.NumCPU(), matching the teacher's
// MaxNumberOfWorkers convention (engine/systems/manager.go).
func NewScheduler(workers int) *Scheduler {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Scheduler{
		dag:      graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles()),
		jobs:     make(map[string]*Job),
		indegree: make(map[string]int),
		pending:  make(map[string]struct{}),
		awaited:  make(map[string]bool),
		pool:     pond.NewPool(workers),
		done:     make(chan struct{}),
	}
}

// Failed reports whether any job has reported StatusFailed so far.
func (s *Scheduler) Failed() bool {
	return s.failed.Load()
}

// AddJob registers j with the scheduler. Must be called before Run.
func (s *Scheduler) AddJob(j *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("jobs: duplicate job id %q", j.ID)
	}
	if err := s.dag.AddVertex(j.ID); err != nil {
		return fmt.Errorf("jobs: add vertex %q: %w", j.ID, err)
	}
	s.jobs[j.ID] = j
	s.indegree[j.ID] = 0
	return nil
}

// AddDependency records that subsequent must not run until prereq
// completes (spec.md §5 "Within one compile session... subsequent
// lookups... chain dependencies onto the first job"). Both ids must
// already be registered via AddJob.
func (s *Scheduler) AddDependency(prereq, subsequent string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.dag.AddEdge(prereq, subsequent); err != nil {
		return fmt.Errorf("jobs: add edge %s->%s: %w", prereq, subsequent, err)
	}
	s.indegree[subsequent]++
	return nil
}

// Run executes every registered job, blocking until the whole DAG —
// including any AwaitExternalFinish suspensions resumed via ResumeJob —
// has settled. Returns the accumulated Failed() state as an error when
// true, nil otherwise.
func (s *Scheduler) Run() error {
	s.mu.Lock()
	ready := s.readyJobsLocked()
	s.mu.Unlock()

	if len(ready) == 0 && len(s.jobs) > 0 {
		return fmt.Errorf("jobs: no ready job found; DAG may be malformed")
	}

	for _, j := range ready {
		s.dispatch(j)
	}

	s.wg.Wait()
	if s.failed.Load() {
		return fmt.Errorf("jobs: one or more jobs failed")
	}
	return nil
}

// readyJobsLocked returns every not-yet-dispatched job with indegree 0,
// sorted by priority (highest first) for deterministic execution order.
// Caller must hold s.mu.
func (s *Scheduler) readyJobsLocked() []*Job {
	var ready []*Job
	for id, deg := range s.indegree {
		if deg == 0 {
			if _, inFlight := s.pending[id]; !inFlight {
				ready = append(ready, s.jobs[id])
			}
		}
	}
	sort.Slice(ready, func(i, k int) bool {
		return ready[i].Priority > ready[k].Priority
	})
	for _, j := range ready {
		s.pending[j.ID] = struct{}{}
	}
	return ready
}

func (s *Scheduler) dispatch(j *Job) {
	s.wg.Add(1)
	s.pool.Submit(func() {
		status, err := j.Run()
		if err != nil {
			core.LogError("job %s failed: %v", j.ID, err)
		}
		if status == StatusAwaitExternalFinish {
			s.awaitMu.Lock()
			s.awaited[j.ID] = true
			s.awaitMu.Unlock()
			return
		}
		s.finish(j.ID, status)
	})
}

// ResumeJob is called by the external event (file I/O completion, codec
// callback, GPU fence) that a StatusAwaitExternalFinish job was waiting
// on. It finalizes the job with the given status and releases its
// subsequents.
func (s *Scheduler) ResumeJob(id string, status Status) {
	s.awaitMu.Lock()
	waiting := s.awaited[id]
	if waiting {
		delete(s.awaited, id)
	}
	s.awaitMu.Unlock()
	if !waiting {
		core.LogWarn("jobs: ResumeJob(%s) called but job was not awaiting", id)
	}
	s.finish(id, status)
}

func (s *Scheduler) finish(id string, status Status) {
	defer s.wg.Done()

	if status == StatusFailed {
		s.failed.Store(true)
	}

	s.mu.Lock()
	successors, _ := s.dag.AdjacencyMap()
	var newlyReady []*Job
	for next := range successors[id] {
		s.indegree[next]--
		if s.indegree[next] == 0 {
			if _, inFlight := s.pending[next]; !inFlight {
				s.pending[next] = struct{}{}
				newlyReady = append(newlyReady, s.jobs[next])
			}
		}
	}
	sort.Slice(newlyReady, func(i, k int) bool {
		return newlyReady[i].Priority > newlyReady[k].Priority
	})
	s.mu.Unlock()

	for _, j := range newlyReady {
		s.dispatch(j)
	}
}

// Shutdown releases the underlying worker pool. Call once after Run
// returns, mirroring the teacher's JobSystem.Shutdown.
func (s *Scheduler) Shutdown() {
	s.pool.StopAndWait()
}
