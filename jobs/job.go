// Package jobs implements the parallel job scheduler described in
// SPEC_FULL.md §5: an explicit prerequisite→subsequent DAG, worker-pool
// execution, job priorities, and the AwaitExternalFinish suspension
// protocol. It generalizes the teacher's engine/systems/job.go channel
// pool (a flat run-to-completion queue) into a graph-aware scheduler,
// since the compiler needs ordering guarantees a flat queue can't express
// (a mesh-skin build must wait on both its mesh build and skeleton build).
package jobs

// Priority mirrors the teacher's JobPriority (engine/renderer/metadata/job.go)
// but renamed to the two kinds this core actually schedules.
type Priority int

const (
	// PriorityAssetCompilation is used for ordinary compile jobs: decode,
	// classify, mip-gen, compress, build, finalize.
	PriorityAssetCompilation Priority = iota
	// PriorityLoadGraphicsPipeline is used for jobs that depend on the
	// render backend (Cubemap Processor passes) and should be scheduled
	// ahead of plain compilation work when both are ready, since GPU
	// command submission benefits from being kept busy.
	PriorityLoadGraphicsPipeline
)

// Status is the outcome a Job's Run function reports.
type Status int

const (
	// StatusComplete means the job finished successfully; its subsequents
	// become eligible once every one of their prerequisites has finished,
	// whether with StatusComplete or StatusFailed.
	StatusComplete Status = iota
	// StatusFailed sets the scheduler's shared fail flag (SPEC_FULL.md §7
	// propagation policy) but does not halt the DAG: remaining jobs still
	// run so they can release resources, per spec.md §5 "Cancellation".
	StatusFailed
	// StatusAwaitExternalFinish suspends the job: the scheduler treats it
	// as neither complete nor failed until something calls
	// Scheduler.ResumeJob(id, ...) with a final status. Models waits on
	// file I/O, opaque codec calls, and GPU fence completion without
	// blocking a worker thread (SPEC_FULL.md §5 "Suspension points").
	StatusAwaitExternalFinish
)

// RunFunc is the body of a Job. It must not block the calling worker on an
// external event; if the work needs to wait on one, it should kick off the
// external operation asynchronously, return StatusAwaitExternalFinish, and
// let the caller invoke Scheduler.ResumeJob when the event fires.
type RunFunc func() (Status, error)

// Job is one scheduler-managed unit of work.
type Job struct {
	// ID must be unique within one Scheduler; used as the DAG vertex hash.
	ID       string
	Priority Priority
	Run      RunFunc
}
