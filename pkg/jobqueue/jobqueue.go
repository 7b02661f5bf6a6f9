package jobqueue

import (
	"context"
	"errors"
	"sync"
)

// ErrMaxWorkers is returned by SpawnWorker once max_workers workers have
// already been spawned.
var ErrMaxWorkers = errors.New("jobqueue: max_workers already spawned")

// WorkerID identifies a worker spawned from a JobQueue.
type WorkerID int

// ConflictFunc decides whether running job2's context would conflict with
// candidate job1's context if both executed concurrently. Implementations
// are expected to be commutative in the sense the caller needs (the
// certification predicate in package cert is the one used by the
// replication coordinator).
type ConflictFunc[C any] func(candidate, running C) bool

type worker struct {
	id      WorkerID
	running bool
	ctx     any
}

// JobQueue schedules jobs of context type C across up to maxWorkers
// concurrent workers, serialising only conflicting jobs against each other.
type JobQueue[C any] struct {
	mu        sync.Mutex
	cond      *sync.Cond
	workers   []*worker
	max       int
	conflict  ConflictFunc[C]
}

// New creates a job queue bounded at maxWorkers, using conflict to decide
// whether two concurrently-running contexts would violate ordering.
func New[C any](maxWorkers int, conflict ConflictFunc[C]) *JobQueue[C] {
	jq := &JobQueue[C]{max: maxWorkers, conflict: conflict}
	jq.cond = sync.NewCond(&jq.mu)
	return jq
}

// SpawnWorker assigns a new worker id, bounded by max_workers.
func (jq *JobQueue[C]) SpawnWorker() (WorkerID, error) {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	if len(jq.workers) >= jq.max {
		return 0, ErrMaxWorkers
	}
	w := &worker{id: WorkerID(len(jq.workers))}
	jq.workers = append(jq.workers, w)
	return w.id, nil
}

func (jq *JobQueue[C]) find(id WorkerID) *worker {
	for _, w := range jq.workers {
		if w.id == id {
			return w
		}
	}
	return nil
}

// StartJob blocks worker id until its ctx conflicts with no currently
// running worker's context, then marks it running holding ctx. Each time a
// running job ends, every blocked StartJob re-evaluates the (now smaller)
// running set — functionally equivalent to the specification's "waiter on
// the running worker's condvar", collapsed onto one queue-wide condition
// variable since the observable scheduling behaviour is identical.
func (jq *JobQueue[C]) StartJob(ctx context.Context, id WorkerID, jobCtx C) error {
	jq.mu.Lock()
	defer jq.mu.Unlock()

	w := jq.find(id)
	if w == nil {
		return errors.New("jobqueue: unknown worker id")
	}

	for jq.conflictsWithRunningLocked(id, jobCtx) {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		jq.cond.Wait()
	}

	w.running = true
	w.ctx = jobCtx
	return nil
}

func (jq *JobQueue[C]) conflictsWithRunningLocked(self WorkerID, jobCtx C) bool {
	for _, w := range jq.workers {
		if w.id == self || !w.running {
			continue
		}
		if jq.conflict(jobCtx, w.ctx.(C)) {
			return true
		}
	}
	return false
}

// EndJob transitions worker id to completed, clears its context, and wakes
// every blocked StartJob to re-evaluate conflicts.
func (jq *JobQueue[C]) EndJob(id WorkerID) {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	if w := jq.find(id); w != nil {
		w.running = false
		w.ctx = nil
	}
	jq.cond.Broadcast()
}

// RunningCount reports how many workers currently hold a running job,
// exposed for metrics and tests.
func (jq *JobQueue[C]) RunningCount() int {
	jq.mu.Lock()
	defer jq.mu.Unlock()
	n := 0
	for _, w := range jq.workers {
		if w.running {
			n++
		}
	}
	return n
}
