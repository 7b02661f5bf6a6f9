package galera

import "time"

// Config holds the coordinator's tunables (specification §6.5).
type Config struct {
	// FlowControlDelay is the backoff slept between flow-control retries
	// in the local-commit path.
	FlowControlDelay time.Duration
	// FlowControlRetries bounds how many times the local-commit path
	// retries while GCS reports flow control engaged before giving up.
	FlowControlRetries int
	// MarkCommitEarly publishes last_committed as soon as commit_queue is
	// grabbed, rather than waiting for commit_complete.
	MarkCommitEarly bool
	// MaxWorkers bounds the number of concurrent remote-apply workers.
	MaxWorkers int
	// ReportInterval is how many commit_queue releases occur between
	// set_last_applied reports to the group.
	ReportInterval int
	// ToQueueCapacity and CommitQueueCapacity bound the two ordered
	// delivery queues; both are rounded up to a power of two.
	ToQueueCapacity     int
	CommitQueueCapacity int
	// LocalCacheSize bounds the local trx store's total in-memory buffered
	// bytes; the trx whose append pushes the total over it spills its
	// queries/items to disk (each trx spills at most once); 0 disables
	// spilling.
	LocalCacheSize int64
}

// DefaultConfig returns the specification's default tunables.
func DefaultConfig() Config {
	return Config{
		FlowControlDelay:    10 * time.Millisecond,
		FlowControlRetries:  100,
		MarkCommitEarly:     false,
		MaxWorkers:          2,
		ReportInterval:      200,
		ToQueueCapacity:     1 << 16,
		CommitQueueCapacity: 1 << 16,
		LocalCacheSize:      64 << 20,
	}
}
