package metrics

import (
	"time"

	"github.com/galerago/galera/pkg/galera"
)

// Collector periodically scrapes coordinator state into the package's
// Prometheus gauges and counters.
type Collector struct {
	coord  *galera.Coordinator
	stopCh chan struct{}

	lastPurged int64
}

// NewCollector creates a new metrics collector over coord.
func NewCollector(coord *galera.Coordinator) *Collector {
	return &Collector{
		coord:      coord,
		stopCh:     make(chan struct{}),
		lastPurged: -1,
	}
}

// Start begins collecting metrics on a fixed interval.
func (c *Collector) Start() {
	ticker := time.NewTicker(5 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	LastCommittedSeqno.Set(float64(c.coord.LastCommitted()))
	ToQueueDepth.Set(float64(c.coord.ToQueueHead()))
	CommitQueueDepth.Set(float64(c.coord.CommitQueueHead()))
	ActiveIndexSize.Set(float64(c.coord.CertIndex().ActiveCount()))

	purged := c.coord.CertIndex().PurgedUpTo()
	if purged > c.lastPurged {
		PurgeTotal.Inc()
		c.lastPurged = purged
	}
}
