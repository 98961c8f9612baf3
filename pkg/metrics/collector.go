package metrics

import (
	"time"
)

// ClusterStats is the subset of pkg/session.Cluster a Collector polls.
// Defined locally (rather than importing pkg/session) so pkg/metrics never
// depends on the session layer — pkg/session depends on pkg/metrics
// instead, matching the teacher's direction of collector → subsystem
// dependency.
type ClusterStats interface {
	ActiveSessionCount() int
	ActiveTransactionCount() int64
}

// Collector periodically samples a Cluster's session and transaction
// counts into the package-level Prometheus gauges.
type Collector struct {
	cluster ClusterStats
	stopCh  chan struct{}
}

// NewCollector creates a collector for cluster.
func NewCollector(cluster ClusterStats) *Collector {
	return &Collector{
		cluster: cluster,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting on a 15s interval, collecting immediately first.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
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

// Stop ends the collection loop.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ActiveSessions.Set(float64(c.cluster.ActiveSessionCount()))
	ActiveTransactions.Set(float64(c.cluster.ActiveTransactionCount()))
}
