package results

import (
	"sync"

	"k8s.io/utils/clock"
)

// Collector keeps every failure in memory, in the order reported.
type Collector struct {
	collectionId string
	clock        clock.PassiveClock

	mu       sync.Mutex
	failures []Failure
}

func NewCollector(collectionId string) *Collector {
	return &Collector{collectionId: collectionId, clock: clock.RealClock{}}
}

func (c *Collector) AddFailure(fileId, category, source, detail string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = append(c.failures, Failure{
		CollectionId: c.collectionId,
		FileId:       fileId,
		Category:     category,
		Source:       source,
		Detail:       detail,
		ReportedAt:   c.clock.Now(),
	})
}

func (c *Collector) Failures() []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Failure(nil), c.failures...)
}

func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.failures)
}
