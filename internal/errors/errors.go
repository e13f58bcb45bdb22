// Package errors defines the error taxonomy of the content pipeline and a
// collector that gathers the per-file failures of one rebuild.
package errors

import (
	"sync"
)

// Collector collects errors from concurrent compile and render workers.
type Collector struct {
	errors []error
	counts map[Kind]int
	mutex  sync.Mutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{
		errors: make([]error, 0),
		counts: make(map[Kind]int),
	}
}

// Add records err. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
	kind, ok := KindOf(err)
	if !ok {
		kind = KindOther
	}
	c.counts[kind]++
}

// Errors returns a copy of the recorded errors.
func (c *Collector) Errors() []error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)
	return result
}

// Counts returns the number of errors per kind.
func (c *Collector) Counts() map[Kind]int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make(map[Kind]int, len(c.counts))
	for k, v := range c.counts {
		result[k] = v
	}
	return result
}

// HasErrors returns true if anything was recorded.
func (c *Collector) HasErrors() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.errors) > 0
}

// Len returns the number of recorded errors.
func (c *Collector) Len() int {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return len(c.errors)
}
