// Package metrics provides a lightweight in-process metrics collector for
// tool invocations. Counters are always on; the get_server_info tool and the
// serve shutdown log surface snapshots of them.
package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates per-tool invocation counts and per-kind failure counts.
type Collector struct {
	startTime   time.Time
	invocations sync.Map // tool name -> *Counter
	failures    sync.Map // error kind -> *Counter
}

// NewCollector creates a new collector.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Counter is a monotonically increasing counter.
type Counter struct {
	value atomic.Int64
}

// Inc increments the counter by 1.
func (c *Counter) Inc() { c.value.Add(1) }

// Value returns the current counter value.
func (c *Counter) Value() int64 { return c.value.Load() }

func counter(m *sync.Map, key string) *Counter {
	if v, ok := m.Load(key); ok {
		return v.(*Counter)
	}
	actual, _ := m.LoadOrStore(key, &Counter{})
	return actual.(*Counter)
}

// RecordInvocation counts one dispatch of the named tool.
func (c *Collector) RecordInvocation(tool string) {
	counter(&c.invocations, tool).Inc()
}

// RecordFailure counts one failure of the given error kind.
func (c *Collector) RecordFailure(kind string) {
	counter(&c.failures, kind).Inc()
}

// Invocations returns the dispatch count for one tool.
func (c *Collector) Invocations(tool string) int64 {
	if v, ok := c.invocations.Load(tool); ok {
		return v.(*Counter).Value()
	}
	return 0
}

// Uptime returns how long the collector has been running.
func (c *Collector) Uptime() time.Duration {
	return time.Since(c.startTime)
}

// Snapshot is a point-in-time view of the collected counters.
type Snapshot struct {
	UptimeSeconds    int64            `json:"uptime_seconds"`
	TotalInvocations int64            `json:"total_invocations"`
	TotalFailures    int64            `json:"total_failures"`
	ByTool           map[string]int64 `json:"by_tool,omitempty"`
	ByErrorKind      map[string]int64 `json:"by_error_kind,omitempty"`
}

// Snapshot copies the current counter values.
func (c *Collector) Snapshot() Snapshot {
	snap := Snapshot{
		UptimeSeconds: int64(c.Uptime().Seconds()),
		ByTool:        make(map[string]int64),
		ByErrorKind:   make(map[string]int64),
	}
	c.invocations.Range(func(key, value any) bool {
		n := value.(*Counter).Value()
		snap.ByTool[key.(string)] = n
		snap.TotalInvocations += n
		return true
	})
	c.failures.Range(func(key, value any) bool {
		n := value.(*Counter).Value()
		snap.ByErrorKind[key.(string)] = n
		snap.TotalFailures += n
		return true
	})
	return snap
}
