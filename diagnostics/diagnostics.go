// Package diagnostics provides a low-overhead event system for tracking
// query compilation and execution: annotation, expression compilation,
// planning, stage execution, and commit, each with latency and
// event-specific data. Events flow through a Handler; the zero collector
// costs one branch per emit site.
package diagnostics

import (
	"time"
)

// Event name constants, hierarchical.
const (
	QueryInvoked  = "query/invoked"
	QueryPlanned  = "query/plan.created"
	QueryComplete = "query/completed"

	AnnotateBegin    = "annotate/begin"
	AnnotateComplete = "annotate/complete"

	ExpressionsCompiled = "expressions/compiled"

	PlanBegin    = "plan/begin"
	PlanComplete = "plan/complete"

	StageBegin    = "stage/begin"
	StageComplete = "stage/complete"

	IntersectionExecuted = "intersection/executed"

	WriteApplied = "write/applied"

	CommitBegin    = "commit/begin"
	CommitComplete = "commit/complete"

	ErrorTypeInference = "error/type-inference"
	ErrorExecution     = "error/execution"
	ErrorCommit        = "error/commit"
)

// Event is one annotation emitted during query processing.
type Event struct {
	Name    string
	Start   time.Time
	End     time.Time
	Latency time.Duration
	Data    map[string]interface{}
}

// Handler processes events as they occur.
type Handler func(event Event)

// Collector accumulates events for one query execution. A nil or
// disabled collector is safe to emit into.
type Collector struct {
	enabled bool
	handler Handler
	events  []Event
	started time.Time
}

func NewCollector(handler Handler) *Collector {
	return &Collector{enabled: handler != nil, handler: handler, started: time.Now()}
}

// Emit records an instantaneous event.
func (c *Collector) Emit(name string, data map[string]interface{}) {
	if c == nil || !c.enabled {
		return
	}
	now := time.Now()
	e := Event{Name: name, Start: now, End: now, Data: data}
	c.events = append(c.events, e)
	c.handler(e)
}

// Timed runs f and records its latency under name.
func (c *Collector) Timed(name string, data map[string]interface{}, f func() error) error {
	if c == nil || !c.enabled {
		return f()
	}
	start := time.Now()
	err := f()
	end := time.Now()
	e := Event{Name: name, Start: start, End: end, Latency: end.Sub(start), Data: data}
	c.events = append(c.events, e)
	c.handler(e)
	return err
}

// Events returns everything collected so far.
func (c *Collector) Events() []Event {
	if c == nil {
		return nil
	}
	return c.events
}
