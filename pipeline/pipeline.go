// Package pipeline composes query stages into a lazy row stream: an
// initial single-empty-row source, a match stage driving constraint
// iterators, write stages applying insert/update/delete executables, and
// the transform stages (select, sort, offset, limit, require, distinct,
// reduce). Every stage pulls from its upstream; a shared interruption
// channel is checked between rows.
package pipeline

import (
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/typeerr"
)

// Stage is one pull-based pipeline element. Next returns the next row,
// reporting exhaustion via ok=false; errors are terminal for the calling
// query but leave the stage closeable.
type Stage interface {
	Next() (r row.Row, ok bool, err error)
	Close()
}

// Control carries the cooperative interruption signal shared by every
// stage of one query.
type Control struct {
	Interrupt <-chan struct{}
}

func (c *Control) check() error {
	if c == nil || c.Interrupt == nil {
		return nil
	}
	select {
	case <-c.Interrupt:
		return typeerr.Interrupted()
	default:
		return nil
	}
}

// Initial emits a single empty row, the seed every pipeline starts from.
type Initial struct {
	ctrl *Control
	done bool
}

func NewInitial(ctrl *Control) *Initial { return &Initial{ctrl: ctrl} }

func (s *Initial) Next() (row.Row, bool, error) {
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	if s.done {
		return row.Row{}, false, nil
	}
	s.done = true
	return row.Row{Multiplicity: 1}, true, nil
}

func (s *Initial) Close() {}

// Collect drains a stage into a slice, closing it afterwards.
func Collect(s Stage) ([]row.Row, error) {
	defer s.Close()
	var out []row.Row
	for {
		r, ok, err := s.Next()
		if err != nil {
			return out, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, r)
	}
}
