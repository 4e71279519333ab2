package pipeline

import (
	"sort"

	"github.com/typedb/typedb-sub006/row"
)

// Select projects rows onto a subset of slots, clearing the rest.
type Select struct {
	up    Stage
	keep  map[int]bool
	ctrl  *Control
}

func NewSelect(up Stage, slots []int, ctrl *Control) *Select {
	keep := make(map[int]bool, len(slots))
	for _, s := range slots {
		keep[s] = true
	}
	return &Select{up: up, keep: keep, ctrl: ctrl}
}

func (s *Select) Next() (row.Row, bool, error) {
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	r, ok, err := s.up.Next()
	if err != nil || !ok {
		return row.Row{}, false, err
	}
	out := r.Clone()
	for i := range out.Values {
		if !s.keep[i] {
			out.Values[i] = row.Empty()
		}
	}
	return out, true, nil
}

func (s *Select) Close() { s.up.Close() }

// SortKey is one sort criterion: a row slot plus direction.
type SortKey struct {
	Slot       int
	Descending bool
}

// Sort fully buffers its upstream, then emits in key order. The sort is
// stable: rows with equal keys keep their source order, multiplicity
// differences included.
type Sort struct {
	up     Stage
	keys   []SortKey
	ctrl   *Control
	buf    []row.Row
	pos    int
	filled bool
}

func NewSort(up Stage, keys []SortKey, ctrl *Control) *Sort {
	return &Sort{up: up, keys: keys, ctrl: ctrl}
}

func (s *Sort) Next() (row.Row, bool, error) {
	if !s.filled {
		for {
			if err := s.ctrl.check(); err != nil {
				return row.Row{}, false, err
			}
			r, ok, err := s.up.Next()
			if err != nil {
				return row.Row{}, false, err
			}
			if !ok {
				break
			}
			s.buf = append(s.buf, r)
		}
		sort.SliceStable(s.buf, func(i, j int) bool {
			for _, k := range s.keys {
				c := row.Compare(s.buf[i].Values[k.Slot], s.buf[j].Values[k.Slot])
				if c != 0 {
					if k.Descending {
						return c > 0
					}
					return c < 0
				}
			}
			return false
		})
		s.filled = true
	}
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	if s.pos >= len(s.buf) {
		return row.Row{}, false, nil
	}
	r := s.buf[s.pos]
	s.pos++
	return r, true, nil
}

func (s *Sort) Close() { s.up.Close() }

// Offset drops the first N rows.
type Offset struct {
	up      Stage
	n       uint64
	skipped uint64
	ctrl    *Control
}

func NewOffset(up Stage, n uint64, ctrl *Control) *Offset {
	return &Offset{up: up, n: n, ctrl: ctrl}
}

func (s *Offset) Next() (row.Row, bool, error) {
	for {
		if err := s.ctrl.check(); err != nil {
			return row.Row{}, false, err
		}
		r, ok, err := s.up.Next()
		if err != nil || !ok {
			return row.Row{}, false, err
		}
		if s.skipped < s.n {
			s.skipped++
			continue
		}
		return r, true, nil
	}
}

func (s *Offset) Close() { s.up.Close() }

// Limit emits at most N rows.
type Limit struct {
	up      Stage
	n       uint64
	emitted uint64
	ctrl    *Control
}

func NewLimit(up Stage, n uint64, ctrl *Control) *Limit {
	return &Limit{up: up, n: n, ctrl: ctrl}
}

func (s *Limit) Next() (row.Row, bool, error) {
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	if s.emitted >= s.n {
		return row.Row{}, false, nil
	}
	r, ok, err := s.up.Next()
	if err != nil || !ok {
		return row.Row{}, false, err
	}
	s.emitted++
	return r, true, nil
}

func (s *Limit) Close() { s.up.Close() }

// Require drops rows with an empty slot among the required positions.
type Require struct {
	up       Stage
	required []int
	ctrl     *Control
}

func NewRequire(up Stage, required []int, ctrl *Control) *Require {
	return &Require{up: up, required: required, ctrl: ctrl}
}

func (s *Require) Next() (row.Row, bool, error) {
	for {
		if err := s.ctrl.check(); err != nil {
			return row.Row{}, false, err
		}
		r, ok, err := s.up.Next()
		if err != nil || !ok {
			return row.Row{}, false, err
		}
		keep := true
		for _, slot := range s.required {
			if slot >= len(r.Values) || r.Values[slot].IsEmpty() {
				keep = false
				break
			}
		}
		if keep {
			return r, true, nil
		}
	}
}

func (s *Require) Close() { s.up.Close() }

// Distinct deduplicates consecutive rows with equal values, summing
// their multiplicities into the first.
type Distinct struct {
	up      Stage
	ctrl    *Control
	pending *row.Row
	done    bool
}

func NewDistinct(up Stage, ctrl *Control) *Distinct {
	return &Distinct{up: up, ctrl: ctrl}
}

func (s *Distinct) Next() (row.Row, bool, error) {
	for {
		if err := s.ctrl.check(); err != nil {
			return row.Row{}, false, err
		}
		if s.done {
			if s.pending != nil {
				r := *s.pending
				s.pending = nil
				return r, true, nil
			}
			return row.Row{}, false, nil
		}
		r, ok, err := s.up.Next()
		if err != nil {
			return row.Row{}, false, err
		}
		if !ok {
			s.done = true
			continue
		}
		if s.pending == nil {
			clone := r
			s.pending = &clone
			continue
		}
		if row.EqualValues(*s.pending, r) {
			s.pending.Multiplicity += r.Multiplicity
			continue
		}
		out := *s.pending
		clone := r
		s.pending = &clone
		return out, true, nil
	}
}

func (s *Distinct) Close() { s.up.Close() }
