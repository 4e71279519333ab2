package pipeline

import (
	"math"
	"sort"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/row"
)

// AggregateKind enumerates the reducers a Reduce stage supports.
type AggregateKind uint8

const (
	AggCount AggregateKind = iota
	AggSum
	AggMean
	AggMedian
	AggStd
	AggMin
	AggMax
	AggList
)

// Aggregate is one reducer over a row slot.
type Aggregate struct {
	Kind AggregateKind
	Slot int
}

// Reduce groups upstream rows by the group-by slots and folds each
// aggregate over the group. Output rows are laid out group keys first,
// then one slot per aggregate, in declaration order. Groups emit in
// first-seen order.
type Reduce struct {
	up      Stage
	groupBy []int
	aggs    []Aggregate
	ctrl    *Control

	out    []row.Row
	pos    int
	filled bool
}

func NewReduce(up Stage, groupBy []int, aggs []Aggregate, ctrl *Control) *Reduce {
	return &Reduce{up: up, groupBy: groupBy, aggs: aggs, ctrl: ctrl}
}

type group struct {
	key    []row.VariableValue
	rows   []row.Row
	counts uint64
}

func (s *Reduce) Next() (row.Row, bool, error) {
	if !s.filled {
		if err := s.fill(); err != nil {
			return row.Row{}, false, err
		}
	}
	if err := s.ctrl.check(); err != nil {
		return row.Row{}, false, err
	}
	if s.pos >= len(s.out) {
		return row.Row{}, false, nil
	}
	r := s.out[s.pos]
	s.pos++
	return r, true, nil
}

func (s *Reduce) fill() error {
	var order []string
	groups := map[string]*group{}
	for {
		if err := s.ctrl.check(); err != nil {
			return err
		}
		r, ok, err := s.up.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		key := make([]row.VariableValue, len(s.groupBy))
		for i, slot := range s.groupBy {
			key[i] = r.Values[slot]
		}
		k := keyString(key)
		g, exists := groups[k]
		if !exists {
			g = &group{key: key}
			groups[k] = g
			order = append(order, k)
		}
		g.rows = append(g.rows, r)
		g.counts += r.Multiplicity
	}

	for _, k := range order {
		g := groups[k]
		out := row.New(len(s.groupBy) + len(s.aggs))
		copy(out.Values, g.key)
		for i, agg := range s.aggs {
			out.Values[len(s.groupBy)+i] = fold(agg, g)
		}
		s.out = append(s.out, out)
	}
	s.filled = true
	return nil
}

func keyString(key []row.VariableValue) string {
	b := make([]byte, 0, len(key)*16)
	for _, v := range key {
		b = append(b, byte(v.Kind))
		switch v.Kind {
		case row.KindType:
			b = append(b, concept.EncodeTypeVertex(v.Type)...)
		case row.KindThing:
			b = append(b, concept.EncodeThingVertex(v.Thing.ID)...)
		case row.KindValue:
			b = append(b, v.Value.Encode()...)
		}
		b = append(b, 0)
	}
	return string(b)
}

func fold(agg Aggregate, g *group) row.VariableValue {
	if agg.Kind == AggCount {
		return row.OfValue(concept.Int(int64(g.counts)))
	}
	if agg.Kind == AggList {
		var list []concept.Value
		for _, r := range g.rows {
			if v, ok := numericOrRaw(r.Values[agg.Slot]); ok {
				list = append(list, v)
			}
		}
		return row.OfValueList(list)
	}

	var nums []float64
	allInt := true
	for _, r := range g.rows {
		v, ok := numericOrRaw(r.Values[agg.Slot])
		if !ok {
			continue
		}
		switch v.Type {
		case concept.ValueTypeInteger:
			for i := uint64(0); i < r.Multiplicity; i++ {
				nums = append(nums, float64(v.Integer))
			}
		case concept.ValueTypeDouble:
			allInt = false
			for i := uint64(0); i < r.Multiplicity; i++ {
				nums = append(nums, v.Double)
			}
		}
	}
	if len(nums) == 0 {
		return row.Empty()
	}

	switch agg.Kind {
	case AggSum:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return numResult(total, allInt)
	case AggMean:
		total := 0.0
		for _, n := range nums {
			total += n
		}
		return row.OfValue(concept.Dbl(total / float64(len(nums))))
	case AggMedian:
		sorted := append([]float64(nil), nums...)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return row.OfValue(concept.Dbl(sorted[mid]))
		}
		return row.OfValue(concept.Dbl((sorted[mid-1] + sorted[mid]) / 2))
	case AggStd:
		mean := 0.0
		for _, n := range nums {
			mean += n
		}
		mean /= float64(len(nums))
		variance := 0.0
		for _, n := range nums {
			variance += (n - mean) * (n - mean)
		}
		// Sample standard deviation.
		if len(nums) > 1 {
			variance /= float64(len(nums) - 1)
		}
		return row.OfValue(concept.Dbl(math.Sqrt(variance)))
	case AggMin:
		min := nums[0]
		for _, n := range nums {
			if n < min {
				min = n
			}
		}
		return numResult(min, allInt)
	case AggMax:
		max := nums[0]
		for _, n := range nums {
			if n > max {
				max = n
			}
		}
		return numResult(max, allInt)
	default:
		return row.Empty()
	}
}

func numResult(f float64, asInt bool) row.VariableValue {
	if asInt {
		return row.OfValue(concept.Int(int64(f)))
	}
	return row.OfValue(concept.Dbl(f))
}

// numericOrRaw extracts a slot's value payload: bare values directly,
// attribute instances through their value.
func numericOrRaw(v row.VariableValue) (concept.Value, bool) {
	switch v.Kind {
	case row.KindValue:
		return v.Value, true
	case row.KindThing:
		if v.Thing.ID.Kind == concept.KindAttribute {
			return v.Thing.Value, true
		}
	}
	return concept.Value{}, false
}

func (s *Reduce) Close() { s.up.Close() }
