package pattern

import (
	"github.com/typedb/typedb-sub006/concept"
)

// ParameterID identifies an interned literal or iid appearing in a
// constraint.
type ParameterID int

// ParameterRegistry process-interns literal values referenced by
// constraints, so equal literals across a query share one ParameterID and
// the planner/executor never re-parse or re-allocate them.
type ParameterRegistry struct {
	values   []concept.Value
	iidIndex map[ParameterID][]byte
	index    map[string]ParameterID
}

func NewParameterRegistry() *ParameterRegistry {
	return &ParameterRegistry{index: make(map[string]ParameterID)}
}

func (p *ParameterRegistry) InternValue(v concept.Value) ParameterID {
	key := "v:" + string(v.Encode())
	if id, ok := p.index[key]; ok {
		return id
	}
	id := ParameterID(len(p.values))
	p.values = append(p.values, v)
	p.index[key] = id
	return id
}

// InternIID registers an instance-id literal (used by the Iid constraint),
// keeping it in a separate index from ordinary values so Value(id) callers
// never confuse the two.
func (p *ParameterRegistry) InternIID(iid []byte) ParameterID {
	key := "i:" + string(iid)
	if id, ok := p.index[key]; ok {
		return id
	}
	id := ParameterID(len(p.values))
	p.values = append(p.values, concept.Value{}) // keep ID spaces aligned
	p.index[key] = id
	if p.iidIndex == nil {
		p.iidIndex = make(map[ParameterID][]byte)
	}
	p.iidIndex[id] = iid
	return id
}

func (p *ParameterRegistry) Value(id ParameterID) concept.Value { return p.values[id] }

func (p *ParameterRegistry) IID(id ParameterID) ([]byte, bool) {
	b, ok := p.iidIndex[id]
	return b, ok
}
