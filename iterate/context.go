// Package iterate turns planned constraint instructions into sorted tuple
// streams and drives intersection, check, negation, optional, disjunction
// and function-call steps over them. It is the match half of execution:
// the pipeline's match stage hands each input row to ExecuteMatch and
// receives the extended rows back.
package iterate

import (
	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/schema"
)

// Context carries everything a match execution needs: the snapshot-backed
// reader, the schema cache, the pattern's type annotations and interned
// parameters, the plan-wide variable positions, the function registry,
// and the cooperative interruption channel checked between rows.
type Context struct {
	Reader      *concept.Reader
	Cache       *schema.Cache
	Annotations *annotate.TypeAnnotations
	Params      *pattern.ParameterRegistry
	Positions   map[pattern.VariableID]int
	Functions   *FunctionRegistry
	Interrupt   <-chan struct{}

	// Tables memoises tabled function answers for the current execution;
	// lazily created on first use and shared across nested scopes.
	Tables *tableState
}

func (c *Context) interrupted() bool {
	if c.Interrupt == nil {
		return false
	}
	select {
	case <-c.Interrupt:
		return true
	default:
		return false
	}
}

func (c *Context) slot(v pattern.VariableID) (int, bool) {
	s, ok := c.Positions[v]
	return s, ok
}

// typesOf returns a variable's annotated type set in key order, filtered
// to the given kinds (no filter when kinds is empty).
func (c *Context) typesOf(v pattern.VariableID, kinds ...concept.Kind) []concept.Type {
	var out []concept.Type
	for _, t := range c.Annotations.VariableTypes(v).Slice() {
		if len(kinds) == 0 {
			out = append(out, t)
			continue
		}
		for _, k := range kinds {
			if t.Kind == k {
				out = append(out, t)
				break
			}
		}
	}
	return out
}
