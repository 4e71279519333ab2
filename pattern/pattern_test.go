package pattern

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/concept"
)

func TestRegistryReusesNamedVariables(t *testing.T) {
	r := NewRegistry()
	a := r.Named("x")
	b := r.Named("x")
	require.Equal(t, a, b)
}

func TestNarrowRejectsIncompatibleCategory(t *testing.T) {
	r := NewRegistry()
	id := r.Named("x")
	require.NoError(t, r.Narrow(id, CategoryValue))
	require.Error(t, r.Narrow(id, CategoryType))
}

func TestNarrowIsIdempotent(t *testing.T) {
	r := NewRegistry()
	id := r.Named("x")
	require.NoError(t, r.Narrow(id, CategoryValue))
	require.NoError(t, r.Narrow(id, CategoryValue))
}

func TestParameterRegistryInterningDedupes(t *testing.T) {
	p := NewParameterRegistry()
	a := p.InternValue(concept.Int(42))
	b := p.InternValue(concept.Int(42))
	require.Equal(t, a, b)
	c := p.InternValue(concept.Int(43))
	require.NotEqual(t, a, c)
}

func TestBlockWalkVisitsNestedConjunctions(t *testing.T) {
	b := NewBlock()
	inner := &Conjunction{}
	b.Root.Nested = append(b.Root.Nested, Nested{Kind: NestedNegation, Branches: []*Conjunction{inner}})

	var visited []*Conjunction
	b.Walk(func(c *Conjunction, depth int) { visited = append(visited, c) })
	require.Len(t, visited, 2)
	require.Same(t, b.Root, visited[0])
	require.Same(t, inner, visited[1])
}

func TestConstraintVariablesForHas(t *testing.T) {
	c := Constraint{Kind: ConstraintHas, Var1: 0, Var2: 1}
	require.Equal(t, []VariableID{0, 1}, c.Variables())
}
