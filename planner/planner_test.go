package planner

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/schema"
)

func buildPersonSchema(t *testing.T) (*schema.Cache, concept.Type, concept.Type) {
	t.Helper()
	s := schema.NewSchema()
	person := s.DefineType(concept.Label{Name: "person"}, concept.KindEntity, nil)
	age := s.DefineAttributeType(concept.Label{Name: "age"}, nil, concept.ValueTypeInteger)
	s.DeclareOwns(person, age)
	cache, err := s.Build(1)
	require.NoError(t, err)
	return cache, person, age
}

func TestPlanSimpleHasProducesIntersection(t *testing.T) {
	cache, person, age := buildPersonSchema(t)
	stats := schema.NewStatistics()
	stats.SetCount(person, 100)
	stats.SetCount(age, 100)

	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a := block.Registry.Named("a")
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a},
	}

	annotations, err := annotate.Annotate(block, cache)
	require.NoError(t, err)

	plan, err := Plan(block.Root, annotations, cache, stats, nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, StepIntersection, plan.Steps[0].Kind)
	require.Len(t, plan.Steps[0].Instructions, 1)
	require.Equal(t, 2, plan.FinalWidth)
	require.True(t, plan.NamedOutputs[p])
	require.True(t, plan.NamedOutputs[a])
}

func TestPlanBoundInputProducesCheckStep(t *testing.T) {
	cache, person, age := buildPersonSchema(t)
	stats := schema.NewStatistics()
	stats.SetCount(person, 100)
	stats.SetCount(age, 100)

	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a := block.Registry.Named("a")
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a},
	}

	annotations, err := annotate.Annotate(block, cache)
	require.NoError(t, err)

	// Both endpoints already bound on entry (e.g. supplied by an outer
	// pipeline row) -> the vertex degenerates to a pure Check.
	bound := map[pattern.VariableID]bool{p: true, a: true}
	plan, err := Plan(block.Root, annotations, cache, stats, bound)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, StepCheck, plan.Steps[0].Kind)
}

func TestPlanValueBoundFactorNarrowsBranching(t *testing.T) {
	cache, person, age := buildPersonSchema(t)
	stats := schema.NewStatistics()
	stats.SetCount(person, 100)
	stats.SetCount(age, 1_000_000)

	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a := block.Registry.Named("a")
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a, SourceOrder: 0},
		{Kind: pattern.ConstraintComparison, Var1: a, Comparator: pattern.CmpEq, SourceOrder: 1},
	}

	annotations, err := annotate.Annotate(block, cache)
	require.NoError(t, err)

	vertices := buildVertices(block.Root, annotations, cache, stats)
	require.Len(t, vertices, 1, "the Comparison constraint must not get its own vertex")

	tp, ok := vertices[0].(*ThingPlanner)
	require.True(t, ok)
	require.InDelta(t, 0.01, tp.ValueBoundFactor, 1e-9)
}

func TestPlanDisjunctionProducesBranches(t *testing.T) {
	cache, person, age := buildPersonSchema(t)
	stats := schema.NewStatistics()
	stats.SetCount(person, 10)
	stats.SetCount(age, 10)

	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a1 := block.Registry.Named("a1")
	a2 := block.Registry.Named("a2")

	branch1 := &pattern.Conjunction{Constraints: []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a1},
	}}
	branch2 := &pattern.Conjunction{Constraints: []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a2},
	}}
	block.Root.Nested = []pattern.Nested{
		{Kind: pattern.NestedDisjunction, Branches: []*pattern.Conjunction{branch1, branch2}},
	}

	annotations, err := annotate.Annotate(block, cache)
	require.NoError(t, err)

	bound := map[pattern.VariableID]bool{p: true}
	plan, err := Plan(block.Root, annotations, cache, stats, bound)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, StepDisjunction, plan.Steps[0].Kind)
	require.Len(t, plan.Steps[0].Branches, 2)
}

func TestPlanNegationProducesSubPlan(t *testing.T) {
	cache, person, age := buildPersonSchema(t)
	stats := schema.NewStatistics()
	stats.SetCount(person, 10)
	stats.SetCount(age, 10)

	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a := block.Registry.Named("a")

	inner := &pattern.Conjunction{Constraints: []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a},
	}}
	block.Root.Nested = []pattern.Nested{
		{Kind: pattern.NestedNegation, Branches: []*pattern.Conjunction{inner}},
	}

	annotations, err := annotate.Annotate(block, cache)
	require.NoError(t, err)

	bound := map[pattern.VariableID]bool{p: true}
	plan, err := Plan(block.Root, annotations, cache, stats, bound)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Equal(t, StepNegation, plan.Steps[0].Kind)
	require.NotNil(t, plan.Steps[0].SubPlan)
	require.Len(t, plan.Steps[0].SubPlan.Steps, 1)
}

func TestInstructionForUnboundSortsForward(t *testing.T) {
	cons := &pattern.Constraint{Kind: pattern.ConstraintHas, Var1: 0, Var2: 1}
	instr := instructionFor(cons, map[pattern.VariableID]bool{}, 0)
	require.Equal(t, DirectionForward, instr.Direction)
	require.Equal(t, IterateUnbound, instr.Mode)
}

func TestInstructionForBothBound(t *testing.T) {
	cons := &pattern.Constraint{Kind: pattern.ConstraintHas, Var1: 0, Var2: 1}
	bound := map[pattern.VariableID]bool{0: true, 1: true}
	instr := instructionFor(cons, bound, -1)
	require.Equal(t, IterateBoundFromBoundTo, instr.Mode)
}

func TestInstructionForReversesWhenOnlyToBound(t *testing.T) {
	cons := &pattern.Constraint{Kind: pattern.ConstraintHas, Var1: 0, Var2: 1}
	bound := map[pattern.VariableID]bool{1: true}
	instr := instructionFor(cons, bound, 0)
	require.Equal(t, DirectionReverse, instr.Direction)
	require.Equal(t, IterateBoundFrom, instr.Mode)
}

func TestInstructionForInvertedWhenSortingOnToSide(t *testing.T) {
	cons := &pattern.Constraint{Kind: pattern.ConstraintHas, Var1: 0, Var2: 1}
	instr := instructionFor(cons, map[pattern.VariableID]bool{}, 1)
	require.Equal(t, IterateUnboundInverted, instr.Mode)
}

func TestIntersectionGroupsConstraintsSharingSortVar(t *testing.T) {
	cache, person, age := buildPersonSchema(t)
	stats := schema.NewStatistics()
	stats.SetCount(person, 10)
	stats.SetCount(age, 10)

	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a1 := block.Registry.Named("a1")
	a2 := block.Registry.Named("a2")
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a1, SourceOrder: 0},
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a2, SourceOrder: 1},
	}

	annotations, err := annotate.Annotate(block, cache)
	require.NoError(t, err)
	plan, err := Plan(block.Root, annotations, cache, stats, nil)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Len(t, plan.Steps[0].Instructions, 2)
	require.Equal(t, p, plan.Steps[0].SortVar)
	require.Equal(t, 3, plan.FinalWidth)
}

func TestExplainRendersStepTree(t *testing.T) {
	cache, person, age := buildPersonSchema(t)
	stats := schema.NewStatistics()
	stats.SetCount(person, 10)
	stats.SetCount(age, 10)

	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a := block.Registry.Named("a")
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: a},
	}

	annotations, err := annotate.Annotate(block, cache)
	require.NoError(t, err)

	plan, err := Plan(block.Root, annotations, cache, stats, nil)
	require.NoError(t, err)

	out := Explain(plan)
	require.Contains(t, out, "MatchExecutable")
	require.Contains(t, out, "intersection")
}
