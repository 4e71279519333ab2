package planner

import (
	"fmt"

	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/schema"
)

// ThingPlanner is a PlannerVertex for one constraint whose cost is
// driven by statistics-derived instance counts of its annotated type
// set; value-equality and value-bound comparisons elsewhere in the
// conjunction narrow its branching factor.
type ThingPlanner struct {
	Constraint  *pattern.Constraint
	Annotations *annotate.TypeAnnotations
	Cache       *schema.Cache
	Stats       *schema.Statistics

	// ValueBoundFactor narrows branching when this constraint's variable
	// also carries a value-equality/lower/upper comparison elsewhere in
	// the conjunction. 1.0 means no narrowing.
	ValueBoundFactor float64
}

func (p *ThingPlanner) Variables() []pattern.VariableID { return p.Constraint.Variables() }

func (p *ThingPlanner) SourceOrder() int { return p.Constraint.SourceOrder }

func (p *ThingPlanner) NewlyBound(bound map[pattern.VariableID]bool) int {
	n := 0
	for _, v := range p.Variables() {
		if !bound[v] {
			n++
		}
	}
	return n
}

func (p *ThingPlanner) String() string {
	return fmt.Sprintf("thing(%s)", p.Constraint)
}

// Cost estimates the instance count reachable through this constraint's
// primary variable's annotated type set, summing per-type counts from
// Statistics and narrowing by any attached value bound.
func (p *ThingPlanner) Cost(bound map[pattern.VariableID]bool) ElementCost {
	primary := p.Constraint.Var1
	set := p.Annotations.VariableTypes(primary)
	var total int64
	for _, t := range set.Slice() {
		total += p.Stats.Count(t)
	}
	branching := float64(total)
	if branching < 1 {
		branching = 1
	}
	factor := p.ValueBoundFactor
	if factor <= 0 {
		factor = 1
	}
	branching *= factor

	allBound := len(p.Variables()) > 0
	for _, v := range p.Variables() {
		if !bound[v] {
			allBound = false
			break
		}
	}
	if allBound {
		// Every endpoint already bound: this constraint is a pure Check,
		// cheap regardless of the underlying type's population.
		return ElementCost{PerInput: 1, PerOutput: 0, BranchingFactor: 1}
	}
	return ElementCost{PerInput: 1, PerOutput: 1, BranchingFactor: branching}
}

// TypePlanner is a PlannerVertex for a constraint whose variable ranges
// over types themselves (sub/owns/plays/relates/kind/label): free, with
// branching equal to the annotated type count.
type TypePlanner struct {
	Constraint  *pattern.Constraint
	Annotations *annotate.TypeAnnotations
}

func (p *TypePlanner) Variables() []pattern.VariableID { return p.Constraint.Variables() }
func (p *TypePlanner) SourceOrder() int                { return p.Constraint.SourceOrder }

func (p *TypePlanner) NewlyBound(bound map[pattern.VariableID]bool) int {
	n := 0
	for _, v := range p.Variables() {
		if !bound[v] {
			n++
		}
	}
	return n
}

func (p *TypePlanner) String() string { return fmt.Sprintf("type(%s)", p.Constraint) }

func (p *TypePlanner) Cost(bound map[pattern.VariableID]bool) ElementCost {
	set := p.Annotations.VariableTypes(p.Constraint.Var1)
	branching := float64(set.Len())
	if branching < 1 {
		branching = 1
	}
	return ElementCost{PerInput: 0, PerOutput: 1, BranchingFactor: branching}
}

// Input is a PlannerVertex for a variable already bound on entry to the
// block (e.g. a pipeline stage's input row). Near-free, but each input
// carried forward still costs one unit per materialised row slot, so wide
// input rows are not treated as entirely weightless.
type Input struct {
	Variable pattern.VariableID
	// BoundWidth is the number of row slots already materialised when
	// this input is considered.
	BoundWidth int
}

func (p *Input) Variables() []pattern.VariableID { return []pattern.VariableID{p.Variable} }
func (p *Input) SourceOrder() int                { return -1 }
func (p *Input) NewlyBound(bound map[pattern.VariableID]bool) int {
	if bound[p.Variable] {
		return 0
	}
	return 1
}
func (p *Input) String() string { return fmt.Sprintf("input(%v)", p.Variable) }
func (p *Input) Cost(map[pattern.VariableID]bool) ElementCost {
	return ElementCost{PerInput: float64(p.BoundWidth), PerOutput: 0, BranchingFactor: 0}
}
