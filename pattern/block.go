package pattern

// NestedKind distinguishes the three nested-pattern forms a Conjunction
// may contain.
type NestedKind uint8

const (
	NestedDisjunction NestedKind = iota
	NestedNegation
	NestedOptional
)

// Nested is one nested pattern inside a Conjunction: a Disjunction (a list
// of alternative Conjunctions), a Negation (a single Conjunction, pure
// antijoin), or an Optional (a single Conjunction that may fail to match
// without failing the outer row).
type Nested struct {
	Kind     NestedKind
	Branches []*Conjunction // Disjunction: >=2 branches; Negation/Optional: exactly 1
}

// Conjunction is an AND of constraints plus nested (disjunction/
// negation/optional) patterns, each with their own scope.
type Conjunction struct {
	Constraints []Constraint
	Nested      []Nested

	// Expressions assigned in this conjunction's scope, indexed by
	// ExpressionIndex on the corresponding ExpressionBinding constraint.
	Expressions []Expression
}

// Block is the top-level tree of conjunctions, the unit of type
// inference. A Block owns the Registry and ParameterRegistry for every
// variable/parameter reachable from its root Conjunction.
type Block struct {
	Root       *Conjunction
	Registry   *Registry
	Parameters *ParameterRegistry

	// SelectedVariables is the block's outer projection — the variables a
	// caller (pipeline Select stage, or a nested pattern's parent) cares
	// about. Disjunction branches pad missing slots with Empty relative
	// to this list.
	SelectedVariables []VariableID
}

func NewBlock() *Block {
	return &Block{
		Root:       &Conjunction{},
		Registry:   NewRegistry(),
		Parameters: NewParameterRegistry(),
	}
}

// Walk calls f on every Conjunction reachable from the block's root,
// including nested branches, depth-first, in source order. Used by the
// type-annotation engine and the planner's variable-constraint graph
// builder.
func (b *Block) Walk(f func(c *Conjunction, depth int)) {
	var rec func(c *Conjunction, depth int)
	rec = func(c *Conjunction, depth int) {
		f(c, depth)
		for _, n := range c.Nested {
			for _, branch := range n.Branches {
				rec(branch, depth+1)
			}
		}
	}
	rec(b.Root, 0)
}

// AllConstraints returns every constraint in this conjunction only (not
// nested scopes) — what the planner's top-level search operates over;
// nested scopes are planned independently.
func (c *Conjunction) AllConstraints() []Constraint { return c.Constraints }
