package pattern

import (
	"fmt"

	"github.com/typedb/typedb-sub006/concept"
)

// ConstraintKind enumerates the constraint variants.
type ConstraintKind uint8

const (
	ConstraintIsa ConstraintKind = iota
	ConstraintHas
	ConstraintLinks
	ConstraintLabel
	ConstraintSub
	ConstraintOwns
	ConstraintPlays
	ConstraintRelates
	ConstraintComparison
	ConstraintExpressionBinding
	ConstraintFunctionCallBinding
	ConstraintRoleName
	ConstraintIid
	ConstraintKindConstraint // "kind" as in entity/relation/attribute/role keyword
	ConstraintValue
)

func (k ConstraintKind) String() string {
	names := [...]string{
		"isa", "has", "links", "label", "sub", "owns", "plays", "relates",
		"comparison", "expression-binding", "function-call-binding",
		"role-name", "iid", "kind", "value",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown-constraint"
}

// Comparator enumerates the operators a Comparison constraint may use.
type Comparator uint8

const (
	CmpEq Comparator = iota
	CmpNeq
	CmpLt
	CmpLte
	CmpGt
	CmpGte
	CmpContains
	CmpLike
)

func (c Comparator) String() string {
	switch c {
	case CmpEq:
		return "=="
	case CmpNeq:
		return "!="
	case CmpLt:
		return "<"
	case CmpLte:
		return "<="
	case CmpGt:
		return ">"
	case CmpGte:
		return ">="
	case CmpContains:
		return "contains"
	case CmpLike:
		return "like"
	default:
		return "?"
	}
}

// Constraint is one relation among variables and/or parameters. Each
// kind uses a subset of the fields below; the sum-type idiom here is
// "one struct, unused fields zeroed" rather than an interface-per-kind —
// constraints are inspected by Kind in a switch everywhere they're
// consumed (annotate, planner, write).
type Constraint struct {
	Kind ConstraintKind

	// Variable operands, meaning depends on Kind:
	//   Isa:      Var1=$thing,  Var2=$type
	//   Has:      Var1=$owner,  Var2=$attribute
	//   Links:    Var1=$relation, Var2=$player, Var3=$role
	//   Sub:      Var1=$subtype, Var2=$supertype
	//   Owns:     Var1=$owner-type, Var2=$attribute-type
	//   Plays:    Var1=$player-type, Var2=$role-type
	//   Relates:  Var1=$relation-type, Var2=$role-type
	//   Comparison: Var1 op Var2 (either side may instead be a Param)
	//   ExpressionBinding: Var1 = expression (see pattern.Expression)
	//   FunctionCallBinding: Vars = assigned output variables
	//   RoleName: Var1=$role bound to a literal role name (Param)
	//   Iid: Var1=$thing bound to a literal iid (Param)
	//   Kind: Var1=$type constrained to a Kind (entity/relation/attribute/role)
	//   Value: Var1=$value constrained to a ValueType
	//   Label: Var1=$type bound to a literal label (Param)
	Var1, Var2, Var3 VariableID
	HasVar3          bool

	Param1, Param2 ParameterID
	HasParam1      bool
	HasParam2      bool

	Comparator Comparator

	// Kind: which of entity/relation/attribute/role this constraint requires.
	KindValue concept.Kind

	// FunctionCallBinding
	FunctionName string
	Args         []VariableID
	Assigned     []VariableID
	Tabled       bool

	// ExpressionBinding: index into the owning Block's expression table.
	ExpressionIndex int

	// SourceOrder preserves textual order for deterministic
	// tie-breaking.
	SourceOrder int
}

func (c Constraint) String() string {
	return fmt.Sprintf("%s(%v)", c.Kind, c.Var1)
}

// Variables returns every VariableID this constraint touches, in
// declaration order.
func (c Constraint) Variables() []VariableID {
	out := []VariableID{c.Var1}
	switch c.Kind {
	case ConstraintHas, ConstraintLinks, ConstraintSub, ConstraintOwns, ConstraintPlays,
		ConstraintRelates, ConstraintIsa:
		out = append(out, c.Var2)
	case ConstraintComparison:
		// The right-hand side may be an interned parameter instead of a
		// variable.
		if !c.HasParam2 {
			out = append(out, c.Var2)
		}
	}
	if c.HasVar3 {
		out = append(out, c.Var3)
	}
	if c.Kind == ConstraintFunctionCallBinding {
		out = append(out, c.Args...)
		out = append(out, c.Assigned...)
	}
	return out
}
