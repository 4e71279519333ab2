package pattern

import "github.com/typedb/typedb-sub006/concept"

// ExprOpKind enumerates the expression-tree node kinds an assignment
// expression's unparsed tree may contain, before the expression compiler
// lowers it to a stack-machine program. Kept separate from the compiled
// op-codes in compile/expression so surface structure and compiled form
// never mix.
type ExprOpKind uint8

const (
	ExprConstant ExprOpKind = iota
	ExprVariable
	ExprAdd
	ExprSub
	ExprMul
	ExprDiv
	ExprMod
	ExprPow
	ExprListConstruct
	ExprListIndex
	ExprListIndexRange
	ExprAbs
	ExprCeil
	ExprFloor
	ExprRound
)

// ExprNode is one node of an expression's parse tree: arrays of nodes
// with integer child-indices rather than owning pointers, so a whole
// expression is a flat, easily-walked slice.
type ExprNode struct {
	Kind     ExprOpKind
	Constant concept.Value
	Variable VariableID
	Children []int // indices into the owning Expression.Nodes
}

// Expression is an assignment expression `$x = <expr>`, pre-compilation.
type Expression struct {
	Assigned VariableID
	Nodes    []ExprNode
	Root     int // index of the top-level node in Nodes
}
