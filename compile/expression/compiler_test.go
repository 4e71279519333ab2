package expression

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
)

// noInputs never resolves anything; used for expressions whose
// variables are all internally assigned or constants.
func noInputs(pattern.VariableID) (concept.ValueType, bool, error) {
	return 0, false, nil
}

func TestCompileConstantAddition(t *testing.T) {
	// $x = 1 + 2
	expr := &pattern.Expression{
		Assigned: 0,
		Root:     2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
			{Kind: pattern.ExprConstant, Constant: concept.Int(2)},
			{Kind: pattern.ExprAdd, Children: []int{0, 1}},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(expr))

	programs, err := Compile(set, noInputs)
	require.NoError(t, err)
	prog := programs[0]
	require.Equal(t, concept.ValueTypeInteger, prog.Return.ValueType)
	require.False(t, prog.Return.IsList)
	require.Equal(t, []Instruction{
		{Op: OpLoadConstant, Constant: concept.Int(1)},
		{Op: OpLoadConstant, Constant: concept.Int(2)},
		{Op: OpAddInt},
	}, prog.Instructions)
}

func TestCompileImplicitCastIntToDouble(t *testing.T) {
	// $x = 1 + 2.0 -- left is Integer, right is Double; cast inserted before the op.
	expr := &pattern.Expression{
		Assigned: 0,
		Root:     2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
			{Kind: pattern.ExprConstant, Constant: concept.Dbl(2.0)},
			{Kind: pattern.ExprAdd, Children: []int{0, 1}},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(expr))

	programs, err := Compile(set, noInputs)
	require.NoError(t, err)
	prog := programs[0]
	// Mixed operands promote to Double; the Integer side casts right
	// after its load.
	require.Equal(t, concept.ValueTypeDouble, prog.Return.ValueType)
	require.Equal(t, []Instruction{
		{Op: OpLoadConstant, Constant: concept.Int(1)},
		{Op: OpCastIntToDouble},
		{Op: OpLoadConstant, Constant: concept.Dbl(2.0)},
		{Op: OpAddDouble},
	}, prog.Instructions)
}

func TestCompileDependencyOrderDFS(t *testing.T) {
	// $y = $x + 1, $x = 5 -- compiling $y must first compile $x.
	exprX := &pattern.Expression{
		Assigned: 10,
		Root:     0,
		Nodes:    []pattern.ExprNode{{Kind: pattern.ExprConstant, Constant: concept.Int(5)}},
	}
	exprY := &pattern.Expression{
		Assigned: 20,
		Root:     1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprVariable, Variable: 10},
			{Kind: pattern.ExprAdd, Children: []int{0, 1}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
		},
	}
	// fix up: node 1 is Add of node 0 (the $x load) and node 2 (constant 1)
	exprY.Nodes[1].Children = []int{0, 2}
	exprY.Root = 1

	set := NewSet()
	require.NoError(t, set.Add(exprX))
	require.NoError(t, set.Add(exprY))

	programs, err := Compile(set, noInputs)
	require.NoError(t, err)
	require.Contains(t, programs, pattern.VariableID(10))
	require.Contains(t, programs, pattern.VariableID(20))
	require.Equal(t, concept.ValueTypeInteger, programs[20].Return.ValueType)
}

func TestCompileCircularDependencyDetected(t *testing.T) {
	// $x = $y + 1, $y = $x + 1 -- mutually dependent, must be rejected.
	exprX := &pattern.Expression{
		Assigned: 1,
		Root:     1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprVariable, Variable: 2},
			{Kind: pattern.ExprAdd, Children: []int{0, 2}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
		},
	}
	exprY := &pattern.Expression{
		Assigned: 2,
		Root:     1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprVariable, Variable: 1},
			{Kind: pattern.ExprAdd, Children: []int{0, 2}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(exprX))
	require.NoError(t, set.Add(exprY))

	_, err := Compile(set, noInputs)
	require.Error(t, err)
}

func TestCompileVariableResolvedExternally(t *testing.T) {
	// $y = $age + 1, where $age is bound by a match pattern, not assigned.
	expr := &pattern.Expression{
		Assigned: 1,
		Root:     1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprVariable, Variable: 99},
			{Kind: pattern.ExprAdd, Children: []int{0, 2}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(expr))

	resolve := func(v pattern.VariableID) (concept.ValueType, bool, error) {
		if v == 99 {
			return concept.ValueTypeInteger, true, nil
		}
		return 0, false, nil
	}
	programs, err := Compile(set, resolve)
	require.NoError(t, err)
	require.Equal(t, concept.ValueTypeInteger, programs[1].Return.ValueType)
}

func TestCompileUnresolvedVariableErrors(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 1,
		Root:     1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprVariable, Variable: 99},
			{Kind: pattern.ExprAdd, Children: []int{0, 2}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(expr))

	_, err := Compile(set, noInputs)
	require.Error(t, err)
}

func TestCompileDuplicateAssignmentRejected(t *testing.T) {
	expr1 := &pattern.Expression{Assigned: 5, Root: 0, Nodes: []pattern.ExprNode{{Kind: pattern.ExprConstant, Constant: concept.Int(1)}}}
	expr2 := &pattern.Expression{Assigned: 5, Root: 0, Nodes: []pattern.ExprNode{{Kind: pattern.ExprConstant, Constant: concept.Int(2)}}}
	set := NewSet()
	require.NoError(t, set.Add(expr1))
	require.Error(t, set.Add(expr2))
}

func TestCompileUnaryAbs(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 0,
		Root:     1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Dbl(-3.5)},
			{Kind: pattern.ExprAbs, Children: []int{0}},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(expr))
	programs, err := Compile(set, noInputs)
	require.NoError(t, err)
	require.Equal(t, OpAbsDouble, programs[0].Instructions[1].Op)
}

func TestCompileListConstruct(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 0,
		Root:     2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
			{Kind: pattern.ExprConstant, Constant: concept.Int(2)},
			{Kind: pattern.ExprListConstruct, Children: []int{0, 1}},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(expr))
	programs, err := Compile(set, noInputs)
	require.NoError(t, err)
	require.True(t, programs[0].Return.IsList)
	last := programs[0].Instructions[len(programs[0].Instructions)-1]
	require.Equal(t, OpListConstruct, last.Op)
	require.Equal(t, 2, last.ListLength)
}

func TestCompileUnsupportedOperandsRejected(t *testing.T) {
	// Strings don't support "+" in this op family table.
	expr := &pattern.Expression{
		Assigned: 0,
		Root:     2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Str("a")},
			{Kind: pattern.ExprConstant, Constant: concept.Str("b")},
			{Kind: pattern.ExprAdd, Children: []int{0, 1}},
		},
	}
	set := NewSet()
	require.NoError(t, set.Add(expr))
	_, err := Compile(set, noInputs)
	require.Error(t, err)
}
