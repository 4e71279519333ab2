package expression

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
)

func compileOne(t *testing.T, expr *pattern.Expression, resolve VariableTypeResolver) *Program {
	t.Helper()
	set := NewSet()
	require.NoError(t, set.Add(expr))
	programs, err := Compile(set, resolve)
	require.NoError(t, err)
	return programs[expr.Assigned]
}

func TestEvaluateConstantAddition(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 0, Root: 2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(3)},
			{Kind: pattern.ExprConstant, Constant: concept.Int(4)},
			{Kind: pattern.ExprAdd, Children: []int{0, 1}},
		},
	}
	prog := compileOne(t, expr, noInputs)
	result, err := Evaluate(prog, nil)
	require.NoError(t, err)
	require.Equal(t, int64(7), result.Single.Integer)
}

func TestEvaluateVariableLoad(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 0, Root: 1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprVariable, Variable: 5},
			{Kind: pattern.ExprAdd, Children: []int{0, 2}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(10)},
		},
	}
	resolve := func(v pattern.VariableID) (concept.ValueType, bool, error) {
		return concept.ValueTypeInteger, true, nil
	}
	prog := compileOne(t, expr, resolve)
	regs := Registers{5: Single(concept.Int(32))}
	result, err := Evaluate(prog, regs)
	require.NoError(t, err)
	require.Equal(t, int64(42), result.Single.Integer)
}

func TestEvaluateDivideByZeroErrors(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 0, Root: 2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
			{Kind: pattern.ExprConstant, Constant: concept.Int(0)},
			{Kind: pattern.ExprDiv, Children: []int{0, 1}},
		},
	}
	prog := compileOne(t, expr, noInputs)
	_, err := Evaluate(prog, nil)
	require.Error(t, err)
}

func TestEvaluateListIndexOutOfRangeErrors(t *testing.T) {
	// Build list [1,2] then index with 5, out of range.
	exprIdx := &pattern.Expression{
		Assigned: 0, Root: 4,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
			{Kind: pattern.ExprConstant, Constant: concept.Int(2)},
			{Kind: pattern.ExprListConstruct, Children: []int{0, 1}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(5)},
			{Kind: pattern.ExprListIndex, Children: []int{2, 3}},
		},
	}
	prog := compileOne(t, exprIdx, noInputs)
	_, err := Evaluate(prog, nil)
	require.Error(t, err)
}

func TestEvaluateListIndexInRange(t *testing.T) {
	exprIdx := &pattern.Expression{
		Assigned: 0, Root: 4,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(10)},
			{Kind: pattern.ExprConstant, Constant: concept.Int(20)},
			{Kind: pattern.ExprListConstruct, Children: []int{0, 1}},
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
			{Kind: pattern.ExprListIndex, Children: []int{2, 3}},
		},
	}
	prog := compileOne(t, exprIdx, noInputs)
	result, err := Evaluate(prog, nil)
	require.NoError(t, err)
	require.Equal(t, int64(20), result.Single.Integer)
}

func TestEvaluateCastIntToDoubleThenAdd(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 0, Root: 2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Int(1)},
			{Kind: pattern.ExprConstant, Constant: concept.Dbl(2.5)},
			{Kind: pattern.ExprAdd, Children: []int{0, 1}},
		},
	}
	prog := compileOne(t, expr, noInputs)
	result, err := Evaluate(prog, nil)
	require.NoError(t, err)
	require.InDelta(t, 3.5, result.Single.Double, 1e-9)
}

func TestEvaluateAbsDouble(t *testing.T) {
	expr := &pattern.Expression{
		Assigned: 0, Root: 1,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: concept.Dbl(-4.5)},
			{Kind: pattern.ExprAbs, Children: []int{0}},
		},
	}
	prog := compileOne(t, expr, noInputs)
	result, err := Evaluate(prog, nil)
	require.NoError(t, err)
	require.Equal(t, 4.5, result.Single.Double)
}

func TestEvaluateNegativeDecimalSubtraction(t *testing.T) {
	// 0 - 2.5 must land in the floored form (integer -3, fraction 0.5),
	// not wrap the unsigned fraction.
	zero := concept.Value{Type: concept.ValueTypeDecimal}
	twoAndHalf := concept.Value{Type: concept.ValueTypeDecimal, Decimal: concept.Decimal{Integer: 2, FractionE19: 5_000_000_000_000_000_000}}
	expr := &pattern.Expression{
		Assigned: 0, Root: 2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: zero},
			{Kind: pattern.ExprConstant, Constant: twoAndHalf},
			{Kind: pattern.ExprSub, Children: []int{0, 1}},
		},
	}
	prog := compileOne(t, expr, noInputs)
	result, err := Evaluate(prog, nil)
	require.NoError(t, err)
	d := result.Single.Decimal
	require.Equal(t, int64(-3), d.Integer)
	require.Equal(t, uint64(5_000_000_000_000_000_000), d.FractionE19)
	require.InDelta(t, -2.5, d.Float(), 1e-9)
}

func TestEvaluateDecimalAdditionRoundTrip(t *testing.T) {
	a := concept.Value{Type: concept.ValueTypeDecimal, Decimal: concept.Decimal{Integer: 1, FractionE19: 7_500_000_000_000_000_000}}
	b := concept.Value{Type: concept.ValueTypeDecimal, Decimal: concept.Decimal{Integer: 0, FractionE19: 7_500_000_000_000_000_000}}
	expr := &pattern.Expression{
		Assigned: 0, Root: 2,
		Nodes: []pattern.ExprNode{
			{Kind: pattern.ExprConstant, Constant: a},
			{Kind: pattern.ExprConstant, Constant: b},
			{Kind: pattern.ExprAdd, Children: []int{0, 1}},
		},
	}
	prog := compileOne(t, expr, noInputs)
	result, err := Evaluate(prog, nil)
	require.NoError(t, err)
	require.InDelta(t, 2.5, result.Single.Decimal.Float(), 1e-9)
	require.Less(t, result.Single.Decimal.FractionE19, concept.DecimalFractionUnit)
}
