// Package expression implements the expression compiler: assignment
// expressions lower into typed stack-machine programs, with variable
// dependencies resolved ahead of time, cycles rejected, and implicit
// numeric casts inserted during codegen.
package expression

import "github.com/typedb/typedb-sub006/concept"

// OpCode is one stack-machine instruction. Binary arithmetic ops are
// specialized per operand value type so the evaluator never branches on
// type at run time — the compiler already resolved that.
type OpCode uint8

const (
	OpLoadConstant OpCode = iota
	OpLoadVariable

	OpAddInt
	OpSubInt
	OpMulInt
	OpDivInt
	OpModInt
	OpPowInt

	OpAddDouble
	OpSubDouble
	OpMulDouble
	OpDivDouble
	OpModDouble
	OpPowDouble

	OpAddDecimal
	OpSubDecimal
	OpMulDecimal
	OpDivDecimal

	OpCastIntToDouble
	OpCastDecimalToDouble

	OpListConstruct
	OpListIndex
	OpListIndexRange

	OpAbsInt
	OpAbsDouble
	OpCeilDouble
	OpFloorDouble
	OpRoundDouble
)

func (o OpCode) String() string {
	names := [...]string{
		"load-constant", "load-variable",
		"add-int", "sub-int", "mul-int", "div-int", "mod-int", "pow-int",
		"add-double", "sub-double", "mul-double", "div-double", "mod-double", "pow-double",
		"add-decimal", "sub-decimal", "mul-decimal", "div-decimal",
		"cast-int-to-double", "cast-decimal-to-double",
		"list-construct", "list-index", "list-index-range",
		"abs-int", "abs-double", "ceil-double", "floor-double", "round-double",
	}
	if int(o) < len(names) {
		return names[o]
	}
	return "unknown-op"
}

// Instruction is one compiled op-code plus its static operands.
type Instruction struct {
	Op OpCode

	// OpLoadConstant
	Constant concept.Value

	// OpLoadVariable
	RegisterIndex int

	// OpListConstruct
	ListLength int

	// OpListIndexRange: constant bounds are pushed beforehand as values, so
	// no extra fields are needed here.
}

// ReturnType records a compiled expression's result shape: its base
// category (value type) and whether it returns a list.
type ReturnType struct {
	ValueType concept.ValueType
	IsList    bool
}

// Program is a compiled assignment expression: a flat instruction
// sequence plus its declared input registers and return type.
type Program struct {
	Instructions []Instruction
	InputCount   int
	Return       ReturnType
}
