package expression

import (
	"math"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/typeerr"
)

// ExpressionValue is a register slot's content: either a single Value
// or a list of Values.
type ExpressionValue struct {
	Single concept.Value
	List   []concept.Value
	IsList bool
}

func Single(v concept.Value) ExpressionValue { return ExpressionValue{Single: v} }
func List(vs []concept.Value) ExpressionValue {
	return ExpressionValue{List: vs, IsList: true}
}

// Registers holds the input bindings a compiled Program reads via
// OpLoadVariable, keyed by the same RegisterIndex the compiler assigned.
type Registers map[int]ExpressionValue

// Evaluate runs a compiled Program's instructions against a stack and
// the given register file. Runtime errors (divide-by-zero,
// list-index-out-of-range, cast-fail) are returned as a typed
// ExpressionEvaluationError rather than panicking.
func Evaluate(prog *Program, regs Registers) (ExpressionValue, error) {
	var stack []ExpressionValue
	push := func(v ExpressionValue) { stack = append(stack, v) }
	pop := func() ExpressionValue {
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v
	}

	for _, instr := range prog.Instructions {
		switch instr.Op {
		case OpLoadConstant:
			push(Single(instr.Constant))

		case OpLoadVariable:
			v, ok := regs[instr.RegisterIndex]
			if !ok {
				return ExpressionValue{}, typeerr.CastFailed("<unbound register>", "expression-input")
			}
			push(v)

		case OpAddInt, OpSubInt, OpMulInt, OpDivInt, OpModInt, OpPowInt:
			if err := evalIntBinary(&stack, instr.Op); err != nil {
				return ExpressionValue{}, err
			}

		case OpAddDouble, OpSubDouble, OpMulDouble, OpDivDouble, OpModDouble, OpPowDouble:
			if err := evalDoubleBinary(&stack, instr.Op); err != nil {
				return ExpressionValue{}, err
			}

		case OpAddDecimal, OpSubDecimal, OpMulDecimal, OpDivDecimal:
			if err := evalDecimalBinary(&stack, instr.Op); err != nil {
				return ExpressionValue{}, err
			}

		case OpCastIntToDouble:
			right := pop()
			push(Single(concept.Dbl(float64(right.Single.Integer))))

		case OpCastDecimalToDouble:
			right := pop()
			push(Single(concept.Dbl(right.Single.Decimal.Float())))

		case OpAbsInt:
			v := pop()
			i := v.Single.Integer
			if i < 0 {
				i = -i
			}
			push(Single(concept.Int(i)))

		case OpAbsDouble:
			v := pop()
			f := v.Single.Double
			if f < 0 {
				f = -f
			}
			push(Single(concept.Dbl(f)))

		case OpCeilDouble:
			v := pop()
			push(Single(concept.Dbl(math.Ceil(v.Single.Double))))

		case OpFloorDouble:
			v := pop()
			push(Single(concept.Dbl(math.Floor(v.Single.Double))))

		case OpRoundDouble:
			v := pop()
			push(Single(concept.Dbl(math.Round(v.Single.Double))))

		case OpListConstruct:
			elems := make([]concept.Value, instr.ListLength)
			for i := instr.ListLength - 1; i >= 0; i-- {
				elems[i] = pop().Single
			}
			push(List(elems))

		case OpListIndex:
			idx := pop()
			lst := pop()
			i := int(idx.Single.Integer)
			if i < 0 || i >= len(lst.List) {
				return ExpressionValue{}, typeerr.ListIndexOutOfRange(i, len(lst.List))
			}
			push(Single(lst.List[i]))

		case OpListIndexRange:
			end := pop()
			start := pop()
			lst := pop()
			s, e := int(start.Single.Integer), int(end.Single.Integer)
			if s < 0 || e > len(lst.List) || s > e {
				return ExpressionValue{}, typeerr.ListIndexOutOfRange(s, len(lst.List))
			}
			out := make([]concept.Value, e-s)
			copy(out, lst.List[s:e])
			push(List(out))
		}
	}

	if len(stack) != 1 {
		return ExpressionValue{}, typeerr.CastFailed("expression", "single-result")
	}
	return stack[0], nil
}

func evalIntBinary(stack *[]ExpressionValue, op OpCode) error {
	s := *stack
	right := s[len(s)-1].Single.Integer
	left := s[len(s)-2].Single.Integer
	s = s[:len(s)-2]
	var result int64
	switch op {
	case OpAddInt:
		result = left + right
	case OpSubInt:
		result = left - right
	case OpMulInt:
		result = left * right
	case OpDivInt:
		if right == 0 {
			return typeerr.DivideByZero("/")
		}
		result = left / right
	case OpModInt:
		if right == 0 {
			return typeerr.DivideByZero("%")
		}
		result = left % right
	case OpPowInt:
		result = intPow(left, right)
	}
	*stack = append(s, Single(concept.Int(result)))
	return nil
}

func evalDoubleBinary(stack *[]ExpressionValue, op OpCode) error {
	s := *stack
	right := s[len(s)-1].Single.Double
	left := s[len(s)-2].Single.Double
	s = s[:len(s)-2]
	var result float64
	switch op {
	case OpAddDouble:
		result = left + right
	case OpSubDouble:
		result = left - right
	case OpMulDouble:
		result = left * right
	case OpDivDouble:
		if right == 0 {
			return typeerr.DivideByZero("/")
		}
		result = left / right
	case OpModDouble:
		if right == 0 {
			return typeerr.DivideByZero("%")
		}
		result = math.Mod(left, right)
	case OpPowDouble:
		result = math.Pow(left, right)
	}
	*stack = append(s, Single(concept.Dbl(result)))
	return nil
}

func evalDecimalBinary(stack *[]ExpressionValue, op OpCode) error {
	s := *stack
	right := s[len(s)-1].Single.Decimal
	left := s[len(s)-2].Single.Decimal
	s = s[:len(s)-2]
	leftF := left.Float()
	rightF := right.Float()
	var resultF float64
	switch op {
	case OpAddDecimal:
		resultF = leftF + rightF
	case OpSubDecimal:
		resultF = leftF - rightF
	case OpMulDecimal:
		resultF = leftF * rightF
	case OpDivDecimal:
		if rightF == 0 {
			return typeerr.DivideByZero("/")
		}
		resultF = leftF / rightF
	}
	*stack = append(s, Single(concept.Value{Type: concept.ValueTypeDecimal, Decimal: decimalFromFloat(resultF)}))
	return nil
}

// decimalFromFloat renders a float into the canonical decimal form: a
// floored integer part and a non-negative fraction, so negative results
// never wrap the unsigned fraction.
func decimalFromFloat(f float64) concept.Decimal {
	floor := math.Floor(f)
	intPart := int64(floor)
	frac := uint64(math.Round((f - floor) * 1e19))
	if frac >= concept.DecimalFractionUnit {
		intPart++
		frac = 0
	}
	return concept.Decimal{Integer: intPart, FractionE19: frac}
}

func intPow(base, exp int64) int64 {
	if exp < 0 {
		return 0
	}
	result := int64(1)
	for i := int64(0); i < exp; i++ {
		result *= base
	}
	return result
}
