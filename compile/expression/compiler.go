package expression

import (
	"fmt"

	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/typeerr"
)

// VariableTypeResolver answers a variable's value type, consulting
// either another assignment's already-compiled return type, the
// TypeAnnotations' resolved attribute value type, or an input binding.
type VariableTypeResolver func(v pattern.VariableID) (concept.ValueType, bool, error)

// Set indexes every ExpressionBinding constraint in a block's
// conjunction by its assigned variable, rejecting duplicate assignment
// to the same variable within one scope.
type Set struct {
	byVariable map[pattern.VariableID]*pattern.Expression
}

func NewSet() *Set { return &Set{byVariable: map[pattern.VariableID]*pattern.Expression{}} }

func (s *Set) Add(e *pattern.Expression) error {
	if _, exists := s.byVariable[e.Assigned]; exists {
		return typeerr.MultipleAssignments(fmt.Sprintf("$%d", e.Assigned), nil)
	}
	s.byVariable[e.Assigned] = e
	return nil
}

func (s *Set) Lookup(v pattern.VariableID) (*pattern.Expression, bool) {
	e, ok := s.byVariable[v]
	return e, ok
}

// Compile compiles every expression in the set to a Program, resolving
// dependency order via DFS-with-visiting-set cycle detection.
func Compile(set *Set, resolve VariableTypeResolver) (map[pattern.VariableID]*Program, error) {
	programs := make(map[pattern.VariableID]*Program, len(set.byVariable))
	visiting := map[pattern.VariableID]bool{}
	done := map[pattern.VariableID]bool{}

	var compileOne func(v pattern.VariableID, trail []string) error
	compileOne = func(v pattern.VariableID, trail []string) error {
		if done[v] {
			return nil
		}
		if visiting[v] {
			return typeerr.CircularDependency(fmt.Sprintf("$%d", v), append(trail, fmt.Sprintf("$%d", v)))
		}
		expr, ok := set.byVariable[v]
		if !ok {
			return nil // not an assigned variable; resolved externally
		}
		visiting[v] = true
		defer func() { visiting[v] = false }()

		// Resolve dependencies first (DFS), so their return types are
		// available when this expression's own operators are compiled.
		for _, node := range expr.Nodes {
			if node.Kind == pattern.ExprVariable {
				if dep, isAssigned := set.byVariable[node.Variable]; isAssigned && dep != expr {
					if err := compileOne(node.Variable, append(trail, fmt.Sprintf("$%d", v))); err != nil {
						return err
					}
				}
			}
		}

		prog, err := compileExpression(expr, resolve, programs)
		if err != nil {
			return err
		}
		programs[v] = prog
		done[v] = true
		return nil
	}

	for v := range set.byVariable {
		if err := compileOne(v, nil); err != nil {
			return nil, err
		}
	}
	return programs, nil
}

// compileExpression lowers one expression's tree into a flat
// instruction sequence, left-to-right, inserting casts where operand
// value types differ.
func compileExpression(expr *pattern.Expression, resolve VariableTypeResolver, compiled map[pattern.VariableID]*Program) (*Program, error) {
	var instrs []Instruction
	var peeked concept.ValueType
	var emit func(nodeIdx int) (concept.ValueType, error)

	emit = func(nodeIdx int) (concept.ValueType, error) {
		node := expr.Nodes[nodeIdx]
		switch node.Kind {
		case pattern.ExprConstant:
			instrs = append(instrs, Instruction{Op: OpLoadConstant, Constant: node.Constant})
			return node.Constant.Type, nil

		case pattern.ExprVariable:
			if dep, ok := compiled[node.Variable]; ok {
				instrs = append(instrs, Instruction{Op: OpLoadVariable, RegisterIndex: int(node.Variable)})
				return dep.Return.ValueType, nil
			}
			vt, found, err := resolve(node.Variable)
			if err != nil {
				return 0, err
			}
			if !found {
				return 0, typeerr.NoUniqueValueType(fmt.Sprintf("$%d", node.Variable))
			}
			instrs = append(instrs, Instruction{Op: OpLoadVariable, RegisterIndex: int(node.Variable)})
			return vt, nil

		case pattern.ExprAdd, pattern.ExprSub, pattern.ExprMul, pattern.ExprDiv, pattern.ExprMod, pattern.ExprPow:
			if len(node.Children) != 2 {
				return 0, fmt.Errorf("expression: binary op requires 2 children, got %d", len(node.Children))
			}
			leftType, err := peekType(expr, node.Children[0], resolve, compiled)
			if err != nil {
				return 0, err
			}
			rightType, err := peekType(expr, node.Children[1], resolve, compiled)
			if err != nil {
				return 0, err
			}
			target, ok := promote(leftType, rightType)
			if !ok {
				return 0, typeerr.UnsupportedOperands(opName(node.Kind), leftType.String(), rightType.String(), nil)
			}
			if _, err := emit(node.Children[0]); err != nil {
				return 0, err
			}
			if leftType != target {
				castOp, ok := implicitCast(leftType, target)
				if !ok {
					return 0, typeerr.UnsupportedOperands(opName(node.Kind), leftType.String(), rightType.String(), nil)
				}
				instrs = append(instrs, Instruction{Op: castOp})
			}
			if _, err := emit(node.Children[1]); err != nil {
				return 0, err
			}
			if rightType != target {
				castOp, ok := implicitCast(rightType, target)
				if !ok {
					return 0, typeerr.UnsupportedOperands(opName(node.Kind), leftType.String(), rightType.String(), nil)
				}
				instrs = append(instrs, Instruction{Op: castOp})
			}
			return emitBinaryOp(&instrs, node.Kind, target)

		case pattern.ExprAbs, pattern.ExprCeil, pattern.ExprFloor, pattern.ExprRound:
			if len(node.Children) != 1 {
				return 0, fmt.Errorf("expression: unary op requires 1 child, got %d", len(node.Children))
			}
			t, err := emit(node.Children[0])
			if err != nil {
				return 0, err
			}
			return emitUnaryOp(&instrs, node.Kind, t)

		case pattern.ExprListConstruct:
			for _, child := range node.Children {
				if _, err := emit(child); err != nil {
					return 0, err
				}
			}
			instrs = append(instrs, Instruction{Op: OpListConstruct, ListLength: len(node.Children)})
			return 0, nil // list-ness tracked separately in ReturnType.IsList

		case pattern.ExprListIndex:
			if len(node.Children) != 2 {
				return 0, fmt.Errorf("expression: list-index requires list + index children")
			}
			if _, err := emit(node.Children[0]); err != nil {
				return 0, err
			}
			if _, err := emit(node.Children[1]); err != nil {
				return 0, err
			}
			instrs = append(instrs, Instruction{Op: OpListIndex})
			return 0, nil

		case pattern.ExprListIndexRange:
			if len(node.Children) != 3 {
				return 0, fmt.Errorf("expression: list-index-range requires list + start + end children")
			}
			for _, child := range node.Children {
				if _, err := emit(child); err != nil {
					return 0, err
				}
			}
			instrs = append(instrs, Instruction{Op: OpListIndexRange})
			return 0, nil
		}
		return 0, fmt.Errorf("expression: unhandled node kind %d", node.Kind)
	}

	rt, err := emit(expr.Root)
	if err != nil {
		return nil, err
	}
	peeked = rt

	isList := false
	switch expr.Nodes[expr.Root].Kind {
	case pattern.ExprListConstruct, pattern.ExprListIndexRange:
		isList = true
	}

	return &Program{
		Instructions: instrs,
		Return:       ReturnType{ValueType: peeked, IsList: isList},
	}, nil
}

// opName renders an ExprOpKind as the operator text used in error messages.
func opName(kind pattern.ExprOpKind) string {
	switch kind {
	case pattern.ExprAdd:
		return "+"
	case pattern.ExprSub:
		return "-"
	case pattern.ExprMul:
		return "*"
	case pattern.ExprDiv:
		return "/"
	case pattern.ExprMod:
		return "%"
	case pattern.ExprPow:
		return "^"
	case pattern.ExprAbs:
		return "abs"
	case pattern.ExprCeil:
		return "ceil"
	case pattern.ExprFloor:
		return "floor"
	case pattern.ExprRound:
		return "round"
	default:
		return "?"
	}
}

// peekType resolves a node's value type without emitting instructions,
// so binary codegen knows the promotion target before either operand is
// on the stack.
func peekType(expr *pattern.Expression, nodeIdx int, resolve VariableTypeResolver, compiled map[pattern.VariableID]*Program) (concept.ValueType, error) {
	node := expr.Nodes[nodeIdx]
	switch node.Kind {
	case pattern.ExprConstant:
		return node.Constant.Type, nil
	case pattern.ExprVariable:
		if dep, ok := compiled[node.Variable]; ok {
			return dep.Return.ValueType, nil
		}
		vt, found, err := resolve(node.Variable)
		if err != nil {
			return 0, err
		}
		if !found {
			return 0, typeerr.NoUniqueValueType(fmt.Sprintf("$%d", node.Variable))
		}
		return vt, nil
	case pattern.ExprAdd, pattern.ExprSub, pattern.ExprMul, pattern.ExprDiv, pattern.ExprMod, pattern.ExprPow:
		lt, err := peekType(expr, node.Children[0], resolve, compiled)
		if err != nil {
			return 0, err
		}
		rt, err := peekType(expr, node.Children[1], resolve, compiled)
		if err != nil {
			return 0, err
		}
		target, ok := promote(lt, rt)
		if !ok {
			return 0, typeerr.UnsupportedOperands(opName(node.Kind), lt.String(), rt.String(), nil)
		}
		return target, nil
	case pattern.ExprAbs:
		return peekType(expr, node.Children[0], resolve, compiled)
	case pattern.ExprCeil, pattern.ExprFloor, pattern.ExprRound:
		return concept.ValueTypeDouble, nil
	case pattern.ExprListConstruct, pattern.ExprListIndex, pattern.ExprListIndexRange:
		if len(node.Children) > 0 {
			return peekType(expr, node.Children[0], resolve, compiled)
		}
		return 0, nil
	default:
		return 0, nil
	}
}

// promote picks the operand pair's shared numeric type: equal types stand,
// Integer and Decimal promote to Double when mixed with it.
func promote(l, r concept.ValueType) (concept.ValueType, bool) {
	if l == r {
		_, ok := numericOpFamilies[l]
		return l, ok
	}
	mixed := func(a, b concept.ValueType) bool { return l == a && r == b || l == b && r == a }
	if mixed(concept.ValueTypeInteger, concept.ValueTypeDouble) ||
		mixed(concept.ValueTypeDecimal, concept.ValueTypeDouble) {
		return concept.ValueTypeDouble, true
	}
	return 0, false
}

// emitBinaryOp appends the op-code for the already-promoted operand type.
func emitBinaryOp(instrs *[]Instruction, kind pattern.ExprOpKind, target concept.ValueType) (concept.ValueType, error) {
	opSet, ok := numericOpFamilies[target]
	if !ok {
		return 0, typeerr.UnsupportedOperands(opName(kind), target.String(), target.String(), nil)
	}
	op, ok := opSet[kind]
	if !ok {
		return 0, typeerr.UnsupportedOperands(opName(kind), target.String(), target.String(), nil)
	}
	*instrs = append(*instrs, Instruction{Op: op})
	return target, nil
}

func emitUnaryOp(instrs *[]Instruction, kind pattern.ExprOpKind, t concept.ValueType) (concept.ValueType, error) {
	switch kind {
	case pattern.ExprAbs:
		switch t {
		case concept.ValueTypeInteger:
			*instrs = append(*instrs, Instruction{Op: OpAbsInt})
		case concept.ValueTypeDouble:
			*instrs = append(*instrs, Instruction{Op: OpAbsDouble})
		default:
			return 0, typeerr.UnsupportedOperands(opName(kind), t.String(), t.String(), nil)
		}
	case pattern.ExprCeil, pattern.ExprFloor, pattern.ExprRound:
		if t != concept.ValueTypeDouble {
			castOp, ok := implicitCast(t, concept.ValueTypeDouble)
			if !ok {
				return 0, typeerr.UnsupportedOperands(opName(kind), t.String(), t.String(), nil)
			}
			*instrs = append(*instrs, Instruction{Op: castOp})
		}
		switch kind {
		case pattern.ExprCeil:
			*instrs = append(*instrs, Instruction{Op: OpCeilDouble})
		case pattern.ExprFloor:
			*instrs = append(*instrs, Instruction{Op: OpFloorDouble})
		default:
			*instrs = append(*instrs, Instruction{Op: OpRoundDouble})
		}
		return concept.ValueTypeDouble, nil
	}
	return t, nil
}

// numericOpFamilies maps the promoted operand value type (see promote) to
// the op-code for each arithmetic operator, one family per numeric value
// type.
var numericOpFamilies = map[concept.ValueType]map[pattern.ExprOpKind]OpCode{
	concept.ValueTypeInteger: {
		pattern.ExprAdd: OpAddInt, pattern.ExprSub: OpSubInt, pattern.ExprMul: OpMulInt,
		pattern.ExprDiv: OpDivInt, pattern.ExprMod: OpModInt, pattern.ExprPow: OpPowInt,
	},
	concept.ValueTypeDouble: {
		pattern.ExprAdd: OpAddDouble, pattern.ExprSub: OpSubDouble, pattern.ExprMul: OpMulDouble,
		pattern.ExprDiv: OpDivDouble, pattern.ExprMod: OpModDouble, pattern.ExprPow: OpPowDouble,
	},
	concept.ValueTypeDecimal: {
		pattern.ExprAdd: OpAddDecimal, pattern.ExprSub: OpSubDecimal, pattern.ExprMul: OpMulDecimal,
		pattern.ExprDiv: OpDivDecimal,
	},
}

// implicitCast returns the cast op-code needed to convert from `from`
// to `to` (Integer->Double, Decimal->Double), or false if no such cast
// is defined.
func implicitCast(from, to concept.ValueType) (OpCode, bool) {
	if to == concept.ValueTypeDouble {
		switch from {
		case concept.ValueTypeInteger:
			return OpCastIntToDouble, true
		case concept.ValueTypeDecimal:
			return OpCastDecimalToDouble, true
		}
	}
	return 0, false
}
