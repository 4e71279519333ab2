package typeerr

import "fmt"

// RepresentationError covers pattern-level errors raised while translating
// a surface pattern into Variables/Constraints/Blocks.
type RepresentationError struct{ Base }

func UnknownVariable(name string, span *Span, query string) *RepresentationError {
	return &RepresentationError{Base{
		CodeStr: "REP001", Comp: ComponentRepresentation,
		Desc: fmt.Sprintf("unknown variable %q", name), SpanVal: span, QueryText: query,
	}}
}

func VariableCategoryClash(name string, want, got string, span *Span) *RepresentationError {
	return &RepresentationError{Base{
		CodeStr: "REP002", Comp: ComponentRepresentation,
		Desc: fmt.Sprintf("variable %q expected category %s, found %s", name, want, got), SpanVal: span,
	}}
}

func AssignmentToBoundVariable(name string, span *Span) *RepresentationError {
	return &RepresentationError{Base{
		CodeStr: "REP003", Comp: ComponentRepresentation,
		Desc: fmt.Sprintf("cannot assign to already-bound variable %q", name), SpanVal: span,
	}}
}

// TypeInferenceError covers §4.3 fixpoint failures.
type TypeInferenceError struct {
	Base
	Variable string
	Chain    []string // constraint source-order trail that caused the contradiction
}

func EmptyTypeSet(variable string, chain []string, span *Span) *TypeInferenceError {
	return &TypeInferenceError{
		Base: Base{
			CodeStr: "TYP001", Comp: ComponentTypeInference,
			Desc:    fmt.Sprintf("variable %q has no satisfying type under the schema", variable),
			SpanVal: span,
		},
		Variable: variable,
		Chain:    chain,
	}
}

func LabelUnresolvable(label string, span *Span) *TypeInferenceError {
	return &TypeInferenceError{Base: Base{
		CodeStr: "TYP002", Comp: ComponentTypeInference,
		Desc: fmt.Sprintf("label %q does not resolve to a known type", label), SpanVal: span,
	}}
}

func CircularDependency(variable string, cycle []string) *TypeInferenceError {
	return &TypeInferenceError{
		Base: Base{
			CodeStr: "TYP003", Comp: ComponentTypeInference,
			Desc: fmt.Sprintf("circular expression dependency through %q: %v", variable, cycle),
		},
		Variable: variable,
		Chain:    cycle,
	}
}

func MustBeValueOrAttribute(variable string) *TypeInferenceError {
	return &TypeInferenceError{Base: Base{
		CodeStr: "TYP004", Comp: ComponentTypeInference,
		Desc: fmt.Sprintf("variable %q must resolve to a value or attribute type", variable),
	}}
}

func NoUniqueValueType(variable string) *TypeInferenceError {
	return &TypeInferenceError{Base: Base{
		CodeStr: "TYP005", Comp: ComponentTypeInference,
		Desc: fmt.Sprintf("expression variable %q does not have a unique value type", variable),
	}}
}

// ExpressionCompileError covers §4.4 compiler failures.
type ExpressionCompileError struct{ Base }

func UnsupportedOperands(op string, left, right string, span *Span) *ExpressionCompileError {
	return &ExpressionCompileError{Base{
		CodeStr: "EXP001", Comp: ComponentExpression,
		Desc: fmt.Sprintf("operator %s is not supported between %s and %s", op, left, right), SpanVal: span,
	}}
}

func MultipleAssignments(variable string, span *Span) *ExpressionCompileError {
	return &ExpressionCompileError{Base{
		CodeStr: "EXP002", Comp: ComponentExpression,
		Desc: fmt.Sprintf("variable %q is assigned more than once in this scope", variable), SpanVal: span,
	}}
}

func UnknownBuiltin(name string, span *Span) *ExpressionCompileError {
	return &ExpressionCompileError{Base{
		CodeStr: "EXP003", Comp: ComponentExpression,
		Desc: fmt.Sprintf("unknown builtin function %q", name), SpanVal: span,
	}}
}

func IndexOnNonList(variable string, span *Span) *ExpressionCompileError {
	return &ExpressionCompileError{Base{
		CodeStr: "EXP004", Comp: ComponentExpression,
		Desc: fmt.Sprintf("cannot index non-list variable %q", variable), SpanVal: span,
	}}
}

// ExpressionEvaluationError covers §4.4 evaluator runtime failures: these
// only surface while a compiled Program actually runs against a row, unlike
// ExpressionCompileError which is raised ahead of time while lowering the
// expression tree.
type ExpressionEvaluationError struct{ Base }

func DivideByZero(op string) *ExpressionEvaluationError {
	return &ExpressionEvaluationError{Base{
		CodeStr: "EXE001", Comp: ComponentExpressionEval,
		Desc: fmt.Sprintf("%s: divide by zero", op),
	}}
}

func ListIndexOutOfRange(index, length int) *ExpressionEvaluationError {
	return &ExpressionEvaluationError{Base{
		CodeStr: "EXE002", Comp: ComponentExpressionEval,
		Desc: fmt.Sprintf("list index %d out of range for length %d", index, length),
	}}
}

func CastFailed(from, to string) *ExpressionEvaluationError {
	return &ExpressionEvaluationError{Base{
		CodeStr: "EXE003", Comp: ComponentExpressionEval,
		Desc: fmt.Sprintf("cannot cast %s to %s", from, to),
	}}
}

// WriteCompileError covers §4.8 insert/update/delete compilation failures.
type WriteCompileError struct{ Base }

func IsaForInputVariable(variable string) *WriteCompileError {
	return &WriteCompileError{Base{
		CodeStr: "WRC001", Comp: ComponentWriteCompile,
		Desc: fmt.Sprintf("isa constraint on already-bound input variable %q is not a valid insert", variable),
	}}
}

func AmbiguousRoleType(variable string, candidates []string) *WriteCompileError {
	return &WriteCompileError{Base{
		CodeStr: "WRC002", Comp: ComponentWriteCompile,
		Desc: fmt.Sprintf("role type for %q is ambiguous among %v", variable, candidates),
	}}
}

func ValueSourceMissing(variable string) *WriteCompileError {
	return &WriteCompileError{Base{
		CodeStr: "WRC003", Comp: ComponentWriteCompile,
		Desc: fmt.Sprintf("attribute variable %q has no paired value-producing comparison", variable),
	}}
}

func IllegalInsertForRole(roleLabel string) *WriteCompileError {
	return &WriteCompileError{Base{
		CodeStr: "WRC004", Comp: ComponentWriteCompile,
		Desc: fmt.Sprintf("role %q cannot be targeted directly by insert", roleLabel),
	}}
}

// ConceptReadError / ConceptWriteError cover §4.2/§4.8 storage-facing failures.
type ConceptReadError struct{ Base }

func StoreReadFailed(cause error) *ConceptReadError {
	return &ConceptReadError{Base{
		CodeStr: "CRD001", Comp: ComponentConceptRead,
		Desc: "underlying store read failed", Cause: cause,
	}}
}

type ConceptWriteError struct{ Base }

func CardinalityViolation(ownerType, attrType string, min, max int, got int) *ConceptWriteError {
	return &ConceptWriteError{Base{
		CodeStr: "CWR001", Comp: ComponentConceptWrite,
		Desc: fmt.Sprintf("owner %s has %d instances of %s, outside cardinality [%d,%d]", ownerType, got, attrType, min, max),
	}}
}

func UniquenessViolation(ownerType, attrType string, value interface{}) *ConceptWriteError {
	return &ConceptWriteError{Base{
		CodeStr: "CWR002", Comp: ComponentConceptWrite,
		Desc: fmt.Sprintf("attribute %s=%v already uniquely owned, cannot attach another %s owner", attrType, value, ownerType),
	}}
}

func AbstractInstantiation(typeLabel string) *ConceptWriteError {
	return &ConceptWriteError{Base{
		CodeStr: "CWR003", Comp: ComponentConceptWrite,
		Desc: fmt.Sprintf("type %q is abstract and cannot be instantiated", typeLabel),
	}}
}

func DanglingReference(variable string) *ConceptWriteError {
	return &ConceptWriteError{Base{
		CodeStr: "CWR004", Comp: ComponentConceptWrite,
		Desc: fmt.Sprintf("variable %q references an instance that no longer exists", variable),
	}}
}

func RegexViolation(attrType string, pattern string, value string) *ConceptWriteError {
	return &ConceptWriteError{Base{
		CodeStr: "CWR005", Comp: ComponentConceptWrite,
		Desc: fmt.Sprintf("value %q for %s does not match regex %q", value, attrType, pattern),
	}}
}

func RangeViolation(attrType string, value interface{}) *ConceptWriteError {
	return &ConceptWriteError{Base{
		CodeStr: "CWR006", Comp: ComponentConceptWrite,
		Desc: fmt.Sprintf("value %v for %s is outside its declared range", value, attrType),
	}}
}

func ValuesViolation(attrType string, value interface{}) *ConceptWriteError {
	return &ConceptWriteError{Base{
		CodeStr: "CWR007", Comp: ComponentConceptWrite,
		Desc: fmt.Sprintf("value %v for %s is not among its declared values", value, attrType),
	}}
}

// SnapshotError covers §4.1 iterator failures.
type SnapshotError struct{ Base }

func MVCCRead(cause error) *SnapshotError {
	return &SnapshotError{Base{
		CodeStr: "SNP001", Comp: ComponentSnapshot,
		Desc: "MVCC read failed", Cause: cause,
	}}
}

func Interrupted() *SnapshotError {
	return &SnapshotError{Base{
		CodeStr: "SNP002", Comp: ComponentSnapshot,
		Desc: "execution was interrupted",
	}}
}

func Timeout() *SnapshotError {
	return &SnapshotError{Base{
		CodeStr: "SNP003", Comp: ComponentSnapshot,
		Desc: "transaction timed out",
	}}
}

// CommitError covers §7 commit-time failures.
type CommitError struct {
	Base
	Validation []*ConceptWriteError
}

func WriteWriteConflict(cause error) *CommitError {
	return &CommitError{Base: Base{
		CodeStr: "CMT001", Comp: ComponentCommit,
		Desc: "write-write conflict detected at commit", Cause: cause,
	}}
}

func SchemaDataContention() *CommitError {
	return &CommitError{Base: Base{
		CodeStr: "CMT002", Comp: ComponentCommit,
		Desc: "data commit contended with an in-flight schema commit",
	}}
}

func ValidationFailed(violations []*ConceptWriteError) *CommitError {
	return &CommitError{
		Base: Base{
			CodeStr: "CMT003", Comp: ComponentCommit,
			Desc: fmt.Sprintf("%d write validation error(s) at commit", len(violations)),
		},
		Validation: violations,
	}
}
