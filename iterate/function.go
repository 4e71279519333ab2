package iterate

import (
	"fmt"

	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/planner"
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/schema"
)

// Function is a user-defined function: a pattern block with declared
// argument and return variables, compiled once into a plan that treats
// the arguments as bound inputs.
type Function struct {
	Name    string
	Block   *pattern.Block
	Args    []pattern.VariableID
	Returns []pattern.VariableID

	Annotations *annotate.TypeAnnotations
	Plan        *planner.MatchExecutable
}

// Compile annotates and plans the function body with its arguments bound.
func (f *Function) Compile(cache *schema.Cache, stats *schema.Statistics) error {
	ann, err := annotate.Annotate(f.Block, cache)
	if err != nil {
		return err
	}
	bound := map[pattern.VariableID]bool{}
	for _, a := range f.Args {
		bound[a] = true
	}
	plan, err := planner.Plan(f.Block.Root, ann, cache, stats, bound)
	if err != nil {
		return err
	}
	f.Annotations = ann
	f.Plan = plan
	return nil
}

// FunctionRegistry resolves function-call bindings by name.
type FunctionRegistry struct {
	byName map[string]*Function
}

func NewFunctionRegistry() *FunctionRegistry {
	return &FunctionRegistry{byName: map[string]*Function{}}
}

func (r *FunctionRegistry) Register(f *Function) { r.byName[f.Name] = f }

func (r *FunctionRegistry) Lookup(name string) (*Function, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// tableState memoises tabled function answers for one query execution;
// recursive calls read the partial table while the outermost invocation
// iterates the body to a fixpoint.
type tableState struct {
	answers    map[string][]row.Row
	keys       map[string]map[string]bool
	inProgress map[string]bool
}

func newTableState() *tableState {
	return &tableState{
		answers:    map[string][]row.Row{},
		keys:       map[string]map[string]bool{},
		inProgress: map[string]bool{},
	}
}

func (ctx *Context) tables() *tableState {
	if ctx.Tables == nil {
		ctx.Tables = newTableState()
	}
	return ctx.Tables
}

func runFunctionCall(step planner.ExecutionStep, ctx *Context, current row.Row, next func(row.Row) error) error {
	if ctx.Functions == nil {
		return fmt.Errorf("iterate: no function registry for call to %q", step.FunctionName)
	}
	f, ok := ctx.Functions.Lookup(step.FunctionName)
	if !ok {
		return fmt.Errorf("iterate: unresolved function %q", step.FunctionName)
	}
	if len(step.Args) != len(f.Args) {
		return fmt.Errorf("iterate: function %q expects %d arguments, got %d", f.Name, len(f.Args), len(step.Args))
	}

	args := make([]row.VariableValue, len(step.Args))
	for i, v := range step.Args {
		slot, ok := ctx.slot(v)
		if !ok || slot >= len(current.Values) {
			return fmt.Errorf("iterate: unbound argument %v for function %q", v, f.Name)
		}
		args[i] = current.Values[slot]
	}

	emitAnswer := func(returns []row.VariableValue) error {
		out := current.Widen(step.OutputWidth)
		for i, v := range step.Assigned {
			if i < len(returns) {
				out.Values[step.Positions[v]] = returns[i]
			}
		}
		return next(out)
	}

	if !step.Tabled {
		return f.invoke(ctx, args, emitAnswer)
	}
	return f.invokeTabled(ctx, args, emitAnswer)
}

// invoke runs the body once, seeded with the arguments, projecting each
// answer onto the declared return variables.
func (f *Function) invoke(ctx *Context, args []row.VariableValue, emit func([]row.VariableValue) error) error {
	seed := row.New(f.Plan.FinalWidth)
	for i, a := range f.Args {
		if slot, ok := f.Plan.Positions[a]; ok {
			seed.Values[slot] = args[i]
		}
	}
	fnCtx := *ctx
	fnCtx.Annotations = f.Annotations
	fnCtx.Positions = f.Plan.Positions
	return ExecuteMatch(f.Plan, &fnCtx, seed, func(r row.Row) error {
		returns := make([]row.VariableValue, len(f.Returns))
		for i, v := range f.Returns {
			if slot, ok := f.Plan.Positions[v]; ok && slot < len(r.Values) {
				returns[i] = r.Values[slot]
			}
		}
		return emit(returns)
	})
}

// invokeTabled evaluates the call through the per-query answer table: the
// outermost invocation for a given argument tuple re-runs the body until
// no new answers appear; recursive invocations read the partial table,
// which the outer fixpoint loop grows monotonically.
func (f *Function) invokeTabled(ctx *Context, args []row.VariableValue, emit func([]row.VariableValue) error) error {
	tables := ctx.tables()
	key := f.Name + "\x00" + argsKey(args)

	if tables.inProgress[key] {
		for _, ans := range tables.answers[key] {
			if err := emit(ans.Values); err != nil {
				return err
			}
		}
		return nil
	}
	if _, done := tables.keys[key]; done && !tables.inProgress[key] {
		for _, ans := range tables.answers[key] {
			if err := emit(ans.Values); err != nil {
				return err
			}
		}
		return nil
	}

	tables.inProgress[key] = true
	tables.keys[key] = map[string]bool{}
	for {
		added := false
		err := f.invoke(ctx, args, func(returns []row.VariableValue) error {
			r := row.Row{Multiplicity: 1, Values: returns}
			k := rowKey(r)
			if !tables.keys[key][k] {
				tables.keys[key][k] = true
				tables.answers[key] = append(tables.answers[key], r)
				added = true
			}
			return nil
		})
		if err != nil {
			delete(tables.inProgress, key)
			return err
		}
		if !added {
			break
		}
	}
	delete(tables.inProgress, key)

	for _, ans := range tables.answers[key] {
		if err := emit(ans.Values); err != nil {
			return err
		}
	}
	return nil
}

func argsKey(args []row.VariableValue) string {
	return rowKey(row.Row{Values: args})
}
