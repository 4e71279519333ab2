package pipeline

import (
	"fmt"

	"github.com/typedb/typedb-sub006/compile/expression"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/iterate"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/planner"
	"github.com/typedb/typedb-sub006/row"
)

// Match drives a compiled match plan for every upstream row. Answers for
// one input row are buffered (nested patterns run to completion per
// input), then streamed downstream.
type Match struct {
	up       Stage
	plan     *planner.MatchExecutable
	ctx      *iterate.Context
	programs map[pattern.VariableID]*expression.Program
	ctrl     *Control

	queue []row.Row
}

func NewMatch(up Stage, plan *planner.MatchExecutable, ctx *iterate.Context, programs map[pattern.VariableID]*expression.Program, ctrl *Control) *Match {
	return &Match{up: up, plan: plan, ctx: ctx, programs: programs, ctrl: ctrl}
}

func (s *Match) Next() (row.Row, bool, error) {
	for {
		if err := s.ctrl.check(); err != nil {
			return row.Row{}, false, err
		}
		if len(s.queue) > 0 {
			r := s.queue[0]
			s.queue = s.queue[1:]
			return r, true, nil
		}
		in, ok, err := s.up.Next()
		if err != nil || !ok {
			return row.Row{}, false, err
		}
		err = iterate.ExecuteMatch(s.plan, s.ctx, in, func(r row.Row) error {
			out := r
			if len(s.programs) > 0 {
				if err := s.applyExpressions(&out); err != nil {
					return err
				}
			}
			for _, c := range s.plan.PostChecks {
				if !iterate.EvalCheck(c, s.ctx, out) {
					return nil
				}
			}
			s.queue = append(s.queue, out)
			return nil
		})
		if err != nil {
			return row.Row{}, false, err
		}
	}
}

// applyExpressions evaluates the compiled programs in dependency rounds:
// a program runs once every register it loads is bound, either by the
// match or by an earlier program.
func (s *Match) applyExpressions(r *row.Row) error {
	remaining := make(map[pattern.VariableID]*expression.Program, len(s.programs))
	for v, p := range s.programs {
		remaining[v] = p
	}
	for len(remaining) > 0 {
		progress := false
		for v, prog := range remaining {
			regs, ready := s.gatherRegisters(prog, *r)
			if !ready {
				continue
			}
			result, err := expression.Evaluate(prog, regs)
			if err != nil {
				return err
			}
			slot, ok := s.plan.Positions[v]
			if !ok {
				return fmt.Errorf("pipeline: no slot for expression variable %v", v)
			}
			if result.IsList {
				r.Values[slot] = row.OfValueList(result.List)
			} else {
				r.Values[slot] = row.OfValue(result.Single)
			}
			delete(remaining, v)
			progress = true
		}
		if !progress {
			return fmt.Errorf("pipeline: unresolvable expression dependencies")
		}
	}
	return nil
}

func (s *Match) gatherRegisters(prog *expression.Program, r row.Row) (expression.Registers, bool) {
	regs := expression.Registers{}
	for _, instr := range prog.Instructions {
		if instr.Op != expression.OpLoadVariable {
			continue
		}
		slot, ok := s.plan.Positions[pattern.VariableID(instr.RegisterIndex)]
		if !ok || slot >= len(r.Values) {
			return nil, false
		}
		v := r.Values[slot]
		switch v.Kind {
		case row.KindValue:
			regs[instr.RegisterIndex] = expression.Single(v.Value)
		case row.KindValueList:
			regs[instr.RegisterIndex] = expression.List(v.ValueList)
		case row.KindThing:
			if v.Thing.ID.Kind == concept.KindAttribute {
				regs[instr.RegisterIndex] = expression.Single(v.Thing.Value)
				continue
			}
			return nil, false
		default:
			return nil, false
		}
	}
	return regs, true
}

func (s *Match) Close() { s.up.Close() }
