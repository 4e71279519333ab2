package planner

import (
	"fmt"
	"strings"
)

// Explain renders a MatchExecutable as an indented step tree, the debug
// pretty-printer behind the CLI's explain command.
func Explain(plan *MatchExecutable) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("MatchExecutable (width=%d, outputs=%d):\n", plan.FinalWidth, len(plan.NamedOutputs)))
	explainSteps(&sb, plan.Steps, 1)
	return sb.String()
}

func explainSteps(sb *strings.Builder, steps []ExecutionStep, depth int) {
	indent := strings.Repeat("  ", depth)
	for i, step := range steps {
		sb.WriteString(fmt.Sprintf("%s%d. %s\n", indent, i+1, step.String()))
		for _, instr := range step.Instructions {
			if instr.Constraint == nil {
				continue
			}
			sb.WriteString(fmt.Sprintf("%s   - %s [%s, %s]\n", indent, instr.Constraint, instr.Mode, directionName(instr.Direction)))
		}
		if (step.Kind == StepNegation || step.Kind == StepOptional) && step.SubPlan != nil {
			explainSteps(sb, step.SubPlan.Steps, depth+1)
		}
		if step.Kind == StepDisjunction {
			for bi, branch := range step.Branches {
				sb.WriteString(fmt.Sprintf("%s   branch %d:\n", indent, bi+1))
				explainSteps(sb, branch.Steps, depth+2)
			}
		}
	}
}

func directionName(d Direction) string {
	if d == DirectionReverse {
		return "reverse"
	}
	return "forward"
}
