package diagnostics

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// OutputFormatter renders events for human-readable display, one line
// each except the plan event, which prints the multi-line plan text;
// colorized when the writer is a terminal.
type OutputFormatter struct {
	useColor bool
	writer   io.Writer
}

func NewOutputFormatter(w io.Writer) *OutputFormatter {
	if w == nil {
		w = os.Stdout
	}
	useColor := false
	if f, ok := w.(*os.File); ok {
		useColor = isatty.IsTerminal(f.Fd())
	}
	return &OutputFormatter{useColor: useColor, writer: w}
}

// Handle implements Handler.
func (f *OutputFormatter) Handle(event Event) {
	if out := f.Format(event); out != "" {
		fmt.Fprintln(f.writer, out)
	}
}

// Format converts one event to a display line.
func (f *OutputFormatter) Format(event Event) string {
	latency := f.formatLatency(event.Latency)

	switch event.Name {
	case QueryInvoked:
		return fmt.Sprintf("%s Query: %v", latency, event.Data["query"])

	case QueryPlanned:
		return fmt.Sprintf("\n%v\n", event.Data["plan"])

	case QueryComplete:
		if success, _ := event.Data["success"].(bool); !success {
			return fmt.Sprintf("%s %s Query failed: %v",
				latency, f.colorize("✗", color.FgRed), event.Data["error"])
		}
		return fmt.Sprintf("%s %s Query done with %v rows",
			latency, f.colorize("===", color.FgGreen), event.Data["rows"])

	case AnnotateComplete:
		return fmt.Sprintf("%s %s annotated %v variables",
			latency, f.colorize("===", color.FgYellow), event.Data["variables"])

	case PlanComplete:
		return fmt.Sprintf("%s planned %v steps (width %v)",
			latency, event.Data["steps"], event.Data["width"])

	case StageBegin:
		return fmt.Sprintf("%s %s %v starting", latency, f.colorize("===", color.FgYellow), event.Data["stage"])

	case StageComplete:
		return fmt.Sprintf("%s %v completed with %v rows", latency, event.Data["stage"], event.Data["rows"])

	case WriteApplied:
		return fmt.Sprintf("%s applied %v concepts, %v connections",
			latency, event.Data["concepts"], event.Data["connections"])

	case CommitComplete:
		return fmt.Sprintf("%s %s committed %v buffered writes",
			latency, f.colorize("===", color.FgGreen), event.Data["writes"])

	case ErrorTypeInference, ErrorExecution, ErrorCommit:
		return fmt.Sprintf("%s %s %v", latency, f.colorize("✗", color.FgRed), event.Data["error"])

	default:
		return ""
	}
}

func (f *OutputFormatter) formatLatency(d time.Duration) string {
	s := fmt.Sprintf("[%8.3fms]", float64(d.Microseconds())/1000.0)
	if f.useColor {
		return color.HiBlackString(s)
	}
	return s
}

func (f *OutputFormatter) colorize(s string, attr color.Attribute) string {
	if !f.useColor {
		return s
	}
	return color.New(attr).Sprint(s)
}
