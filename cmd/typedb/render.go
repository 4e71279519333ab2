package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/renderer"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/row"
)

// renderRows formats result rows as a markdown table, one column per
// selected variable.
func renderRows(headers []string, slots []int, rows []row.Row) string {
	if len(rows) == 0 {
		return fmt.Sprintf("_Columns: %v_\n\n_No rows_\n", headers)
	}

	out := &strings.Builder{}
	alignment := make([]tw.Align, len(headers))
	for i := range alignment {
		alignment[i] = tw.AlignNone
	}
	table := tablewriter.NewTable(out,
		tablewriter.WithRenderer(renderer.NewMarkdown()),
		tablewriter.WithAlignment(alignment),
		tablewriter.WithHeaderAutoFormat(tw.Off),
	)
	table.Header(headers)
	for _, r := range rows {
		cells := make([]string, len(slots))
		for i, slot := range slots {
			cells[i] = formatSlot(r, slot)
		}
		table.Append(cells)
	}
	table.Render()
	out.WriteString(fmt.Sprintf("\n_%d rows_\n", len(rows)))
	return out.String()
}

func formatSlot(r row.Row, slot int) string {
	if slot < 0 || slot >= len(r.Values) {
		return ""
	}
	v := r.Values[slot]
	switch v.Kind {
	case row.KindEmpty:
		return ""
	case row.KindType:
		return v.Type.String()
	case row.KindThing:
		if v.Thing.ID.Kind == concept.KindAttribute {
			return v.Thing.Value.String()
		}
		return v.Thing.String()
	case row.KindValue:
		return v.Value.String()
	case row.KindValueList:
		parts := make([]string, len(v.ValueList))
		for i, x := range v.ValueList {
			parts[i] = x.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case row.KindThingList:
		parts := make([]string, len(v.ThingList))
		for i, x := range v.ThingList {
			parts[i] = x.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "?"
	}
}
