package diagnostics

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCollectorRecordsAndForwards(t *testing.T) {
	var handled []Event
	c := NewCollector(func(e Event) { handled = append(handled, e) })

	c.Emit(QueryInvoked, map[string]interface{}{"query": "match ..."})
	err := c.Timed(PlanComplete, map[string]interface{}{"steps": 2, "width": 3}, func() error {
		return nil
	})
	require.NoError(t, err)
	require.Len(t, handled, 2)
	require.Len(t, c.Events(), 2)
	require.Equal(t, QueryInvoked, c.Events()[0].Name)
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.Emit(QueryInvoked, nil)
	wantErr := errors.New("boom")
	err := c.Timed(PlanComplete, nil, func() error { return wantErr })
	require.Equal(t, wantErr, err)
	require.Nil(t, c.Events())
}

func TestFormatterRendersKnownEvents(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)

	f.Handle(Event{Name: QueryInvoked, Data: map[string]interface{}{"query": "match $p"}})
	f.Handle(Event{Name: QueryComplete, Data: map[string]interface{}{"success": true, "rows": 7}})
	f.Handle(Event{Name: "unknown/event"})

	out := buf.String()
	require.Contains(t, out, "Query: match $p")
	require.Contains(t, out, "7 rows")
	require.Equal(t, 2, strings.Count(out, "\n"))
}

func TestFormatterRendersFailure(t *testing.T) {
	var buf bytes.Buffer
	f := NewOutputFormatter(&buf)
	f.Handle(Event{Name: QueryComplete, Data: map[string]interface{}{"success": false, "error": "empty type set"}})
	require.Contains(t, buf.String(), "Query failed: empty type set")
}
