package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/diagnostics"
	"github.com/typedb/typedb-sub006/iterate"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/pipeline"
	"github.com/typedb/typedb-sub006/planner"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/storage/kvstore"
	"github.com/typedb/typedb-sub006/storage/snapshot"
	"github.com/typedb/typedb-sub006/write"
)

// engine ties the store, the schema cache, and the demo query registry
// together for the CLI.
type engine struct {
	kv      kvstore.KV
	cache   *schema.CacheHolder
	stats   *schema.StatisticsCache
	handler diagnostics.Handler

	person, age, name concept.Type
	queries           map[string]demoQuery
}

// demoQuery builds a fresh pattern block per run; the CLI carries no
// surface-grammar parser, so the built-ins stand in for parsed queries.
type demoQuery struct {
	name        string
	description string
	build       func(e *engine) (*pattern.Block, []pattern.VariableID, []string)
}

func newEngine(kv kvstore.KV, handler diagnostics.Handler) (*engine, error) {
	s := schema.NewSchema()
	person := s.DefineType(concept.Label{Name: "person"}, concept.KindEntity, nil)
	age := s.DefineAttributeType(concept.Label{Name: "age"}, nil, concept.ValueTypeInteger)
	name := s.DefineAttributeType(concept.Label{Name: "name"}, nil, concept.ValueTypeString)
	s.DeclareOwns(person, age, schema.Annotation{Kind: schema.AnnotationCardinality, Min: 0, Max: 10})
	s.DeclareOwns(person, name, schema.Annotation{Kind: schema.AnnotationCardinality, Min: 0, Max: 10})
	cache, err := s.Build(1)
	if err != nil {
		return nil, err
	}

	e := &engine{
		kv:      kv,
		cache:   schema.NewCacheHolder(cache),
		stats:   schema.NewStatisticsCache(),
		handler: handler,
		person:  person,
		age:     age,
		name:    name,
	}
	e.registerQueries()
	if err := e.seedDemoData(); err != nil {
		return nil, err
	}
	if err := e.refreshStatistics(); err != nil {
		return nil, err
	}
	return e, nil
}

// seedDemoData inserts the demo people unless the store already has data.
func (e *engine) seedDemoData() error {
	readSnap := snapshot.NewRead(e.kv.BeginRead(), e.kv.Sequence())
	reader := concept.NewReader(readSnap)
	existing := reader.ObjectsIn(e.person)
	populated := existing.Next()
	existing.Close()
	readSnap.Close()
	if populated {
		return nil
	}

	snap := snapshot.NewWrite(e.kv.BeginRead(), e.kv.Sequence())
	defer snap.Close()
	w := concept.NewWriter(snap)

	var people []concept.ThingID
	for i := 0; i < 3; i++ {
		p, err := w.PutObject(e.person)
		if err != nil {
			return err
		}
		people = append(people, p)
	}
	addAge := func(p concept.ThingID, n int64) error {
		a, err := w.PutAttribute(e.age, concept.Int(n))
		if err != nil {
			return err
		}
		w.PutHas(p, a, concept.Int(n))
		return nil
	}
	addName := func(p concept.ThingID, s string) error {
		a, err := w.PutAttribute(e.name, concept.Str(s))
		if err != nil {
			return err
		}
		w.PutHas(p, a, concept.Str(s))
		return nil
	}
	steps := []error{
		addAge(people[0], 10), addAge(people[0], 11), addAge(people[0], 12),
		addName(people[0], "Abby"), addName(people[0], "Bobby"),
		addAge(people[1], 10), addAge(people[1], 13), addAge(people[1], 14),
		addAge(people[2], 13), addName(people[2], "Candice"),
	}
	for _, err := range steps {
		if err != nil {
			return err
		}
	}
	return e.kv.Update(func(tx kvstore.WriteTx) error { return snap.WriteInto(tx) })
}

// refreshStatistics recounts per-type instances; runs at startup and on
// the background tracker's timer.
func (e *engine) refreshStatistics() error {
	snap := snapshot.NewRead(e.kv.BeginRead(), e.kv.Sequence())
	defer snap.Close()
	reader := concept.NewReader(snap)

	stats := schema.NewStatistics()
	for _, ti := range e.cache.Current().AllTypes() {
		if ti.Type.Kind == concept.KindRole {
			continue
		}
		rng := reader.ObjectsIn(ti.Type)
		count := int64(0)
		for rng.Next() {
			count++
		}
		err := rng.Err()
		rng.Close()
		if err != nil {
			return err
		}
		stats.SetCount(ti.Type, count)
	}
	e.stats.Swap(stats)
	return nil
}

func (e *engine) registerQueries() {
	e.queries = map[string]demoQuery{}
	add := func(q demoQuery) { e.queries[q.name] = q }

	add(demoQuery{
		name:        "has-name-and-age",
		description: "match $p has name $n, has age $a",
		build: func(e *engine) (*pattern.Block, []pattern.VariableID, []string) {
			block := pattern.NewBlock()
			p := block.Registry.Named("p")
			n := block.Registry.Named("n")
			a := block.Registry.Named("a")
			order := 0
			e.addHas(block, p, n, "name", &order)
			e.addHas(block, p, a, "age", &order)
			return block, []pattern.VariableID{p, n, a}, []string{"$p", "$n", "$a"}
		},
	})
	add(demoQuery{
		name:        "has-any-attribute",
		description: "match $p has attribute $x",
		build: func(e *engine) (*pattern.Block, []pattern.VariableID, []string) {
			block := pattern.NewBlock()
			p := block.Registry.Named("p")
			x := block.Registry.Named("x")
			block.Root.Constraints = []pattern.Constraint{
				{Kind: pattern.ConstraintHas, Var1: p, Var2: x},
			}
			return block, []pattern.VariableID{p, x}, []string{"$p", "$x"}
		},
	})
	add(demoQuery{
		name:        "age-over-twelve",
		description: "match $p has age $a; $a > 12",
		build: func(e *engine) (*pattern.Block, []pattern.VariableID, []string) {
			block := pattern.NewBlock()
			p := block.Registry.Named("p")
			a := block.Registry.Named("a")
			order := 0
			e.addHas(block, p, a, "age", &order)
			threshold := block.Parameters.InternValue(concept.Int(12))
			block.Root.Constraints = append(block.Root.Constraints, pattern.Constraint{
				Kind: pattern.ConstraintComparison, Var1: a,
				Param2: threshold, HasParam2: true,
				Comparator: pattern.CmpGt, SourceOrder: order,
			})
			return block, []pattern.VariableID{p, a}, []string{"$p", "$a"}
		},
	})
	add(demoQuery{
		name:        "age-42",
		description: "match $p has age 42",
		build: func(e *engine) (*pattern.Block, []pattern.VariableID, []string) {
			block := pattern.NewBlock()
			p := block.Registry.Named("p")
			a := block.Registry.Named("a")
			order := 0
			e.addHas(block, p, a, "age", &order)
			val := block.Parameters.InternValue(concept.Int(42))
			block.Root.Constraints = append(block.Root.Constraints, pattern.Constraint{
				Kind: pattern.ConstraintComparison, Var1: a,
				Param2: val, HasParam2: true,
				Comparator: pattern.CmpEq, SourceOrder: order,
			})
			return block, []pattern.VariableID{p, a}, []string{"$p", "$a"}
		},
	})
}

// addHas appends `$owner has <label> $attr` as the has + isa + label
// constraint trio.
func (e *engine) addHas(block *pattern.Block, owner, attr pattern.VariableID, label string, order *int) {
	typeVar := block.Registry.Anonymous()
	param := block.Parameters.InternValue(concept.Str(label))
	block.Root.Constraints = append(block.Root.Constraints,
		pattern.Constraint{Kind: pattern.ConstraintHas, Var1: owner, Var2: attr, SourceOrder: *order},
		pattern.Constraint{Kind: pattern.ConstraintIsa, Var1: attr, Var2: typeVar, SourceOrder: *order + 1},
		pattern.Constraint{Kind: pattern.ConstraintLabel, Var1: typeVar, Param1: param, HasParam1: true, SourceOrder: *order + 2},
	)
	*order += 3
}

func (e *engine) queryNames() []string {
	var names []string
	for n := range e.queries {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func (e *engine) compile(q demoQuery) (*pattern.Block, *planner.MatchExecutable, *annotate.TypeAnnotations, []pattern.VariableID, []string, error) {
	block, vars, headers := q.build(e)
	cache := e.cache.Current()
	ann, err := annotate.Annotate(block, cache)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	plan, err := planner.Plan(block.Root, ann, cache, e.stats.Current(), nil)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	return block, plan, ann, vars, headers, nil
}

func (e *engine) runNamed(name string, interrupt <-chan struct{}, out io.Writer) error {
	q, ok := e.queries[name]
	if !ok {
		return fmt.Errorf("unknown query %q", name)
	}
	collector := diagnostics.NewCollector(e.handler)
	collector.Emit(diagnostics.QueryInvoked, map[string]interface{}{"query": q.description})

	block, plan, ann, vars, headers, err := e.compile(q)
	if err != nil {
		return err
	}
	collector.Emit(diagnostics.QueryPlanned, map[string]interface{}{"plan": planner.Explain(plan)})

	snap := snapshot.NewRead(e.kv.BeginRead(), e.kv.Sequence())
	defer snap.Close()

	ctrl, cancel := pipeline.NewControl(interrupt, pipeline.NewTransactionOptions())
	defer cancel()
	ctx := &iterate.Context{
		Reader:      concept.NewReader(snap),
		Cache:       e.cache.Current(),
		Annotations: ann,
		Params:      block.Parameters,
		Interrupt:   ctrl.Interrupt,
	}
	rows, err := pipeline.Collect(pipeline.NewMatch(pipeline.NewInitial(ctrl), plan, ctx, nil, ctrl))
	collector.Emit(diagnostics.QueryComplete, map[string]interface{}{
		"success": err == nil, "rows": len(rows), "error": fmt.Sprint(err),
	})
	if err != nil {
		return err
	}

	slots := make([]int, len(vars))
	for i, v := range vars {
		slots[i] = plan.Positions[v]
	}
	fmt.Fprint(out, renderRows(headers, slots, rows))
	return nil
}

func (e *engine) explainNamed(name string, out io.Writer) error {
	q, ok := e.queries[name]
	if !ok {
		return fmt.Errorf("unknown query %q", name)
	}
	_, plan, _, _, _, err := e.compile(q)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, planner.Explain(plan))
	return nil
}

// insertDemo runs `insert $q isa person, has age 42` and commits.
func (e *engine) insertDemo(interrupt <-chan struct{}, out io.Writer) error {
	block := pattern.NewBlock()
	q := block.Registry.Named("q")
	a := block.Registry.Named("a")
	tq := block.Registry.Anonymous()
	ta := block.Registry.Anonymous()
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintIsa, Var1: q, Var2: tq},
		{Kind: pattern.ConstraintLabel, Var1: tq, Param1: block.Parameters.InternValue(concept.Str("person")), HasParam1: true, SourceOrder: 1},
		{Kind: pattern.ConstraintIsa, Var1: a, Var2: ta, SourceOrder: 2},
		{Kind: pattern.ConstraintLabel, Var1: ta, Param1: block.Parameters.InternValue(concept.Str("age")), HasParam1: true, SourceOrder: 3},
		{Kind: pattern.ConstraintComparison, Var1: a, Param2: block.Parameters.InternValue(concept.Int(42)), HasParam2: true, Comparator: pattern.CmpEq, SourceOrder: 4},
		{Kind: pattern.ConstraintHas, Var1: q, Var2: a, SourceOrder: 5},
	}

	cache := e.cache.Current()
	ann, err := annotate.Annotate(block, cache)
	if err != nil {
		return err
	}
	x, err := write.CompileInsert(block.Root, block, ann, nil, 0)
	if err != nil {
		return err
	}

	snap := snapshot.NewWrite(e.kv.BeginRead(), e.kv.Sequence())
	defer snap.Close()
	writer := concept.NewWriter(snap)

	ctrl, cancel := pipeline.NewControl(interrupt, pipeline.NewTransactionOptions())
	defer cancel()
	rows, err := pipeline.Collect(pipeline.NewInsert(pipeline.NewInitial(ctrl), x, writer, cache, block.Parameters, ctrl))
	if err != nil {
		return err
	}
	if err := e.kv.Update(func(tx kvstore.WriteTx) error { return snap.WriteInto(tx) }); err != nil {
		return err
	}
	fmt.Fprintf(out, "inserted %d row(s); committed\n", len(rows))
	return e.refreshStatistics()
}

func (e *engine) printStatistics(out io.Writer) {
	stats := e.stats.Current()
	for _, ti := range e.cache.Current().AllTypes() {
		if ti.Type.Kind == concept.KindRole {
			continue
		}
		fmt.Fprintf(out, "  %-12s %d\n", ti.Label, stats.Count(ti.Type))
	}
}
