package iterate

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/planner"
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/storage/kvstore"
	"github.com/typedb/typedb-sub006/storage/snapshot"
)

// fixture builds the person/age/name dataset: P1 has ages 10,11,12 and
// names Abby,Bobby; P2 has ages 10,13,14; P3 has age 13 and name Candice.
type fixture struct {
	cache  *schema.Cache
	stats  *schema.Statistics
	writer *concept.Writer
	person concept.Type
	age    concept.Type
	name   concept.Type
	people []concept.ThingID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := schema.NewSchema()
	person := s.DefineType(concept.Label{Name: "person"}, concept.KindEntity, nil)
	age := s.DefineAttributeType(concept.Label{Name: "age"}, nil, concept.ValueTypeInteger)
	name := s.DefineAttributeType(concept.Label{Name: "name"}, nil, concept.ValueTypeString)
	s.DeclareOwns(person, age, schema.Annotation{Kind: schema.AnnotationCardinality, Min: 0, Max: 10})
	s.DeclareOwns(person, name, schema.Annotation{Kind: schema.AnnotationCardinality, Min: 0, Max: 10})
	cache, err := s.Build(1)
	require.NoError(t, err)

	kv := kvstore.OpenMemory()
	snap := snapshot.NewWrite(kv.BeginRead(), kv.Sequence())
	t.Cleanup(snap.Close)
	w := concept.NewWriter(snap)

	var people []concept.ThingID
	for i := 0; i < 3; i++ {
		p, err := w.PutObject(person)
		require.NoError(t, err)
		people = append(people, p)
	}
	hasAge := func(p concept.ThingID, n int64) {
		a, err := w.PutAttribute(age, concept.Int(n))
		require.NoError(t, err)
		w.PutHas(p, a, concept.Int(n))
	}
	hasName := func(p concept.ThingID, s string) {
		a, err := w.PutAttribute(name, concept.Str(s))
		require.NoError(t, err)
		w.PutHas(p, a, concept.Str(s))
	}
	hasAge(people[0], 10)
	hasAge(people[0], 11)
	hasAge(people[0], 12)
	hasName(people[0], "Abby")
	hasName(people[0], "Bobby")
	hasAge(people[1], 10)
	hasAge(people[1], 13)
	hasAge(people[1], 14)
	hasAge(people[2], 13)
	hasName(people[2], "Candice")

	stats := schema.NewStatistics()
	stats.SetCount(person, 3)
	stats.SetCount(age, 6)
	stats.SetCount(name, 3)

	return &fixture{cache: cache, stats: stats, writer: w, person: person, age: age, name: name, people: people}
}

// hasWithLabel appends `$thing has <label> $attr` as the constraint trio
// has + isa + label, the way the translator lowers it.
func hasWithLabel(block *pattern.Block, owner pattern.VariableID, attrVar pattern.VariableID, label string, order *int) {
	typeVar := block.Registry.Anonymous()
	param := block.Parameters.InternValue(concept.Str(label))
	block.Root.Constraints = append(block.Root.Constraints,
		pattern.Constraint{Kind: pattern.ConstraintHas, Var1: owner, Var2: attrVar, SourceOrder: *order},
		pattern.Constraint{Kind: pattern.ConstraintIsa, Var1: attrVar, Var2: typeVar, SourceOrder: *order + 1},
		pattern.Constraint{Kind: pattern.ConstraintLabel, Var1: typeVar, Param1: param, HasParam1: true, SourceOrder: *order + 2},
	)
	*order += 3
}

func (f *fixture) run(t *testing.T, block *pattern.Block) []row.Row {
	t.Helper()
	ann, err := annotate.Annotate(block, f.cache)
	require.NoError(t, err)
	plan, err := planner.Plan(block.Root, ann, f.cache, f.stats, nil)
	require.NoError(t, err)

	ctx := &Context{
		Reader:      &f.writer.Reader,
		Cache:       f.cache,
		Annotations: ann,
		Params:      block.Parameters,
	}
	var rows []row.Row
	require.NoError(t, ExecuteMatch(plan, ctx, row.Row{Multiplicity: 1}, func(r row.Row) error {
		rows = append(rows, r)
		return nil
	}))
	return rows
}

func TestMatchHasNameAndAge(t *testing.T) {
	f := newFixture(t)
	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	n := block.Registry.Named("n")
	a := block.Registry.Named("a")
	order := 0
	hasWithLabel(block, p, n, "name", &order)
	hasWithLabel(block, p, a, "age", &order)

	rows := f.run(t, block)
	require.Len(t, rows, 7)

	ann, _ := annotate.Annotate(block, f.cache)
	plan, _ := planner.Plan(block.Root, ann, f.cache, f.stats, nil)
	pSlot := plan.Positions[p]

	// Sorted on $p: six rows for P1, then one for P3.
	var owners []uint64
	for _, r := range rows {
		owners = append(owners, r.Values[pSlot].Thing.ID.LocalID)
	}
	require.Equal(t, []uint64{0, 0, 0, 0, 0, 0, 2}, owners)
}

func TestMatchHasAnyAttribute(t *testing.T) {
	f := newFixture(t)
	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	x := block.Registry.Named("x")
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: p, Var2: x},
	}
	rows := f.run(t, block)
	require.Len(t, rows, 10)
}

func TestMatchAgeGreaterThanTwelve(t *testing.T) {
	f := newFixture(t)
	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a := block.Registry.Named("a")
	order := 0
	hasWithLabel(block, p, a, "age", &order)
	param := block.Parameters.InternValue(concept.Int(12))
	block.Root.Constraints = append(block.Root.Constraints, pattern.Constraint{
		Kind: pattern.ConstraintComparison, Var1: a,
		Param2: param, HasParam2: true,
		Comparator: pattern.CmpGt, SourceOrder: order,
	})

	rows := f.run(t, block)
	require.Len(t, rows, 3)

	ann, _ := annotate.Annotate(block, f.cache)
	plan, _ := planner.Plan(block.Root, ann, f.cache, f.stats, nil)
	aSlot := plan.Positions[a]
	for _, r := range rows {
		require.Greater(t, r.Values[aSlot].Thing.Value.Integer, int64(12))
	}
}

func TestMatchNegationFiltersRows(t *testing.T) {
	f := newFixture(t)
	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	a := block.Registry.Named("a")
	order := 0
	hasWithLabel(block, p, a, "age", &order)

	// not { $p has name $n; } — P2 is the only person without a name.
	n := block.Registry.Named("n")
	neg := &pattern.Conjunction{}
	negOrder := order
	typeVar := block.Registry.Anonymous()
	param := block.Parameters.InternValue(concept.Str("name"))
	neg.Constraints = append(neg.Constraints,
		pattern.Constraint{Kind: pattern.ConstraintHas, Var1: p, Var2: n, SourceOrder: negOrder},
		pattern.Constraint{Kind: pattern.ConstraintIsa, Var1: n, Var2: typeVar, SourceOrder: negOrder + 1},
		pattern.Constraint{Kind: pattern.ConstraintLabel, Var1: typeVar, Param1: param, HasParam1: true, SourceOrder: negOrder + 2},
	)
	block.Root.Nested = []pattern.Nested{{Kind: pattern.NestedNegation, Branches: []*pattern.Conjunction{neg}}}

	rows := f.run(t, block)
	// P2's three ages survive; P1 and P3 both have names.
	require.Len(t, rows, 3)
}

func TestMatchDisjunctionIsDistinctUnion(t *testing.T) {
	f := newFixture(t)
	block := pattern.NewBlock()
	p := block.Registry.Named("p")

	isaCons := pattern.Constraint{Kind: pattern.ConstraintIsa, Var1: p, Var2: block.Registry.Anonymous()}
	labelParam := block.Parameters.InternValue(concept.Str("person"))
	block.Root.Constraints = []pattern.Constraint{
		isaCons,
		{Kind: pattern.ConstraintLabel, Var1: isaCons.Var2, Param1: labelParam, HasParam1: true, SourceOrder: 1},
	}

	// { $p has age 10 } or { $p has age 13 } — P1 and P2 match the first,
	// P2 and P3 the second; the union is all three, with P2 deduplicated.
	mkBranch := func(v int64, order int) *pattern.Conjunction {
		a := block.Registry.Anonymous()
		tv := block.Registry.Anonymous()
		c := &pattern.Conjunction{}
		ageParam := block.Parameters.InternValue(concept.Int(v))
		ageLabel := block.Parameters.InternValue(concept.Str("age"))
		c.Constraints = append(c.Constraints,
			pattern.Constraint{Kind: pattern.ConstraintHas, Var1: p, Var2: a, SourceOrder: order},
			pattern.Constraint{Kind: pattern.ConstraintIsa, Var1: a, Var2: tv, SourceOrder: order + 1},
			pattern.Constraint{Kind: pattern.ConstraintLabel, Var1: tv, Param1: ageLabel, HasParam1: true, SourceOrder: order + 2},
			pattern.Constraint{Kind: pattern.ConstraintComparison, Var1: a, Param2: ageParam, HasParam2: true, Comparator: pattern.CmpEq, SourceOrder: order + 3},
		)
		return c
	}
	block.Root.Nested = []pattern.Nested{{
		Kind:     pattern.NestedDisjunction,
		Branches: []*pattern.Conjunction{mkBranch(10, 10), mkBranch(13, 20)},
	}}

	rows := f.run(t, block)

	ann, _ := annotate.Annotate(block, f.cache)
	plan, _ := planner.Plan(block.Root, ann, f.cache, f.stats, nil)
	pSlot := plan.Positions[p]
	seen := map[uint64]int{}
	for _, r := range rows {
		seen[r.Values[pSlot].Thing.ID.LocalID]++
	}
	require.Len(t, seen, 3)
}

func TestInlineFunctionCall(t *testing.T) {
	f := newFixture(t)

	// fn ages_of($who) -> $va: match $who has age $va
	fnBlock := pattern.NewBlock()
	who := fnBlock.Registry.Named("who")
	va := fnBlock.Registry.Named("va")
	order := 0
	hasWithLabel(fnBlock, who, va, "age", &order)
	fn := &Function{Name: "ages_of", Block: fnBlock, Args: []pattern.VariableID{who}, Returns: []pattern.VariableID{va}}
	require.NoError(t, fn.Compile(f.cache, f.stats))

	reg := NewFunctionRegistry()
	reg.Register(fn)

	// match $p isa person; let $a = ages_of($p)
	block := pattern.NewBlock()
	p := block.Registry.Named("p")
	tv := block.Registry.Anonymous()
	labelParam := block.Parameters.InternValue(concept.Str("person"))
	a := block.Registry.Named("a")
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintIsa, Var1: p, Var2: tv},
		{Kind: pattern.ConstraintLabel, Var1: tv, Param1: labelParam, HasParam1: true, SourceOrder: 1},
		{Kind: pattern.ConstraintFunctionCallBinding, Var1: a, FunctionName: "ages_of",
			Args: []pattern.VariableID{p}, Assigned: []pattern.VariableID{a}, SourceOrder: 2},
	}

	ann, err := annotate.Annotate(block, f.cache)
	require.NoError(t, err)
	plan, err := planner.Plan(block.Root, ann, f.cache, f.stats, nil)
	require.NoError(t, err)

	ctx := &Context{
		Reader:      &f.writer.Reader,
		Cache:       f.cache,
		Annotations: ann,
		Params:      block.Parameters,
		Functions:   reg,
	}
	count := 0
	require.NoError(t, ExecuteMatch(plan, ctx, row.Row{Multiplicity: 1}, func(r row.Row) error {
		count++
		return nil
	}))
	// Seven age edges across the three people.
	require.Equal(t, 7, count)
}
