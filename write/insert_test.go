package write

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/annotate"
	"github.com/typedb/typedb-sub006/concept"
	"github.com/typedb/typedb-sub006/pattern"
	"github.com/typedb/typedb-sub006/row"
	"github.com/typedb/typedb-sub006/schema"
	"github.com/typedb/typedb-sub006/storage/kvstore"
	"github.com/typedb/typedb-sub006/storage/snapshot"
	"github.com/typedb/typedb-sub006/typeerr"
)

type env struct {
	cache  *schema.Cache
	writer *concept.Writer
	person concept.Type
	age    concept.Type
	email  concept.Type
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s := schema.NewSchema()
	person := s.DefineType(concept.Label{Name: "person"}, concept.KindEntity, nil)
	age := s.DefineAttributeType(concept.Label{Name: "age"}, nil, concept.ValueTypeInteger)
	email := s.DefineAttributeType(concept.Label{Name: "email"}, nil, concept.ValueTypeString)
	s.DeclareOwns(person, age, schema.Annotation{Kind: schema.AnnotationCardinality, Min: 0, Max: 2})
	s.DeclareOwns(person, email, schema.Annotation{Kind: schema.AnnotationUnique})
	cache, err := s.Build(1)
	require.NoError(t, err)

	kv := kvstore.OpenMemory()
	snap := snapshot.NewWrite(kv.BeginRead(), kv.Sequence())
	t.Cleanup(snap.Close)
	return &env{cache: cache, writer: concept.NewWriter(snap), person: person, age: age, email: email}
}

// insertBlock lowers `insert $q isa person, has age <n>;`.
func insertBlock(t *testing.T, e *env, n int64) (*pattern.Block, *InsertExecutable) {
	t.Helper()
	block := pattern.NewBlock()
	q := block.Registry.Named("q")
	a := block.Registry.Named("a")
	tq := block.Registry.Anonymous()
	ta := block.Registry.Anonymous()
	personLabel := block.Parameters.InternValue(concept.Str("person"))
	ageLabel := block.Parameters.InternValue(concept.Str("age"))
	ageVal := block.Parameters.InternValue(concept.Int(n))
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintIsa, Var1: q, Var2: tq},
		{Kind: pattern.ConstraintLabel, Var1: tq, Param1: personLabel, HasParam1: true, SourceOrder: 1},
		{Kind: pattern.ConstraintIsa, Var1: a, Var2: ta, SourceOrder: 2},
		{Kind: pattern.ConstraintLabel, Var1: ta, Param1: ageLabel, HasParam1: true, SourceOrder: 3},
		{Kind: pattern.ConstraintComparison, Var1: a, Param2: ageVal, HasParam2: true, Comparator: pattern.CmpEq, SourceOrder: 4},
		{Kind: pattern.ConstraintHas, Var1: q, Var2: a, SourceOrder: 5},
	}
	ann, err := annotate.Annotate(block, e.cache)
	require.NoError(t, err)
	x, err := CompileInsert(block.Root, block, ann, nil, 0)
	require.NoError(t, err)
	return block, x
}

func TestInsertPersonWithAge(t *testing.T) {
	e := newEnv(t)
	block, x := insertBlock(t, e, 42)

	require.Len(t, x.Concepts, 2)
	require.Equal(t, PutObject, x.Concepts[0].Kind)
	require.Equal(t, PutAttribute, x.Concepts[1].Kind)
	require.Len(t, x.Connections, 1)

	out, err := x.Execute(e.writer, e.cache, block.Parameters, row.Row{Multiplicity: 1})
	require.NoError(t, err)
	require.Equal(t, x.OutputWidth, len(out.Values))

	has := e.writer.Has([]concept.Type{e.person})
	defer has.Close()
	require.True(t, has.Next())
	require.Equal(t, int64(42), has.Tuple().Value.Integer)
	require.False(t, has.Next())
}

func TestInsertCardinalityViolation(t *testing.T) {
	e := newEnv(t)
	p, err := e.writer.PutObject(e.person)
	require.NoError(t, err)
	for _, n := range []int64{1, 2} {
		a, err := e.writer.PutAttribute(e.age, concept.Int(n))
		require.NoError(t, err)
		e.writer.PutHas(p, a, concept.Int(n))
	}

	a3, err := e.writer.PutAttribute(e.age, concept.Int(3))
	require.NoError(t, err)
	err = validateHas(e.writer, e.cache, p, concept.Thing{ID: a3, Value: concept.Int(3)})
	require.Error(t, err)
	var cw *typeerr.ConceptWriteError
	require.ErrorAs(t, err, &cw)
	require.Equal(t, "CWR001", cw.Code())
}

func TestInsertUniqueViolation(t *testing.T) {
	e := newEnv(t)
	p1, _ := e.writer.PutObject(e.person)
	p2, _ := e.writer.PutObject(e.person)
	addr, err := e.writer.PutAttribute(e.email, concept.Str("a@b.c"))
	require.NoError(t, err)
	e.writer.PutHas(p1, addr, concept.Str("a@b.c"))

	err = validateHas(e.writer, e.cache, p2, concept.Thing{ID: addr, Value: concept.Str("a@b.c")})
	require.Error(t, err)
	var cw *typeerr.ConceptWriteError
	require.ErrorAs(t, err, &cw)
	require.Equal(t, "CWR002", cw.Code())
}

func TestDeleteRemovesInstanceAndEdges(t *testing.T) {
	e := newEnv(t)
	p, _ := e.writer.PutObject(e.person)
	a, _ := e.writer.PutAttribute(e.age, concept.Int(10))
	e.writer.PutHas(p, a, concept.Int(10))

	block := pattern.NewBlock()
	v := block.Registry.Named("p")
	positions := map[pattern.VariableID]int{v: 0}
	x, err := CompileDelete(&pattern.Conjunction{}, []pattern.VariableID{v}, positions)
	require.NoError(t, err)

	in := row.New(1)
	in.Values[0] = row.OfThing(concept.Thing{ID: p})
	_, err = x.Execute(e.writer, e.cache, in)
	require.NoError(t, err)

	exists, err := e.writer.Exists(p)
	require.NoError(t, err)
	require.False(t, exists)
	has := e.writer.Has([]concept.Type{e.person})
	defer has.Close()
	require.False(t, has.Next())
}

func TestUpdateReplacesAttribute(t *testing.T) {
	e := newEnv(t)
	p, _ := e.writer.PutObject(e.person)
	old, _ := e.writer.PutAttribute(e.age, concept.Int(10))
	e.writer.PutHas(p, old, concept.Int(10))

	block := pattern.NewBlock()
	owner := block.Registry.Named("p")
	attr := block.Registry.Named("a")
	ta := block.Registry.Anonymous()
	ageLabel := block.Parameters.InternValue(concept.Str("age"))
	newVal := block.Parameters.InternValue(concept.Int(11))
	block.Root.Constraints = []pattern.Constraint{
		{Kind: pattern.ConstraintHas, Var1: owner, Var2: attr},
		{Kind: pattern.ConstraintIsa, Var1: attr, Var2: ta, SourceOrder: 1},
		{Kind: pattern.ConstraintLabel, Var1: ta, Param1: ageLabel, HasParam1: true, SourceOrder: 2},
		{Kind: pattern.ConstraintComparison, Var1: attr, Param2: newVal, HasParam2: true, Comparator: pattern.CmpEq, SourceOrder: 3},
	}
	ann, err := annotate.Annotate(block, e.cache)
	require.NoError(t, err)

	positions := map[pattern.VariableID]int{owner: 0}
	x, err := CompileUpdate(block.Root, block, ann, positions, 1)
	require.NoError(t, err)

	in := row.New(1)
	in.Values[0] = row.OfThing(concept.Thing{ID: p})
	_, err = x.Execute(e.writer, e.cache, block.Parameters, in)
	require.NoError(t, err)

	has := e.writer.HasByOwner(p, []concept.Type{e.age})
	defer has.Close()
	require.True(t, has.Next())
	require.Equal(t, int64(11), has.Tuple().Value.Integer)
	require.False(t, has.Next())
}
