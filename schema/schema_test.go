package schema

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/concept"
)

func buildPersonSchema(t *testing.T) *Cache {
	t.Helper()
	s := NewSchema()
	person := s.DefineType(concept.Label{Name: "person"}, concept.KindEntity, nil)
	age := s.DefineAttributeType(concept.Label{Name: "age"}, nil, concept.ValueTypeInteger)
	name := s.DefineAttributeType(concept.Label{Name: "name"}, nil, concept.ValueTypeString)
	s.DeclareOwns(person, age, Annotation{Kind: AnnotationCardinality, Min: 0, Max: 10})
	s.DeclareOwns(person, name, Annotation{Kind: AnnotationCardinality, Min: 0, Max: 10})
	c, err := s.Build(1)
	require.NoError(t, err)
	return c
}

func TestOwnsClosureResolvesDirectOwns(t *testing.T) {
	c := buildPersonSchema(t)
	person, _ := c.Resolve("person")
	closure := c.OwnsClosure(person)
	require.Len(t, closure, 2)
}

func TestSubtypesIncludesSelfAndDescendants(t *testing.T) {
	s := NewSchema()
	animal := s.DefineType(concept.Label{Name: "animal"}, concept.KindEntity, nil)
	dog := s.DefineType(concept.Label{Name: "dog"}, concept.KindEntity, &animal)
	c, err := s.Build(1)
	require.NoError(t, err)
	subs := c.Subtypes(animal)
	require.ElementsMatch(t, []concept.Type{animal, dog}, subs)
}

func TestValueTypeInheritedMonotonically(t *testing.T) {
	s := NewSchema()
	base := s.DefineAttributeType(concept.Label{Name: "base-id"}, nil, concept.ValueTypeString)
	sub := s.DefineType(concept.Label{Name: "sub-id"}, concept.KindAttribute, &base)
	c, err := s.Build(1)
	require.NoError(t, err)
	ti, ok := c.TypeInfo(sub)
	require.True(t, ok)
	require.True(t, ti.HasValueType)
	require.Equal(t, concept.ValueTypeString, ti.ValueType)
}

func TestCyclicSubtypeRejected(t *testing.T) {
	s := NewSchema()
	a := s.DefineType(concept.Label{Name: "a"}, concept.KindEntity, nil)
	b := s.DefineType(concept.Label{Name: "b"}, concept.KindEntity, &a)
	// Force a cycle: a's parent becomes b.
	s.Types[0].Parent = &b
	_, err := s.Build(1)
	require.Error(t, err)
}

func TestRelatesPlaysClosure(t *testing.T) {
	s := NewSchema()
	person := s.DefineType(concept.Label{Name: "person"}, concept.KindEntity, nil)
	friendship := s.DefineType(concept.Label{Name: "friendship"}, concept.KindRelation, nil)
	friend := s.DefineType(concept.Label{Scope: "friendship", Name: "friend"}, concept.KindRole, nil)
	s.DeclareRelates(friendship, friend)
	s.DeclarePlays(person, friend)
	c, err := s.Build(1)
	require.NoError(t, err)
	closure := c.RelatesPlaysClosure(friendship)
	require.Len(t, closure, 1)
	require.Equal(t, person, closure[0].Player)
	require.Equal(t, friend, closure[0].Role)
}

func TestCacheHolderSwapIsVisibleToNewReaders(t *testing.T) {
	h := NewCacheHolder(buildPersonSchema(t))
	before := h.Current()
	s := NewSchema()
	s.DefineType(concept.Label{Name: "other"}, concept.KindEntity, nil)
	next, err := s.Build(2)
	require.NoError(t, err)
	h.Swap(next)
	require.NotEqual(t, before.Version(), h.Current().Version())
}

func TestCommitLockTimesOut(t *testing.T) {
	l := NewCommitLock()
	require.True(t, l.Acquire(time.Millisecond))
	require.False(t, l.Acquire(5*time.Millisecond))
	l.Release()
	require.True(t, l.Acquire(time.Millisecond))
}
