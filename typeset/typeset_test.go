package typeset

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/concept"
)

func et(id int) concept.Type { return concept.Type{Kind: concept.KindEntity, ID: concept.TypeID(id)} }

func TestIntersectNarrowsNeverWidens(t *testing.T) {
	a := Of(et(1), et(2), et(3))
	b := Of(et(2), et(3), et(4))
	a.Intersect(b)
	require.ElementsMatch(t, []concept.Type{et(2), et(3)}, a.Slice())
}

func TestUnionCombinesBranches(t *testing.T) {
	a := Of(et(1))
	b := Of(et(2))
	a.Union(b)
	require.ElementsMatch(t, []concept.Type{et(1), et(2)}, a.Slice())
}

func TestEmptySetDetected(t *testing.T) {
	a := Of(et(1))
	b := Of(et(2))
	a.Intersect(b)
	require.True(t, a.IsEmpty())
}

func TestSliceIsDeterministicallyOrdered(t *testing.T) {
	s := Of(et(5), et(1), et(3))
	require.Equal(t, []concept.Type{et(1), et(3), et(5)}, s.Slice())
}
