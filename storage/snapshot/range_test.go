package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyRangeContainsPrefix(t *testing.T) {
	r := PrefixRange([]byte{1, 2})
	require.True(t, r.Contains([]byte{1, 2, 3}))
	require.False(t, r.Contains([]byte{1, 3}))
	require.False(t, r.Contains([]byte{1}))
}

func TestKeyRangeBounded(t *testing.T) {
	r := BoundedRange([]byte{1, 0}, []byte{1, 5})
	require.True(t, r.Contains([]byte{1, 0}))
	require.True(t, r.Contains([]byte{1, 4}))
	require.False(t, r.Contains([]byte{1, 5}))
}

func TestPrefixSuccessorCarries(t *testing.T) {
	require.Equal(t, []byte{1, 3}, prefixSuccessor([]byte{1, 2}))
	require.Equal(t, []byte{2}, prefixSuccessor([]byte{1, 0xff}))
	require.Nil(t, prefixSuccessor([]byte{0xff, 0xff}))
}
