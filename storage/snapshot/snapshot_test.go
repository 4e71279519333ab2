package snapshot

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/typedb/typedb-sub006/storage/kvstore"
)

func seeded(t *testing.T, pairs map[string]string) kvstore.KV {
	t.Helper()
	kv := kvstore.OpenMemory()
	require.NoError(t, kv.Update(func(tx kvstore.WriteTx) error {
		for k, v := range pairs {
			if err := tx.Set([]byte(k), []byte(v)); err != nil {
				return err
			}
		}
		return nil
	}))
	return kv
}

func collect(t *testing.T, it *Iterator) map[string]string {
	t.Helper()
	out := map[string]string{}
	for it.Next() {
		out[string(it.Key())] = string(it.Value())
	}
	require.NoError(t, it.Err())
	return out
}

func TestIterateStoreOnly(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	snap := NewRead(kv.BeginRead(), kv.Sequence())
	defer snap.Close()

	got := collect(t, snap.IterateRange(BoundedRange([]byte("a"), []byte("c"))))
	require.Equal(t, map[string]string{"a": "1", "b": "2"}, got)
}

func TestBufferedPutShadowsStore(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "old", "b": "2"})
	snap := NewWrite(kv.BeginRead(), kv.Sequence())
	defer snap.Close()
	snap.Put([]byte("a"), []byte("new"))

	got := collect(t, snap.IterateRange(KeyRange{End: EndUnbounded}))
	require.Equal(t, "new", got["a"])
	require.Equal(t, "2", got["b"])
}

func TestBufferedDeleteHidesStore(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	snap := NewWrite(kv.BeginRead(), kv.Sequence())
	defer snap.Close()
	snap.Delete([]byte("b"))

	got := collect(t, snap.IterateRange(KeyRange{End: EndUnbounded}))
	require.Equal(t, map[string]string{"a": "1", "c": "3"}, got)

	_, found, err := snap.Get([]byte("b"))
	require.NoError(t, err)
	require.False(t, found)
}

func TestBufferedPutBetweenStoreKeys(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "1", "c": "3"})
	snap := NewWrite(kv.BeginRead(), kv.Sequence())
	defer snap.Close()
	snap.Put([]byte("b"), []byte("2"))

	it := snap.IterateRange(KeyRange{End: EndUnbounded})
	var order []string
	for it.Next() {
		order = append(order, string(it.Key()))
	}
	require.NoError(t, it.Err())
	require.Equal(t, []string{"a", "b", "c"}, order)
}

func TestSeekFastForwards(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "1", "b": "2", "c": "3", "d": "4"})
	snap := NewWrite(kv.BeginRead(), kv.Sequence())
	defer snap.Close()
	snap.Put([]byte("bb"), []byte("x"))

	it := snap.IterateRange(KeyRange{End: EndUnbounded})
	it.Seek([]byte("bb"))
	require.True(t, it.Next())
	require.Equal(t, "bb", string(it.Key()))
	require.True(t, it.Next())
	require.Equal(t, "c", string(it.Key()))
}

func TestSeekDoesNotRegress(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "1", "b": "2", "c": "3"})
	snap := NewRead(kv.BeginRead(), kv.Sequence())
	defer snap.Close()

	it := snap.IterateRange(KeyRange{End: EndUnbounded})
	require.True(t, it.Next())
	require.True(t, it.Next())
	require.Equal(t, "b", string(it.Key()))
	it.Seek([]byte("a"))
	require.True(t, it.Next())
	require.Equal(t, "c", string(it.Key()))
}

func TestEmptyRangeYieldsNothing(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "1"})
	snap := NewRead(kv.BeginRead(), kv.Sequence())
	defer snap.Close()

	it := snap.IterateRange(PrefixRange([]byte("zzz")))
	require.False(t, it.Next())
	require.NoError(t, it.Err())
}

func TestExclusiveStartSkipsFirst(t *testing.T) {
	kv := seeded(t, map[string]string{"p1": "1", "p2": "2", "p3": "3"})
	snap := NewRead(kv.BeginRead(), kv.Sequence())
	defer snap.Close()

	it := snap.IterateRange(ExclusiveStart([]byte("p"), []byte("p1")))
	var order []string
	for it.Next() {
		order = append(order, string(it.Key()))
	}
	require.Equal(t, []string{"p2", "p3"}, order)
}

func TestWriteIntoReplaysBufferInOrder(t *testing.T) {
	kv := seeded(t, map[string]string{"a": "1"})
	snap := NewWrite(kv.BeginRead(), kv.Sequence())
	snap.Put([]byte("b"), []byte("2"))
	snap.Delete([]byte("a"))
	snap.Close()

	require.NoError(t, kv.Update(func(tx kvstore.WriteTx) error {
		return snap.WriteInto(tx)
	}))

	readBack := NewRead(kv.BeginRead(), kv.Sequence())
	defer readBack.Close()
	got := collect(t, readBack.IterateRange(KeyRange{End: EndUnbounded}))
	require.Equal(t, map[string]string{"b": "2"}, got)
}

func TestCommittedSnapshotSeesPutsMinusDeletes(t *testing.T) {
	kv := seeded(t, map[string]string{"keep": "1", "drop": "2"})

	snap := NewWrite(kv.BeginRead(), kv.Sequence())
	snap.Put([]byte("new"), []byte("3"))
	snap.Delete([]byte("drop"))
	require.NoError(t, kv.Update(func(tx kvstore.WriteTx) error { return snap.WriteInto(tx) }))
	snap.Close()

	after := NewRead(kv.BeginRead(), kv.Sequence())
	defer after.Close()
	got := collect(t, after.IterateRange(KeyRange{End: EndUnbounded}))
	require.Equal(t, map[string]string{"keep": "1", "new": "3"}, got)
}
