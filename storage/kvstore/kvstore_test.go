package kvstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func openTemp(t *testing.T) *BadgerKV {
	t.Helper()
	dir, err := os.MkdirTemp("", "kvstore-test-*")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	kv, err := Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestSetGetRoundTrip(t *testing.T) {
	kv := openTemp(t)
	require.NoError(t, kv.Update(func(tx WriteTx) error {
		return tx.Set([]byte("a"), []byte("1"))
	}))

	require.NoError(t, kv.View(func(tx ReadTx) error {
		val, found, err := tx.Get([]byte("a"))
		require.NoError(t, err)
		require.True(t, found)
		require.Equal(t, "1", string(val))
		return nil
	}))
}

func TestGetMissingKeyNotFound(t *testing.T) {
	kv := openTemp(t)
	require.NoError(t, kv.View(func(tx ReadTx) error {
		_, found, err := tx.Get([]byte("missing"))
		require.NoError(t, err)
		require.False(t, found)
		return nil
	}))
}

func TestCursorWalksRangeInOrder(t *testing.T) {
	kv := openTemp(t)
	require.NoError(t, kv.Update(func(tx WriteTx) error {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := tx.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var seen []string
	require.NoError(t, kv.View(func(tx ReadTx) error {
		c := tx.NewCursor([]byte("b"), []byte("d"))
		defer c.Close()
		for c.Next() {
			seen = append(seen, string(c.Key()))
		}
		return nil
	}))
	require.Equal(t, []string{"b", "c"}, seen)
}

func TestCursorSeekFastForwards(t *testing.T) {
	kv := openTemp(t)
	require.NoError(t, kv.Update(func(tx WriteTx) error {
		for _, k := range []string{"a", "b", "c", "d"} {
			if err := tx.Set([]byte(k), []byte(k)); err != nil {
				return err
			}
		}
		return nil
	}))

	var seen []string
	require.NoError(t, kv.View(func(tx ReadTx) error {
		c := tx.NewCursor([]byte("a"), nil)
		defer c.Close()
		c.Seek([]byte("c"))
		for c.Next() {
			seen = append(seen, string(c.Key()))
		}
		return nil
	}))
	require.Equal(t, []string{"c", "d"}, seen)
}

func TestDeleteRemovesKey(t *testing.T) {
	kv := openTemp(t)
	require.NoError(t, kv.Update(func(tx WriteTx) error {
		return tx.Set([]byte("a"), []byte("1"))
	}))
	require.NoError(t, kv.Update(func(tx WriteTx) error {
		return tx.Delete([]byte("a"))
	}))
	require.NoError(t, kv.View(func(tx ReadTx) error {
		_, found, err := tx.Get([]byte("a"))
		require.NoError(t, err)
		require.False(t, found)
		return nil
	}))
}
