package blobstore

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"local":  func(t *testing.T) Store { return NewLocalStore(t.TempDir()) },
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("PutOpenRoundtrip", func(t *testing.T) {
				store := newStore(t)

				payload := []byte("hello blob")
				require.NoError(t, store.Put(ctx, "a.bin", payload))

				blob, err := store.Open(ctx, "a.bin")
				require.NoError(t, err)
				defer blob.Close()

				require.EqualValues(t, len(payload), blob.Size())

				got := make([]byte, len(payload))
				_, err = blob.ReadAt(got, 0)
				require.NoError(t, err)
				assert.Equal(t, payload, got)
			})

			t.Run("ReadAtOffsets", func(t *testing.T) {
				store := newStore(t)

				require.NoError(t, store.Put(ctx, "a.bin", []byte("0123456789")))

				blob, err := store.Open(ctx, "a.bin")
				require.NoError(t, err)
				defer blob.Close()

				got := make([]byte, 4)
				_, err = blob.ReadAt(got, 3)
				require.NoError(t, err)
				assert.Equal(t, []byte("3456"), got)

				_, err = blob.ReadAt(got, 100)
				assert.ErrorIs(t, err, io.EOF)

				n, err := blob.ReadAt(got, 8)
				assert.ErrorIs(t, err, io.EOF)
				assert.Equal(t, 2, n)
			})

			t.Run("OpenMissing", func(t *testing.T) {
				store := newStore(t)

				_, err := store.Open(ctx, "missing.bin")
				assert.True(t, errors.Is(err, ErrNotFound))
			})

			t.Run("PutReplaces", func(t *testing.T) {
				store := newStore(t)

				require.NoError(t, store.Put(ctx, "a.bin", []byte("old")))
				require.NoError(t, store.Put(ctx, "a.bin", []byte("new value")))

				blob, err := store.Open(ctx, "a.bin")
				require.NoError(t, err)
				defer blob.Close()

				got := make([]byte, blob.Size())
				_, err = blob.ReadAt(got, 0)
				require.NoError(t, err)
				assert.Equal(t, []byte("new value"), got)
			})

			t.Run("DeleteAndList", func(t *testing.T) {
				store := newStore(t)

				require.NoError(t, store.Put(ctx, "snapshot-1.fsg", []byte("one")))
				require.NoError(t, store.Put(ctx, "snapshot-2.fsg", []byte("two")))
				require.NoError(t, store.Put(ctx, "other.txt", []byte("x")))

				names, err := store.List(ctx, "snapshot-")
				require.NoError(t, err)
				assert.Equal(t, []string{"snapshot-1.fsg", "snapshot-2.fsg"}, names)

				require.NoError(t, store.Delete(ctx, "snapshot-1.fsg"))
				require.NoError(t, store.Delete(ctx, "snapshot-1.fsg"))

				names, err = store.List(ctx, "snapshot-")
				require.NoError(t, err)
				assert.Equal(t, []string{"snapshot-2.fsg"}, names)
			})
		})
	}
}
