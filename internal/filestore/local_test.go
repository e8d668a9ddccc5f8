package filestore

import (
	"context"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	require.Equal(t, "local", store.Type())

	ctx := context.Background()
	body := "hello archive"
	require.NoError(t, store.Save(ctx, "doc.txt", strings.NewReader(body), int64(len(body))))

	rc, err := store.Open(ctx, "doc.txt")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, body, string(data))
}

func TestLocalStoreDelete(t *testing.T) {
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, "gone.txt", strings.NewReader("bye"), 3))
	require.NoError(t, store.Delete(ctx, "gone.txt"))
	_, err = store.Open(ctx, "gone.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)
	// already removed
	require.NoError(t, store.Delete(ctx, "gone.txt"))
	require.ErrorIs(t, store.Delete(ctx, "../x"), ErrInvalidKey)
}

func TestLocalStoreRejectsPaths(t *testing.T) {
	store, err := New("local", map[string]interface{}{"dir": t.TempDir()})
	require.NoError(t, err)
	for _, key := range []string{"", "..", "a/b", `a\b`} {
		require.ErrorIs(t, store.Save(context.Background(), key, strings.NewReader("x"), 1), ErrInvalidKey)
	}
	_, err = store.Open(context.Background(), "missing.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)
	require.Error(t, store.Save(context.Background(), "short.txt", strings.NewReader("x"), 5))
}

func TestNewUnknownType(t *testing.T) {
	_, err := New("ftp", nil)
	require.Error(t, err)
	_, err = New("", nil)
	require.Error(t, err)
	_, err = New("local", map[string]interface{}{})
	require.Error(t, err)
}
