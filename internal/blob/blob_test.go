package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalStoreWritesNestedPath(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	store, err := NewLocalStore(root)
	require.NoError(t, err)

	uri, err := store.PutObject(context.Background(),
		"figures/science/modern/marie-curie/portrait/abc123.jpg", "image/jpeg", []byte("jpeg-bytes"))
	require.NoError(t, err)
	require.Contains(t, uri, "file://")

	data, err := os.ReadFile(filepath.Join(root, "figures", "science", "modern", "marie-curie", "portrait", "abc123.jpg"))
	require.NoError(t, err)
	require.Equal(t, []byte("jpeg-bytes"), data)
}

func TestLocalStoreRequiresRoot(t *testing.T) {
	t.Parallel()
	_, err := NewLocalStore("")
	require.Error(t, err)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	t.Parallel()
	store := NewMemoryStore()
	payload := []byte("jpeg-bytes")

	uri, err := store.PutObject(context.Background(), "figures/a.jpg", "image/jpeg", payload)
	require.NoError(t, err)
	require.Equal(t, "mem://figures/a.jpg", uri)

	payload[0] = 'X'
	stored, ok := store.Object("figures/a.jpg")
	require.True(t, ok)
	require.Equal(t, []byte("jpeg-bytes"), stored, "stored bytes are insulated from caller mutation")
}
