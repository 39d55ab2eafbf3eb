package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/boxcars/internal/storage"
	"github.com/cory-johannsen/boxcars/internal/storage/file"
)

func TestStore_LoadMissing(t *testing.T) {
	s := file.New(filepath.Join(t.TempDir(), "state.json"))
	_, err := s.Load(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestStore_SaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")
	s := file.New(path)
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, []byte(`{"players":[]}`)))
	require.NoError(t, s.Save(ctx, []byte(`{"players":[1]}`)))

	data, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"players":[1]}`, string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files are cleaned up")
}

func TestStore_SaveHonoursCancelledContext(t *testing.T) {
	s := file.New(filepath.Join(t.TempDir(), "state.json"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, s.Save(ctx, []byte("{}")))
}
