package fs

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	lfs := LocalFS{}
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "f")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	info, err := f.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
	require.NoError(t, f.Close())

	renamed := filepath.Join(dir, "g")
	require.NoError(t, lfs.Rename(path, renamed))
	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "g", entries[0].Name())

	require.NoError(t, lfs.Remove(renamed))
	_, err = lfs.Stat(renamed)
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, lfs.RemoveAll(filepath.Dir(dir)))
}

func TestFaultyFS_Rules(t *testing.T) {
	dir := t.TempDir()
	ffs := NewFaultyFS(nil)
	custom := errors.New("disk on fire")

	ffs.AddRule("noopen", Fault{FailOnOpen: true, FailAfterBytes: -1})
	ffs.AddRule("short", Fault{FailAfterBytes: 4, Err: custom})
	ffs.AddRule("nosync", Fault{FailOnSync: true, FailAfterBytes: -1})
	ffs.AddRule("norename", Fault{FailOnRename: true, FailAfterBytes: -1})

	_, err := ffs.OpenFile(filepath.Join(dir, "noopen"), os.O_CREATE|os.O_WRONLY, 0o644)
	assert.ErrorIs(t, err, ErrInjected)

	f, err := ffs.OpenFile(filepath.Join(dir, "short"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("abc"))
	require.NoError(t, err)
	_, err = f.Write([]byte("de"))
	assert.ErrorIs(t, err, custom)
	require.NoError(t, f.Close())

	f, err = ffs.OpenFile(filepath.Join(dir, "nosync"), os.O_CREATE|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	assert.ErrorIs(t, f.Sync(), ErrInjected)
	require.NoError(t, f.Close())

	err = ffs.Rename(filepath.Join(dir, "short"), filepath.Join(dir, "norename"))
	assert.ErrorIs(t, err, ErrInjected)

	ffs.RemoveRule("noopen")
	f, err = ffs.OpenFile(filepath.Join(dir, "noopen"), os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = io.WriteString(f, "ok")
	require.NoError(t, err)
	require.NoError(t, f.Close())
}
