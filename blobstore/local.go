package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/hupe1980/gridstore/internal/fs"
)

// DefaultTempDir is the directory, relative to the store root, that holds
// in-flight writes.
const DefaultTempDir = ".tmp"

// LocalOption configures a LocalStore.
type LocalOption func(*LocalStore)

// WithFileSystem replaces the file system, e.g. with fs.FaultyFS in tests.
func WithFileSystem(fsys fs.FileSystem) LocalOption {
	return func(s *LocalStore) {
		if fsys != nil {
			s.fs = fsys
		}
	}
}

// WithTempDir sets the temp directory name below the root.
func WithTempDir(name string) LocalOption {
	return func(s *LocalStore) {
		if name != "" {
			s.tmpName = name
		}
	}
}

// LocalStore keeps blobs as files in one directory. Writes go to a temp
// file that is synced and renamed over the target.
type LocalStore struct {
	root    string
	tmpName string
	fs      fs.FileSystem
	seq     atomic.Uint64
}

// NewLocalStore creates root and its temp directory if needed.
func NewLocalStore(root string, opts ...LocalOption) (*LocalStore, error) {
	s := &LocalStore{
		root:    root,
		tmpName: DefaultTempDir,
		fs:      fs.Default,
	}
	for _, opt := range opts {
		opt(s)
	}
	if err := s.fs.MkdirAll(s.TempDir(), 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: create %s: %w", s.TempDir(), err)
	}
	return s, nil
}

// Root returns the store directory.
func (s *LocalStore) Root() string { return s.root }

// TempDir returns the in-flight write directory.
func (s *LocalStore) TempDir() string { return filepath.Join(s.root, s.tmpName) }

func (s *LocalStore) path(name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	return filepath.Join(s.root, name), nil
}

func (s *LocalStore) Get(_ context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := s.fs.OpenFile(p, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *LocalStore) Put(_ context.Context, name string, data []byte) (err error) {
	p, err := s.path(name)
	if err != nil {
		return err
	}

	tmp := filepath.Join(s.TempDir(), name+"."+strconv.FormatUint(s.seq.Add(1), 10))
	f, err := s.fs.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = s.fs.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return s.fs.Rename(tmp, p)
}

func (s *LocalStore) Delete(_ context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := s.fs.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (s *LocalStore) Exists(_ context.Context, name string) (bool, error) {
	p, err := s.path(name)
	if err != nil {
		return false, err
	}
	if _, err := s.fs.Stat(p); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	entries, err := s.fs.ReadDir(s.root)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), prefix) {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

// Size returns the size of a blob without reading it.
func (s *LocalStore) Size(_ context.Context, name string) (int64, error) {
	p, err := s.path(name)
	if err != nil {
		return 0, err
	}
	info, err := s.fs.Stat(p)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// CleanTemp removes leftovers of interrupted writes.
func (s *LocalStore) CleanTemp() error {
	if err := s.fs.RemoveAll(s.TempDir()); err != nil {
		return err
	}
	return s.fs.MkdirAll(s.TempDir(), 0o755)
}

// Close removes the temp directory.
func (s *LocalStore) Close() error {
	return s.fs.RemoveAll(s.TempDir())
}
