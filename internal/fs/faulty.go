package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("fs: injected fault")

// Fault describes how operations on matching paths fail.
type Fault struct {
	// FailOnOpen fails OpenFile for reading or writing.
	FailOnOpen bool
	// FailAfterBytes fails writes once a file has received this many bytes.
	// Negative disables the limit.
	FailAfterBytes int64
	FailOnSync     bool
	FailOnClose    bool
	FailOnRename   bool
	// Err overrides ErrInjected.
	Err error
}

func (f Fault) err() error {
	if f.Err != nil {
		return f.Err
	}
	return ErrInjected
}

// FaultyFS wraps a FileSystem and injects failures for paths containing a
// registered pattern.
type FaultyFS struct {
	FS FileSystem

	mu    sync.Mutex
	rules map[string]Fault
}

// NewFaultyFS wraps fs, or Default when fs is nil.
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{FS: fs, rules: make(map[string]Fault)}
}

// AddRule injects fault for every path containing pattern.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// RemoveRule drops the rule for pattern.
func (f *FaultyFS) RemoveRule(pattern string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rules, pattern)
}

func (f *FaultyFS) match(name string) (Fault, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			return rule, true
		}
	}
	return Fault{FailAfterBytes: -1}, false
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault, ok := f.match(name)
	if ok && fault.FailOnOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.err()}
	}
	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil || !ok {
		return file, err
	}
	return &faultyFile{File: file, fault: fault}, nil
}

func (f *FaultyFS) Remove(name string) error    { return f.FS.Remove(name) }
func (f *FaultyFS) RemoveAll(path string) error { return f.FS.RemoveAll(path) }

func (f *FaultyFS) Rename(oldpath, newpath string) error {
	if fault, ok := f.match(newpath); ok && fault.FailOnRename {
		return &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: fault.err()}
	}
	return f.FS.Rename(oldpath, newpath)
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) { return f.FS.Stat(name) }

func (f *FaultyFS) MkdirAll(path string, perm os.FileMode) error {
	return f.FS.MkdirAll(path, perm)
}

func (f *FaultyFS) ReadDir(name string) ([]os.DirEntry, error) { return f.FS.ReadDir(name) }

type faultyFile struct {
	File
	fault   Fault
	written int64
}

func (ff *faultyFile) Write(p []byte) (int, error) {
	if ff.fault.FailAfterBytes >= 0 && ff.written+int64(len(p)) > ff.fault.FailAfterBytes {
		return 0, ff.fault.err()
	}
	n, err := ff.File.Write(p)
	ff.written += int64(n)
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.err()
	}
	return ff.File.Sync()
}

func (ff *faultyFile) Close() error {
	if ff.fault.FailOnClose {
		_ = ff.File.Close()
		return ff.fault.err()
	}
	return ff.File.Close()
}
