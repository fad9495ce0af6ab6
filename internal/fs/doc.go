// Package fs abstracts the file system operations of local blob stores so
// tests can inject failures.
//
//   - [LocalFS] forwards to the os package; [Default] is a LocalFS.
//   - [FaultyFS] wraps another FileSystem and fails opens, writes, syncs,
//     closes or renames for paths matching a rule.
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("pv.", fs.Fault{FailOnSync: true, FailAfterBytes: -1})
//
// The interface carries no context: local file operations are not
// interruptible at the syscall level.
package fs
