//go:build unix

package flock

import (
	"os"

	"golang.org/x/sys/unix"
)

// flock(2) locks belong to the open file description, so two descriptors in
// one process still conflict.
func tryLock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
}

func unlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
