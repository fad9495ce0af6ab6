package blobstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrNotFound is returned when a blob does not exist. It is os.ErrNotExist
// so local and remote stores can be checked the same way.
var ErrNotFound = os.ErrNotExist

// ErrInvalidName is returned for names that are empty or contain path
// separators.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// Store holds whole blobs by flat name. Implementations are safe for
// concurrent use.
type Store interface {
	// Get returns the blob contents or ErrNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put replaces the blob atomically: readers see the old or the new
	// contents, never a mix.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes the blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// Exists reports whether the blob is present.
	Exists(ctx context.Context, name string) (bool, error)
	// List returns the names starting with prefix, in no particular order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ValidateName rejects names that could escape a flat namespace.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
