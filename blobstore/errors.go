package blobstore

import "errors"

// IsNotFound reports whether err means the blob does not exist.
func IsNotFound(err error) bool { return isNotFound(err) }

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
