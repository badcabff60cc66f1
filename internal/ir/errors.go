package ir

import "errors"

// ErrNotFound is returned by collaborators when a referenced entity, node or
// channel set does not exist. Callers treat it as a stale reference.
var ErrNotFound = errors.New("not found")
