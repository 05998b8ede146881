package repository

import "errors"

// ErrNotFound is returned when a requested record is not found in the
// repository. This abstracts away the underlying storage implementation
// from the service layer.
var ErrNotFound = errors.New("record not found")

// ErrDuplicate is returned when an insert violates a uniqueness constraint,
// e.g. a second writer racing on the same (competitor, node, attempt number)
// tuple. The service layer translates it into a conflict, never a retry.
var ErrDuplicate = errors.New("record already exists")
