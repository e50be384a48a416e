package thread

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedRecord  = errors.New("malformed comment record")
	ErrNodeNotFound     = errors.New("comment not found in forest")
	ErrTombstoned       = errors.New("comment is deleted")
	ErrPlaceholder      = errors.New("comment is not confirmed yet")
	ErrInvalidDirection = errors.New("vote direction must be 1 or -1")
	ErrEmptyBody        = errors.New("comment body is empty")
)

// MutationError is returned by Resolve when a mutation failed and its
// overlay was rolled back. It identifies the attempted action so callers
// can offer a retry.
type MutationError struct {
	Kind   Kind
	NodeID string
	Err    error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s on comment %s failed: %v", e.Kind, e.NodeID, e.Err)
}

func (e *MutationError) Unwrap() error {
	return e.Err
}
