package lifecycle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInconsistentState matches every *InconsistentStateError.
	ErrInconsistentState = errors.New("index is in an inconsistent state")
	// ErrLockTimeout is returned when another operation holds the index for too long.
	ErrLockTimeout = errors.New("timed out waiting for index lock")
)

// InconsistentStateError reports an index with only one of its two artifacts.
// Nothing is repaired automatically.
type InconsistentStateError struct {
	Name        string
	HasManifest bool
	HasVectors  bool
}

func (e *InconsistentStateError) Error() string {
	have, missing := "manifest", "vector index"
	if e.HasVectors {
		have, missing = missing, have
	}
	return fmt.Sprintf("index %q has a %s but no %s", e.Name, have, missing)
}

// Is lets errors.Is(err, ErrInconsistentState) match.
func (e *InconsistentStateError) Is(target error) bool {
	return target == ErrInconsistentState
}

// PartialDeleteError reports artifacts that a delete could not remove.
type PartialDeleteError struct {
	Name      string
	Remaining []string
}

func (e *PartialDeleteError) Error() string {
	return fmt.Sprintf("index %q partially deleted; remaining: %s", e.Name, strings.Join(e.Remaining, ", "))
}
