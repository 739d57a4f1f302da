package audience

import (
	"errors"
	"fmt"
)

// ErrResolution matches every ResolutionError via errors.Is
var ErrResolution = errors.New("audience resolution failed")

// ResolutionError means the person store could not be queried.
// No partial audience is ever returned alongside it.
type ResolutionError struct {
	Err error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("%s: %v", ErrResolution, e.Err)
}

func (e *ResolutionError) Unwrap() []error {
	return []error{ErrResolution, e.Err}
}
