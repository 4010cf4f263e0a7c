package profile

import (
	"errors"
	"fmt"
)

// ErrResolution is matched by every ResolutionError.
var ErrResolution = errors.New("profile resolution failed")

// ResolutionError reports a malformed required field. Optional fields
// degrade instead of producing this error.
type ResolutionError struct {
	Field  string
	Reason string
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve profile: %s: %s", e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrResolution) hold.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolution
}
