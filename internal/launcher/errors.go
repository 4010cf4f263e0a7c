package launcher

import (
	"errors"
	"fmt"
)

var (
	// ErrLaunchTimeout means the browser did not become ready in time.
	ErrLaunchTimeout = errors.New("launch timeout")
	// ErrLaunchFailure means the browser process could not be started.
	ErrLaunchFailure = errors.New("launch failure")
	// ErrProfileInUse is wrapped by a launch failure when another session
	// of this process already owns the profile's data directory.
	ErrProfileInUse = errors.New("profile already in use")
)

// Kind classifies a LaunchError.
type Kind int

const (
	KindFailure Kind = iota
	KindTimeout
)

func (k Kind) String() string {
	if k == KindTimeout {
		return "timeout"
	}
	return "failure"
}

// LaunchError reports why a session could not be started.
type LaunchError struct {
	Kind      Kind
	ProfileID string
	Err       error
}

func (e *LaunchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("launch %s: %s", e.ProfileID, e.Kind)
	}
	return fmt.Sprintf("launch %s: %s: %v", e.ProfileID, e.Kind, e.Err)
}

func (e *LaunchError) Unwrap() error { return e.Err }

// Is matches ErrLaunchTimeout or ErrLaunchFailure according to Kind.
func (e *LaunchError) Is(target error) bool {
	switch target {
	case ErrLaunchTimeout:
		return e.Kind == KindTimeout
	case ErrLaunchFailure:
		return e.Kind == KindFailure
	}
	return false
}

func failure(profileID string, err error) *LaunchError {
	return &LaunchError{Kind: KindFailure, ProfileID: profileID, Err: err}
}
