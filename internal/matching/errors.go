package matching

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput rejects a single call: malformed ids, empty pools.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingData marks absent records. Scorers recover from it with a
	// neutral score; callers see it only for a missing anchor entity or user.
	ErrMissingData = errors.New("missing data")
	// ErrUpstreamFetch marks a failed fetch from a data collaborator.
	ErrUpstreamFetch = errors.New("upstream fetch failed")
)

// UpstreamFetchError reports which collaborator failed.
type UpstreamFetchError struct {
	Source string
	Err    error
}

func (e *UpstreamFetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Source, e.Err)
}

func (e *UpstreamFetchError) Unwrap() error { return e.Err }

func (e *UpstreamFetchError) Is(target error) bool { return target == ErrUpstreamFetch }

// Upstream wraps err as an UpstreamFetchError. A nil err stays nil.
func Upstream(source string, err error) error {
	if err == nil {
		return nil
	}
	return &UpstreamFetchError{Source: source, Err: err}
}
