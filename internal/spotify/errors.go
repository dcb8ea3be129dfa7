package spotify

import (
	"errors"
	"fmt"

	"github.com/zmb3/spotify/v2"
)

// ProviderError reports a failed call to the Spotify Web API: network
// trouble, an expired or revoked token, or a rate limit.
type ProviderError struct {
	Op     string
	Status int // HTTP status reported by Spotify, 0 if none
	Err    error
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("spotify: %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("spotify: %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// wrapError converts a client library error into a ProviderError.
func wrapError(op string, err error) error {
	pe := &ProviderError{Op: op, Err: err}

	var apiErr spotify.Error
	var apiErrPtr *spotify.Error
	switch {
	case errors.As(err, &apiErr):
		pe.Status = apiErr.Status
	case errors.As(err, &apiErrPtr):
		pe.Status = apiErrPtr.Status
	}
	return pe
}
