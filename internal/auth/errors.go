package auth

import (
	"errors"
	"fmt"

	"golang.org/x/oauth2"
)

var (
	// ErrUnauthenticated is returned when the visitor has no valid session.
	ErrUnauthenticated = errors.New("not authenticated")

	// ErrStateMismatch is returned when the OAuth state parameter doesn't match.
	ErrStateMismatch = errors.New("OAuth state mismatch")

	// ErrMissingCode is returned when the callback carries no authorization code.
	ErrMissingCode = errors.New("missing authorization code")
)

// AuthError reports a failed login. Hint is safe to show to the visitor.
type AuthError struct {
	Op   string
	Err  error
	hint string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}

// Hint returns the remediation shown to the visitor.
func (e *AuthError) Hint() string {
	if e.hint == "" {
		return "Login failed. Please try again."
	}
	return e.hint
}

// redirectHint tells the operator how to fix a rejected code exchange.
func redirectHint(redirectURI string) string {
	return fmt.Sprintf(
		"Spotify rejected the login. Verify that the redirect URI configured for this app (%s) "+
			"exactly matches the one registered in the Spotify developer dashboard, "+
			"including scheme, host, port and path.", redirectURI)
}

// exchangeError classifies a failed code exchange.
func exchangeError(redirectURI string, err error) *AuthError {
	ae := &AuthError{Op: "exchanging code", Err: err}

	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		switch re.ErrorCode {
		case "invalid_grant", "invalid_client", "invalid_request", "":
			ae.hint = redirectHint(redirectURI)
		default:
			ae.hint = fmt.Sprintf("Spotify refused the login (%s).", re.ErrorCode)
		}
		return ae
	}

	ae.hint = "Could not reach Spotify to complete the login. Please try again."
	return ae
}

// SessionIntegrityError reports a session whose token belongs to a different
// Spotify user than the one recorded at login.
type SessionIntegrityError struct {
	SessionUser string
	TokenOwner  string
}

func (e *SessionIntegrityError) Error() string {
	return fmt.Sprintf("auth: session user %q does not own its token (owner %q)", e.SessionUser, e.TokenOwner)
}
