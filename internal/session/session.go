// Package session keeps per-visitor login state.
//
// Every visitor holds a signed and encrypted cookie. With no backend the whole
// record lives in that cookie; with a backend the cookie carries only a random
// session ID and the record is kept server-side. Either way a record can only
// be reached through the visitor's own cookie.
package session

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

const (
	// CookieName is the name of the visitor cookie.
	CookieName = "genome_session"

	// DefaultTTL is how long a session stays valid after login.
	DefaultTTL = 24 * time.Hour
)

var (
	// ErrNoSession is returned when the request carries no usable session.
	ErrNoSession = errors.New("no session")

	// ErrNotFound is returned by a Backend for unknown or expired IDs.
	ErrNotFound = errors.New("session not found")
)

// Session represents an authenticated visitor.
type Session struct {
	ID        string        `json:"id"`
	UserID    string        `json:"user_id"`
	UserName  string        `json:"user_name"`
	Token     *oauth2.Token `json:"token"`
	CreatedAt time.Time     `json:"created_at"`
	ExpiresAt time.Time     `json:"expires_at"`
}

// Expired reports whether the session is past its lifetime at t.
func (s *Session) Expired(t time.Time) bool {
	return !t.Before(s.ExpiresAt)
}

// clone returns a deep copy so callers never share a token pointer.
func (s *Session) clone() *Session {
	c := *s
	if s.Token != nil {
		tok := *s.Token
		c.Token = &tok
	}
	return &c
}

// Backend stores session records server-side.
type Backend interface {
	Save(ctx context.Context, s *Session) error
	Load(ctx context.Context, id string) (*Session, error)
	UpdateToken(ctx context.Context, id string, token *oauth2.Token) error
	Delete(ctx context.Context, id string) error
}
