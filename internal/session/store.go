package session

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"golang.org/x/crypto/hkdf"
	"golang.org/x/oauth2"
)

const keySize = 32

// Cookie value keys.
const (
	keyID           = "id"
	keyUserID       = "uid"
	keyUserName     = "name"
	keyAccessToken  = "at"
	keyRefreshToken = "rt"
	keyTokenType    = "tt"
	keyTokenExpiry  = "exp"
	keyCreatedAt    = "created"
	keyExpiresAt    = "expires"
)

// Store issues and reads visitor sessions.
type Store struct {
	cookies *sessions.CookieStore
	backend Backend
	ttl     time.Duration
	now     func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithBackend keeps session records server-side in b.
func WithBackend(b Backend) Option {
	return func(s *Store) {
		s.backend = b
	}
}

// WithTTL sets the session lifetime.
func WithTTL(d time.Duration) Option {
	return func(s *Store) {
		s.ttl = d
	}
}

// WithSecureCookies marks the cookie Secure (https only).
func WithSecureCookies(secure bool) Option {
	return func(s *Store) {
		s.cookies.Options.Secure = secure
	}
}

// withClock overrides time.Now in tests.
func withClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// New creates a Store whose cookies are signed and encrypted with keys
// derived from secret.
func New(secret []byte, opts ...Option) (*Store, error) {
	if len(secret) == 0 {
		return nil, errors.New("session secret is empty")
	}

	hashKey, err := deriveKey(secret, "genome session hash key")
	if err != nil {
		return nil, err
	}
	blockKey, err := deriveKey(secret, "genome session block key")
	if err != nil {
		return nil, err
	}

	s := &Store{
		cookies: sessions.NewCookieStore(hashKey, blockKey),
		ttl:     DefaultTTL,
		now:     time.Now,
	}
	// Secure is opt-in through WithSecureCookies.
	s.cookies.Options.Path = "/"
	s.cookies.Options.HttpOnly = true
	s.cookies.Options.Secure = false
	s.cookies.Options.SameSite = http.SameSiteLaxMode

	for _, opt := range opts {
		opt(s)
	}

	// Sets the cookie Max-Age and the codec's timestamp window together.
	s.cookies.MaxAge(int(s.ttl.Seconds()))

	return s, nil
}

// Create starts a new session for the visitor, replacing any session the
// visitor already had, and writes the cookie to w.
func (s *Store) Create(w http.ResponseWriter, r *http.Request, token *oauth2.Token, userID, userName string) (*Session, error) {
	if token == nil {
		return nil, errors.New("cannot create session without token")
	}

	if s.backend != nil {
		if old, err := s.Get(r); err == nil {
			_ = s.backend.Delete(r.Context(), old.ID)
		}
	}

	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		UserName:  userName,
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if s.backend != nil {
		if err := s.backend.Save(r.Context(), sess); err != nil {
			return nil, fmt.Errorf("saving session: %w", err)
		}
	}

	// New ignores decode errors of a stale cookie; we overwrite it anyway.
	cs, _ := s.cookies.New(r, CookieName)
	cs.Values = make(map[any]any)
	s.encode(cs, sess)

	if err := s.cookies.Save(r, w, cs); err != nil {
		return nil, fmt.Errorf("writing session cookie: %w", err)
	}

	return sess.clone(), nil
}

// Get returns the visitor's session, or ErrNoSession if the request has no
// valid, unexpired session.
func (s *Store) Get(r *http.Request) (*Session, error) {
	cs, err := s.cookies.Get(r, CookieName)
	if err != nil || cs.IsNew {
		return nil, ErrNoSession
	}

	id, _ := cs.Values[keyID].(string)
	if id == "" {
		return nil, ErrNoSession
	}

	var sess *Session
	if s.backend != nil {
		sess, err = s.backend.Load(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoSession
		}
		if err != nil {
			return nil, fmt.Errorf("loading session: %w", err)
		}
	} else {
		sess = decode(cs.Values)
	}

	if sess.Expired(s.now()) {
		return nil, ErrNoSession
	}

	return sess, nil
}

// UpdateToken replaces the token of sess, typically after a refresh.
func (s *Store) UpdateToken(w http.ResponseWriter, r *http.Request, sess *Session, token *oauth2.Token) error {
	if token == nil {
		return errors.New("cannot store nil token")
	}

	if s.backend != nil {
		if err := s.backend.UpdateToken(r.Context(), sess.ID, token); err != nil {
			return fmt.Errorf("updating session token: %w", err)
		}
		sess.Token = token
		return nil
	}

	cs, err := s.cookies.Get(r, CookieName)
	if err != nil || cs.IsNew {
		return ErrNoSession
	}

	sess.Token = token
	s.encode(cs, sess)

	if err := s.cookies.Save(r, w, cs); err != nil {
		return fmt.Errorf("writing session cookie: %w", err)
	}
	return nil
}

// Destroy removes the visitor's session and expires the cookie. It never
// touches any other visitor's session.
func (s *Store) Destroy(w http.ResponseWriter, r *http.Request) error {
	cs, err := s.cookies.Get(r, CookieName)
	if err == nil && !cs.IsNew && s.backend != nil {
		if id, _ := cs.Values[keyID].(string); id != "" {
			if err := s.backend.Delete(r.Context(), id); err != nil {
				return fmt.Errorf("deleting session: %w", err)
			}
		}
	}

	cs.Values = make(map[any]any)
	cs.Options.MaxAge = -1

	if err := s.cookies.Save(r, w, cs); err != nil {
		return fmt.Errorf("clearing session cookie: %w", err)
	}
	return nil
}

// encode writes sess into cookie values. Server-side backends keep only the ID.
func (s *Store) encode(cs *sessions.Session, sess *Session) {
	cs.Values[keyID] = sess.ID
	if s.backend != nil {
		return
	}

	cs.Values[keyUserID] = sess.UserID
	cs.Values[keyUserName] = sess.UserName
	cs.Values[keyAccessToken] = sess.Token.AccessToken
	cs.Values[keyRefreshToken] = sess.Token.RefreshToken
	cs.Values[keyTokenType] = sess.Token.TokenType
	cs.Values[keyTokenExpiry] = sess.Token.Expiry.Unix()
	cs.Values[keyCreatedAt] = sess.CreatedAt.Unix()
	cs.Values[keyExpiresAt] = sess.ExpiresAt.Unix()
}

// decode rebuilds a cookie-held session.
func decode(values map[any]any) *Session {
	str := func(k string) string {
		v, _ := values[k].(string)
		return v
	}
	unix := func(k string) time.Time {
		v, ok := values[k].(int64)
		if !ok || v <= 0 {
			return time.Time{}
		}
		return time.Unix(v, 0)
	}

	return &Session{
		ID:       str(keyID),
		UserID:   str(keyUserID),
		UserName: str(keyUserName),
		Token: &oauth2.Token{
			AccessToken:  str(keyAccessToken),
			RefreshToken: str(keyRefreshToken),
			TokenType:    str(keyTokenType),
			Expiry:       unix(keyTokenExpiry),
		},
		CreatedAt: unix(keyCreatedAt),
		ExpiresAt: unix(keyExpiresAt),
	}
}

// deriveKey expands secret into a keySize key bound to info.
func deriveKey(secret []byte, info string) ([]byte, error) {
	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, fmt.Errorf("deriving session key: %w", err)
	}
	return key, nil
}
