// Package spotifytest provides an in-process fake of the Spotify accounts
// service and Web API for tests.
package spotifytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
)

// User is a fake Spotify account.
type User struct {
	ID          string
	DisplayName string
	Email       string
	Country     string
	TopTracks   []string
}

// Server fakes accounts.spotify.com and api.spotify.com.
type Server struct {
	*httptest.Server

	// RegisteredRedirectURI is the redirect URI the fake app is registered
	// with. Code exchanges with any other redirect_uri are rejected.
	RegisteredRedirectURI string

	exchanges atomic.Int64
	refreshes atomic.Int64

	mu       sync.Mutex
	seq      int
	users    map[string]User
	codes    map[string]string // code -> user id
	access   map[string]string // access token -> user id
	refresh  map[string]string // refresh token -> user id
	audioErr bool
	topErr   bool
}

// NewServer starts a fake closed when t finishes.
func NewServer(t testing.TB, redirectURI string) *Server {
	t.Helper()

	s := &Server{
		RegisteredRedirectURI: redirectURI,
		users:                 make(map[string]User),
		codes:                 make(map[string]string),
		access:                make(map[string]string),
		refresh:               make(map[string]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/token", s.handleToken)
	mux.HandleFunc("GET /v1/me", s.handleMe)
	mux.HandleFunc("GET /v1/me/top/tracks", s.handleTopTracks)
	mux.HandleFunc("GET /v1/audio-features", s.handleAudioFeatures)

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account.
func (s *Server) AddUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// Consent simulates userID approving the consent page and returns the
// single-use authorization code Spotify would hand to the callback.
func (s *Server) Consent(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	code := fmt.Sprintf("code-%d", s.seq)
	s.codes[code] = userID
	return code
}

// RevokeTokens invalidates every access and refresh token issued so far.
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
	s.refresh = make(map[string]string)
}

// Reassign makes every token issued to from resolve to to, as if the
// tokens had been swapped.
func (s *Server) Reassign(from, to string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for tok, owner := range s.access {
		if owner == from {
			s.access[tok] = to
		}
	}
}

// FailAudioFeatures makes the audio features endpoint return 403.
func (s *Server) FailAudioFeatures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioErr = true
}

// FailTopTracks makes the top tracks endpoint return 403.
func (s *Server) FailTopTracks() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.topErr = true
}

// Exchanges returns how many authorization codes were exchanged.
func (s *Server) Exchanges() int64 {
	return s.exchanges.Load()
}

// Refreshes returns how many refresh grants were served.
func (s *Server) Refreshes() int64 {
	return s.refreshes.Load()
}

// Client returns an http.Client that sends Spotify traffic to the fake.
func (s *Server) Client() *http.Client {
	target, _ := url.Parse(s.URL)
	return &http.Client{Transport: &rewriteTransport{target: target, base: s.Server.Client().Transport}}
}

type rewriteTransport struct {
	target *url.URL
	base   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	switch r.URL.Host {
	case "accounts.spotify.com", "api.spotify.com":
		r = r.Clone(r.Context())
		r.URL.Scheme = t.target.Scheme
		r.URL.Host = t.target.Host
		r.Host = t.target.Host
	}
	return t.base.RoundTrip(r)
}

func (s *Server) issue(userID string) map[string]any {
	s.seq++
	at := fmt.Sprintf("access-%d", s.seq)
	rt := fmt.Sprintf("refresh-%d", s.seq)
	s.access[at] = userID
	s.refresh[rt] = userID
	return map[string]any{
		"access_token":  at,
		"token_type":    "Bearer",
		"expires_in":    3600,
		"refresh_token": rt,
		"scope":         "user-read-private user-read-email user-top-read",
	}
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, "invalid_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "authorization_code":
		s.exchanges.Add(1)
		if r.PostForm.Get("redirect_uri") != s.RegisteredRedirectURI {
			oauthError(w, "invalid_grant", "Invalid redirect URI")
			return
		}
		code := r.PostForm.Get("code")
		userID, ok := s.codes[code]
		if !ok {
			oauthError(w, "invalid_grant", "Invalid authorization code")
			return
		}
		delete(s.codes, code)
		writeJSON(w, http.StatusOK, s.issue(userID))

	case "refresh_token":
		s.refreshes.Add(1)
		userID, ok := s.refresh[r.PostForm.Get("refresh_token")]
		if !ok {
			oauthError(w, "invalid_grant", "Refresh token revoked")
			return
		}
		writeJSON(w, http.StatusOK, s.issue(userID))

	default:
		oauthError(w, "unsupported_grant_type", "")
	}
}

// owner resolves the bearer token, writing a 401 when it is unknown.
func (s *Server) owner(w http.ResponseWriter, r *http.Request) (User, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.access[token]
	if !ok {
		apiError(w, http.StatusUnauthorized, "Invalid access token")
		return User{}, false
	}
	return s.users[userID], true
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.owner(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":           u.ID,
		"display_name": u.DisplayName,
		"email":        u.Email,
		"country":      u.Country,
		"images":       []any{},
	})
}

func (s *Server) handleTopTracks(w http.ResponseWriter, r *http.Request) {
	u, ok := s.owner(w, r)
	if !ok {
		return
	}

	s.mu.Lock()
	fail := s.topErr
	s.mu.Unlock()
	if fail {
		apiError(w, http.StatusForbidden, "Forbidden")
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 20
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	end := min(offset+limit, len(u.TopTracks))
	items := []any{}
	for i := offset; i < end; i++ {
		items = append(items, trackJSON(TrackID(u.ID, i), u.TopTracks[i], u.DisplayName))
	}

	next := ""
	if end < len(u.TopTracks) {
		next = fmt.Sprintf("https://api.spotify.com/v1/me/top/tracks?offset=%d&limit=%d", end, limit)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"items":  items,
		"limit":  limit,
		"offset": offset,
		"total":  len(u.TopTracks),
		"next":   next,
	})
}

func (s *Server) handleAudioFeatures(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.owner(w, r); !ok {
		return
	}

	s.mu.Lock()
	fail := s.audioErr
	s.mu.Unlock()
	if fail {
		apiError(w, http.StatusForbidden, "Forbidden")
		return
	}

	var features []any
	for i, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		level := float64(i%4) / 4
		features = append(features, map[string]any{
			"id":           id,
			"energy":       level,
			"valence":      1 - level,
			"danceability": 0.5,
			"acousticness": level / 2,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"audio_features": features})
}

// TrackID is the id the fake gives the i-th top track of userID.
func TrackID(userID string, i int) string {
	return fmt.Sprintf("%s%03d", userID, i)
}

func trackJSON(id, name, artist string) map[string]any {
	return map[string]any{
		"id":            id,
		"name":          name,
		"artists":       []map[string]any{{"name": artist}},
		"album":         map[string]any{"name": "Album of " + name},
		"external_urls": map[string]string{"spotify": "https://open.spotify.com/track/" + id},
	}
}

func oauthError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{
		"error":             code,
		"error_description": description,
	})
}

func apiError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{"status": status, "message": message},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
