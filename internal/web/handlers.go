package web

import (
	"bytes"
	"net/http"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-spotify-genome/internal/auth"
	"github.com/justestif/go-spotify-genome/internal/genome"
)

// Handlers contains HTTP handlers for the web application.
type Handlers struct {
	ctrl      *auth.Controller
	templates *Templates
	logger    *log.Logger
	topTracks int
	strands   genome.StrandConfig
}

// TopSong is one entry of the /top_songs_data response.
type TopSong struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	URL    string `json:"url"`
}

// Home handles the landing page (GET /).
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	data := HomePageData{
		PageData: PageData{
			Title:       "Spotify Genome",
			CurrentPath: r.URL.Path,
		},
	}

	if sess, err := h.ctrl.RequireSession(r); err == nil {
		data.Authenticated = true
		data.User = &UserData{ID: sess.UserID, Name: sess.UserName}
	}

	h.render(w, http.StatusOK, "home", data)
}

// Login redirects to the Spotify consent page (GET /login).
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	url, err := h.ctrl.BeginLogin(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

// Callback completes the OAuth flow (GET /callback).
func (h *Handlers) Callback(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ctrl.HandleCallback(w, r); err != nil {
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, "/profile", http.StatusSeeOther)
}

// Profile renders the visitor's profile and genome (GET /profile).
func (h *Handlers) Profile(w http.ResponseWriter, r *http.Request) {
	visit, err := h.ctrl.Verify(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ctx := r.Context()
	tracks, err := visit.Client.TopTracks(ctx, h.topTracks)
	if err != nil {
		h.writeError(w, r, h.ctrl.Abandon(w, r, err))
		return
	}

	if err := visit.Client.FetchAudioFeatures(ctx, tracks); err != nil {
		h.logger.Warn("audio features unavailable", "user", visit.Session.UserID, "err", err)
	}

	data := ProfilePageData{
		PageData: PageData{
			Title:       visit.Identity.DisplayName + "'s Genome",
			CurrentPath: r.URL.Path,
			User:        &UserData{ID: visit.Identity.UserID, Name: visit.Identity.DisplayName},
		},
		Identity: visit.Identity,
		Genome:   genome.Build(tracks, h.strands),
	}

	h.render(w, http.StatusOK, "profile", data)
}

// TopSongsData returns the visitor's top tracks as JSON (GET /top_songs_data).
func (h *Handlers) TopSongsData(w http.ResponseWriter, r *http.Request) {
	visit, err := h.ctrl.Verify(w, r)
	if err != nil {
		h.writeJSONError(w, r, err)
		return
	}

	tracks, err := visit.Client.TopTracks(r.Context(), h.topTracks)
	if err != nil {
		h.writeJSONError(w, r, h.ctrl.Abandon(w, r, err))
		return
	}

	songs := make([]TopSong, len(tracks))
	for i, t := range tracks {
		songs[i] = TopSong{Name: t.Name, Artist: t.Artist, URL: t.URL}
	}

	writeJSON(w, http.StatusOK, songs)
}

// Logout ends the visitor's session and returns home (GET or POST /logout).
func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.ctrl.Logout(w, r); err != nil {
		h.logger.Error("logout", "err", err)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handlers) render(w http.ResponseWriter, status int, page string, data any) {
	var buf bytes.Buffer
	if err := h.templates.Render(&buf, page, data); err != nil {
		h.logger.Error("rendering template", "page", page, "err", err)
		http.Error(w, "Failed to render template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
