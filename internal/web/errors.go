package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/justestif/go-spotify-genome/internal/auth"
	"github.com/justestif/go-spotify-genome/internal/spotify"
)

// writeError maps an error from the auth or provider layer to a page.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		authErr      *auth.AuthError
		providerErr  *spotify.ProviderError
		integrityErr *auth.SessionIntegrityError
	)

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		http.Redirect(w, r, "/login", http.StatusSeeOther)

	case errors.As(err, &integrityErr):
		h.logger.Warn("session integrity check failed", "err", err)
		http.Redirect(w, r, "/login", http.StatusSeeOther)

	case errors.As(err, &authErr):
		h.logger.Warn("login failed", "err", err)
		h.renderError(w, http.StatusBadRequest, "Login failed", authErr.Hint())

	case errors.As(err, &providerErr):
		h.logger.Warn("spotify request failed", "err", err)
		h.renderError(w, http.StatusBadGateway, "Spotify request failed",
			"Spotify did not answer as expected. Please log in again.")

	default:
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		h.renderError(w, http.StatusInternalServerError, "Something went wrong", "Please try again.")
	}
}

// writeJSONError is writeError for JSON endpoints.
func (h *Handlers) writeJSONError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		providerErr  *spotify.ProviderError
		integrityErr *auth.SessionIntegrityError
	)

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "not authenticated"})

	case errors.As(err, &integrityErr):
		h.logger.Warn("session integrity check failed", "err", err)
		writeJSON(w, http.StatusUnauthorized, errorBody{Error: "session invalidated, please log in again"})

	case errors.As(err, &providerErr):
		h.logger.Warn("spotify request failed", "err", err)
		writeJSON(w, http.StatusBadGateway, errorBody{Error: "spotify request failed, please log in again"})

	default:
		h.logger.Error("request failed", "path", r.URL.Path, "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (h *Handlers) renderError(w http.ResponseWriter, status int, heading, message string) {
	h.render(w, status, "error", ErrorPageData{
		PageData: PageData{Title: heading},
		Status:   status,
		Heading:  heading,
		Message:  message,
	})
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
