package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/justestif/go-spotify-genome/internal/session"
	"github.com/justestif/go-spotify-genome/internal/spotify"
)

const (
	stateCookieName = "oauth_state"
	stateTTL        = 10 * time.Minute
)

// ControllerConfig holds the Controller's collaborators.
type ControllerConfig struct {
	Authenticator *Authenticator
	Sessions      *session.Store
	Logger        *log.Logger
	SecureCookies bool
}

// Controller runs the login flow and guards data-fetching requests.
type Controller struct {
	auth     *Authenticator
	sessions *session.Store
	logger   *log.Logger
	secure   bool
}

// NewController creates a Controller.
func NewController(cfg ControllerConfig) *Controller {
	return &Controller{
		auth:     cfg.Authenticator,
		sessions: cfg.Sessions,
		logger:   cfg.Logger,
		secure:   cfg.SecureCookies,
	}
}

// Visit is a verified request: a live API client for the session's user.
type Visit struct {
	Client   *spotify.Client
	Session  *session.Session
	Identity *spotify.Identity
}

// BeginLogin stores a fresh OAuth state on the visitor and returns the
// Spotify consent URL to redirect to. No session is touched.
func (c *Controller) BeginLogin(w http.ResponseWriter, r *http.Request) (string, error) {
	state, err := generateState()
	if err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})

	c.logger.Info("login started")
	return c.auth.AuthURL(state), nil
}

// HandleCallback completes the login: it checks the state, exchanges the
// code for a new token, learns who owns it and stores both in a new session
// for this visitor, replacing any previous one.
func (c *Controller) HandleCallback(w http.ResponseWriter, r *http.Request) (*session.Session, error) {
	q := r.URL.Query()

	expected := ""
	if cookie, err := r.Cookie(stateCookieName); err == nil {
		expected = cookie.Value
	}
	c.clearState(w)

	if expected == "" || q.Get("state") != expected {
		return nil, &AuthError{Op: "checking state", Err: ErrStateMismatch,
			hint: "The login link expired or was opened in another browser. Please log in again."}
	}

	if errMsg := q.Get("error"); errMsg != "" {
		return nil, &AuthError{Op: "authorizing", Err: fmt.Errorf("spotify auth error: %s", errMsg),
			hint: fmt.Sprintf("Spotify did not authorize the login (%s).", errMsg)}
	}

	code := q.Get("code")
	if code == "" {
		return nil, &AuthError{Op: "reading callback", Err: ErrMissingCode, hint: redirectHint(c.auth.RedirectURI())}
	}

	ctx := r.Context()
	token, err := c.auth.Exchange(ctx, code)
	if err != nil {
		c.logger.Warn("code exchange failed", "err", err)
		return nil, exchangeError(c.auth.RedirectURI(), err)
	}

	identity, err := spotify.New(c.auth.Client(ctx, token)).Profile(ctx)
	if err != nil {
		return nil, c.Abandon(w, r, err)
	}

	sess, err := c.sessions.Create(w, r, token, identity.UserID, identity.DisplayName)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	c.logger.Info("session created", "user", identity.UserID)
	return sess, nil
}

// Logout destroys the caller's session and nothing else.
func (c *Controller) Logout(w http.ResponseWriter, r *http.Request) error {
	return c.Invalidate(w, r, "logout")
}

// Invalidate destroys the caller's session, logging reason.
func (c *Controller) Invalidate(w http.ResponseWriter, r *http.Request, reason string) error {
	if err := c.sessions.Destroy(w, r); err != nil {
		return err
	}
	c.logger.Info("session destroyed", "reason", reason)
	return nil
}

// Abandon destroys the caller's session when err is a provider failure and
// returns err unchanged. Other errors leave the session alone.
func (c *Controller) Abandon(w http.ResponseWriter, r *http.Request, err error) error {
	var providerErr *spotify.ProviderError
	if !errors.As(err, &providerErr) {
		return err
	}
	if derr := c.Invalidate(w, r, "provider error"); derr != nil {
		c.logger.Error("destroying session", "err", derr)
	}
	return err
}

// RequireSession returns the visitor's session or ErrUnauthenticated.
func (c *Controller) RequireSession(r *http.Request) (*session.Session, error) {
	sess, err := c.sessions.Get(r)
	if errors.Is(err, session.ErrNoSession) {
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Verify checks that the visitor is logged in and that the session's token
// still belongs to the user recorded at login. A provider failure or an
// identity mismatch destroys the session.
func (c *Controller) Verify(w http.ResponseWriter, r *http.Request) (*Visit, error) {
	sess, err := c.RequireSession(r)
	if err != nil {
		return nil, err
	}

	client := spotify.New(c.auth.Client(r.Context(), sess.Token))

	identity, err := client.Profile(r.Context())
	if err != nil {
		return nil, c.Abandon(w, r, err)
	}

	if identity.UserID != sess.UserID {
		if derr := c.Invalidate(w, r, "identity mismatch"); derr != nil {
			c.logger.Error("destroying session", "err", derr)
		}
		return nil, &SessionIntegrityError{SessionUser: sess.UserID, TokenOwner: identity.UserID}
	}

	c.saveRefreshedToken(w, r, sess, client)

	return &Visit{Client: client, Session: sess, Identity: identity}, nil
}

// saveRefreshedToken writes the token back when oauth2 refreshed it.
func (c *Controller) saveRefreshedToken(w http.ResponseWriter, r *http.Request, sess *session.Session, client *spotify.Client) {
	token, err := client.Token()
	if err != nil || token.AccessToken == sess.Token.AccessToken {
		return
	}
	if err := c.sessions.UpdateToken(w, r, sess, token); err != nil {
		c.logger.Warn("saving refreshed token", "err", err)
		return
	}
	c.logger.Debug("token refreshed", "user", sess.UserID)
}

func (c *Controller) clearState(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
