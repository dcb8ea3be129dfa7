package web

import (
	"encoding/json"
	"io"
	"io/fs"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	assets "github.com/justestif/go-spotify-genome/web"

	"github.com/justestif/go-spotify-genome/internal/auth"
	"github.com/justestif/go-spotify-genome/internal/logging"
	"github.com/justestif/go-spotify-genome/internal/session"
	"github.com/justestif/go-spotify-genome/internal/spotifytest"
)

type app struct {
	url  string
	fake *spotifytest.Server
}

type appOptions struct {
	backend session.Backend
	// registered overrides the redirect URI the fake Spotify app expects.
	registered string
}

func newApp(t *testing.T, opts appOptions) *app {
	t.Helper()

	var handler http.Handler
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handler.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	redirectURI := srv.URL + "/callback"
	registered := opts.registered
	if registered == "" {
		registered = redirectURI
	}

	fake := spotifytest.NewServer(t, registered)
	fake.AddUser(spotifytest.User{
		ID: "alice", DisplayName: "Alice", Email: "alice@example.com", Country: "SE",
		TopTracks: []string{"Zebra Crossing", "Apple Orchard", "Midnight Drive", "Blue Hour"},
	})
	fake.AddUser(spotifytest.User{
		ID: "bob", DisplayName: "Bob",
		TopTracks: []string{"Bob Song One", "Bob Song Two"},
	})

	authenticator, err := auth.New(auth.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  redirectURI,
		HTTPClient:   fake.Client(),
	})
	if err != nil {
		t.Fatalf("auth.New() error = %v", err)
	}

	var storeOpts []session.Option
	if opts.backend != nil {
		storeOpts = append(storeOpts, session.WithBackend(opts.backend))
	}
	store, err := session.New([]byte("test-secret"), storeOpts...)
	if err != nil {
		t.Fatalf("session.New() error = %v", err)
	}

	templatesFS, err := fs.Sub(assets.TemplatesFS, "templates")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}
	staticFS, err := fs.Sub(assets.StaticFS, "static")
	if err != nil {
		t.Fatalf("fs.Sub() error = %v", err)
	}

	server, err := NewServer(ServerConfig{
		Controller: auth.NewController(auth.ControllerConfig{
			Authenticator: authenticator,
			Sessions:      store,
			Logger:        logging.Discard(),
		}),
		Logger:      logging.Discard(),
		TemplatesFS: templatesFS,
		StaticFS:    staticFS,
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	handler = server.Handler()

	return &app{url: srv.URL, fake: fake}
}

// modes runs fn against a cookie-only and a memory-backed app.
func modes(t *testing.T, fn func(t *testing.T, a *app)) {
	t.Run("cookie", func(t *testing.T) { fn(t, newApp(t, appOptions{})) })
	t.Run("memory", func(t *testing.T) { fn(t, newApp(t, appOptions{backend: session.NewMemoryBackend()})) })
}

// visitor is a browser with its own cookie jar.
type visitor struct {
	t      *testing.T
	app    *app
	client *http.Client
}

func (a *app) visitor(t *testing.T) *visitor {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() error = %v", err)
	}
	return &visitor{
		t:   t,
		app: a,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

type response struct {
	status   int
	location string
	body     string
	// cleared counts Set-Cookie headers that expire the session cookie.
	cleared int
}

func (v *visitor) do(method, target string) response {
	v.t.Helper()

	if strings.HasPrefix(target, "/") {
		target = v.app.url + target
	}
	req, err := http.NewRequest(method, target, nil)
	if err != nil {
		v.t.Fatalf("NewRequest(%s %s) error = %v", method, target, err)
	}
	resp, err := v.client.Do(req)
	if err != nil {
		v.t.Fatalf("%s %s error = %v", method, target, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		v.t.Fatalf("reading body: %v", err)
	}
	cleared := 0
	for _, c := range resp.Cookies() {
		if c.Name == session.CookieName && c.MaxAge < 0 {
			cleared++
		}
	}
	return response{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(body), cleared: cleared}
}

func (v *visitor) get(path string) response {
	v.t.Helper()
	return v.do(http.MethodGet, path)
}

// startLogin follows /login and returns the consent URL.
func (v *visitor) startLogin() *url.URL {
	v.t.Helper()

	resp := v.get("/login")
	if resp.status != http.StatusTemporaryRedirect {
		v.t.Fatalf("GET /login status = %d, want %d", resp.status, http.StatusTemporaryRedirect)
	}
	consent, err := url.Parse(resp.location)
	if err != nil {
		v.t.Fatalf("parsing consent URL: %v", err)
	}
	return consent
}

// callback returns from the consent page as userID.
func (v *visitor) callback(consent *url.URL, userID string) response {
	v.t.Helper()

	q := url.Values{}
	q.Set("code", v.app.fake.Consent(userID))
	q.Set("state", consent.Query().Get("state"))
	return v.get(consent.Query().Get("redirect_uri") + "?" + q.Encode())
}

func (v *visitor) login(userID string) {
	v.t.Helper()

	resp := v.callback(v.startLogin(), userID)
	if resp.status != http.StatusSeeOther || resp.location != "/profile" {
		v.t.Fatalf("callback = %d %q, want 303 /profile (body %q)", resp.status, resp.location, resp.body)
	}
}

func wantRedirectToLogin(t *testing.T, resp response) {
	t.Helper()
	if resp.status != http.StatusSeeOther || resp.location != "/login" {
		t.Errorf("response = %d %q, want 303 /login", resp.status, resp.location)
	}
}

func TestLogin_RedirectsToConsent(t *testing.T) {
	a := newApp(t, appOptions{})
	consent := a.visitor(t).startLogin()

	if consent.Host != "accounts.spotify.com" {
		t.Errorf("host = %q", consent.Host)
	}
	if consent.Query().Get("show_dialog") != "true" {
		t.Error("consent URL does not force the account chooser")
	}
	if consent.Query().Get("redirect_uri") != a.url+"/callback" {
		t.Errorf("redirect_uri = %q", consent.Query().Get("redirect_uri"))
	}
}

func TestProfile_RendersTitlesInOrder(t *testing.T) {
	modes(t, func(t *testing.T, a *app) {
		v := a.visitor(t)
		v.login("alice")

		resp := v.get("/profile")
		if resp.status != http.StatusOK {
			t.Fatalf("GET /profile status = %d, body %q", resp.status, resp.body)
		}

		titles := []string{"Zebra Crossing", "Apple Orchard", "Midnight Drive", "Blue Hour"}
		last := -1
		for _, title := range titles {
			idx := strings.Index(resp.body, title)
			if idx < 0 {
				t.Fatalf("title %q missing from profile", title)
			}
			if idx < last {
				t.Errorf("title %q out of order", title)
			}
			last = idx
		}
		if got := strings.Count(resp.body, `class="title"`); got != len(titles) {
			t.Errorf("rendered %d tracks, want %d", got, len(titles))
		}
		if !strings.Contains(resp.body, "alice@example.com") {
			t.Error("profile should show the e-mail")
		}
	})
}

func TestProfile_AudioFeaturesFailureStillRenders(t *testing.T) {
	a := newApp(t, appOptions{})
	a.fake.FailAudioFeatures()

	v := a.visitor(t)
	v.login("alice")

	resp := v.get("/profile")
	if resp.status != http.StatusOK {
		t.Fatalf("GET /profile status = %d", resp.status)
	}
	if !strings.Contains(resp.body, "Zebra Crossing") {
		t.Error("profile should still list tracks")
	}
}

func TestProfile_Unauthenticated(t *testing.T) {
	a := newApp(t, appOptions{})
	wantRedirectToLogin(t, a.visitor(t).get("/profile"))
}

func TestVisitorsAreIsolated(t *testing.T) {
	modes(t, func(t *testing.T, a *app) {
		alice := a.visitor(t)
		bob := a.visitor(t)

		alice.login("alice")

		// Bob has not logged in and must not see Alice's data.
		resp := bob.get("/profile")
		wantRedirectToLogin(t, resp)
		if strings.Contains(resp.body, "Zebra Crossing") {
			t.Error("unauthenticated visitor saw another visitor's tracks")
		}
		if resp := bob.get("/top_songs_data"); resp.status != http.StatusUnauthorized {
			t.Errorf("bob /top_songs_data status = %d, want 401", resp.status)
		}

		bob.login("bob")

		aliceProfile := alice.get("/profile").body
		bobProfile := bob.get("/profile").body
		if !strings.Contains(aliceProfile, "Zebra Crossing") || strings.Contains(aliceProfile, "Bob Song One") {
			t.Error("alice's profile shows the wrong tracks")
		}
		if !strings.Contains(bobProfile, "Bob Song One") || strings.Contains(bobProfile, "Zebra Crossing") {
			t.Error("bob's profile shows the wrong tracks")
		}
	})
}

func TestLogin_FreshExchangeEveryTime(t *testing.T) {
	a := newApp(t, appOptions{})
	v := a.visitor(t)

	v.login("alice")
	v.login("alice")

	if got := a.fake.Exchanges(); got != 2 {
		t.Errorf("token endpoint exchanges = %d, want 2", got)
	}
}

func TestLogout_ClearsOnlyCaller(t *testing.T) {
	modes(t, func(t *testing.T, a *app) {
		alice := a.visitor(t)
		bob := a.visitor(t)
		alice.login("alice")
		bob.login("bob")

		resp := alice.do(http.MethodPost, "/logout")
		if resp.status != http.StatusSeeOther || resp.location != "/" {
			t.Errorf("POST /logout = %d %q, want 303 /", resp.status, resp.location)
		}

		wantRedirectToLogin(t, alice.get("/profile"))
		if resp := bob.get("/profile"); resp.status != http.StatusOK {
			t.Errorf("bob /profile after alice logout status = %d, want 200", resp.status)
		}
	})
}

func TestProfile_IdentityMismatchForcesLogin(t *testing.T) {
	modes(t, func(t *testing.T, a *app) {
		v := a.visitor(t)
		v.login("alice")

		a.fake.Reassign("alice", "bob")
		resp := v.get("/profile")
		wantRedirectToLogin(t, resp)
		if strings.Contains(resp.body, "Bob Song One") {
			t.Error("mismatched session returned track data")
		}

		// The session is gone even once the token resolves to alice again.
		a.fake.Reassign("bob", "alice")
		wantRedirectToLogin(t, v.get("/profile"))
	})
}

func TestProfile_ProviderErrorForcesLogin(t *testing.T) {
	modes(t, func(t *testing.T, a *app) {
		v := a.visitor(t)
		v.login("alice")
		a.fake.RevokeTokens()

		resp := v.get("/profile")
		if resp.status != http.StatusBadGateway {
			t.Fatalf("GET /profile status = %d, want 502", resp.status)
		}
		if !strings.Contains(resp.body, "log in again") {
			t.Errorf("body should ask to log in again: %q", resp.body)
		}
		if resp.cleared != 1 {
			t.Errorf("session cookie cleared %d times, want 1", resp.cleared)
		}

		wantRedirectToLogin(t, v.get("/profile"))
	})
}

func TestTopTracksFailure_ClearsSessionOnce(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{name: "profile", path: "/profile", wantStatus: http.StatusBadGateway},
		{name: "top songs data", path: "/top_songs_data", wantStatus: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			modes(t, func(t *testing.T, a *app) {
				v := a.visitor(t)
				v.login("alice")
				a.fake.FailTopTracks()

				resp := v.get(tt.path)
				if resp.status != tt.wantStatus {
					t.Fatalf("GET %s status = %d, want %d", tt.path, resp.status, tt.wantStatus)
				}
				if resp.cleared != 1 {
					t.Errorf("session cookie cleared %d times, want 1", resp.cleared)
				}

				wantRedirectToLogin(t, v.get("/profile"))
			})
		})
	}
}

func TestTopSongsData_ProviderErrorClearsSessionOnce(t *testing.T) {
	a := newApp(t, appOptions{backend: session.NewMemoryBackend()})
	v := a.visitor(t)
	v.login("alice")
	a.fake.RevokeTokens()

	resp := v.get("/top_songs_data")
	if resp.status != http.StatusBadGateway {
		t.Fatalf("GET /top_songs_data status = %d, want 502", resp.status)
	}
	if resp.cleared != 1 {
		t.Errorf("session cookie cleared %d times, want 1", resp.cleared)
	}
	if resp := v.get("/top_songs_data"); resp.status != http.StatusUnauthorized {
		t.Errorf("second GET /top_songs_data status = %d, want 401", resp.status)
	}
}

func TestCallback_RedirectURIMismatch(t *testing.T) {
	a := newApp(t, appOptions{registered: "http://127.0.0.1:5000/callback"})
	v := a.visitor(t)

	resp := v.callback(v.startLogin(), "alice")

	if resp.status != http.StatusBadRequest {
		t.Fatalf("callback status = %d, want 400", resp.status)
	}
	if !strings.Contains(resp.body, "redirect URI") {
		t.Errorf("body should mention the redirect URI: %q", resp.body)
	}
	if !strings.Contains(resp.body, a.url+"/callback") {
		t.Errorf("body should name the configured redirect URI %q", a.url+"/callback")
	}
	wantRedirectToLogin(t, v.get("/profile"))
}

func TestCallback_StateMismatch(t *testing.T) {
	a := newApp(t, appOptions{})
	v := a.visitor(t)
	v.startLogin()

	q := url.Values{}
	q.Set("code", a.fake.Consent("alice"))
	q.Set("state", "forged")
	resp := v.get("/callback?" + q.Encode())

	if resp.status != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.status)
	}
	if a.fake.Exchanges() != 0 {
		t.Errorf("exchanges = %d, want 0", a.fake.Exchanges())
	}
}

func TestTopSongsData(t *testing.T) {
	a := newApp(t, appOptions{})
	v := a.visitor(t)

	resp := v.get("/top_songs_data")
	if resp.status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.status)
	}
	var body errorBody
	if err := json.Unmarshal([]byte(resp.body), &body); err != nil || body.Error != "not authenticated" {
		t.Errorf("unauthenticated body = %q", resp.body)
	}

	v.login("bob")
	resp = v.get("/top_songs_data")
	if resp.status != http.StatusOK {
		t.Fatalf("status = %d, body %q", resp.status, resp.body)
	}

	var songs []TopSong
	if err := json.Unmarshal([]byte(resp.body), &songs); err != nil {
		t.Fatalf("decoding songs: %v", err)
	}
	want := []TopSong{
		{Name: "Bob Song One", Artist: "Bob", URL: "https://open.spotify.com/track/" + spotifytest.TrackID("bob", 0)},
		{Name: "Bob Song Two", Artist: "Bob", URL: "https://open.spotify.com/track/" + spotifytest.TrackID("bob", 1)},
	}
	if len(songs) != len(want) {
		t.Fatalf("got %d songs, want %d", len(songs), len(want))
	}
	for i := range want {
		if songs[i] != want[i] {
			t.Errorf("songs[%d] = %+v, want %+v", i, songs[i], want[i])
		}
	}
}

func TestHome(t *testing.T) {
	a := newApp(t, appOptions{})
	v := a.visitor(t)

	resp := v.get("/")
	if resp.status != http.StatusOK || !strings.Contains(resp.body, `href="/login"`) {
		t.Errorf("anonymous home = %d, missing login link", resp.status)
	}

	v.login("alice")
	resp = v.get("/")
	if !strings.Contains(resp.body, "Logged in as") || !strings.Contains(resp.body, "Alice") {
		t.Error("home should greet the logged-in visitor")
	}
}

func TestStaticAssets(t *testing.T) {
	a := newApp(t, appOptions{})
	resp := a.visitor(t).get("/static/style.css")
	if resp.status != http.StatusOK {
		t.Errorf("GET /static/style.css status = %d", resp.status)
	}
}

func TestNewServer_RequiresController(t *testing.T) {
	if _, err := NewServer(ServerConfig{}); err == nil {
		t.Fatal("NewServer() without controller should fail")
	}
}
