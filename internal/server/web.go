package server

import (
	"embed"
	"errors"
	"html/template"
	"net/http"

	"github.com/avelinebess/likify/internal/services"
	"github.com/avelinebess/likify/internal/shared"
	"github.com/avelinebess/likify/internal/tasks"
	"github.com/charmbracelet/log"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// AppConfig carries the dependencies of the web application.
type AppConfig struct {
	Spotify      services.Service
	Engine       *tasks.TransferEngine
	Sessions     *SessionCodec
	Recorder     tasks.Recorder // optional transfer history sink
	Logger       *log.Logger
	PlaylistName string // default name for created playlists
}

// AppHandler serves the liked-songs web application: login, OAuth callback,
// logout, and the create-playlist action. Tokens live in the signed session
// cookie; each request passes its bundle into the core and stores back
// whatever the core returns, so the session always holds the freshest tokens.
type AppHandler struct {
	spotify      services.Service
	engine       *tasks.TransferEngine
	sessions     *SessionCodec
	recorder     tasks.Recorder
	logger       *log.Logger
	playlistName string
}

// NewAppHandler creates the web application handler.
func NewAppHandler(cfg AppConfig) *AppHandler {
	name := cfg.PlaylistName
	if name == "" {
		name = "Liked Songs"
	}

	return &AppHandler{
		spotify:      cfg.Spotify,
		engine:       cfg.Engine,
		sessions:     cfg.Sessions,
		recorder:     cfg.Recorder,
		logger:       cfg.Logger,
		playlistName: name,
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AppHandler) Routes() []string {
	return []string{"/", "/login", "/callback", "/logout", "/create-playlist"}
}

// ServeHTTP dispatches to the page handlers.
func (h *AppHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/":
		h.home(w, r)
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	case "/logout":
		h.logout(w, r)
	case "/create-playlist":
		h.createPlaylist(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *AppHandler) home(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.ReadSession(r)
	h.render(w, "index.html", map[string]any{
		"LoggedIn":     sess.LoggedIn(),
		"PlaylistName": h.playlistName,
	})
}

// login stores a fresh state token in the session and redirects the browser
// to the provider's authorize endpoint.
func (h *AppHandler) login(w http.ResponseWriter, r *http.Request) {
	state, err := shared.GenerateState()
	if err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}

	sess := h.sessions.ReadSession(r)
	sess.State = state
	if err := h.sessions.WriteSession(w, sess); err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}

	http.Redirect(w, r, h.spotify.AuthURL(state), http.StatusFound)
}

// callback validates the authorization callback against the session's state
// and exchanges the code for a token bundle. Validation failures never reach
// token exchange.
func (h *AppHandler) callback(w http.ResponseWriter, r *http.Request) {
	sess := h.sessions.ReadSession(r)

	code, err := h.spotify.ValidateCallback(r.URL.Query(), sess.State)
	if err != nil {
		h.fail(w, http.StatusBadRequest, err)
		return
	}

	token, err := h.spotify.Exchange(r.Context(), code)
	if err != nil {
		h.fail(w, http.StatusBadGateway, err)
		return
	}

	sess.Token = token
	sess.State = ""
	if err := h.sessions.WriteSession(w, sess); err != nil {
		h.fail(w, http.StatusInternalServerError, err)
		return
	}

	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *AppHandler) logout(w http.ResponseWriter, r *http.Request) {
	ClearSession(w)
	http.Redirect(w, r, "/", http.StatusFound)
}

// createPlaylist runs the transfer with the session's token bundle and
// renders the result. The possibly-refreshed bundle is written back to the
// session before rendering.
func (h *AppHandler) createPlaylist(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sess := h.sessions.ReadSession(r)
	if !sess.LoggedIn() {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	name := r.FormValue("name")
	if name == "" {
		name = h.playlistName
	}

	result, err := h.engine.Run(r.Context(), sess.Token, name, nil)

	// An unusable token means the stored session is worthless; drop it
	// without writing the bundle back first, so the response carries a
	// single session cookie.
	if err != nil && errors.Is(err, shared.ErrAuthFailed) {
		ClearSession(w)
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}

	// The engine refreshes the bundle in place; persist it even on failure.
	if werr := h.sessions.WriteSession(w, sess); werr != nil {
		h.fail(w, http.StatusInternalServerError, werr)
		return
	}

	if err != nil {
		h.fail(w, http.StatusBadGateway, err)
		return
	}

	if h.recorder != nil && !result.Empty {
		if rerr := h.recorder.Record(r.Context(), result); rerr != nil {
			h.logger.Warn("failed to record transfer", "error", rerr)
		}
	}

	h.render(w, "done.html", map[string]any{
		"Empty":       result.Empty,
		"PlaylistURL": result.PlaylistURL,
		"Count":       result.TrackCount,
	})
}

func (h *AppHandler) render(w http.ResponseWriter, page string, data map[string]any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pages.ExecuteTemplate(w, page, data); err != nil {
		h.logger.Error("template render failed", "page", page, "error", err)
	}
}

func (h *AppHandler) fail(w http.ResponseWriter, status int, err error) {
	h.logger.Error("request failed", "status", status, "error", err)
	http.Error(w, http.StatusText(status), status)
}
