// Package webui serves the operator-facing HTTP surface: the control page,
// state query/override endpoints, live MJPEG video/depth previews, a
// supplementary WebSocket state push, and a static jquery.js asset, all
// gated behind a single HTTP Basic credential pair.
package webui

import (
	"log"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/marcan/kinlarm/internal/controller"
	"github.com/marcan/kinlarm/internal/hub"
)

// Config holds the server's listen address, credentials, and static asset
// location.
type Config struct {
	Addr         string
	Username     string
	PasswordHash []byte // bcrypt hash; see HashPassword
	StaticDir    string // serves index.html and jquery.js
}

// HashPassword bcrypt-hashes a plaintext password for Config.PasswordHash.
func HashPassword(password string) ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
}

// Server is the HTTP surface over a hub and a controller.
type Server struct {
	cfg        Config
	hub        *hub.Hub
	controller *controller.Controller
	logger     *log.Logger
	states     *stateHub
	httpServer *http.Server
}

// New constructs a Server and wires it to push controller transitions to any
// open /ws connections. logger may be nil.
func New(cfg Config, h *hub.Hub, c *controller.Controller, logger *log.Logger) *Server {
	s := &Server{
		cfg:        cfg,
		hub:        h,
		controller: c,
		logger:     logger,
		states:     newStateHub(),
	}

	c.OnTransition(func(state controller.State) {
		s.states.broadcast(state.String())
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveIndex)
	mux.HandleFunc("/state", s.serveState)
	mux.HandleFunc("/setstate", s.serveSetState)
	mux.HandleFunc("/video", s.serveVideo)
	mux.HandleFunc("/depth", s.serveDepth)
	mux.HandleFunc("/jquery.js", s.serveJQuery)
	mux.HandleFunc("/ws", s.serveWS)

	s.httpServer = &http.Server{
		Addr:    cfg.Addr,
		Handler: s.requireAuth(mux),
	}
	return s
}

func (s *Server) logf(format string, args ...any) {
	if s.logger != nil {
		s.logger.Printf(format, args...)
	}
}

// ListenAndServe blocks serving the surface until the listener fails or
// Close is called.
func (s *Server) ListenAndServe() error {
	s.logf("web: listening on %s", s.cfg.Addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Close shuts the server down.
func (s *Server) Close() error {
	return s.httpServer.Close()
}

// requireAuth gates every request behind HTTP Basic auth against the single
// configured credential pair, matching the original preview's check_auth:
// any missing/malformed/wrong Authorization header gets a 401 challenge.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != s.cfg.Username || bcrypt.CompareHashAndPassword(s.cfg.PasswordHash, []byte(pass)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="Go Away"`)
			http.Error(w, "401 You Shouldn't Be Here", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) serveIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	http.ServeFile(w, r, s.cfg.StaticDir+"/index.html")
}

func (s *Server) serveJQuery(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	http.ServeFile(w, r, s.cfg.StaticDir+"/jquery.js")
}

func (s *Server) serveState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(capitalize(s.controller.Current().String())))
}

// capitalize title-cases a state name, matching the original preview's
// state.__name__.title() (e.g. "disarmed" -> "Disarmed").
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// serveSetState mirrors the original's /setstate?<name> shape: the desired
// state name is the bare query string, and an unrecognized name is silently
// ignored rather than erroring.
func (s *Server) serveSetState(w http.ResponseWriter, r *http.Request) {
	name := r.URL.RawQuery
	if state, ok := controller.ParseState(name); ok {
		s.controller.SetState(state)
	}
	w.WriteHeader(http.StatusOK)
}
