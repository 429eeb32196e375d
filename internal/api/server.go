package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"steemauth/internal/domain"
	"steemauth/internal/keychain"
	"steemauth/internal/prompt"
	"steemauth/internal/services/dispatch"
	"steemauth/internal/services/tracker"
)

// Option configures a Server.
type Option func(*Server)

// WithKeychain exposes the extension bridge to the browser shim.
func WithKeychain(b *keychain.Bridge) Option {
	return func(s *Server) { s.bridge = b }
}

// WithPrompts exposes the prompt queue to the UI.
func WithPrompts(q *prompt.Queue) Option {
	return func(s *Server) { s.prompts = q }
}

// WithGatherer serves the collectors of g on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherer = g }
}

// WithLoginURL enables GET /login/steemlogin, which redirects to the link
// built by loginURL.
func WithLoginURL(loginURL func(state string) string) Option {
	return func(s *Server) { s.loginURL = loginURL }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log.With().Str("component", "api").Logger() }
}

// Server is the HTTP bridge between a browser UI and the services.
type Server struct {
	session    domain.AuthSession
	dispatcher *dispatch.Dispatcher
	tracker    *tracker.Tracker
	bridge     *keychain.Bridge
	prompts    *prompt.Queue
	gatherer   prometheus.Gatherer
	loginURL   func(state string) string
	log        zerolog.Logger
}

// New returns a Server over the given services.
func New(
	session domain.AuthSession,
	dispatcher *dispatch.Dispatcher,
	t *tracker.Tracker,
	opts ...Option,
) *Server {
	s := &Server{
		session:    session,
		dispatcher: dispatcher,
		tracker:    t,
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the routes of the server.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	r.HandleFunc("/logout", s.logout).Methods(http.MethodPost)
	r.HandleFunc("/switch/{username}", s.switchAccount).Methods(http.MethodPost)

	if s.loginURL != nil {
		r.HandleFunc("/login/steemlogin", s.loginRedirect).Methods(http.MethodGet)
	}
	r.HandleFunc("/login/steemlogin/callback", s.loginCallback).Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/transactions", s.listTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{operation}", s.send).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{operation}/complete", s.complete).Methods(http.MethodPost)
	r.HandleFunc("/transactions/{id}", s.deleteTransaction).Methods(http.MethodDelete)
	r.HandleFunc("/state", s.getState).Methods(http.MethodGet)
	r.HandleFunc("/results", s.listResults).Methods(http.MethodGet)
	r.HandleFunc("/results/{operation}", s.getResult).Methods(http.MethodGet)

	if s.bridge != nil {
		r.HandleFunc("/keychain/requests", s.keychainRequests).Methods(http.MethodGet)
		r.HandleFunc("/keychain/requests/{id}", s.keychainRespond).Methods(http.MethodPost)
	}
	if s.prompts != nil {
		r.HandleFunc("/prompts", s.listPrompts).Methods(http.MethodGet)
		r.HandleFunc("/prompts/{id}", s.answerPrompt).Methods(http.MethodPost)
	}
	if s.gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("took", time.Since(start)).
			Msg("request")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Warn().Err(err).Msg("could not write response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	s.writeJSON(w, statusOf(err), errorBody{Error: domain.Message(err)})
}

type errorBody struct {
	Error string `json:"error"`
}
