package web

import (
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zombor/billed/internal/bill"
	"github.com/zombor/billed/internal/session"
)

// ExpenseTypes are the categories offered on the new bill form
var ExpenseTypes = []string{
	"Transports",
	"Restaurants et bars",
	"Hôtel et logement",
	"Services en ligne",
	"IT et électronique",
	"Equipement et matériel",
	"Fournitures de bureau",
}

// draft is where a user's new bill stands between requests
type draft struct {
	sel   Selection
	state State
}

// drafts keeps the current file selection of each logged-in user
type drafts struct {
	mu      sync.Mutex
	entries map[string]draft
}

func newDrafts() *drafts {
	return &drafts{entries: make(map[string]draft)}
}

func (d *drafts) get(email string) draft {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.entries[email]
}

func (d *drafts) set(email string, sel Selection, state State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if sel.Kind() == SelectionIdle && sel.Upload() == nil && state == StateIdle {
		delete(d.entries, email)
		return
	}
	d.entries[email] = draft{sel: sel, state: state}
}

// Server handles the employee pages
type Server struct {
	store    bill.Store
	sessions *session.Manager
	reporter ErrorReporter
	metrics  *Metrics
	gatherer prometheus.Gatherer
	drafts   *drafts
	mux      *http.ServeMux
}

// Option customizes a Server
type Option func(*Server)

// WithErrorReporter replaces the default LogReporter
func WithErrorReporter(r ErrorReporter) Option {
	return func(s *Server) {
		s.reporter = r
	}
}

// NewServer creates a new Server with its own mux and metrics registry
func NewServer(store bill.Store, sessions *session.Manager, opts ...Option) *Server {
	return NewServerWithMux(store, sessions, prometheus.NewRegistry(), http.NewServeMux(), opts...)
}

// NewServerWithMux registers the pages on a shared mux and the metrics on reg
func NewServerWithMux(store bill.Store, sessions *session.Manager, reg *prometheus.Registry, mux *http.ServeMux, opts ...Option) *Server {
	s := &Server{
		store:    store,
		sessions: sessions,
		reporter: LogReporter{},
		metrics:  NewMetrics(reg),
		gatherer: reg,
		drafts:   newDrafts(),
		mux:      mux,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerRoutes()
	return s
}

// userHandler is a handler that needs the logged-in user
type userHandler func(w http.ResponseWriter, r *http.Request, user session.User)

// requireUser sends visitors without a session back to the login page
func (s *Server) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, err := s.sessions.FromRequest(r)
		if err != nil {
			if !errors.Is(err, session.ErrNoUser) {
				slog.Error("Error reading session", "error", err)
			}
			http.Redirect(w, r, RouteLogin, http.StatusSeeOther)
			return
		}
		next(w, r, user)
	}
}

// registerRoutes registers all page routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /static/app.css", s.handleStaticCSS)
	s.mux.Handle("GET /metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	s.mux.HandleFunc("GET /{$}", s.handleLoginPage)
	s.mux.HandleFunc("POST /{$}", s.handleLogin)
	s.mux.HandleFunc("POST /logout", s.handleLogout)

	s.mux.HandleFunc("GET "+RouteBills+"/{key}/receipt", s.requireUser(s.handleReceipt))
	s.mux.HandleFunc("POST "+RouteBills+"/new", s.requireUser(s.handleNewBillClick))
	s.mux.HandleFunc("GET "+RouteBills, s.requireUser(s.handleBills))

	s.mux.HandleFunc("POST "+RouteNewBill+"/file", s.requireUser(s.handleSelectFile))
	s.mux.HandleFunc("GET "+RouteNewBill, s.requireUser(s.handleNewBill))
	s.mux.HandleFunc("POST "+RouteNewBill, s.requireUser(s.handleSubmit))
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// LoggingMiddleware logs every request with its duration
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		next.ServeHTTP(w, r)

		slog.Info("Request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
