package bill

import (
	"net/http"
)

// Server exposes the bill store over HTTP
type Server struct {
	service *Service
	mux     *http.ServeMux
}

// NewServer creates a new Server with its own mux
func NewServer(service *Service) *Server {
	return NewServerWithMux(service, http.NewServeMux())
}

// NewServerWithMux registers the API on a shared mux
func NewServerWithMux(service *Service, mux *http.ServeMux) *Server {
	s := &Server{
		service: service,
		mux:     mux,
	}
	s.registerRoutes()
	return s
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		setCORSHeaders(w)
		next(w, r)
	}
}

// setCORSHeaders sets CORS headers on a response
func setCORSHeaders(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
	w.Header().Set("Access-Control-Max-Age", "3600")
}

// registerRoutes registers all API routes on the server's mux
// Routes must be registered from most specific to least specific to avoid conflicts
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("OPTIONS /api/", s.handlePreflight)

	s.mux.HandleFunc("GET /api/bills/{key}/file", corsMiddleware(s.handleGetBillFile))
	s.mux.HandleFunc("GET /api/bills/{key}", corsMiddleware(s.handleGetBill))
	s.mux.HandleFunc("PATCH /api/bills/{key}", corsMiddleware(s.handleUpdateBill))
	s.mux.HandleFunc("DELETE /api/bills/{key}", corsMiddleware(s.handleDeleteBill))
	s.mux.HandleFunc("GET /api/bills", corsMiddleware(s.handleListBills))
	s.mux.HandleFunc("POST /api/bills", corsMiddleware(s.handleCreateBill))
}

// handlePreflight answers CORS preflight requests
func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	setCORSHeaders(w)
	w.WriteHeader(http.StatusNoContent)
}

// ServeHTTP implements http.Handler for testing
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
