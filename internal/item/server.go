package item

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/cors"

	"github.com/zombor/declutter/internal/upload"
)

// LocalUser is the caller identity when authentication is disabled
const LocalUser = "local"

type ctxKey uint8

const userKey ctxKey = iota

// UserFromContext returns the authenticated caller stored by requireAuth
func UserFromContext(ctx context.Context) string {
	user, _ := ctx.Value(userKey).(string)
	return user
}

// BasicAuth holds basic authentication credentials
type BasicAuth struct {
	Username string
	Password string
}

// Options tunes the HTTP surface
type Options struct {
	// Production suppresses error details in responses
	Production bool
	// DailyScanLimit is reported to callers after each scan
	DailyScanLimit int
	// AllowedOrigins for CORS, any origin when empty
	AllowedOrigins []string
	// MaxUploadSize caps photo uploads in bytes
	MaxUploadSize int64
}

// DefaultOptions returns development options
func DefaultOptions() Options {
	return Options{
		DailyScanLimit: 50,
		MaxUploadSize:  20 << 20,
	}
}

// Server handles HTTP requests for scans, items and photo uploads
type Server struct {
	service   *Service
	uploads   *upload.Service
	basicAuth BasicAuth
	opts      Options
	mux       *http.ServeMux
	handler   http.Handler
}

// NewServer creates a new Server with default mux
func NewServer(service *Service, uploads *upload.Service, basicAuth BasicAuth, opts Options) *Server {
	return NewServerWithMux(service, uploads, basicAuth, opts, http.NewServeMux())
}

// NewServerWithMux creates a new Server with a custom mux for testing.
// uploads may be nil, which leaves the upload routes unregistered.
func NewServerWithMux(service *Service, uploads *upload.Service, basicAuth BasicAuth, opts Options, mux *http.ServeMux) *Server {
	if opts.DailyScanLimit <= 0 {
		opts.DailyScanLimit = DefaultOptions().DailyScanLimit
	}
	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = DefaultOptions().MaxUploadSize
	}

	s := &Server{
		service:   service,
		uploads:   uploads,
		basicAuth: basicAuth,
		opts:      opts,
		mux:       mux,
	}
	s.registerRoutes()

	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.handler = cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         3600,
	})(mux)
	return s
}

// authenticate checks basic auth credentials and returns the caller identity
func (s *Server) authenticate(r *http.Request) (string, bool) {
	if s.basicAuth.Username == "" && s.basicAuth.Password == "" {
		return LocalUser, true // No auth required if not configured
	}

	username, password, ok := r.BasicAuth()
	if !ok {
		return "", false
	}

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.basicAuth.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(s.basicAuth.Password)) == 1
	if !userOK || !passOK {
		return "", false
	}
	return username, true
}

// requireAuth middleware
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := s.authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="Declutter"`)
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "Unauthorized"})
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, user)))
	}
}

// registerRoutes registers all API routes on the server's mux
func (s *Server) registerRoutes() {
	s.mux.HandleFunc("POST /api/scan/manual", s.requireAuth(s.handleScanManual))
	s.mux.HandleFunc("POST /api/scan", s.requireAuth(s.handleScan))

	s.mux.HandleFunc("GET /api/items/{id}", s.requireAuth(s.handleGetItem))
	s.mux.HandleFunc("DELETE /api/items/{id}", s.requireAuth(s.handleDeleteItem))
	s.mux.HandleFunc("GET /api/items", s.requireAuth(s.handleListItems))

	if s.uploads != nil {
		s.mux.HandleFunc("GET /api/upload", s.requireAuth(s.handleUploadGrant))
		// the signed query string is the credential for uploads
		s.mux.HandleFunc("PUT /uploads/{key...}", s.handlePutUpload)
		s.mux.HandleFunc("GET /images/{key...}", s.handleGetImage)
	}
}

// HTTPServer returns an http.Server serving s on addr
func (s *Server) HTTPServer(addr string) *http.Server {
	slog.Info("Configuring server", "address", addr, "production", s.opts.Production)
	return &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}
