package http

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/csakilan/FoundryBackend/canvas"
	"github.com/csakilan/FoundryBackend/compiler"
	"github.com/csakilan/FoundryBackend/costs"
	"github.com/csakilan/FoundryBackend/deployer"
	"github.com/csakilan/FoundryBackend/errors"
	"github.com/csakilan/FoundryBackend/health"
	"github.com/csakilan/FoundryBackend/hub"
	"github.com/csakilan/FoundryBackend/metric"
	"github.com/csakilan/FoundryBackend/template"
)

// Deployer is the slice of the deploy pipeline the gateway serves.
type Deployer interface {
	Deploy(ctx context.Context, cv *canvas.Canvas) (*deployer.Result, error)
	Status(ctx context.Context, stackName string) (*deployer.StackStatus, error)
}

// Hub attaches and detaches tracking subscribers.
type Hub interface {
	Subscribe(stackName string, sub hub.Subscriber)
	Unsubscribe(stackName, subscriberID string)
}

// Estimator prices compiled documents.
type Estimator interface {
	EstimateDocument(ctx context.Context, doc *template.Document, region string) (*costs.Estimate, error)
}

// Config holds the gateway's listen address and request policy.
type Config struct {
	// Addr is the host:port the server binds.
	Addr string
	// CORSOrigins lists allowed origins; "*" allows any. Empty means "*".
	CORSOrigins []string
	// Region prices estimates when the request names none.
	Region string
	// MaxBodyBytes caps canvas submissions. Zero means the default.
	MaxBodyBytes int64
}

const (
	defaultMaxBodyBytes = 1 << 20
	defaultRegion       = "us-east-1"
)

// Server serves the canvas surface: deploy submission, stack status,
// cost estimates, the health endpoint and the WebSocket tracking
// stream. Routing is gorilla/mux under the /canvas prefix.
type Server struct {
	cfg       Config
	deployer  Deployer
	hub       Hub
	estimator Estimator
	compiler  *compiler.Compiler
	monitor   *health.Monitor
	logger    *slog.Logger
	metrics   *gatewayMetrics
	upgrader  websocket.Upgrader
	handler   http.Handler

	mu         sync.Mutex
	running    bool
	httpServer *http.Server
	stopChan   chan struct{}
	stopOnce   sync.Once
}

// Option configures a Server.
type Option func(*Server) error

// WithEstimator serves cost estimates from the given estimator.
// Without one the estimate route answers 503.
func WithEstimator(est Estimator) Option {
	return func(s *Server) error {
		if est == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "WithEstimator",
				"estimator cannot be nil")
		}
		s.estimator = est
		return nil
	}
}

// WithMonitor backs the health route with the given monitor's checks.
func WithMonitor(m *health.Monitor) Option {
	return func(s *Server) error {
		if m == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "WithMonitor",
				"monitor cannot be nil")
		}
		s.monitor = m
		return nil
	}
}

// WithCompiler overrides the compiler the estimate route uses.
func WithCompiler(c *compiler.Compiler) Option {
	return func(s *Server) error {
		if c == nil {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Gateway", "WithCompiler",
				"compiler cannot be nil")
		}
		s.compiler = c
		return nil
	}
}

// WithLogger sets the gateway's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger != nil {
			s.logger = logger.With("component", "gateway")
		}
		return nil
	}
}

// WithMetrics registers request metrics with the given registry.
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *Server) error {
		m, err := newGatewayMetrics(registry)
		if err != nil {
			return err
		}
		s.metrics = m
		return nil
	}
}

// New creates a gateway over the given deployer and tracking hub.
func New(cfg Config, dep Deployer, trackingHub Hub, opts ...Option) (*Server, error) {
	if dep == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "New",
			"deployer cannot be nil")
	}
	if trackingHub == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "New",
			"hub cannot be nil")
	}
	if cfg.Addr == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Gateway", "New",
			"listen address cannot be empty")
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = []string{"*"}
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}

	s := &Server{
		cfg:      cfg,
		deployer: dep,
		hub:      trackingHub,
		compiler: compiler.Default(),
		logger:   slog.Default().With("component", "gateway"),
		stopChan: make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, errors.WrapInvalid(err, "Gateway", "New", "apply option")
		}
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	s.routes()
	return s, nil
}

// routes builds the router. CORS wraps the whole router so preflight
// requests are answered even when no route matches.
func (s *Server) routes() {
	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	r.Use(s.observe)

	c := r.PathPrefix("/canvas").Subrouter()
	c.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	c.HandleFunc("/deploy", s.handleDeploy).Methods(http.MethodPost)
	c.HandleFunc("/deploy/estimate", s.handleEstimate).Methods(http.MethodPost)
	c.HandleFunc("/deploy/status/{stackName}", s.handleStatus).Methods(http.MethodGet)
	c.HandleFunc("/deploy/track/{stackName}", s.handleTrack).Methods(http.MethodGet)

	s.handler = s.corsMiddleware(r)
}

// Handler returns the gateway's root handler, CORS included.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start runs the HTTP server until the context is cancelled, Stop is
// called, or the listener fails. The ready channel, if non-nil, is
// closed right before the server starts accepting connections.
func (s *Server) Start(ctx context.Context, ready chan<- struct{}) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.WrapFatal(errors.ErrAlreadyStarted, "Gateway", "Start",
			"server already running")
	}
	s.running = true
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	server := s.httpServer
	s.mu.Unlock()

	errChan := make(chan error, 1)
	go func() {
		defer close(errChan)
		s.logger.Info("gateway listening", "addr", s.cfg.Addr)
		if ready != nil {
			close(ready)
		}
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			select {
			case errChan <- err:
			case <-ctx.Done():
			case <-s.stopChan:
			}
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("gateway context cancelled, shutting down")
		return s.Stop(30 * time.Second)
	case <-s.stopChan:
		return nil
	case err := <-errChan:
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return errors.WrapFatal(err, "Gateway", "Start", "HTTP server failed")
	}
}

// Stop drains in-flight requests and shuts the listener down.
func (s *Server) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	server := s.httpServer
	s.mu.Unlock()

	s.stopOnce.Do(func() { close(s.stopChan) })

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		return errors.WrapTransient(err, "Gateway", "Stop", "graceful shutdown")
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	s.logger.Info("gateway stopped")
	return nil
}

// checkOrigin admits WebSocket upgrades under the same origin policy
// as the CORS middleware.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return s.originAllowed(origin)
}

func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// observe wraps matched routes with request logging and metrics. The
// route label is the path template, not the raw path, so stack names
// do not fan out the metric series.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		route := r.URL.Path
		if cur := mux.CurrentRoute(r); cur != nil {
			if tmpl, err := cur.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		s.metrics.recordRequest(route, rec.status, elapsed)
		s.logger.Info("request handled", "method", r.Method, "path", r.URL.Path,
			"status", rec.status, "duration_ms", elapsed.Milliseconds(),
			"remote", r.RemoteAddr)
	})
}

// readCanvas decodes the request body as a canvas submission. On
// failure it answers the request and returns the error so the handler
// just returns.
func (s *Server) readCanvas(w http.ResponseWriter, r *http.Request) (*canvas.Canvas, error) {
	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, s.cfg.MaxBodyBytes+1))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "cannot read request body")
		return nil, err
	}
	if int64(len(body)) > s.cfg.MaxBodyBytes {
		s.writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %d bytes", s.cfg.MaxBodyBytes))
		return nil, errors.WrapInvalid(fmt.Errorf("body exceeds %d bytes", s.cfg.MaxBodyBytes),
			"Gateway", "readCanvas", "limit request body")
	}
	cv, err := canvas.Parse(body)
	if err != nil {
		s.serveError(w, r, err)
		return nil, err
	}
	return cv, nil
}

// statusFromError maps the error classification to an HTTP status.
// Missing stacks beat the invalid class so lookups of unknown names
// answer 404 rather than 400.
func statusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.IsNotFound(err):
		return http.StatusNotFound
	case errors.IsInvalid(err):
		return http.StatusBadRequest
	case errors.IsTransient(err):
		if strings.Contains(err.Error(), "timeout") {
			return http.StatusGatewayTimeout
		}
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// serveError logs the full error and answers with the sanitized form.
func (s *Server) serveError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFromError(err)
	s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path,
		"status", code, "error", err)
	s.writeError(w, code, health.SanitizeMessage(err.Error()))
}

type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func (s *Server) writeError(w http.ResponseWriter, code int, message string) {
	s.writeJSON(w, code, errorBody{Error: message, Code: code})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		s.logger.Error("response marshal failed", "error", err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error":"internal server error","code":%d}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(data)
}

// statusRecorder captures the response status for logging. It keeps
// the underlying Hijacker reachable; the tracking route's upgrade
// needs it.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hj.Hijack()
}
