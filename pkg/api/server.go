/*
Package api implements the HTTP interface. Handlers decode and validate
requests, call the interaction service and render its Outcome.
*/
package api

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/newtron-network/devapi/pkg/audit"
	"github.com/newtron-network/devapi/pkg/interaction"
	"github.com/newtron-network/devapi/pkg/util"
)

const (
	// maxBodyBytes bounds request bodies
	maxBodyBytes = 1 << 20

	shutdownTimeout = 10 * time.Second
)

// Server serves the device API
type Server struct {
	svc    *interaction.Service
	router *mux.Router
}

// NewServer creates a Server and registers its routes.
func NewServer(svc *interaction.Service) *Server {
	s := &Server{svc: svc}
	s.router = s.routes()
	return s
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()

	handle(r, "/configure-loopback/", s.configureLoopback, http.MethodPost)
	handle(r, "/delete-loopback/{loopback_number}/", s.deleteLoopback, http.MethodDelete)
	handle(r, "/delete-loopback/", s.deleteLoopback, http.MethodDelete)
	handle(r, "/interfaces/", s.listInterfaces, http.MethodGet)
	handle(r, "/configure-dry-run/", s.setDryRun, http.MethodPut, http.MethodPost)
	handle(r, "/configure-dry-run/", s.getDryRun, http.MethodGet)
	handle(r, "/audit/", s.queryAudit, http.MethodGet)
	handle(r, "/healthz", s.health, http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody("Not found."))
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody("Method \""+r.Method+"\" not allowed."))
	})

	r.Use(logRequests)
	return r
}

// handle registers h for path with and without its trailing slash.
func handle(r *mux.Router, path string, h http.HandlerFunc, methods ...string) {
	r.HandleFunc(path, h).Methods(methods...)
	if trimmed := strings.TrimSuffix(path, "/"); trimmed != path && trimmed != "" {
		r.HandleFunc(trimmed, h).Methods(methods...)
	}
}

// ListenAndServe serves on addr until ctx is canceled, then drains
// in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is canceled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	errorLog := util.Logger.WriterLevel(logrus.ErrorLevel)
	defer errorLog.Close()

	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          stdlog.New(errorLog, "http: ", 0),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	util.Infof("Listening on %s", ln.Addr())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	util.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		client := clientIP(r)
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r.WithContext(audit.ContextWithClient(r.Context(), client)))

		util.WithFields(map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"client":   client,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Info("Request")
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
