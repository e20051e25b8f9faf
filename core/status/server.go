// Package status serves a small HTTP surface for health checks and runtime counters.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/m3rciful/aviabot/core/buildinfo"
	"github.com/m3rciful/aviabot/core/logger"
)

// Reporter produces the JSON body for GET /stats.
type Reporter interface {
	Report(ctx context.Context) (any, error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(ctx context.Context) (any, error)

// Report calls f.
func (f ReporterFunc) Report(ctx context.Context) (any, error) { return f(ctx) }

// NewRouter wires /healthz, /version and /stats.
func NewRouter(reporter Reporter) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.HandleFunc("/version", version).Methods(http.MethodGet)
	r.HandleFunc("/stats", stats(reporter)).Methods(http.MethodGet)
	return r
}

func healthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

func version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version": buildinfo.Version,
		"commit":  buildinfo.Commit,
		"date":    buildinfo.Date,
	})
}

func stats(reporter Reporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reporter == nil {
			writeJSON(w, http.StatusOK, map[string]any{})
			return
		}
		body, err := reporter.Report(r.Context())
		if err != nil {
			logger.Warn(r.Context(), logger.CompStatus, "stats.failed",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "stats unavailable"})
			return
		}
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// Server runs the status router on a TCP address.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr and returns a server ready to Serve.
func Listen(addr string, reporter Reporter) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		ln: ln,
		srv: &http.Server{
			Handler:           NewRouter(reporter),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}, nil
}

// Addr is the bound address.
func (s *Server) Addr() string {
	return s.ln.Addr().String()
}

// Serve blocks until Shutdown.
func (s *Server) Serve() error {
	logger.Info(logger.Background(), logger.CompStatus, "listen",
		slog.String("listen", s.Addr()),
	)
	if err := s.srv.Serve(s.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
