package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// HTTPServer exposes a small diagnostic surface (health, alarm/housemode
// status, recordings listing) alongside the bus command surface, with the
// same CORS/logging middleware shape used elsewhere in this stack's HTTP
// server.
type HTTPServer struct {
	controller *Controller
	recDir     string
	logger     *slog.Logger
	httpServer *http.Server
}

// NewHTTPServer constructs an HTTPServer serving diagnostics for c.
func NewHTTPServer(c *Controller, recDir string, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{controller: c, recDir: recDir, logger: logger.With("component", "controller.HTTPServer")}
}

// Start begins serving on addr.
func (s *HTTPServer) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/recordings", s.handleRecordings)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.withCORS(s.withLogging(mux)),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error", "error", err)
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-time.After(100 * time.Millisecond):
		s.logger.Info("diagnostic HTTP server started", "address", addr)
		return nil
	}
}

// Stop gracefully shuts the HTTP server down.
func (s *HTTPServer) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *HTTPServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *HTTPServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := s.controller.getAlarmState()
	writeJSON(w, http.StatusOK, resp)
}

func (s *HTTPServer) handleRecordings(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.recDir)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, filepath.Join(s.recDir, e.Name()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"recordings": names})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *HTTPServer) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *HTTPServer) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("HTTP request", "method", r.Method, "path", r.URL.Path, "duration_ms", time.Since(start).Milliseconds())
	})
}
