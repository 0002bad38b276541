package web

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hpungsan/hookah/internal/ops"
)

// API routes.
const (
	SuggestionsPath = "/api/hookah-picker/suggestions"
	HistoryPath     = "/api/hookah-picker/history"
)

// Service is the operation layer behind the HTTP API.
type Service interface {
	Suggest(ctx context.Context, input ops.SuggestInput) (*ops.SuggestOutput, error)
	History(ctx context.Context, input ops.HistoryInput) (*ops.HistoryOutput, error)
}

// NewHandler builds the routed, instrumented HTTP handler.
func NewHandler(svc Service, log logrus.FieldLogger) http.Handler {
	h := &Handlers{svc: svc, log: log}

	r := mux.NewRouter()
	r.HandleFunc(SuggestionsPath, h.HandleSuggest).Methods(http.MethodPost)
	r.HandleFunc(HistoryPath, h.HandleHistory).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HandleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		renderJSON(w, http.StatusNotFound, errorBody{Error: "Not found", Code: "NOT_FOUND"})
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		renderJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "Method not allowed", Code: "METHOD_NOT_ALLOWED"})
	})

	r.Use(metricsMiddleware, requestIDMiddleware, recoveryMiddleware(log), loggingMiddleware(log))

	return securityHeaders(r)
}

// NewServer creates the HTTP server for the suggestion API.
func NewServer(svc Service, log logrus.FieldLogger, bind string, port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf("%s:%d", bind, port),
		Handler:           NewHandler(svc, log),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

// securityHeaders adds security-related HTTP headers to all responses.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// Run starts the HTTP server and handles graceful shutdown on SIGINT/SIGTERM.
func Run(srv *http.Server, log logrus.FieldLogger) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.WithField("addr", srv.Addr).Info("hookah API listening")

	if strings.Contains(srv.Addr, "0.0.0.0") || strings.Contains(srv.Addr, "::") {
		log.Warn("server is binding to all interfaces and may be accessible from the network")
	}

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		log.Info("shutting down")
		// In-flight generations may take several attempts to finish.
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(ctx)
	}
}
