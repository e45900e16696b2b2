// Package server exposes the engine over a JSON HTTP API.
package server

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/tardis-cli/internal/analysis"
	"github.com/KaramelBytes/tardis-cli/internal/engine"
	"github.com/KaramelBytes/tardis-cli/internal/metrics"
)

// Options tune the API.
type Options struct {
	AllowedOrigins []string
	// TopK is the default ranking size; CompareMax caps route comparisons.
	TopK       int
	CompareMax int
	Logger     *log.Logger
}

// Server routes API requests to the engine.
type Server struct {
	eng    *engine.Engine
	opt    Options
	log    *log.Logger
	router chi.Router
}

// New builds the router.
func New(e *engine.Engine, opt Options) *Server {
	if opt.TopK <= 0 {
		opt.TopK = analysis.DefaultTopK
	}
	if opt.CompareMax <= 0 || opt.CompareMax > analysis.MaxCompareRoutes {
		opt.CompareMax = analysis.MaxCompareRoutes
	}
	if len(opt.AllowedOrigins) == 0 {
		opt.AllowedOrigins = []string{"http://localhost:5173"}
	}
	s := &Server{eng: e, opt: opt, log: opt.Logger}
	if s.log == nil {
		s.log = log.Default()
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opt.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))
	r.Use(s.count)

	r.Get("/health", s.health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.status)
		r.Get("/overview", s.overview)
		r.Get("/delays", s.delays)
		r.Get("/aggregate", s.aggregate)
		r.Get("/stations", s.stations)
		r.Get("/stations/{name}", s.station)
		r.Get("/routes", s.routes)
		r.Get("/routes/compare", s.compare)
		r.Get("/model", s.model)
		r.Get("/predict/departures", s.departures)
		r.Get("/predict/arrivals", s.arrivals)
		r.Get("/predict/route", s.routeStats)
		r.Post("/predict", s.predict)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Printf("API server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// count records one request per matched route pattern and status code.
func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		pattern := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			pattern = rc.RoutePattern()
		}
		metrics.HTTPRequests.WithLabelValues(pattern, strconv.Itoa(rec.code)).Inc()
	})
}
