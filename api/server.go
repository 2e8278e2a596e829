package api

import (
	"context"
	"net/http"
	"time"

	"amazon-scraper/logger"
	"amazon-scraper/rag"
	"amazon-scraper/scheduler"
	"amazon-scraper/storage"
)

// Server exposes the query API over the stored products, the scheduler
// control endpoints, and the question-answering endpoints.
type Server struct {
	repo  storage.ProductRepository
	sched *scheduler.Scheduler
	rag   *rag.Service
	log   *logger.Logger

	httpServer *http.Server
}

// NewServer wires the handler tree. The rag service may be nil when no API
// key is configured; its endpoints then report the missing configuration.
func NewServer(addr string, repo storage.ProductRepository, sched *scheduler.Scheduler, ragSvc *rag.Service, log *logger.Logger) *Server {
	s := &Server{
		repo:  repo,
		sched: sched,
		rag:   ragSvc,
		log:   log.WithComponent("api"),
	}
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /products", s.handleListProducts)
	mux.HandleFunc("GET /products/top", s.handleTopProducts)
	mux.HandleFunc("GET /products/{id}/reviews", s.handleProductReviews)

	mux.HandleFunc("GET /scheduler/status", s.handleSchedulerStatus)
	mux.HandleFunc("POST /scheduler/pause/{id}", s.handlePauseJob)
	mux.HandleFunc("POST /scheduler/resume/{id}", s.handleResumeJob)

	mux.HandleFunc("POST /rag/initialize", s.handleRAGInitialize)
	mux.HandleFunc("POST /rag/query", s.handleRAGQuery)

	return s.logRequests(mux)
}

// Start serves until Shutdown. http.ErrServerClosed is swallowed so a clean
// shutdown does not read as a failure.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.httpServer.Addr).Msg("HTTP server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("Request handled")
	})
}
