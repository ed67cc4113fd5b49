package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ctifeed/internal/aggregate"
	"ctifeed/internal/domain"
	"ctifeed/internal/ingest"
	"ctifeed/internal/retention"
)

// Pipeline triggers ingestion and retention runs.
type Pipeline interface {
	RunIngestionCycle(ctx context.Context) (ingest.Report, error)
	RunRetention(ctx context.Context) (retention.Report, error)
}

// Reader answers listing and single-article queries.
type Reader interface {
	ListResults(ctx context.Context) aggregate.Results
	GetArticle(ctx context.Context, link string) (aggregate.ArticleView, error)
}

// Briefings manages saved briefings.
type Briefings interface {
	List(ctx context.Context, clientID string) ([]domain.SavedBriefing, error)
	Save(ctx context.Context, b domain.SavedBriefing) (domain.SavedBriefing, error)
	Delete(ctx context.Context, clientID, link string) error
}

// Deps are the handlers' collaborators. BlobDir, when set, is served under /blobs/.
type Deps struct {
	Pipeline  Pipeline
	Reader    Reader
	Briefings Briefings
	BlobDir   string
}

// Server is the HTTP control surface.
type Server struct {
	deps   Deps
	router *mux.Router
	http   *http.Server
	log    logrus.FieldLogger
}

// NewServer creates the server and registers its routes.
func NewServer(addr string, deps Deps, logger logrus.FieldLogger) *Server {
	s := &Server{
		deps:   deps,
		router: mux.NewRouter(),
		log:    logger.WithField("component", "api"),
	}
	s.routes()
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/healthz", s.health).Methods(http.MethodGet)
	s.router.HandleFunc("/ingest", s.ingest).Methods(http.MethodPost)
	s.router.HandleFunc("/retention", s.retention).Methods(http.MethodPost)
	s.router.HandleFunc("/run_all", s.runAll).Methods(http.MethodPost)
	s.router.HandleFunc("/results", s.results).Methods(http.MethodGet)
	s.router.HandleFunc("/article", s.article).Methods(http.MethodGet)
	s.router.HandleFunc("/saved", s.listSaved).Methods(http.MethodGet)
	s.router.HandleFunc("/saved", s.upsertSaved).Methods(http.MethodPut, http.MethodPost)
	s.router.HandleFunc("/saved", s.deleteSaved).Methods(http.MethodDelete)
	s.router.Handle("/metrics", promhttp.Handler())

	if s.deps.BlobDir != "" {
		s.router.PathPrefix("/blobs/").Handler(
			http.StripPrefix("/blobs/", http.FileServer(http.Dir(s.deps.BlobDir))),
		)
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.WithField("addr", s.http.Addr).Info("HTTP control surface listening")
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		}).Debug("Request handled")
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
