package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/YuminosukeSato/tsunamiml/internal/catalog"
	"github.com/YuminosukeSato/tsunamiml/internal/inference"
	"github.com/YuminosukeSato/tsunamiml/internal/mapplot"
	"github.com/YuminosukeSato/tsunamiml/pkg/errors"
	"github.com/YuminosukeSato/tsunamiml/pkg/log"
)

const maxBodyBytes = 1 << 16

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func(ctx context.Context) error

// CheckReadiness calls f.
func (f ReadinessFunc) CheckReadiness(ctx context.Context) error { return f(ctx) }

// Predictor serves single predictions.
type Predictor interface {
	Predict(ctx context.Context, in inference.Input) (inference.Result, error)
}

// Deps are the collaborators of a Server. Predictor and Catalog may be nil;
// the routes that need them then answer 503 and 404.
type Deps struct {
	Predictor Predictor
	Catalog   *catalog.Catalog
	Ready     ReadinessChecker
	Gatherer  prometheus.Gatherer
	Logger    log.Logger
}

// Server exposes health, readiness, metrics, prediction and map endpoints.
type Server struct {
	httpServer *http.Server
	deps       Deps
	logger     log.Logger
}

// NewServer creates an HTTP server with its routes registered.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	if deps.Logger == nil {
		deps.Logger = log.GetLoggerWithName("http")
	}
	if deps.Ready == nil {
		deps.Ready = ReadinessFunc(func(context.Context) error {
			if deps.Predictor == nil {
				return errors.New("model not loaded")
			}
			return nil
		})
	}

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		deps:   deps,
		logger: deps.Logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(deps.Ready))
	if deps.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("GET /metrics", promhttp.Handler())
	}
	mux.HandleFunc("POST /v1/predict", s.handlePredict)
	mux.HandleFunc("GET /v1/map.png", s.handleMap)
	mux.HandleFunc("GET /v1/countries", s.handleCountries)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	if s.deps.Predictor == nil {
		writeError(w, http.StatusServiceUnavailable, "model not loaded")
		return
	}

	var in inference.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := s.deps.Predictor.Predict(r.Context(), in)
	if err != nil {
		var verr *errors.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("prediction failed", err)
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	s.logger.Debug("prediction served",
		log.MagnitudeKey, in.Magnitude,
		log.DepthKey, in.Depth,
		log.PredLabelKey, res.Label,
	)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	if s.deps.Catalog == nil {
		writeError(w, http.StatusNotFound, "no catalog loaded")
		return
	}
	q := r.URL.Query()
	filter, err := s.deps.Catalog.ParseFilter(q.Get("view"), q.Get("from"), q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	opts := mapplot.DefaultOptions()
	p, err := mapplot.Epicenters(s.deps.Catalog.Select(filter).Points(), opts)
	if errors.Is(err, catalog.ErrEmptySelection) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("map rendering failed", err)
		writeError(w, http.StatusInternalServerError, "map rendering failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if err := mapplot.WritePNG(w, p, opts); err != nil {
		s.logger.Error("map write failed", err)
	}
}

func (s *Server) handleCountries(w http.ResponseWriter, _ *http.Request) {
	countries := []string{}
	if s.deps.Catalog != nil {
		countries = append(countries, s.deps.Catalog.Countries()...)
	}
	writeJSON(w, http.StatusOK, map[string][]string{"countries": countries})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
