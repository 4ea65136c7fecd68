// Package server exposes the validation pipeline over HTTP.
//
// Routes:
//
//	POST /api/v1/validations   multipart upload (field "file"), JSON report by default,
//	                           ?format=csv|yaml|xlsx for other renderings
//	GET  /healthz              liveness probe
//	GET  /metrics              Prometheus metrics
//
// Every successful validation response carries the run identifier in the
// X-Run-ID header. Errors are rendered as JSON with the error code, message and
// suggestion of the underlying validation error.
package server

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"customer-statement-validator/internal/metrics"
	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/internal/reporter"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// RunIDHeader carries the validation run identifier
const RunIDHeader = "X-Run-ID"

// uploadField is the multipart form field holding the statement file
const uploadField = "file"

// Config holds configuration options for the HTTP server
type Config struct {
	ListenAddr      string        `mapstructure:"listen"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DefaultConfig returns a default server configuration
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:      ":8080",
		MaxUploadBytes:  10 << 20,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen address is required")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	return nil
}

// Server serves validation requests
type Server struct {
	service   *reconciler.Service
	collector *metrics.Collector
	config    *Config
	logger    logger.Logger
	router    chi.Router
}

// New creates a server. collector may be nil, in which case /metrics is not mounted.
func New(service *reconciler.Service, collector *metrics.Collector, config *Config) (*Server, error) {
	if service == nil {
		return nil, errors.ConfigurationError("service", nil, fmt.Errorf("validation service is required"))
	}
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError("server", config.ListenAddr, err)
	}

	s := &Server{
		service:   service,
		collector: collector,
		config:    config,
		logger:    logger.GetGlobalLogger().WithComponent("http_server"),
	}
	s.router = s.routes()
	return s, nil
}

// Handler returns the HTTP handler for all routes
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	if s.collector != nil {
		r.Method(http.MethodGet, "/metrics", s.collector.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/validations", s.handleValidate)
	})

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:         s.config.ListenAddr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.config.ListenAddr).Info("HTTP server listening")
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.InternalError("http server", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

type healthResponse struct {
	Status   string   `json:"status"`
	Suffixes []string `json:"suffixes"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, healthResponse{Status: "ok", Suffixes: s.service.SupportedSuffixes()})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	format := reporter.FormatJSON
	if requested := r.URL.Query().Get("format"); requested != "" {
		format = reporter.OutputFormat(requested)
	}
	if !format.IsValid() || format == reporter.FormatConsole {
		s.renderError(w, r, errors.ConfigurationError("format", string(format),
			fmt.Errorf("supported formats are json, csv, yaml and xlsx")))
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		s.renderError(w, r, uploadError(err))
		return
	}

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		s.renderError(w, r, uploadError(err))
		return
	}
	defer file.Close()

	report, err := s.service.ValidateFile(r.Context(), header.Filename, file)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	w.Header().Set(RunIDHeader, report.RunID)

	config := reporter.DefaultReportConfig()
	config.Format = format
	generator, err := reporter.NewReportGenerator(config)
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(report, &buf); err != nil {
		s.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	if format == reporter.FormatXLSX {
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", reporter.XLSXFileName))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		s.logger.WithError(err).WithField("run_id", report.RunID).Warn("Failed to write response")
	}
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.WithFields(logger.Fields{
			"method":     r.Method,
			"path":       r.URL.Path,
			"status":     ww.Status(),
			"bytes":      ww.BytesWritten(),
			"duration":   time.Since(start).String(),
			"request_id": middleware.GetReqID(r.Context()),
		}).Debug("HTTP request")
	})
}

func uploadError(err error) error {
	var maxBytesErr *http.MaxBytesError
	if stderrors.As(err, &maxBytesErr) {
		return errors.FileError(errors.CodeFileRead, uploadField,
			fmt.Errorf("upload exceeds %d bytes: %w", maxBytesErr.Limit, err))
	}
	return errors.FileError(errors.CodeFileNotFound, uploadField, err).
		WithSuggestion("send the statement as multipart/form-data in the 'file' field")
}
