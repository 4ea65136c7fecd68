// Package reconciler validates customer statement records.
//
// The package has two layers:
//   - Engine: a pure single-pass check for duplicate references and balance
//     mismatches over already parsed records
//   - Service: the file pipeline that selects an input adapter from the
//     filename, reads and decodes the input, parses it and runs the engine
//
// Example usage:
//
//	service, err := reconciler.NewService(reconciler.DefaultServiceConfig(), nil)
//	report, err := service.ValidateFile(ctx, "records.csv", file)
//	for _, result := range report.Results {
//		fmt.Println(result.Reference, result.ErrorDescription())
//	}
//
// A run either produces a complete report or fails with exactly one error.
package reconciler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/internal/parsers"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// Recorder receives the outcome of every run
type Recorder interface {
	ObserveRun(format string, summary *Summary)
	ObserveFailure(format string, code errors.ErrorCode)
}

type noopRecorder struct{}

func (noopRecorder) ObserveRun(string, *Summary)            {}
func (noopRecorder) ObserveFailure(string, errors.ErrorCode) {}

// ServiceConfig holds configuration options for the validation service
type ServiceConfig struct {
	Parsers  *parsers.Config
	Options  *Options
	Encoding parsers.Encoding
}

// DefaultServiceConfig returns a default configuration for the validation service
func DefaultServiceConfig() *ServiceConfig {
	return &ServiceConfig{
		Parsers:  parsers.DefaultConfig(),
		Options:  DefaultOptions(),
		Encoding: parsers.EncodingUTF8,
	}
}

// Validate validates the configuration
func (c *ServiceConfig) Validate() error {
	if c.Parsers == nil {
		return fmt.Errorf("parser configuration is required")
	}
	if err := c.Parsers.Validate(); err != nil {
		return err
	}
	if _, err := parsers.ParseEncoding(string(c.Encoding)); err != nil {
		return err
	}
	return nil
}

// Report is the complete outcome of validating one file
type Report struct {
	RunID       string                     `json:"run_id" yaml:"run_id"`
	FileName    string                     `json:"file_name" yaml:"file_name"`
	Format      string                     `json:"format" yaml:"format"`
	Results     []*models.ValidationResult `json:"results" yaml:"-"`
	Summary     *Summary                   `json:"summary" yaml:"summary"`
	GeneratedAt time.Time                  `json:"generated_at" yaml:"generated_at"`
}

// HasFindings reports whether any record failed validation
func (r *Report) HasFindings() bool {
	return len(r.Results) > 0
}

// Service runs the validation pipeline for uploaded or local files.
// It holds no per-run state and is safe for concurrent use.
type Service struct {
	registry *parsers.Registry
	engine   *Engine
	encoding parsers.Encoding
	recorder Recorder
	logger   logger.Logger
}

// NewService creates a new validation service. recorder may be nil.
func NewService(config *ServiceConfig, recorder Recorder) (*Service, error) {
	if config == nil {
		config = DefaultServiceConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError("service", config.Encoding, err)
	}

	registry, err := parsers.NewRegistryWithConfig(config.Parsers)
	if err != nil {
		return nil, err
	}

	encoding, _ := parsers.ParseEncoding(string(config.Encoding))

	if recorder == nil {
		recorder = noopRecorder{}
	}

	log := logger.GetGlobalLogger().WithComponent("validation_service")
	log.WithFields(logger.Fields{
		"encoding": encoding,
		"suffixes": registry.Suffixes(),
	}).Debug("Validation service created")

	return &Service{
		registry: registry,
		engine:   NewEngine(config.Options),
		encoding: encoding,
		recorder: recorder,
		logger:   log,
	}, nil
}

// SupportedSuffixes returns the filename suffixes the service accepts
func (s *Service) SupportedSuffixes() []string {
	return s.registry.Suffixes()
}

// CheckFormat returns an unsupported format error when no adapter handles filename
func (s *Service) CheckFormat(filename string) error {
	_, err := s.registry.Select(filename)
	return err
}

// ValidateFile detects the format from filename, reads the whole input and
// returns the failing records. An unsupported filename fails before input is read.
func (s *Service) ValidateFile(ctx context.Context, filename string, input io.Reader) (*Report, error) {
	runID := uuid.NewString()
	log := s.logger.WithFields(logger.Fields{
		"run_id": runID,
		"file":   filename,
	})

	adapter, err := s.registry.Select(filename)
	if err != nil {
		return nil, s.fail(log, "unknown", err)
	}
	format := adapter.Format()

	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, format, errors.InternalError("read input", err))
	}

	if input == nil {
		return nil, s.fail(log, format, errors.InternalError("read input", fmt.Errorf("input reader is nil")))
	}

	data, err := io.ReadAll(input)
	if err != nil {
		return nil, s.fail(log, format, errors.FileError(errors.CodeFileRead, filename, err))
	}

	decoded, err := parsers.DecodeInput(data, s.encoding)
	if err != nil {
		return nil, s.fail(log, format, err)
	}

	records, err := adapter.Parse(decoded)
	if err != nil {
		return nil, s.fail(log, format, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, s.fail(log, format, errors.InternalError("validate records", err))
	}

	outcome := s.engine.Run(records)
	s.recorder.ObserveRun(format, outcome.Summary)

	log.WithFields(logger.Fields{
		"format":  format,
		"records": outcome.Summary.TotalRecords,
		"failed":  outcome.Summary.FailedRecords,
	}).Info("Validation completed")

	return &Report{
		RunID:       runID,
		FileName:    filename,
		Format:      format,
		Results:     outcome.Results,
		Summary:     outcome.Summary,
		GeneratedAt: time.Now().UTC(),
	}, nil
}

func (s *Service) fail(log logger.Logger, format string, err error) error {
	code := errors.CodeUnexpectedError
	if vErr, ok := errors.AsValidatorError(err); ok {
		code = vErr.Code
	}
	s.recorder.ObserveFailure(format, code)
	log.WithError(err).WithField("code", code).Warn("Validation failed")
	return err
}
