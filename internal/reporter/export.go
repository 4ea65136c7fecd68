package reporter

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// SafeReportGenerator wraps ReportGenerator with logging and file output handling
type SafeReportGenerator struct {
	*ReportGenerator
	logger logger.Logger
}

// NewSafeReportGenerator creates a new safe report generator
func NewSafeReportGenerator(config *ReportConfig, log logger.Logger) (*SafeReportGenerator, error) {
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	generator, err := NewReportGenerator(config)
	if err != nil {
		return nil, err
	}

	return &SafeReportGenerator{
		ReportGenerator: generator,
		logger:          log.WithComponent("reporter"),
	}, nil
}

// GenerateReportSafely renders the report into a buffer first so a failed render
// never leaves partial output on writer.
func (srg *SafeReportGenerator) GenerateReportSafely(report *reconciler.Report, writer io.Writer) error {
	srg.logger.WithFields(logger.Fields{
		"format": srg.config.Format,
		"output": getWriterDescription(writer),
	}).Debug("Starting report generation")

	if err := srg.validateInputs(report, writer); err != nil {
		srg.logger.WithError(err).Error("Report generation failed: input validation")
		return err
	}

	var buf bytes.Buffer
	if err := srg.GenerateReport(report, &buf); err != nil {
		srg.logger.WithError(err).Warn("Report generation failed")
		return err
	}

	if _, err := buf.WriteTo(writer); err != nil {
		srg.logger.WithError(err).Error("Failed to write report")
		return errors.ReportError(errors.CodeRenderFailed, string(srg.config.Format), err)
	}

	srg.logger.WithField("rows", len(report.Results)).Debug("Report generation completed")
	return nil
}

// WriteReportFile renders the report to path. When path cannot be written because
// of permissions or a missing directory, the report goes to a backup path next to
// the working directory instead and that path is returned.
func (srg *SafeReportGenerator) WriteReportFile(report *reconciler.Report, path string) (string, error) {
	if err := srg.validateInputs(report, io.Discard); err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := srg.GenerateReport(report, &buf); err != nil {
		return "", err
	}

	err := os.WriteFile(path, buf.Bytes(), 0644)
	if err == nil {
		srg.logger.WithField("file", path).Info("Report written")
		return path, nil
	}

	if !isFileError(err) {
		return "", errors.FileError(errors.CodeFileWrite, path, err)
	}

	backupPath := generateBackupPath(path)
	srg.logger.WithError(err).WithFields(logger.Fields{
		"original_file": path,
		"backup_file":   backupPath,
	}).Warn("Attempting output fallback")

	if backupErr := os.WriteFile(backupPath, buf.Bytes(), 0644); backupErr != nil {
		return "", errors.FileError(errors.CodeFilePermission, path,
			fmt.Errorf("both primary and backup output failed: primary=%v, backup=%v", err, backupErr))
	}

	return backupPath, nil
}

// validateInputs validates the inputs for report generation
func (srg *SafeReportGenerator) validateInputs(report *reconciler.Report, writer io.Writer) error {
	if report == nil {
		return errors.ReportError(errors.CodeRenderFailed, string(srg.config.Format), fmt.Errorf("report is required"))
	}

	if writer == nil {
		return errors.ReportError(errors.CodeRenderFailed, string(srg.config.Format), fmt.Errorf("output writer is required"))
	}

	return nil
}

// isFileError checks if the error is file-related
func isFileError(err error) bool {
	return os.IsPermission(err) || os.IsNotExist(err) || isSpaceError(err)
}

// generateBackupPath places the backup in the working directory, since the
// original directory is the likely cause of the failure.
func generateBackupPath(originalPath string) string {
	base := filepath.Base(originalPath)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	return fmt.Sprintf("%s_backup%s", name, ext)
}

func getWriterDescription(writer io.Writer) string {
	switch w := writer.(type) {
	case *os.File:
		return w.Name()
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%T", writer)
	}
}

func isSpaceError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no space left") || strings.Contains(msg, "disk full")
}
