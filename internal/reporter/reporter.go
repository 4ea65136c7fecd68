// Package reporter renders validation reports for people and programs.
//
// Every format renders the same rows: one per failing record, with the
// transaction reference, its description and the error description.
//
// Supported output formats:
//   - Console: human-readable summary and table for terminal display
//   - JSON: structured data for programmatic consumption
//   - CSV: comma-separated rows for spreadsheet applications
//   - YAML: structured data for configuration-style tooling
//   - XLSX: the downloadable validation_report.xlsx workbook
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatXLSX})
//	err = generator.GenerateReport(report, file)
//
// An XLSX export of a report without findings is refused with an empty report
// error; the text formats render an explicit "no validation errors" result instead.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/pkg/errors"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
	FormatYAML    OutputFormat = "yaml"
	FormatXLSX    OutputFormat = "xlsx"
)

// Workbook layout of the downloadable report
const (
	XLSXFileName = "validation_report.xlsx"
	XLSXSheet    = "Validation Report"
	XLSXMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// NoErrorsMessage is rendered when no record failed validation
const NoErrorsMessage = "No validation errors found."

// ReportHeaders are the column titles shared by the tabular formats
var ReportHeaders = []string{"Transaction Reference", "Description", "Error Description"}

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV, FormatYAML, FormatXLSX:
		return true
	default:
		return false
	}
}

// IsBinary reports whether the format produces non-text output
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// ContentType returns the HTTP content type for the format
func (f OutputFormat) ContentType() string {
	switch f {
	case FormatJSON:
		return "application/json"
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatYAML:
		return "application/yaml"
	case FormatXLSX:
		return XLSXMimeType
	default:
		return "text/plain; charset=utf-8"
	}
}

// ReportRow is one failing record as presented to the user
type ReportRow struct {
	TransactionReference string `json:"transaction_reference" yaml:"transaction_reference"`
	Description          string `json:"description" yaml:"description"`
	ErrorDescription     string `json:"error_description" yaml:"error_description"`
}

// ToReportRows maps validation results to report rows in the same order.
// The returned slice is never nil; an empty slice means no errors were found.
func ToReportRows(results []*models.ValidationResult) []ReportRow {
	rows := make([]ReportRow, 0, len(results))
	for _, result := range results {
		if result == nil {
			continue
		}
		rows = append(rows, ReportRow{
			TransactionReference: result.Reference,
			Description:          result.Description,
			ErrorDescription:     result.ErrorDescription(),
		})
	}
	return rows
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// Include the run summary in console, JSON and YAML output
	IncludeSummary bool `json:"include_summary"`

	// Console formatting options
	TableMaxWidth int `json:"table_max_width"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:         FormatConsole,
		IncludeSummary: true,
		TableMaxWidth:  120,
		CSVDelimiter:   ',',
		CSVHeaders:     true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.TableMaxWidth < 50 {
		return fmt.Errorf("table max width must be at least 50 characters, got %d", c.TableMaxWidth)
	}

	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// ReportGenerator generates validation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError("report_config", config.Format, err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// reportDocument is the structured form shared by JSON and YAML output
type reportDocument struct {
	RunID       string              `json:"run_id" yaml:"run_id"`
	FileName    string              `json:"file_name" yaml:"file_name"`
	Format      string              `json:"format" yaml:"format"`
	GeneratedAt time.Time           `json:"generated_at" yaml:"generated_at"`
	Summary     *reconciler.Summary `json:"summary,omitempty" yaml:"summary,omitempty"`
	Rows        []ReportRow         `json:"rows" yaml:"rows"`
	Message     string              `json:"message,omitempty" yaml:"message,omitempty"`
}

// GenerateReport renders report and writes it to writer
func (rg *ReportGenerator) GenerateReport(report *reconciler.Report, writer io.Writer) error {
	if report == nil {
		return errors.ReportError(errors.CodeRenderFailed, string(rg.config.Format), fmt.Errorf("report cannot be nil"))
	}

	rows := ToReportRows(report.Results)

	var err error
	switch rg.config.Format {
	case FormatConsole:
		err = rg.generateConsoleReport(report, rows, writer)
	case FormatJSON:
		err = rg.generateJSONReport(report, rows, writer)
	case FormatCSV:
		err = rg.generateCSVReport(rows, writer)
	case FormatYAML:
		err = rg.generateYAMLReport(report, rows, writer)
	case FormatXLSX:
		err = rg.generateXLSXReport(rows, writer)
	default:
		err = fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}

	if err != nil {
		return errors.WrapIfNeeded(err, errors.CategoryReport, errors.CodeRenderFailed,
			fmt.Sprintf("failed to render %s report", rg.config.Format)).
			WithContext("format", string(rg.config.Format))
	}
	return nil
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(report *reconciler.Report, rows []ReportRow, writer io.Writer) error {
	fmt.Fprintf(writer, "VALIDATION REPORT\n")
	fmt.Fprintf(writer, "File:      %s (%s)\n", report.FileName, report.Format)
	fmt.Fprintf(writer, "Run ID:    %s\n", report.RunID)
	fmt.Fprintf(writer, "Generated: %s\n\n", report.GeneratedAt.Format(time.RFC3339))

	if rg.config.IncludeSummary && report.Summary != nil {
		fmt.Fprintf(writer, "=== SUMMARY ===\n")
		rg.printSummary(report.Summary, writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(rows) == 0 {
		_, err := fmt.Fprintf(writer, "%s\n", NoErrorsMessage)
		return err
	}

	fmt.Fprintf(writer, "=== FAILED RECORDS (%d) ===\n", len(rows))
	return rg.printTable(rows, writer)
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(report *reconciler.Report, rows []ReportRow, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.document(report, rows))
}

// generateYAMLReport generates a structured YAML report
func (rg *ReportGenerator) generateYAMLReport(report *reconciler.Report, rows []ReportRow, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(rg.document(report, rows)); err != nil {
		return err
	}
	return encoder.Close()
}

// generateCSVReport writes one line per failing record
func (rg *ReportGenerator) generateCSVReport(rows []ReportRow, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(ReportHeaders); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	for _, row := range rows {
		record := []string{row.TransactionReference, row.Description, row.ErrorDescription}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// generateXLSXReport writes the downloadable workbook
func (rg *ReportGenerator) generateXLSXReport(rows []ReportRow, writer io.Writer) error {
	if len(rows) == 0 {
		return errors.ReportError(errors.CodeEmptyReport, string(FormatXLSX), nil)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), XLSXSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headers := make([]interface{}, len(ReportHeaders))
	for i, header := range ReportHeaders {
		headers[i] = header
	}
	if err := f.SetSheetRow(XLSXSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []interface{}{row.TransactionReference, row.Description, row.ErrorDescription}
		if err := f.SetSheetRow(XLSXSheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(XLSXSheet, "A1", "C1", headerStyle); err != nil {
		return err
	}
	if err := f.SetColWidth(XLSXSheet, "A", "A", 24); err != nil {
		return err
	}
	if err := f.SetColWidth(XLSXSheet, "B", "C", 40); err != nil {
		return err
	}

	_, err = f.WriteTo(writer)
	return err
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummary(summary *reconciler.Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Records:    %d\n", summary.TotalRecords)
	fmt.Fprintf(writer, "Eligible:   %d\n", summary.EligibleRecords)
	fmt.Fprintf(writer, "Skipped:    %d\n", summary.SkippedRecords)
	fmt.Fprintf(writer, "Duplicates: %d\n", summary.DuplicateRecords)
	fmt.Fprintf(writer, "Mismatches: %d\n", summary.MismatchRecords)
	fmt.Fprintf(writer, "Failed:     %d (%.1f%%)\n",
		summary.FailedRecords, calculatePercentage(summary.FailedRecords, summary.TotalRecords))
}

func (rg *ReportGenerator) printTable(rows []ReportRow, writer io.Writer) error {
	refWidth := len(ReportHeaders[0])
	for _, row := range rows {
		if len(row.TransactionReference) > refWidth {
			refWidth = len(row.TransactionReference)
		}
	}

	// Description gets whatever the reference and error columns leave over.
	errWidth := len("Duplicate Reference, End Balance Error")
	descWidth := rg.config.TableMaxWidth - refWidth - errWidth - 4
	if descWidth < len(ReportHeaders[1]) {
		descWidth = len(ReportHeaders[1])
	}

	line := func(ref, desc, errDesc string) error {
		_, err := fmt.Fprintf(writer, "%-*s  %-*s  %s\n", refWidth, ref, descWidth, truncate(desc, descWidth), errDesc)
		return err
	}

	if err := line(ReportHeaders[0], ReportHeaders[1], ReportHeaders[2]); err != nil {
		return err
	}
	if err := line(strings.Repeat("-", refWidth), strings.Repeat("-", descWidth), strings.Repeat("-", len(ReportHeaders[2]))); err != nil {
		return err
	}
	for _, row := range rows {
		if err := line(row.TransactionReference, row.Description, row.ErrorDescription); err != nil {
			return err
		}
	}
	return nil
}

func (rg *ReportGenerator) document(report *reconciler.Report, rows []ReportRow) *reportDocument {
	doc := &reportDocument{
		RunID:       report.RunID,
		FileName:    report.FileName,
		Format:      report.Format,
		GeneratedAt: report.GeneratedAt,
		Rows:        rows,
	}
	if rg.config.IncludeSummary {
		doc.Summary = report.Summary
	}
	if len(rows) == 0 {
		doc.Message = NoErrorsMessage
	}
	return doc
}

func calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
