// Package parsers turns customer statement files into canonical transaction records.
//
// Two adapters are provided, one per supported input format:
//   - CSVAdapter: delimited text with a header row, columns matched by name
//   - XMLAdapter: a root element whose children are transaction elements
//
// The Registry selects an adapter from a filename suffix (".csv" or ".xml",
// case-sensitive) and reports any other suffix as an unsupported format before
// anything is parsed.
//
// Example usage:
//
//	registry := parsers.DefaultRegistry()
//	adapter, err := registry.Select("records.csv")
//	records, err := adapter.Parse(data)
//
// Adapters hold no state between calls. Structural failures (malformed CSV rows,
// unparseable markup) abort the whole input with a single error; missing balance
// values are handled per format, see the adapter docs.
package parsers

import (
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

const utf8BOM = "\uFEFF"

// ParseConfig holds configuration for CSV parsing
type ParseConfig struct {
	Delimiter        rune
	Comment          rune
	TrimLeadingSpace bool
	SkipEmptyRows    bool
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
	}
}

// BaseParser provides common CSV parsing functionality
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("base_parser")
	log.WithFields(logger.Fields{
		"delimiter":       string(config.Delimiter),
		"skip_empty_rows": config.SkipEmptyRows,
	}).Debug("Created base parser")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// ParseContext holds state during a single parsing operation
type ParseContext struct {
	LineNumber   int
	Headers      []string
	HeaderMap    map[string]int
	RecordCount  int
	SkippedCount int
}

// NewParseContext creates a new parsing context
func NewParseContext() *ParseContext {
	return &ParseContext{
		Headers:   make([]string, 0),
		HeaderMap: make(map[string]int),
	}
}

// GetColumnIndex returns the index of a column by name, or -1 if not found.
// An exact match wins over a case-insensitive one.
func (pc *ParseContext) GetColumnIndex(name string) int {
	if index, exists := pc.HeaderMap[name]; exists {
		return index
	}

	for i, header := range pc.Headers {
		if strings.EqualFold(header, name) {
			return i
		}
	}

	return -1
}

// NewReader returns a csv.Reader configured for statement input
func (bp *BaseParser) NewReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.TrimLeadingSpace = bp.config.TrimLeadingSpace
	// Arity is checked against the header in ReadRecord so blank rows can be skipped first.
	reader.FieldsPerRecord = -1
	return reader
}

// ReadHeaders reads the header row and checks that required headers are present
func (bp *BaseParser) ReadHeaders(reader *csv.Reader, parseCtx *ParseContext, requiredHeaders []string) error {
	for {
		headers, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				bp.logger.Warn("CSV input is empty")
				return errors.CSVParseError(0, "input contains no header row", nil)
			}
			return bp.wrapReadError(err)
		}
		parseCtx.LineNumber, _ = reader.FieldPos(0)

		if bp.config.SkipEmptyRows && isEmptyRecord(headers) {
			continue
		}

		parseCtx.Headers = cleanHeaders(headers)
		break
	}

	parseCtx.HeaderMap = make(map[string]int, len(parseCtx.Headers))
	for i, header := range parseCtx.Headers {
		if _, exists := parseCtx.HeaderMap[header]; !exists {
			parseCtx.HeaderMap[header] = i
		}
	}

	bp.logger.WithField("headers", parseCtx.Headers).Debug("Read CSV headers")

	var missing []string
	for _, header := range requiredHeaders {
		if parseCtx.GetColumnIndex(header) == -1 {
			missing = append(missing, header)
		}
	}
	if len(missing) > 0 {
		bp.logger.WithFields(logger.Fields{
			"missing_headers":   missing,
			"available_headers": parseCtx.Headers,
		}).Warn("Required headers are missing")
		return errors.MissingColumnError(requiredHeaders, parseCtx.Headers)
	}

	return nil
}

// ReadRecord returns the next non-blank row. A row whose field count differs from
// the header is a parse failure for the whole input.
func (bp *BaseParser) ReadRecord(reader *csv.Reader, parseCtx *ParseContext) ([]string, error) {
	for {
		record, err := reader.Read()
		if err != nil {
			if err == io.EOF {
				return nil, err
			}
			return nil, bp.wrapReadError(err)
		}
		parseCtx.LineNumber, _ = reader.FieldPos(0)

		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			parseCtx.SkippedCount++
			bp.logger.WithField("line_number", parseCtx.LineNumber).Debug("Skipping empty record")
			continue
		}

		if len(record) != len(parseCtx.Headers) {
			detail := fmt.Sprintf("row has %d fields, header has %d", len(record), len(parseCtx.Headers))
			bp.logger.WithFields(logger.Fields{
				"line_number": parseCtx.LineNumber,
				"fields":      len(record),
				"headers":     len(parseCtx.Headers),
			}).Warn("CSV row arity does not match header")
			return nil, errors.CSVParseError(parseCtx.LineNumber, detail, nil)
		}

		parseCtx.RecordCount++
		return record, nil
	}
}

// GetFieldValue returns the trimmed value of a named column, and false when the
// header has no such column.
func (bp *BaseParser) GetFieldValue(record []string, parseCtx *ParseContext, fieldName string) (string, bool) {
	index := parseCtx.GetColumnIndex(fieldName)
	if index == -1 || index >= len(record) {
		return "", false
	}
	return strings.TrimSpace(record[index]), true
}

func (bp *BaseParser) wrapReadError(err error) error {
	var csvErr *csv.ParseError
	if stderrors.As(err, &csvErr) {
		bp.logger.WithError(err).WithField("line_number", csvErr.StartLine).Warn("Failed to read CSV record")
		return errors.CSVParseError(csvErr.StartLine, csvErr.Err.Error(), err)
	}
	bp.logger.WithError(err).Warn("Failed to read CSV input")
	return errors.CSVParseError(0, err.Error(), err)
}

// cleanHeaders trims whitespace and a leading byte order mark
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	for i, header := range headers {
		if i == 0 {
			header = strings.TrimPrefix(header, utf8BOM)
		}
		cleaned[i] = strings.TrimSpace(header)
	}
	return cleaned
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}
