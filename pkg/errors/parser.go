package errors

import (
	"fmt"
	"path/filepath"
	"strings"
)

// UnsupportedFormatMessage is shown when a file is neither CSV nor XML.
const UnsupportedFormatMessage = "Unsupported file format. Please upload a CSV or XML file."

// UnsupportedFormatError is returned by format detection for any suffix other than .csv or .xml.
func UnsupportedFormatError(filename string) *ValidatorError {
	ext := filepath.Ext(filename)
	if ext == "" {
		ext = "(none)"
	}

	return New(CategoryFormat, CodeUnsupportedFormat, UnsupportedFormatMessage).
		WithSuggestion("rename or export the statement as .csv or .xml (suffix is case-sensitive)").
		WithContext("file", filename).
		WithContext("extension", ext)
}

// CSVParseError creates an error for structurally invalid CSV input.
// line is the 1-based physical line where the problem was detected, or 0 when unknown.
func CSVParseError(line int, detail string, cause error) *ValidatorError {
	message := fmt.Sprintf("CSV parsing error: %s", detail)
	if line > 0 {
		message = fmt.Sprintf("CSV parsing error at line %d: %s", line, detail)
	}

	return newOrWrap(cause, CategoryParse, CodeCSVParse, message).
		WithSuggestion("check that every row has the same number of columns as the header and quotes are balanced").
		WithContext("line", line).
		WithContext("detail", detail)
}

// MissingColumnError creates an error for a CSV header lacking required columns.
func MissingColumnError(expected []string, actual []string) *ValidatorError {
	missing := findMissingColumns(expected, actual)
	message := fmt.Sprintf("missing required columns: %s", strings.Join(missing, ", "))

	return New(CategoryParse, CodeMissingColumn, message).
		WithSuggestion(fmt.Sprintf("ensure the CSV header contains: %s", strings.Join(expected, ", "))).
		WithContext("missing", missing).
		WithContext("headers", actual)
}

// XMLParseError creates an error for markup that cannot be parsed as a statement document.
func XMLParseError(detail string, cause error) *ValidatorError {
	return newOrWrap(cause, CategoryParse, CodeXMLParse, fmt.Sprintf("Invalid XML file: %s", detail)).
		WithSuggestion("Please ensure it contains the expected structure.").
		WithContext("detail", detail)
}

// MissingFieldError creates an error for a transaction element without a required field.
// recordIndex is zero-based in document order.
func MissingFieldError(recordIndex int, field string) *ValidatorError {
	message := fmt.Sprintf("record %d is missing required field '%s'", recordIndex, field)

	return New(CategoryValidation, CodeMissingField, message).
		WithSuggestion("provide a value for this required field").
		WithContext("record_index", recordIndex).
		WithContext("field", field)
}

// InvalidAmountError creates an error for a value the numeric normalizer rejects.
func InvalidAmountError(value string, cause error) *ValidatorError {
	message := fmt.Sprintf("invalid amount: '%s'", value)

	return newOrWrap(cause, CategoryValidation, CodeInvalidAmount, message).
		WithSuggestion("use a bare decimal number such as '1,250.50' or '-12.34'").
		WithContext("value", value)
}

// EncodingError creates an error for input that cannot be decoded with the selected charset.
func EncodingError(encoding string, cause error) *ValidatorError {
	return newOrWrap(cause, CategoryParse, CodeEncodingError, fmt.Sprintf("failed to decode input as %s", encoding)).
		WithSuggestion("save the file as UTF-8 or select --encoding iso-8859-1").
		WithContext("encoding", encoding)
}

func findMissingColumns(expected, actual []string) []string {
	actualSet := make(map[string]bool)
	for _, col := range actual {
		actualSet[strings.ToLower(strings.TrimSpace(col))] = true
	}

	var missing []string
	for _, col := range expected {
		if !actualSet[strings.ToLower(strings.TrimSpace(col))] {
			missing = append(missing, col)
		}
	}

	return missing
}
