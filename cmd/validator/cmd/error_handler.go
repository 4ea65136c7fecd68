package cmd

import (
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"customer-statement-validator/cmd/validator/config"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// Exit codes not tied to an error category
const (
	exitFindings = 1
	exitGeneric  = 1
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
	out     io.Writer
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool(config.KeyVerbose),
		out:     os.Stderr,
	}
}

// HandleError prints err and returns the process exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	var findings *FindingsError
	if stderrors.As(err, &findings) {
		fmt.Fprintf(h.out, "Validation failed: %v\n", findings)
		return exitFindings
	}

	h.logger.WithError(err).Debug("Command failed")

	if vErr, ok := errors.AsValidatorError(err); ok {
		return h.handleValidatorError(vErr)
	}

	return h.handleGenericError(err)
}

func (h *CLIErrorHandler) handleValidatorError(err *errors.ValidatorError) int {
	fmt.Fprintf(h.out, "Error: %s\n", err.Message)

	if len(err.Context) > 0 {
		keys := make([]string, 0, len(err.Context))
		for key := range err.Context {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		fmt.Fprintf(h.out, "\nContext:\n")
		for _, key := range keys {
			fmt.Fprintf(h.out, "  %s: %v\n", key, err.Context[key])
		}
	}

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "\nSuggestion: %s\n", err.Suggestion)
	}

	fmt.Fprintf(h.out, "\n%s\n", h.getCategoryHelp(err.Category))

	if h.verbose && err.Cause != nil {
		fmt.Fprintf(h.out, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(h.out, "Error: File not found\n")
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(h.out, "Error: Permission denied\n")
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	if h.isDiskFullError(err) {
		fmt.Fprintf(h.out, "Error: Insufficient disk space\n")
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	// Usage errors from cobra (unknown flag, unexpected argument) land here
	fmt.Fprintf(h.out, "Error: %v\n", err)
	fmt.Fprintf(h.out, "Run 'validator --help' for usage.\n")
	return exitGeneric
}

func (h *CLIErrorHandler) getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Ensure you have proper permissions to access the file`

	case errors.CategoryFormat:
		return `Format error help:
• Only files ending in .csv or .xml (lower case) are accepted
• Rename the file if it has the right content but a different suffix`

	case errors.CategoryParse:
		return `Parse error help:
• CSV files need a header row with at least a Reference column
• Every CSV row must have as many fields as the header
• XML files need a single root element holding one element per transaction
• Use --encoding iso-8859-1 for files exported in Latin-1`

	case errors.CategoryValidation:
		return `Validation error help:
• Every XML transaction needs a reference attribute
• startBalance, mutation and endBalance must be decimal numbers
• Remove currency symbols from amounts`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Use 'validator validate --help' to see all available options`

	case errors.CategoryReport:
		return `Report error help:
• Excel exports are only produced when at least one record fails
• Try another --output-format or --output-file location`

	default:
		return `For more help:
• Use 'validator --help' for general help
• Use 'validator validate --help' for command-specific help
• Run with --verbose to see the underlying error`
	}
}

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func (h *CLIErrorHandler) isDiskFullError(err error) bool {
	if stderrors.Is(err, syscall.ENOSPC) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full")
}
