package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"customer-statement-validator/cmd/validator/config"
	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/internal/reporter"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// FindingsError is returned when --fail-on-findings is set and records failed validation
type FindingsError struct {
	Failed int
}

func (e *FindingsError) Error() string {
	return fmt.Sprintf("%d record(s) failed validation", e.Failed)
}

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a customer statement file",
	Long: `Validate reads a CSV or XML statement file, checks that every transaction
reference is unique and that every end balance equals start balance plus
mutation, and reports the failing records.

The input format is chosen from the file suffix: .csv or .xml (lower case).

Examples:
  # Console report
  validator validate --file records.csv

  # JSON report written to a file
  validator validate --file records.xml --output-format json --output-file report.json

  # Excel export (defaults to validation_report.xlsx)
  validator validate --file records.csv --output-format xlsx

  # Latin-1 input with custom column headers from a config file
  validator validate --config validator.yaml --file legacy.csv --encoding iso-8859-1

  # Exit with status 1 when any record fails, for use in pipelines
  validator validate --file records.csv --fail-on-findings`,

	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().StringP(config.KeyFile, "f", "", "path to the statement file, .csv or .xml (required)")

	// Output flags
	validateCmd.Flags().StringP(config.KeyOutputFormat, "o", "console", "output format: console, json, csv, yaml, xlsx")
	validateCmd.Flags().String(config.KeyOutputFile, "", "output file path (default: stdout, validation_report.xlsx for xlsx)")
	validateCmd.Flags().Bool(config.KeyFailOnFindings, false, "exit with status 1 when any record fails validation")

	// Input flags
	validateCmd.Flags().String(config.KeyEncoding, "utf-8", "input encoding: utf-8, iso-8859-1")
	validateCmd.Flags().Bool(config.KeyCheckIneligibleReferences, false,
		"include records without balances in duplicate reference detection; they may then be reported even though they count as skipped")
}

func runValidate(cmd *cobra.Command, args []string) error {
	opts, err := config.LoadValidateOptions(viper.GetViper())
	if err != nil {
		return err
	}

	log := logger.GetGlobalLogger().WithComponent("cli")
	log.WithFields(logger.Fields{
		"file":          opts.File,
		"output_format": opts.OutputFormat,
		"output_file":   opts.OutputFile,
		"encoding":      opts.Input.Encoding,
	}).Debug("Starting validation")

	serviceConfig, err := opts.Input.CreateServiceConfig()
	if err != nil {
		return err
	}

	service, err := reconciler.NewService(serviceConfig, nil)
	if err != nil {
		return err
	}

	report, err := validateLocalFile(cmd, service, opts.File)
	if err != nil {
		return err
	}

	generator, err := reporter.NewSafeReportGenerator(opts.CreateReportConfig(), log)
	if err != nil {
		return err
	}

	if err := writeReport(cmd, generator, report, opts.OutputFile); err != nil {
		return err
	}

	if viper.GetBool(config.KeyVerbose) {
		summary := report.Summary
		fmt.Fprintf(cmd.ErrOrStderr(), "\nValidation completed (run %s).\n", report.RunID)
		fmt.Fprintf(cmd.ErrOrStderr(), "Processed %d records, %d eligible, %d skipped.\n",
			summary.TotalRecords, summary.EligibleRecords, summary.SkippedRecords)
		fmt.Fprintf(cmd.ErrOrStderr(), "Found %d duplicate references and %d balance mismatches.\n",
			summary.DuplicateRecords, summary.MismatchRecords)
		fmt.Fprintf(cmd.ErrOrStderr(), "Processing time: %v\n", summary.ProcessingDuration)
	}

	if opts.FailOnFindings && report.HasFindings() {
		return &FindingsError{Failed: len(report.Results)}
	}
	return nil
}

func validateLocalFile(cmd *cobra.Command, service *reconciler.Service, path string) (*reconciler.Report, error) {
	if err := service.CheckFormat(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return nil, errors.FileError(errors.CodeFileNotFound, path, err)
	case os.IsPermission(err):
		return nil, errors.FileError(errors.CodeFilePermission, path, err)
	case err != nil:
		return nil, errors.FileError(errors.CodeFileRead, path, err)
	case info.IsDir():
		return nil, errors.FileError(errors.CodeFileRead, path, fmt.Errorf("%s is a directory, expected a file", path))
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, errors.FileError(errors.CodeFilePermission, path, err)
		}
		return nil, errors.FileError(errors.CodeFileRead, path, err)
	}
	defer file.Close()

	return service.ValidateFile(cmd.Context(), path, file)
}

func writeReport(cmd *cobra.Command, generator *reporter.SafeReportGenerator, report *reconciler.Report, outputFile string) error {
	if outputFile == "" {
		return generator.GenerateReportSafely(report, cmd.OutOrStdout())
	}

	written, err := generator.WriteReportFile(report, outputFile)
	if errors.HasCode(err, errors.CodeEmptyReport) {
		// No export file is produced for a clean statement
		fmt.Fprintln(cmd.OutOrStdout(), reporter.NoErrorsMessage)
		return nil
	}
	if err != nil {
		return err
	}

	if written != outputFile {
		fmt.Fprintf(cmd.ErrOrStderr(), "Could not write %s, report saved to %s instead\n", outputFile, written)
	}
	return nil
}
