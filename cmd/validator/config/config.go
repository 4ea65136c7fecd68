package config

import (
	stderrors "errors"
	"fmt"
	"reflect"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"customer-statement-validator/internal/parsers"
	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/internal/reporter"
	"customer-statement-validator/internal/server"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// Configuration keys shared by flags, config files and VALIDATOR_* environment variables
const (
	KeyVerbose                   = "verbose"
	KeyLogFormat                 = "log-format"
	KeyFile                      = "file"
	KeyOutputFormat              = "output-format"
	KeyOutputFile                = "output-file"
	KeyFailOnFindings            = "fail-on-findings"
	KeyEncoding                  = "encoding"
	KeyCheckIneligibleReferences = "check-ineligible-references"
	KeyListen                    = "listen"
	KeyMaxUploadBytes            = "max-upload-bytes"
	KeyReadTimeout               = "read-timeout"
	KeyWriteTimeout              = "write-timeout"
	KeyShutdownTimeout           = "shutdown-timeout"

	KeyColumnReference    = "columns.reference"
	KeyColumnDescription  = "columns.description"
	KeyColumnStartBalance = "columns.start-balance"
	KeyColumnMutation     = "columns.mutation"
	KeyColumnEndBalance   = "columns.end-balance"
	KeyColumnDelimiter    = "columns.delimiter"
)

// ColumnOptions names the CSV header of each statement column
type ColumnOptions struct {
	Reference    string `mapstructure:"reference" validate:"required"`
	Description  string `mapstructure:"description" validate:"required"`
	StartBalance string `mapstructure:"start-balance" validate:"required"`
	Mutation     string `mapstructure:"mutation" validate:"required"`
	EndBalance   string `mapstructure:"end-balance" validate:"required"`
	Delimiter    string `mapstructure:"delimiter" validate:"delimiter"`
}

// InputOptions controls how statement files are decoded and checked
type InputOptions struct {
	Encoding                  string        `mapstructure:"encoding" validate:"encoding"`
	CheckIneligibleReferences bool          `mapstructure:"check-ineligible-references"`
	Columns                   ColumnOptions `mapstructure:"columns"`
}

// ValidateOptions holds the settings of the validate command
type ValidateOptions struct {
	Input          InputOptions `mapstructure:",squash"`
	File           string       `mapstructure:"file" validate:"required"`
	OutputFormat   string       `mapstructure:"output-format" validate:"required,oneof=console json csv yaml xlsx"`
	OutputFile     string       `mapstructure:"output-file"`
	FailOnFindings bool         `mapstructure:"fail-on-findings"`
}

// ServeOptions holds the settings of the serve command
type ServeOptions struct {
	Input           InputOptions  `mapstructure:",squash"`
	Listen          string        `mapstructure:"listen" validate:"required"`
	MaxUploadBytes  int64         `mapstructure:"max-upload-bytes" validate:"gt=0"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" validate:"gt=0"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	v.RegisterValidation("encoding", isSupportedEncoding)
	v.RegisterValidation("delimiter", isDelimiter)

	// Report the configuration key rather than the Go field name
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
	})

	return v
}

func isSupportedEncoding(fl validator.FieldLevel) bool {
	_, err := parsers.ParseEncoding(fl.Field().String())
	return err == nil
}

func isDelimiter(fl validator.FieldLevel) bool {
	value := fl.Field().String()
	if utf8.RuneCountInString(value) != 1 {
		return false
	}
	r, _ := utf8.DecodeRuneInString(value)
	return r != '"' && r != '\r' && r != '\n' && r != utf8.RuneError
}

// SetDefaults registers the default value of every configuration key
func SetDefaults(v *viper.Viper) {
	columns := parsers.DefaultCSVColumns()
	serverConfig := server.DefaultConfig()

	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
	v.SetDefault(KeyOutputFormat, string(reporter.FormatConsole))
	v.SetDefault(KeyEncoding, string(parsers.EncodingUTF8))
	v.SetDefault(KeyListen, serverConfig.ListenAddr)
	v.SetDefault(KeyMaxUploadBytes, serverConfig.MaxUploadBytes)
	v.SetDefault(KeyReadTimeout, serverConfig.ReadTimeout)
	v.SetDefault(KeyWriteTimeout, serverConfig.WriteTimeout)
	v.SetDefault(KeyShutdownTimeout, serverConfig.ShutdownTimeout)

	v.SetDefault(KeyColumnReference, columns.Reference)
	v.SetDefault(KeyColumnDescription, columns.Description)
	v.SetDefault(KeyColumnStartBalance, columns.StartBalance)
	v.SetDefault(KeyColumnMutation, columns.Mutation)
	v.SetDefault(KeyColumnEndBalance, columns.EndBalance)
	v.SetDefault(KeyColumnDelimiter, string(columns.Delimiter))
}

// LoadInputOptions reads the input settings shared by all commands
func LoadInputOptions(v *viper.Viper) InputOptions {
	return InputOptions{
		Encoding:                  v.GetString(KeyEncoding),
		CheckIneligibleReferences: v.GetBool(KeyCheckIneligibleReferences),
		Columns: ColumnOptions{
			Reference:    v.GetString(KeyColumnReference),
			Description:  v.GetString(KeyColumnDescription),
			StartBalance: v.GetString(KeyColumnStartBalance),
			Mutation:     v.GetString(KeyColumnMutation),
			EndBalance:   v.GetString(KeyColumnEndBalance),
			Delimiter:    v.GetString(KeyColumnDelimiter),
		},
	}
}

// LoadValidateOptions reads and validates the validate command settings
func LoadValidateOptions(v *viper.Viper) (*ValidateOptions, error) {
	opts := &ValidateOptions{
		Input:          LoadInputOptions(v),
		File:           v.GetString(KeyFile),
		OutputFormat:   v.GetString(KeyOutputFormat),
		OutputFile:     v.GetString(KeyOutputFile),
		FailOnFindings: v.GetBool(KeyFailOnFindings),
	}

	if err := validate.Struct(opts); err != nil {
		return nil, validationError(err)
	}

	if opts.OutputFormat == string(reporter.FormatXLSX) && opts.OutputFile == "" {
		opts.OutputFile = reporter.XLSXFileName
	}

	return opts, nil
}

// LoadServeOptions reads and validates the serve command settings
func LoadServeOptions(v *viper.Viper) (*ServeOptions, error) {
	opts := &ServeOptions{
		Input:           LoadInputOptions(v),
		Listen:          v.GetString(KeyListen),
		MaxUploadBytes:  v.GetInt64(KeyMaxUploadBytes),
		ReadTimeout:     v.GetDuration(KeyReadTimeout),
		WriteTimeout:    v.GetDuration(KeyWriteTimeout),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
	}

	if err := validate.Struct(opts); err != nil {
		return nil, validationError(err)
	}

	return opts, nil
}

// validationError converts the first failed rule into a configuration error
func validationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return errors.ConfigurationError("options", nil, err)
	}

	fe := fieldErrs[0]
	rule := fe.Tag()
	if fe.Param() != "" {
		rule = fmt.Sprintf("%s=%s", rule, fe.Param())
	}

	return errors.ConfigurationError(settingName(fe.Namespace()), fe.Value(),
		fmt.Errorf("value does not satisfy %q", rule))
}

// settingName turns a validator namespace such as "ServeOptions.Input.columns.reference"
// into the configuration key "columns.reference"
func settingName(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	if len(parts) > 1 && parts[0] == "Input" {
		parts = parts[1:]
	}
	return strings.Join(parts, ".")
}

// CreateCSVColumns converts the column options into parser configuration
func (o *InputOptions) CreateCSVColumns() *parsers.CSVColumns {
	delimiter, _ := utf8.DecodeRuneInString(o.Columns.Delimiter)
	return &parsers.CSVColumns{
		Reference:    o.Columns.Reference,
		Description:  o.Columns.Description,
		StartBalance: o.Columns.StartBalance,
		Mutation:     o.Columns.Mutation,
		EndBalance:   o.Columns.EndBalance,
		Delimiter:    delimiter,
	}
}

// CreateEngineOptions creates the rule engine options
func (o *InputOptions) CreateEngineOptions() *reconciler.Options {
	options := reconciler.DefaultOptions()
	options.CheckIneligibleReferences = o.CheckIneligibleReferences
	return options
}

// CreateServiceConfig creates a validation service configuration
func (o *InputOptions) CreateServiceConfig() (*reconciler.ServiceConfig, error) {
	encoding, err := parsers.ParseEncoding(o.Encoding)
	if err != nil {
		return nil, err
	}

	config := reconciler.DefaultServiceConfig()
	config.Parsers.CSV = o.CreateCSVColumns()
	config.Options = o.CreateEngineOptions()
	config.Encoding = encoding

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError("input", o.Encoding, err)
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the selected output format
func (o *ValidateOptions) CreateReportConfig() *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(o.OutputFormat)

	switch config.Format {
	case reporter.FormatCSV:
		config.CSVHeaders = true
		config.CSVDelimiter = ','
	case reporter.FormatXLSX:
		config.IncludeSummary = false
	}

	return config
}

// CreateServerConfig creates the HTTP server configuration
func (o *ServeOptions) CreateServerConfig() *server.Config {
	return &server.Config{
		ListenAddr:      o.Listen,
		MaxUploadBytes:  o.MaxUploadBytes,
		ReadTimeout:     o.ReadTimeout,
		WriteTimeout:    o.WriteTimeout,
		ShutdownTimeout: o.ShutdownTimeout,
	}
}

// CreateLoggerConfig creates the logger configuration for the CLI
func CreateLoggerConfig(verbose bool, format string) (*logger.Config, error) {
	config := logger.DefaultConfig()
	if verbose {
		config = logger.DebugConfig()
	}

	switch logger.Format(format) {
	case "", logger.TextFormat:
		config.Format = logger.TextFormat
	case logger.JSONFormat:
		config.Format = logger.JSONFormat
	default:
		return nil, errors.ConfigurationError(KeyLogFormat, format,
			fmt.Errorf("supported log formats are text and json"))
	}

	return config, nil
}
