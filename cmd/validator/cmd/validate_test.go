package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"customer-statement-validator/internal/reporter"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

const statementCSV = `Reference,Description,Start Balance,Mutation,End Balance
194261,Book John Smith,21.6,-41.83,-20.33
112806,Clothes Irma Steven,91.23,+15.57,106.8
112806,Flowers Peter de Vries,-53.65,+3.77,-49.88
183049,Candy Vincent Vries,86.66,+44.5,131.16
`

const cleanCSV = `Reference,Description,Start Balance,Mutation,End Balance
1,ok,10,5,15
`

func writeTestFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

func resetFlags(cmds ...*cobra.Command) {
	for _, c := range cmds {
		reset := func(f *pflag.Flag) {
			f.Value.Set(f.DefValue)
			f.Changed = false
		}
		c.Flags().VisitAll(reset)
		c.PersistentFlags().VisitAll(reset)
	}
}

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	viper.Reset()
	resetFlags(rootCmd, validateCmd, serveCmd, generateCmd)

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestValidateCommand_Console(t *testing.T) {
	path := writeTestFile(t, "records.csv", statementCSV)

	stdout, _, err := executeCommand(t, "validate", "--file", path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for _, expected := range []string{"VALIDATION REPORT", "112806", "Flowers Peter de Vries", "Duplicate Reference", "194261"} {
		if !strings.Contains(stdout, expected) {
			t.Errorf("output should contain %q, got:\n%s", expected, stdout)
		}
	}
	if strings.Contains(stdout, "183049") {
		t.Error("balanced record should not be reported")
	}
}

func TestValidateCommand_JSONOutputFile(t *testing.T) {
	path := writeTestFile(t, "records.csv", statementCSV)
	output := filepath.Join(t.TempDir(), "report.json")

	_, _, err := executeCommand(t, "validate", "--file", path, "--output-format", "json", "--output-file", output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("report file not written: %v", err)
	}

	var doc struct {
		Rows []reporter.ReportRow `json:"rows"`
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("invalid JSON report: %v", err)
	}

	expected := []reporter.ReportRow{
		{TransactionReference: "194261", Description: "Book John Smith", ErrorDescription: "End Balance Error"},
		{TransactionReference: "112806", Description: "Flowers Peter de Vries", ErrorDescription: "Duplicate Reference"},
	}
	if len(doc.Rows) != len(expected) {
		t.Fatalf("expected %d rows, got %d: %+v", len(expected), len(doc.Rows), doc.Rows)
	}
	for i := range expected {
		if doc.Rows[i] != expected[i] {
			t.Errorf("row %d: expected %+v, got %+v", i, expected[i], doc.Rows[i])
		}
	}
}

func TestValidateCommand_XLSXCleanStatement(t *testing.T) {
	path := writeTestFile(t, "records.csv", cleanCSV)
	output := filepath.Join(t.TempDir(), "report.xlsx")

	stdout, _, err := executeCommand(t, "validate", "--file", path, "--output-format", "xlsx", "--output-file", output)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(stdout, reporter.NoErrorsMessage) {
		t.Errorf("expected %q, got %q", reporter.NoErrorsMessage, stdout)
	}
	if _, err := os.Stat(output); !os.IsNotExist(err) {
		t.Error("no export file should be written for a clean statement")
	}
}

func TestValidateCommand_FailOnFindings(t *testing.T) {
	path := writeTestFile(t, "records.csv", statementCSV)

	_, _, err := executeCommand(t, "validate", "--file", path, "--output-format", "csv", "--fail-on-findings")

	var findings *FindingsError
	if !stderrors.As(err, &findings) {
		t.Fatalf("expected FindingsError, got %v", err)
	}
	if findings.Failed != 2 {
		t.Errorf("expected 2 failed records, got %d", findings.Failed)
	}

	cleanPath := writeTestFile(t, "clean.csv", cleanCSV)
	if _, _, err := executeCommand(t, "validate", "--file", cleanPath, "--fail-on-findings"); err != nil {
		t.Errorf("clean statement should not fail: %v", err)
	}
}

func TestValidateCommand_Errors(t *testing.T) {
	csvPath := writeTestFile(t, "records.csv", statementCSV)
	txtPath := writeTestFile(t, "records.txt", statementCSV)
	brokenXML := writeTestFile(t, "records.xml", "<records><record reference=\"1\">")

	tests := []struct {
		name     string
		args     []string
		wantCode errors.ErrorCode
		wantExit int
	}{
		{
			name:     "unsupported suffix",
			args:     []string{"validate", "--file", txtPath},
			wantCode: errors.CodeUnsupportedFormat,
			wantExit: 3,
		},
		{
			name:     "missing file with unsupported suffix",
			args:     []string{"validate", "--file", filepath.Join(t.TempDir(), "statement.txt")},
			wantCode: errors.CodeUnsupportedFormat,
			wantExit: 3,
		},
		{
			name:     "missing file",
			args:     []string{"validate", "--file", filepath.Join(t.TempDir(), "missing.csv")},
			wantCode: errors.CodeFileNotFound,
			wantExit: 2,
		},
		{
			name:     "directory",
			args:     []string{"validate", "--file", t.TempDir() + "/"},
			wantCode: errors.CodeFileRead,
			wantExit: 2,
		},
		{
			name:     "malformed xml",
			args:     []string{"validate", "--file", brokenXML},
			wantCode: errors.CodeXMLParse,
			wantExit: 3,
		},
		{
			name:     "no file flag",
			args:     []string{"validate"},
			wantCode: errors.CodeInvalidConfig,
			wantExit: 4,
		},
		{
			name:     "invalid output format",
			args:     []string{"validate", "--file", csvPath, "--output-format", "pdf"},
			wantCode: errors.CodeInvalidConfig,
			wantExit: 4,
		},
		{
			name:     "invalid encoding",
			args:     []string{"validate", "--file", csvPath, "--encoding", "utf-16"},
			wantCode: errors.CodeInvalidConfig,
			wantExit: 4,
		},
		{
			name:     "invalid log format",
			args:     []string{"validate", "--file", csvPath, "--log-format", "xml"},
			wantCode: errors.CodeInvalidConfig,
			wantExit: 4,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := executeCommand(t, tt.args...)
			if !errors.HasCode(err, tt.wantCode) {
				t.Fatalf("expected error code %s, got %v", tt.wantCode, err)
			}

			var out bytes.Buffer
			handler := &CLIErrorHandler{logger: logger.GetGlobalLogger(), out: &out}
			if code := handler.HandleError(err); code != tt.wantExit {
				t.Errorf("expected exit code %d, got %d", tt.wantExit, code)
			}
			if !strings.HasPrefix(out.String(), "Error: ") {
				t.Errorf("unexpected error output: %q", out.String())
			}
		})
	}
}

func TestValidateCommand_Latin1(t *testing.T) {
	content := []byte("Reference,Description,Start Balance,Mutation,End Balance\n1,Caf\xe9 Jos\xe9,1,1,5\n")
	path := filepath.Join(t.TempDir(), "records.csv")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	stdout, _, err := executeCommand(t, "validate", "--file", path, "--encoding", "latin1", "--output-format", "csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "Café José") {
		t.Errorf("expected decoded description, got %q", stdout)
	}

	if _, _, err := executeCommand(t, "validate", "--file", path); !errors.HasCode(err, errors.CodeEncodingError) {
		t.Errorf("expected encoding error without --encoding, got %v", err)
	}
}

func TestValidateCommand_ConfigFileColumns(t *testing.T) {
	path := writeTestFile(t, "records.csv", "Ref;Text;Start;Change;End\nA1;coffee;10;-2;9\n")
	cfg := writeTestFile(t, "validator.yaml", `columns:
  reference: Ref
  description: Text
  start-balance: Start
  mutation: Change
  end-balance: End
  delimiter: ";"
`)

	stdout, _, err := executeCommand(t, "validate", "--config", cfg, "--file", path, "--output-format", "csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(stdout, "A1,coffee,End Balance Error") {
		t.Errorf("expected mismatch row, got %q", stdout)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := executeCommand(t, "version")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(stdout, "validator ") {
		t.Errorf("unexpected version output: %q", stdout)
	}
}

func TestValidateCommandHelp(t *testing.T) {
	var helpOutput bytes.Buffer
	validateCmd.SetOut(&helpOutput)
	validateCmd.Help()

	for _, section := range []string{"Usage:", "Examples:", "Flags:", "--file", "--output-format", "--encoding", "--fail-on-findings"} {
		if !strings.Contains(helpOutput.String(), section) {
			t.Errorf("help text should contain '%s'", section)
		}
	}
}

func TestCLIErrorHandler(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		expectedCode int
		contains     string
	}{
		{"nil", nil, 0, ""},
		{"findings", &FindingsError{Failed: 3}, 1, "3 record(s) failed validation"},
		{"file error", errors.FileError(errors.CodeFileNotFound, "x.csv", os.ErrNotExist), 2, "File error help"},
		{"generic not found", os.ErrNotExist, 2, "File not found"},
		{"generic", stderrors.New("unknown flag: --bogus"), 1, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			handler := &CLIErrorHandler{logger: logger.GetGlobalLogger(), out: &out}

			if code := handler.HandleError(tt.err); code != tt.expectedCode {
				t.Errorf("expected exit code %d, got %d", tt.expectedCode, code)
			}
			if !strings.Contains(out.String(), tt.contains) {
				t.Errorf("expected output to contain %q, got %q", tt.contains, out.String())
			}
		})
	}
}

func TestGenerateCommand_FeedsValidate(t *testing.T) {
	for _, format := range []string{"csv", "xml"} {
		t.Run(format, func(t *testing.T) {
			output := filepath.Join(t.TempDir(), "records."+format)

			_, _, err := executeCommand(t, "generate", "--format", format, "--count", "50",
				"--duplicates", "0.2", "--mismatches", "0.2", "--seed", "7", "--output", output)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			_, _, err = executeCommand(t, "validate", "--file", output, "--fail-on-findings", "--output-format", "json")
			var findings *FindingsError
			if !stderrors.As(err, &findings) {
				t.Fatalf("expected generated statement to contain failures, got %v", err)
			}
		})
	}
}

func TestGenerateCommand_OutputIsDirectory(t *testing.T) {
	_, _, err := executeCommand(t, "generate", "--count", "5", "--output", t.TempDir())
	if !errors.HasCode(err, errors.CodeFileWrite) {
		t.Errorf("expected file write error, got %v", err)
	}
}

func TestGenerateCommand_InvalidFormat(t *testing.T) {
	_, _, err := executeCommand(t, "generate", "--format", "json")
	if !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("expected configuration error, got %v", err)
	}
}
