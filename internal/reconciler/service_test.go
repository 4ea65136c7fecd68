package reconciler

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/internal/parsers"
	"customer-statement-validator/pkg/errors"
)

const header = "Reference,Description,Start Balance,Mutation,End Balance\n"

type recordingRecorder struct {
	mu       sync.Mutex
	runs     []string
	failures []errors.ErrorCode
}

func (r *recordingRecorder) ObserveRun(format string, summary *Summary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, fmt.Sprintf("%s:%d", format, summary.FailedRecords))
}

func (r *recordingRecorder) ObserveFailure(format string, code errors.ErrorCode) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, code)
}

// trackingReader fails the test if the pipeline reads input it should have rejected
type trackingReader struct {
	read bool
}

func (r *trackingReader) Read(p []byte) (int, error) {
	r.read = true
	return 0, fmt.Errorf("unexpected read")
}

type failingReader struct{}

func (failingReader) Read(p []byte) (int, error) {
	return 0, fmt.Errorf("disk on fire")
}

func newTestService(t *testing.T, config *ServiceConfig, recorder Recorder) *Service {
	t.Helper()
	service, err := NewService(config, recorder)
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return service
}

func TestService_ValidateFile_Scenarios(t *testing.T) {
	service := newTestService(t, nil, nil)

	tests := []struct {
		name      string
		filename  string
		input     string
		wantRefs  []string
		wantKinds []models.ErrorKind
	}{
		{
			name:     "Balanced CSV",
			filename: "records.csv",
			input:    header + "T1,ok,100.00,50.00,150.00\n",
		},
		{
			name:      "CSV balance mismatch",
			filename:  "records.csv",
			input:     header + "T1,bad,100,50,200\n",
			wantRefs:  []string{"T1"},
			wantKinds: []models.ErrorKind{models.BalanceMismatch},
		},
		{
			name:      "CSV duplicate reference",
			filename:  "records.csv",
			input:     header + "T1,first,1,1,2\nT1,second,1,1,2\n",
			wantRefs:  []string{"T1"},
			wantKinds: []models.ErrorKind{models.DuplicateReference},
		},
		{
			name:     "XML duplicate reference",
			filename: "records.xml",
			input: `<records>
				<record reference="X1"><description>a</description><startBalance>1</startBalance><mutation>1</mutation><endBalance>2</endBalance></record>
				<record reference="X1"><description>b</description><startBalance>1</startBalance><mutation>1</mutation><endBalance>2</endBalance></record>
			</records>`,
			wantRefs:  []string{"X1"},
			wantKinds: []models.ErrorKind{models.DuplicateReference},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := service.ValidateFile(context.Background(), tt.filename, strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("ValidateFile() error = %v", err)
			}

			if len(report.Results) != len(tt.wantRefs) {
				t.Fatalf("Expected %d results, got %d", len(tt.wantRefs), len(report.Results))
			}
			for i, ref := range tt.wantRefs {
				result := report.Results[i]
				if result.Reference != ref {
					t.Errorf("Expected reference %s, got %s", ref, result.Reference)
				}
				if !result.Remarks.Has(tt.wantKinds[i]) {
					t.Errorf("Expected remark %s, got %s", tt.wantKinds[i], result.Remarks)
				}
			}
			if report.HasFindings() != (len(tt.wantRefs) > 0) {
				t.Errorf("HasFindings() = %v", report.HasFindings())
			}
		})
	}
}

func TestService_ValidateFile_DuplicateKeepsSecondRow(t *testing.T) {
	service := newTestService(t, nil, nil)

	report, err := service.ValidateFile(context.Background(), "records.csv",
		strings.NewReader(header+"T1,first,1,1,2\nT1,second,1,1,2\n"))
	if err != nil {
		t.Fatalf("ValidateFile() error = %v", err)
	}

	if len(report.Results) != 1 || report.Results[0].Description != "second" {
		t.Errorf("Expected only the second row to be reported, got %+v", report.Results)
	}
}

func TestService_ValidateFile_XMLMissingField(t *testing.T) {
	recorder := &recordingRecorder{}
	service := newTestService(t, nil, recorder)

	input := `<records><record reference="T1"><mutation>1</mutation><endBalance>2</endBalance></record></records>`
	_, err := service.ValidateFile(context.Background(), "records.xml", strings.NewReader(input))
	if !errors.HasCode(err, errors.CodeMissingField) {
		t.Fatalf("Expected missing field error, got %v", err)
	}

	vErr, _ := errors.AsValidatorError(err)
	if vErr.Context["field"] != "startBalance" || vErr.Context["record_index"] != 0 {
		t.Errorf("Unexpected error context: %v", vErr.Context)
	}

	if len(recorder.failures) != 1 || recorder.failures[0] != errors.CodeMissingField {
		t.Errorf("Expected failure to be recorded, got %v", recorder.failures)
	}
}

func TestService_ValidateFile_UnsupportedFormat(t *testing.T) {
	service := newTestService(t, nil, nil)

	for _, filename := range []string{"statement.txt", "statement.CSV", "statement"} {
		t.Run(filename, func(t *testing.T) {
			reader := &trackingReader{}
			_, err := service.ValidateFile(context.Background(), filename, reader)
			if !errors.HasCode(err, errors.CodeUnsupportedFormat) {
				t.Fatalf("Expected unsupported format, got %v", err)
			}
			if reader.read {
				t.Error("Input must not be read for an unsupported format")
			}
		})
	}
}

func TestService_CheckFormat(t *testing.T) {
	service := newTestService(t, nil, nil)

	tests := []struct {
		filename    string
		expectError bool
	}{
		{"records.csv", false},
		{"/tmp/exports/records.xml", false},
		{"statement.txt", true},
		{"statement.XML", true},
		{"statement", true},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			err := service.CheckFormat(tt.filename)
			if tt.expectError && !errors.HasCode(err, errors.CodeUnsupportedFormat) {
				t.Errorf("Expected unsupported format, got %v", err)
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestService_ValidateFile_ReadFailure(t *testing.T) {
	service := newTestService(t, nil, nil)

	_, err := service.ValidateFile(context.Background(), "records.csv", failingReader{})
	if !errors.HasCode(err, errors.CodeFileRead) {
		t.Errorf("Expected file read error, got %v", err)
	}
}

func TestService_ValidateFile_Cancelled(t *testing.T) {
	service := newTestService(t, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.ValidateFile(ctx, "records.csv", strings.NewReader(header))
	if err == nil {
		t.Fatal("Expected error for cancelled context")
	}
	if !stderrors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled in chain, got %v", err)
	}
}

func TestService_ValidateFile_Latin1(t *testing.T) {
	config := DefaultServiceConfig()
	config.Encoding = parsers.EncodingLatin1
	service := newTestService(t, config, nil)

	input := header + "T1,Book Jan Theu\xdf,1,1,3\n"
	report, err := service.ValidateFile(context.Background(), "records.csv", strings.NewReader(input))
	if err != nil {
		t.Fatalf("ValidateFile() error = %v", err)
	}
	if len(report.Results) != 1 || report.Results[0].Description != "Book Jan Theuß" {
		t.Errorf("Expected decoded description, got %+v", report.Results)
	}
}

func TestService_ValidateFile_InvalidUTF8(t *testing.T) {
	service := newTestService(t, nil, nil)

	_, err := service.ValidateFile(context.Background(), "records.csv",
		strings.NewReader(header+"T1,Theu\xdf,1,1,2\n"))
	if !errors.HasCode(err, errors.CodeEncodingError) {
		t.Errorf("Expected encoding error, got %v", err)
	}
}

func TestService_ValidateFile_ReportMetadata(t *testing.T) {
	recorder := &recordingRecorder{}
	service := newTestService(t, nil, recorder)

	report, err := service.ValidateFile(context.Background(), "records.csv",
		strings.NewReader(header+"T1,a,1,1,2\nT2,b,1,1,9\n"))
	if err != nil {
		t.Fatalf("ValidateFile() error = %v", err)
	}

	if _, err := uuid.Parse(report.RunID); err != nil {
		t.Errorf("RunID is not a UUID: %q", report.RunID)
	}
	if report.FileName != "records.csv" || report.Format != parsers.FormatCSV {
		t.Errorf("Unexpected metadata: %s %s", report.FileName, report.Format)
	}
	if report.GeneratedAt.IsZero() {
		t.Error("GeneratedAt should be set")
	}
	if report.Summary.TotalRecords != 2 || report.Summary.FailedRecords != 1 {
		t.Errorf("Unexpected summary: %+v", report.Summary)
	}
	if len(recorder.runs) != 1 || recorder.runs[0] != "csv:1" {
		t.Errorf("Expected run to be recorded, got %v", recorder.runs)
	}
}

func TestService_ConcurrentRuns(t *testing.T) {
	service := newTestService(t, nil, nil)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			report, err := service.ValidateFile(context.Background(), "records.csv",
				strings.NewReader(header+"T1,a,1,1,2\n"))
			if err != nil {
				errs <- err
				return
			}
			if len(report.Results) != 0 {
				errs <- fmt.Errorf("state leaked between runs: %d results", len(report.Results))
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestNewService_InvalidConfig(t *testing.T) {
	config := DefaultServiceConfig()
	config.Encoding = "utf-16"

	if _, err := NewService(config, nil); !errors.HasCode(err, errors.CodeInvalidConfig) {
		t.Errorf("Expected invalid config error, got %v", err)
	}
}

func TestService_SupportedSuffixes(t *testing.T) {
	service := newTestService(t, nil, nil)

	if got := strings.Join(service.SupportedSuffixes(), " "); got != ".csv .xml" {
		t.Errorf("Unexpected suffixes: %s", got)
	}
}

func TestService_ValidateFile_SampleStatements(t *testing.T) {
	expected := []string{
		"183356|End Balance Error",
		"112806|Duplicate Reference",
		"147674|End Balance Error",
		"112806|Duplicate Reference, End Balance Error",
	}

	for _, name := range []string{"records.csv", "records.xml"} {
		t.Run(name, func(t *testing.T) {
			file, err := os.Open(filepath.Join("..", "..", "testdata", name))
			if err != nil {
				t.Fatalf("failed to open sample statement: %v", err)
			}
			defer file.Close()

			report, err := newTestService(t, nil, nil).ValidateFile(context.Background(), name, file)
			if err != nil {
				t.Fatalf("ValidateFile() error = %v", err)
			}

			var got []string
			for _, result := range report.Results {
				got = append(got, result.Reference+"|"+result.ErrorDescription())
			}
			if strings.Join(got, "\n") != strings.Join(expected, "\n") {
				t.Errorf("Expected results:\n%s\ngot:\n%s", strings.Join(expected, "\n"), strings.Join(got, "\n"))
			}
			if report.Summary.EligibleRecords != 7 {
				t.Errorf("Expected 7 eligible records, got %d", report.Summary.EligibleRecords)
			}
		})
	}
}
