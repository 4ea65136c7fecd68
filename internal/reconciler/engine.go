package reconciler

import (
	"time"

	"github.com/shopspring/decimal"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/pkg/logger"
)

// BalanceTolerance is the largest accepted absolute difference between the end
// balance and start balance plus mutation. Differences strictly greater fail.
var BalanceTolerance = decimal.New(1, -3)

// Options controls which records take part in validation
type Options struct {
	// CheckIneligibleReferences lets records that have a reference but lack a
	// balance join duplicate detection. They are never balance checked.
	// Such records can be reported as duplicates while still counting as skipped,
	// so Results may then outnumber Summary.EligibleRecords.
	CheckIneligibleReferences bool `json:"check_ineligible_references" mapstructure:"check_ineligible_references"`
}

// DefaultOptions returns the default validation options
func DefaultOptions() *Options {
	return &Options{}
}

// Summary counts what a validation run saw and found
type Summary struct {
	TotalRecords       int           `json:"total_records" yaml:"total_records"`
	EligibleRecords    int           `json:"eligible_records" yaml:"eligible_records"`
	SkippedRecords     int           `json:"skipped_records" yaml:"skipped_records"`
	DuplicateRecords   int           `json:"duplicate_records" yaml:"duplicate_records"`
	MismatchRecords    int           `json:"mismatch_records" yaml:"mismatch_records"`
	FailedRecords      int           `json:"failed_records" yaml:"failed_records"`
	ProcessingDuration time.Duration `json:"processing_duration" yaml:"processing_duration"`
}

// Outcome is the result of one engine run
type Outcome struct {
	Results []*models.ValidationResult `json:"results"`
	Summary *Summary                   `json:"summary"`
}

// Engine checks records for duplicate references and balance mismatches.
// An Engine holds no per-run state and may be shared between goroutines.
type Engine struct {
	options *Options
	logger  logger.Logger
}

// NewEngine creates an engine with the given options
func NewEngine(options *Options) *Engine {
	if options == nil {
		options = DefaultOptions()
	}

	return &Engine{
		options: options,
		logger:  logger.GetGlobalLogger().WithComponent("validation_engine"),
	}
}

// Validate runs the engine with default options and returns only the failing records
func Validate(records []*models.TransactionRecord) []*models.ValidationResult {
	return NewEngine(nil).Run(records).Results
}

// Run validates records in input order in a single pass.
//
// The first record carrying a reference is the original; every later record with
// the same reference is a duplicate. Records without a reference or without all
// three balances are skipped unless CheckIneligibleReferences is set.
// Results keep input order and remarks are always ordered duplicate first.
func (e *Engine) Run(records []*models.TransactionRecord) *Outcome {
	startTime := time.Now()

	summary := &Summary{TotalRecords: len(records)}
	results := make([]*models.ValidationResult, 0)
	seen := make(map[string]struct{}, len(records))

	for _, record := range records {
		if record == nil {
			summary.SkippedRecords++
			continue
		}

		eligible := record.HasReference() && record.IsReconcilable()
		if eligible {
			summary.EligibleRecords++
		} else {
			summary.SkippedRecords++
			if !e.options.CheckIneligibleReferences || !record.HasReference() {
				continue
			}
		}

		var remarks models.RemarkSet
		if _, exists := seen[record.Reference]; exists {
			remarks = remarks.Add(models.DuplicateReference)
			summary.DuplicateRecords++
		} else {
			seen[record.Reference] = struct{}{}
		}

		if eligible && isBalanceMismatch(record) {
			remarks = remarks.Add(models.BalanceMismatch)
			summary.MismatchRecords++
		}

		if len(remarks) == 0 {
			continue
		}

		results = append(results, &models.ValidationResult{
			Reference:   record.Reference,
			Description: record.Description,
			Remarks:     remarks,
		})
	}

	summary.FailedRecords = len(results)
	summary.ProcessingDuration = time.Since(startTime)

	e.logger.WithFields(logger.Fields{
		"total":      summary.TotalRecords,
		"eligible":   summary.EligibleRecords,
		"skipped":    summary.SkippedRecords,
		"duplicates": summary.DuplicateRecords,
		"mismatches": summary.MismatchRecords,
	}).Debug("Validation pass completed")

	return &Outcome{Results: results, Summary: summary}
}

func isBalanceMismatch(record *models.TransactionRecord) bool {
	diff, ok := record.Discrepancy()
	return ok && diff.Abs().GreaterThan(BalanceTolerance)
}
