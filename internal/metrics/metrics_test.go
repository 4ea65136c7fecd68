package metrics

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"customer-statement-validator/internal/reconciler"
	"customer-statement-validator/pkg/errors"
)

func TestCollector_ObserveRun(t *testing.T) {
	c := NewCollector()

	c.ObserveRun("csv", &reconciler.Summary{
		TotalRecords:     4,
		EligibleRecords:  3,
		SkippedRecords:   1,
		DuplicateRecords: 1,
		MismatchRecords:  2,
		FailedRecords:    2,
	})
	c.ObserveRun("xml", &reconciler.Summary{TotalRecords: 1, EligibleRecords: 1})
	c.ObserveRun("xml", nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("csv", OutcomeFindings)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.runs.WithLabelValues("xml", OutcomeClean)))
	assert.Equal(t, 4.0, testutil.ToFloat64(c.records.WithLabelValues("true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.records.WithLabelValues("false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.findings.WithLabelValues("duplicate_reference")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.findings.WithLabelValues("balance_mismatch")))
}

func TestCollector_ObserveFailure(t *testing.T) {
	c := NewCollector()

	c.ObserveFailure("unknown", errors.CodeUnsupportedFormat)
	c.ObserveFailure("xml", errors.CodeMissingField)
	c.ObserveFailure("xml", errors.CodeMissingField)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("unknown", "unsupported_format")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.failures.WithLabelValues("xml", "missing_field")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.runs.WithLabelValues("xml", OutcomeFailed)))
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector()
	c.ObserveRun("csv", &reconciler.Summary{TotalRecords: 1, EligibleRecords: 1})

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `statement_validator_runs_total{format="csv",outcome="clean"} 1`)
}
