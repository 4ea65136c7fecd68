package parsers

import (
	"bytes"
	"io"

	"github.com/shopspring/decimal"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// CSVAdapter parses delimited statement files with a header row.
//
// Columns are located by header name, exact match first and then
// case-insensitively. Only the reference column is mandatory. When any of the
// three balance cells is missing, blank or not a number, the record keeps its
// reference and description but all three balances are left absent, so the
// record never takes part in balance checks.
type CSVAdapter struct {
	*BaseParser
	columns *CSVColumns
	logger  logger.Logger
}

// NewCSVAdapter creates a CSV adapter for the given column layout
func NewCSVAdapter(columns *CSVColumns) (*CSVAdapter, error) {
	if columns == nil {
		columns = DefaultCSVColumns()
	}
	if err := columns.Validate(); err != nil {
		return nil, errors.ConfigurationError("csv_columns", columns, err)
	}

	parseConfig := DefaultParseConfig()
	parseConfig.Delimiter = columns.Delimiter

	return &CSVAdapter{
		BaseParser: NewBaseParser(parseConfig),
		columns:    columns,
		logger:     logger.GetGlobalLogger().WithComponent("csv_adapter"),
	}, nil
}

// Format returns the format identifier handled by this adapter
func (a *CSVAdapter) Format() string {
	return FormatCSV
}

// Parse converts CSV bytes into canonical records in input order
func (a *CSVAdapter) Parse(data []byte) ([]*models.TransactionRecord, error) {
	reader := a.NewReader(bytes.NewReader(data))
	parseCtx := NewParseContext()

	if err := a.ReadHeaders(reader, parseCtx, a.columns.RequiredHeaders()); err != nil {
		return nil, err
	}

	records := make([]*models.TransactionRecord, 0)
	for {
		row, err := a.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		records = append(records, a.parseRow(row, parseCtx))
	}

	a.logger.WithFields(logger.Fields{
		"records": len(records),
		"skipped": parseCtx.SkippedCount,
	}).Debug("Parsed CSV input")

	return records, nil
}

func (a *CSVAdapter) parseRow(row []string, parseCtx *ParseContext) *models.TransactionRecord {
	reference, _ := a.GetFieldValue(row, parseCtx, a.columns.Reference)
	description, _ := a.GetFieldValue(row, parseCtx, a.columns.Description)

	record := &models.TransactionRecord{
		Reference:   reference,
		Description: description,
	}

	start, okStart := a.amountField(row, parseCtx, a.columns.StartBalance)
	mutation, okMutation := a.amountField(row, parseCtx, a.columns.Mutation)
	end, okEnd := a.amountField(row, parseCtx, a.columns.EndBalance)

	if okStart && okMutation && okEnd && start.Valid && mutation.Valid && end.Valid {
		record.StartBalance = start
		record.Mutation = mutation
		record.EndBalance = end
	}

	return record
}

// amountField reads an optional balance cell. A missing column or blank cell yields an
// absent value; ok is false only when the cell holds something that is not an amount.
func (a *CSVAdapter) amountField(row []string, parseCtx *ParseContext, column string) (amount decimal.NullDecimal, ok bool) {
	raw, _ := a.GetFieldValue(row, parseCtx, column)

	amount, err := models.ParseOptionalAmount(raw)
	if err != nil {
		a.logger.WithError(err).WithFields(logger.Fields{
			"line_number": parseCtx.LineNumber,
			"column":      column,
			"value":       raw,
		}).Warn("Unparseable amount, record excluded from balance checks")
		return decimal.NullDecimal{}, false
	}

	return amount, true
}
