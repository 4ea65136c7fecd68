// Package generator produces synthetic customer statements with a known set of
// duplicate references and balance mismatches, written as CSV or XML.
package generator

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"math/rand"
	"strconv"

	"github.com/shopspring/decimal"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/internal/parsers"
)

// Config controls statement generation
type Config struct {
	Count          int
	DuplicateRatio float64 // share of records reusing an earlier reference
	MismatchRatio  float64 // share of records whose end balance is off
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	Seed           int64
}

// DefaultConfig returns a default generator configuration
func DefaultConfig() *Config {
	return &Config{
		Count:          100,
		DuplicateRatio: 0.05,
		MismatchRatio:  0.05,
		MinAmount:      decimal.NewFromInt(1),
		MaxAmount:      decimal.NewFromInt(1000),
		Seed:           1,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Count < 0 {
		return fmt.Errorf("count cannot be negative")
	}
	if c.DuplicateRatio < 0 || c.DuplicateRatio > 1 {
		return fmt.Errorf("duplicate ratio must be between 0.0 and 1.0")
	}
	if c.MismatchRatio < 0 || c.MismatchRatio > 1 {
		return fmt.Errorf("mismatch ratio must be between 0.0 and 1.0")
	}
	if !c.MinAmount.LessThan(c.MaxAmount) {
		return fmt.Errorf("min amount must be less than max amount")
	}
	return nil
}

// Statement is a generated statement together with the failures a validator must report
type Statement struct {
	Records  []*models.TransactionRecord
	Expected []*models.ValidationResult
}

// StatementGenerator generates customer statements
type StatementGenerator struct {
	config *Config
	rng    *rand.Rand
}

// New creates a statement generator. The same seed always yields the same statement.
func New(config *Config) (*StatementGenerator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid generator config: %w", err)
	}

	return &StatementGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

var descriptions = []string{
	"Clothes for Rik Theuß", "Tickets from Peter Dekker", "Candy for Vincent de Vries",
	"Book Jan Theuß", "Subscription for Daniël Bakker", "Flowers from Erik King",
	"Toy Greg Alysha, Amsterdam", "Rent \"Canal House\"",
}

// Generate creates a statement
func (g *StatementGenerator) Generate() *Statement {
	statement := &Statement{
		Records:  make([]*models.TransactionRecord, 0, g.config.Count),
		Expected: make([]*models.ValidationResult, 0),
	}
	seen := make(map[string]bool, g.config.Count)

	for i := 0; i < g.config.Count; i++ {
		reference := strconv.Itoa(100000 + i)
		if i > 0 && g.rng.Float64() < g.config.DuplicateRatio {
			reference = statement.Records[g.rng.Intn(i)].Reference
		}

		start := g.amount()
		mutation := g.amount()
		if g.rng.Float64() < 0.5 {
			mutation = mutation.Neg()
		}
		end := start.Add(mutation)

		mismatch := g.rng.Float64() < g.config.MismatchRatio
		if mismatch {
			// At least one cent, well above the comparison tolerance
			offset := decimal.New(int64(g.rng.Intn(5000)+1), -2)
			end = end.Add(offset)
		}

		record := models.NewTransactionRecord(reference, descriptions[g.rng.Intn(len(descriptions))], start, mutation, end)
		statement.Records = append(statement.Records, record)

		var remarks models.RemarkSet
		if seen[reference] {
			remarks = remarks.Add(models.DuplicateReference)
		}
		if mismatch {
			remarks = remarks.Add(models.BalanceMismatch)
		}
		seen[reference] = true

		if len(remarks) > 0 {
			statement.Expected = append(statement.Expected, &models.ValidationResult{
				Reference:   reference,
				Description: record.Description,
				Remarks:     remarks,
			})
		}
	}

	return statement
}

// amount returns a random two-decimal amount within the configured range
func (g *StatementGenerator) amount() decimal.Decimal {
	span := g.config.MaxAmount.Sub(g.config.MinAmount)
	return decimal.NewFromFloat(g.rng.Float64()).Mul(span).Add(g.config.MinAmount).Round(2)
}

// WriteCSV writes records with a header row using the given column names
func WriteCSV(w io.Writer, records []*models.TransactionRecord, columns *parsers.CSVColumns) error {
	if columns == nil {
		columns = parsers.DefaultCSVColumns()
	}

	writer := csv.NewWriter(w)
	writer.Comma = columns.Delimiter

	header := []string{columns.Reference, columns.Description, columns.StartBalance, columns.Mutation, columns.EndBalance}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, record := range records {
		row := []string{
			record.Reference,
			record.Description,
			formatAmount(record.StartBalance, false),
			formatAmount(record.Mutation, true),
			formatAmount(record.EndBalance, false),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXML writes records as one element per transaction under a <records> root
func WriteXML(w io.Writer, records []*models.TransactionRecord, fields *parsers.XMLFields) error {
	if fields == nil {
		fields = parsers.DefaultXMLFields()
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}

	encoder := xml.NewEncoder(w)
	encoder.Indent("", "  ")

	root := xml.StartElement{Name: xml.Name{Local: "records"}}
	if err := encoder.EncodeToken(root); err != nil {
		return err
	}

	for _, record := range records {
		start := xml.StartElement{
			Name: xml.Name{Local: "record"},
			Attr: []xml.Attr{{Name: xml.Name{Local: fields.ReferenceAttr}, Value: record.Reference}},
		}
		if err := encoder.EncodeToken(start); err != nil {
			return err
		}

		children := []struct {
			name  string
			value string
		}{
			{fields.Description, record.Description},
			{fields.StartBalance, formatAmount(record.StartBalance, false)},
			{fields.Mutation, formatAmount(record.Mutation, true)},
			{fields.EndBalance, formatAmount(record.EndBalance, false)},
		}
		for _, child := range children {
			if err := encoder.EncodeElement(child.value, xml.StartElement{Name: xml.Name{Local: child.name}}); err != nil {
				return err
			}
		}

		if err := encoder.EncodeToken(start.End()); err != nil {
			return err
		}
	}

	if err := encoder.EncodeToken(root.End()); err != nil {
		return err
	}
	return encoder.Flush()
}

// formatAmount renders a balance the way bank exports do; mutations carry an explicit sign
func formatAmount(value decimal.NullDecimal, signed bool) string {
	if !value.Valid {
		return ""
	}
	s := value.Decimal.String()
	if signed && value.Decimal.IsPositive() {
		return "+" + s
	}
	return s
}
