package parsers

import (
	"fmt"
	"strings"
)

// Input formats recognised by the format detector
const (
	FormatCSV = "csv"
	FormatXML = "xml"
)

// CSVColumns maps canonical record fields to CSV header names
type CSVColumns struct {
	Reference    string `json:"reference" mapstructure:"reference"`
	Description  string `json:"description" mapstructure:"description"`
	StartBalance string `json:"start_balance" mapstructure:"start_balance"`
	Mutation     string `json:"mutation" mapstructure:"mutation"`
	EndBalance   string `json:"end_balance" mapstructure:"end_balance"`
	Delimiter    rune   `json:"delimiter" mapstructure:"delimiter"`
}

// DefaultCSVColumns returns the customer statement CSV layout
func DefaultCSVColumns() *CSVColumns {
	return &CSVColumns{
		Reference:    "Reference",
		Description:  "Description",
		StartBalance: "Start Balance",
		Mutation:     "Mutation",
		EndBalance:   "End Balance",
		Delimiter:    ',',
	}
}

// Validate checks if the column configuration is valid
func (c *CSVColumns) Validate() error {
	names := map[string]string{
		"reference":     c.Reference,
		"description":   c.Description,
		"start balance": c.StartBalance,
		"mutation":      c.Mutation,
		"end balance":   c.EndBalance,
	}
	for field, column := range names {
		if strings.TrimSpace(column) == "" {
			return fmt.Errorf("%s column cannot be empty", field)
		}
	}

	switch c.Delimiter {
	case 0, '"', '\r', '\n':
		return fmt.Errorf("invalid delimiter %q", c.Delimiter)
	}

	return nil
}

// RequiredHeaders returns the header names that must be present in every CSV input.
// Balance columns are optional; without them records are simply not reconcilable.
func (c *CSVColumns) RequiredHeaders() []string {
	return []string{c.Reference}
}

// XMLFields maps canonical record fields to XML attribute and element names
type XMLFields struct {
	ReferenceAttr string `json:"reference_attr" mapstructure:"reference_attr"`
	Description   string `json:"description" mapstructure:"description"`
	StartBalance  string `json:"start_balance" mapstructure:"start_balance"`
	Mutation      string `json:"mutation" mapstructure:"mutation"`
	EndBalance    string `json:"end_balance" mapstructure:"end_balance"`
}

// DefaultXMLFields returns the customer statement XML layout
func DefaultXMLFields() *XMLFields {
	return &XMLFields{
		ReferenceAttr: "reference",
		Description:   "description",
		StartBalance:  "startBalance",
		Mutation:      "mutation",
		EndBalance:    "endBalance",
	}
}

// Validate checks if the XML field configuration is valid
func (f *XMLFields) Validate() error {
	if strings.TrimSpace(f.ReferenceAttr) == "" {
		return fmt.Errorf("reference attribute cannot be empty")
	}
	if strings.TrimSpace(f.StartBalance) == "" || strings.TrimSpace(f.Mutation) == "" || strings.TrimSpace(f.EndBalance) == "" {
		return fmt.Errorf("balance element names cannot be empty")
	}
	if strings.TrimSpace(f.Description) == "" {
		return fmt.Errorf("description element name cannot be empty")
	}
	return nil
}

// Config bundles the adapter layouts used by the registry
type Config struct {
	CSV *CSVColumns
	XML *XMLFields
}

// DefaultConfig returns the standard customer statement layouts
func DefaultConfig() *Config {
	return &Config{
		CSV: DefaultCSVColumns(),
		XML: DefaultXMLFields(),
	}
}

// Validate validates every adapter layout
func (c *Config) Validate() error {
	if c.CSV == nil || c.XML == nil {
		return fmt.Errorf("csv and xml layouts are required")
	}
	if err := c.CSV.Validate(); err != nil {
		return fmt.Errorf("invalid csv columns: %w", err)
	}
	if err := c.XML.Validate(); err != nil {
		return fmt.Errorf("invalid xml fields: %w", err)
	}
	return nil
}
