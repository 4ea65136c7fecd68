// Package models holds the canonical statement record produced by the input adapters
// and the failure record produced by the validation engine.
package models

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrorKind identifies a validation finding for a single record.
type ErrorKind int

const (
	// DuplicateReference marks a record whose reference was already seen earlier in the same file.
	DuplicateReference ErrorKind = iota + 1
	// BalanceMismatch marks a record where end balance differs from start balance plus mutation.
	BalanceMismatch
)

// String returns the label used in reports
func (k ErrorKind) String() string {
	switch k {
	case DuplicateReference:
		return "Duplicate Reference"
	case BalanceMismatch:
		return "End Balance Error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// Code returns a stable machine-readable identifier
func (k ErrorKind) Code() string {
	switch k {
	case DuplicateReference:
		return "duplicate_reference"
	case BalanceMismatch:
		return "balance_mismatch"
	default:
		return "unknown"
	}
}

// IsValid checks if the error kind is one of the known kinds
func (k ErrorKind) IsValid() bool {
	return k == DuplicateReference || k == BalanceMismatch
}

// MarshalText renders the kind by its code
func (k ErrorKind) MarshalText() ([]byte, error) {
	if !k.IsValid() {
		return nil, fmt.Errorf("invalid error kind: %d", int(k))
	}
	return []byte(k.Code()), nil
}

// RemarkSet is an insertion-ordered set of error kinds.
type RemarkSet []ErrorKind

// Add appends kind unless it is already present
func (rs RemarkSet) Add(kind ErrorKind) RemarkSet {
	if rs.Has(kind) {
		return rs
	}
	return append(rs, kind)
}

// Has reports whether kind is in the set
func (rs RemarkSet) Has(kind ErrorKind) bool {
	for _, k := range rs {
		if k == kind {
			return true
		}
	}
	return false
}

// String joins the labels in insertion order
func (rs RemarkSet) String() string {
	labels := make([]string, len(rs))
	for i, k := range rs {
		labels[i] = k.String()
	}
	return strings.Join(labels, ", ")
}

// TransactionRecord is one statement line in canonical form.
// Numeric fields are invalid (absent) when the source value was missing, blank or unparseable.
type TransactionRecord struct {
	Reference    string              `json:"reference"`
	Description  string              `json:"description"`
	StartBalance decimal.NullDecimal `json:"startBalance"`
	Mutation     decimal.NullDecimal `json:"mutation"`
	EndBalance   decimal.NullDecimal `json:"endBalance"`
}

// NewTransactionRecord creates a record with all three balances present
func NewTransactionRecord(reference, description string, start, mutation, end decimal.Decimal) *TransactionRecord {
	return &TransactionRecord{
		Reference:    reference,
		Description:  description,
		StartBalance: decimal.NewNullDecimal(start),
		Mutation:     decimal.NewNullDecimal(mutation),
		EndBalance:   decimal.NewNullDecimal(end),
	}
}

// HasReference reports whether the record carries a non-blank reference
func (r *TransactionRecord) HasReference() bool {
	return strings.TrimSpace(r.Reference) != ""
}

// IsReconcilable reports whether start, mutation and end balances are all present
func (r *TransactionRecord) IsReconcilable() bool {
	return r.StartBalance.Valid && r.Mutation.Valid && r.EndBalance.Valid
}

// Discrepancy returns end - (start + mutation). ok is false for records that are not reconcilable.
func (r *TransactionRecord) Discrepancy() (diff decimal.Decimal, ok bool) {
	if !r.IsReconcilable() {
		return decimal.Zero, false
	}
	expected := r.StartBalance.Decimal.Add(r.Mutation.Decimal)
	return r.EndBalance.Decimal.Sub(expected), true
}

// String returns a string representation of the record
func (r *TransactionRecord) String() string {
	return fmt.Sprintf("TransactionRecord{Ref: %s, Start: %s, Mutation: %s, End: %s}",
		r.Reference, formatNull(r.StartBalance), formatNull(r.Mutation), formatNull(r.EndBalance))
}

func formatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return "<absent>"
	}
	return d.Decimal.String()
}

// ValidationResult is emitted for every record that has at least one finding.
type ValidationResult struct {
	Reference   string    `json:"reference"`
	Description string    `json:"description"`
	Remarks     RemarkSet `json:"remarks"`
}

// ErrorDescription renders the remarks for a report row
func (v *ValidationResult) ErrorDescription() string {
	return v.Remarks.String()
}
