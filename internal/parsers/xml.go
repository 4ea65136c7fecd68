package parsers

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"customer-statement-validator/internal/models"
	"customer-statement-validator/pkg/errors"
	"customer-statement-validator/pkg/logger"
)

// Node is a generic element in a parsed XML document.
// Names are local names; namespaces are ignored.
type Node struct {
	Name     string
	attrs    []xml.Attr
	children []*Node
	text     strings.Builder
}

// Attribute returns the value of the named attribute
func (n *Node) Attribute(name string) (string, bool) {
	for _, attr := range n.attrs {
		if attr.Name.Local == name {
			return attr.Value, true
		}
	}
	return "", false
}

// Child returns the first child element with the given name
func (n *Node) Child(name string) (*Node, bool) {
	for _, child := range n.children {
		if child.Name == name {
			return child, true
		}
	}
	return nil, false
}

// Elements returns the child elements in document order
func (n *Node) Elements() []*Node {
	return n.children
}

// Text returns the element's direct character data, trimmed
func (n *Node) Text() string {
	return strings.TrimSpace(n.text.String())
}

// ParseDocument reads a whole document and returns its root element.
// The input must already be UTF-8; any encoding declared in the prolog is ignored.
func ParseDocument(r io.Reader) (*Node, error) {
	decoder := xml.NewDecoder(r)
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var (
		root  *Node
		stack []*Node
	)

	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		switch t := token.(type) {
		case xml.StartElement:
			node := &Node{Name: t.Name.Local, attrs: t.Attr}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = node
			} else {
				parent := stack[len(stack)-1]
				parent.children = append(parent.children, node)
			}
			stack = append(stack, node)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				if len(bytes.TrimSpace(t)) > 0 {
					return nil, fmt.Errorf("character data outside root element")
				}
				continue
			}
			stack[len(stack)-1].text.Write(t)
		}
	}

	if root == nil {
		return nil, fmt.Errorf("document has no root element")
	}

	return root, nil
}

// XMLAdapter parses statement documents whose root element holds one child
// element per transaction. The reference is an attribute; the description and
// balances are child elements.
//
// Unlike CSV, a transaction without a reference or one of its balance elements
// aborts the whole input with a missing field error, and an unparseable balance
// aborts it with an invalid amount error.
type XMLAdapter struct {
	fields *XMLFields
	logger logger.Logger
}

// NewXMLAdapter creates an XML adapter for the given element layout
func NewXMLAdapter(fields *XMLFields) (*XMLAdapter, error) {
	if fields == nil {
		fields = DefaultXMLFields()
	}
	if err := fields.Validate(); err != nil {
		return nil, errors.ConfigurationError("xml_fields", fields, err)
	}

	return &XMLAdapter{
		fields: fields,
		logger: logger.GetGlobalLogger().WithComponent("xml_adapter"),
	}, nil
}

// Format returns the format identifier handled by this adapter
func (a *XMLAdapter) Format() string {
	return FormatXML
}

// Parse converts XML bytes into canonical records in document order
func (a *XMLAdapter) Parse(data []byte) ([]*models.TransactionRecord, error) {
	root, err := ParseDocument(bytes.NewReader(data))
	if err != nil {
		a.logger.WithError(err).Warn("Failed to parse XML document")
		return nil, errors.XMLParseError(err.Error(), err)
	}

	elements := root.Elements()
	records := make([]*models.TransactionRecord, 0, len(elements))
	for i, element := range elements {
		record, err := a.parseTransaction(i, element)
		if err != nil {
			a.logger.WithError(err).WithField("record_index", i).Warn("Invalid transaction element")
			return nil, err
		}
		records = append(records, record)
	}

	a.logger.WithFields(logger.Fields{
		"root":    root.Name,
		"records": len(records),
	}).Debug("Parsed XML input")

	return records, nil
}

func (a *XMLAdapter) parseTransaction(index int, element *Node) (*models.TransactionRecord, error) {
	reference, ok := element.Attribute(a.fields.ReferenceAttr)
	reference = strings.TrimSpace(reference)
	if !ok || reference == "" {
		return nil, errors.MissingFieldError(index, a.fields.ReferenceAttr)
	}

	record := &models.TransactionRecord{Reference: reference}
	if description, ok := element.Child(a.fields.Description); ok {
		record.Description = description.Text()
	}

	var err error
	if record.StartBalance.Decimal, err = a.amountElement(index, element, a.fields.StartBalance); err != nil {
		return nil, err
	}
	if record.Mutation.Decimal, err = a.amountElement(index, element, a.fields.Mutation); err != nil {
		return nil, err
	}
	if record.EndBalance.Decimal, err = a.amountElement(index, element, a.fields.EndBalance); err != nil {
		return nil, err
	}
	record.StartBalance.Valid = true
	record.Mutation.Valid = true
	record.EndBalance.Valid = true

	return record, nil
}

func (a *XMLAdapter) amountElement(index int, element *Node, name string) (amount decimal.Decimal, err error) {
	child, ok := element.Child(name)
	if !ok || child.Text() == "" {
		return amount, errors.MissingFieldError(index, name)
	}

	amount, err = models.ParseAmount(child.Text())
	if err != nil {
		if vErr, ok := errors.AsValidatorError(err); ok {
			return amount, vErr.WithContext("record_index", index).WithContext("field", name)
		}
		return amount, err
	}
	return amount, nil
}
