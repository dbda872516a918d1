/**
 * Tax document model
 *
 * Closed set of document type labels, field kinds, and the per-field
 * extraction output shared by the classifier, extractor and assembler.
 */

package taxdoc

import "sort"

// DocumentType is the classification label assigned to a document
type DocumentType string

const (
	W2            DocumentType = "W-2"
	Form1099      DocumentType = "1099"
	Receipt       DocumentType = "Receipt"
	BankStatement DocumentType = "Bank Statement"
	Invoice       DocumentType = "Invoice"
	General       DocumentType = "General"
)

// priorityOrder is the order labels are tried in by the classifier. The
// first matching label wins, so a W-2 that mentions an invoice stays a W-2.
var priorityOrder = []DocumentType{W2, Form1099, Receipt, BankStatement, Invoice, General}

// DocumentTypes returns every label in classification priority order.
func DocumentTypes() []DocumentType {
	out := make([]DocumentType, len(priorityOrder))
	copy(out, priorityOrder)
	return out
}

// Valid reports whether t is one of the closed set of labels.
func (t DocumentType) Valid() bool {
	for _, known := range priorityOrder {
		if t == known {
			return true
		}
	}
	return false
}

// ParseDocumentType maps a caller supplied hint onto a label. Matching is
// case-insensitive and tolerates the common spellings ("w2", "bank_statement").
func ParseDocumentType(s string) (DocumentType, bool) {
	key := normalizeLabel(s)
	for _, t := range priorityOrder {
		if normalizeLabel(string(t)) == key {
			return t, true
		}
	}
	switch key {
	case "form1099", "1099nec", "1099misc", "1099int", "1099div":
		return Form1099, true
	case "formw2":
		return W2, true
	}
	return General, false
}

func normalizeLabel(s string) string {
	b := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'A' && c <= 'Z':
			b = append(b, c+'a'-'A')
		case (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9'):
			b = append(b, c)
		}
	}
	return string(b)
}

// FieldKind selects how a field rule turns a pattern match into a value
type FieldKind string

const (
	KindText         FieldKind = "text"
	KindCurrency     FieldKind = "currency"
	KindDate         FieldKind = "date"
	KindLineItemList FieldKind = "lineItemList"
	KindRaw          FieldKind = "raw"  // whole recognized text
	KindType         FieldKind = "type" // detected label
)

func (k FieldKind) valid() bool {
	switch k {
	case KindText, KindCurrency, KindDate, KindLineItemList, KindRaw, KindType:
		return true
	}
	return false
}

// zeroValue is the sentinel a field of kind k resolves to when nothing matched.
func (k FieldKind) zeroValue() any {
	switch k {
	case KindCurrency:
		return 0.0
	case KindLineItemList:
		return []string{}
	default:
		return ""
	}
}

// ExtractedField is one resolved field. Value is a string, a float64 or a
// []string depending on Kind, and holds the kind's sentinel when Found is false.
type ExtractedField struct {
	Name  string    `json:"name"`
	Kind  FieldKind `json:"kind"`
	Value any       `json:"value"`
	Found bool      `json:"found"`
}

// FieldSet maps field names to their extracted values
type FieldSet map[string]ExtractedField

// Values flattens the set into name -> value, the shape returned to callers.
func (fs FieldSet) Values() map[string]any {
	out := make(map[string]any, len(fs))
	for name, f := range fs {
		out[name] = f.Value
	}
	return out
}

// String returns a text/date/raw field, or "" when absent.
func (fs FieldSet) String(name string) string {
	if s, ok := fs[name].Value.(string); ok {
		return s
	}
	return ""
}

// Amount returns a currency field, or 0 when absent.
func (fs FieldSet) Amount(name string) float64 {
	if v, ok := fs[name].Value.(float64); ok {
		return v
	}
	return 0
}

// List returns a line item field, never nil.
func (fs FieldSet) List(name string) []string {
	if v, ok := fs[name].Value.([]string); ok && v != nil {
		return v
	}
	return []string{}
}

// Missing returns the names of fields that resolved to their sentinel.
func (fs FieldSet) Missing() []string {
	var names []string
	for name, f := range fs {
		if !f.Found {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
