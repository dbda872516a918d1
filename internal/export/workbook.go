/**
 * XLSX export of extraction results
 *
 * One "Documents" summary sheet plus one sheet per document type, whose
 * columns follow the registry's field order.
 */

package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
)

// SummarySheet is the name of the overview sheet
const SummarySheet = "Documents"

var summaryHeaders = []string{
	"Filename",
	"Document Type",
	"Confidence",
	"Language",
	"Processed At",
	"Missing Fields",
	"Amount",
}

// Entry is one exported document
type Entry struct {
	Filename string
	Result   *taxdoc.ExtractionResult
}

// Workbook accumulates results and renders them as XLSX
type Workbook struct {
	registry *taxdoc.Registry
	entries  []Entry
}

// NewWorkbook creates an empty workbook. nil uses the embedded rules.
func NewWorkbook(reg *taxdoc.Registry) *Workbook {
	if reg == nil {
		reg = taxdoc.DefaultRegistry()
	}
	return &Workbook{registry: reg}
}

// Add appends one result. nil results are ignored.
func (w *Workbook) Add(filename string, result *taxdoc.ExtractionResult) {
	if result == nil {
		return
	}
	w.entries = append(w.entries, Entry{Filename: filename, Result: result})
}

// Len returns the number of entries
func (w *Workbook) Len() int {
	return len(w.entries)
}

// Build renders the entries into a new excelize file
func (w *Workbook) Build() (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename summary sheet: %w", err)
	}
	if err := writeRow(f, SummarySheet, 1, toAny(summaryHeaders)); err != nil {
		f.Close()
		return nil, err
	}

	byType := make(map[taxdoc.DocumentType][]Entry)
	for i, e := range w.entries {
		r := e.Result
		row := []any{
			e.Filename,
			string(r.DetectedType),
			r.Confidence,
			r.Language,
			r.ProcessedAt.Format(time.RFC3339),
			strings.Join(r.Fields.Missing(), ", "),
			headlineAmount(r),
		}
		if err := writeRow(f, SummarySheet, i+2, row); err != nil {
			f.Close()
			return nil, err
		}
		byType[r.DetectedType] = append(byType[r.DetectedType], e)
	}

	for _, t := range taxdoc.DocumentTypes() {
		entries := byType[t]
		if len(entries) == 0 {
			continue
		}
		if err := w.writeTypeSheet(f, t, entries); err != nil {
			f.Close()
			return nil, err
		}
	}

	_ = f.SetColWidth(SummarySheet, "A", "A", 32)
	_ = f.SetColWidth(SummarySheet, "B", "B", 16)
	_ = f.SetColWidth(SummarySheet, "E", "E", 22)
	_ = f.SetColWidth(SummarySheet, "F", "F", 40)
	f.SetActiveSheet(0)

	return f, nil
}

func (w *Workbook) writeTypeSheet(f *excelize.File, t taxdoc.DocumentType, entries []Entry) error {
	sheet := string(t)
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %q: %w", sheet, err)
	}

	names := w.registry.RuleSet(t).FieldNames()
	headers := append([]any{"Filename"}, toAny(names)...)
	if err := writeRow(f, sheet, 1, headers); err != nil {
		return err
	}

	for i, e := range entries {
		row := make([]any, 0, len(names)+1)
		row = append(row, e.Filename)
		for _, name := range names {
			row = append(row, cellValue(e.Result.Fields[name].Value))
		}
		if err := writeRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}

	_ = f.SetColWidth(sheet, "A", "A", 32)
	return nil
}

// WriteTo writes the rendered workbook to dst
func (w *Workbook) WriteTo(dst io.Writer) (int64, error) {
	f, err := w.Build()
	if err != nil {
		return 0, err
	}
	defer f.Close()
	return f.WriteTo(dst)
}

// SaveAs renders the workbook to path
func (w *Workbook) SaveAs(path string) error {
	f, err := w.Build()
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// headlineAmount is the one figure the summary shows per document: box 1
// wages, the first non-zero 1099 income box, the receipt or invoice total,
// or the closing balance. General documents have none.
func headlineAmount(r *taxdoc.ExtractionResult) any {
	switch f := r.Typed().(type) {
	case taxdoc.W2Fields:
		return f.Wages
	case taxdoc.Form1099Fields:
		for _, v := range []float64{f.NonemployeeCompensation, f.InterestIncome, f.Dividends} {
			if v != 0 {
				return v
			}
		}
		return 0.0
	case taxdoc.ReceiptFields:
		return f.Total
	case taxdoc.InvoiceFields:
		return f.Total
	case taxdoc.BankStatementFields:
		return f.EndingBalance
	}
	return ""
}

// cellValue flattens a field value; line items are joined with "; ".
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case []string:
		return strings.Join(val, "; ")
	default:
		return val
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
