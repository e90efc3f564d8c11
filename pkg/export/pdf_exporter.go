package export

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
)

const pageWidth = 190.0

// Field is a label/value pair printed above or below the tables.
type Field struct {
	Label string
	Value string
}

// Table is a captioned dataset. Widths are relative weights per column.
type Table struct {
	Caption string
	Data    Dataset
	Widths  []float64
}

// Document describes a printable academic record.
type Document struct {
	Title   string
	Header  []Field
	Tables  []Table
	Summary []Field
}

// PDFExporter renders documents into A4 portrait PDFs.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// ContentType reports the MIME type of rendered output.
func (e *PDFExporter) ContentType() string { return "application/pdf" }

// Render lays out the title, header fields, each table and the summary block.
func (e *PDFExporter) Render(doc Document) ([]byte, error) {
	if len(doc.Tables) == 0 {
		return nil, fmt.Errorf("pdf requires at least one table")
	}
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.SetAutoPageBreak(true, 15)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	if doc.Title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "C", false, 0, "")
		pdf.Ln(3)
	}
	writeFields(pdf, tr, doc.Header)

	for _, table := range doc.Tables {
		if len(table.Data.Headers) == 0 {
			return nil, fmt.Errorf("pdf table %q has no headers", table.Caption)
		}
		widths := columnWidths(len(table.Data.Headers), table.Widths)
		if table.Caption != "" {
			pdf.SetFont("Arial", "B", 11)
			pdf.CellFormat(0, 8, tr(table.Caption), "", 1, "L", false, 0, "")
		}

		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(230, 230, 230)
		for i, header := range table.Data.Headers {
			pdf.CellFormat(widths[i], 7, tr(header), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)

		pdf.SetFont("Arial", "", 9)
		for _, row := range table.Data.Rows {
			for i := range table.Data.Headers {
				value := ""
				if i < len(row) {
					value = row[i]
				}
				pdf.CellFormat(widths[i], 6, tr(value), "1", 0, "", false, 0, "")
			}
			pdf.Ln(-1)
		}
		pdf.Ln(4)
	}

	writeFields(pdf, tr, doc.Summary)

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func writeFields(pdf *gofpdf.Fpdf, tr func(string) string, fields []Field) {
	if len(fields) == 0 {
		return
	}
	for _, f := range fields {
		pdf.SetFont("Arial", "B", 10)
		pdf.CellFormat(45, 6, tr(f.Label), "", 0, "L", false, 0, "")
		pdf.SetFont("Arial", "", 10)
		pdf.CellFormat(0, 6, tr(": "+f.Value), "", 1, "L", false, 0, "")
	}
	pdf.Ln(3)
}

func columnWidths(n int, weights []float64) []float64 {
	widths := make([]float64, n)
	if len(weights) != n {
		for i := range widths {
			widths[i] = pageWidth / float64(n)
		}
		return widths
	}
	var total float64
	for _, w := range weights {
		total += w
	}
	for i, w := range weights {
		widths[i] = pageWidth * w / total
	}
	return widths
}
