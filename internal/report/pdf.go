// Package report renders monthly summaries as PDF documents and PNG charts.
package report

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/phpdave11/gofpdf"

	"cardspend/internal/core"
)

// ErrNoData is returned for a month without expenses.
var ErrNoData = errors.New("no expenses for month")

// MonthlyPDF renders the month total and the category breakdown.
func MonthlyPDF(sum core.MonthSummary, owner string) ([]byte, error) {
	if sum.Count == 0 {
		return nil, ErrNoData
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Card expenses "+sum.Month, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "Card expenses")
	pdf.Ln(10)

	pdf.SetFont("Helvetica", "", 12)
	pdf.Cell(0, 8, fmt.Sprintf("Month: %s", sum.Month))
	pdf.Ln(6)
	if owner != "" {
		pdf.Cell(0, 8, tr(fmt.Sprintf("User: %s", owner)))
		pdf.Ln(6)
	}
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 8, fmt.Sprintf("Total: %s (%s expenses)", formatAmount(sum.Total), humanize.Comma(int64(sum.Count))))
	pdf.Ln(12)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(80, 7, "Category", "B", 0, "L", false, 0, "")
	pdf.CellFormat(20, 7, "Count", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 7, "Amount", "B", 0, "R", false, 0, "")
	pdf.CellFormat(25, 7, "%", "B", 0, "R", false, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Helvetica", "", 11)
	for _, c := range sum.ByCategory {
		pdf.CellFormat(80, 7, tr(c.Name), "", 0, "L", false, 0, "")
		pdf.CellFormat(20, 7, humanize.Comma(int64(c.Count)), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 7, formatAmount(c.Amount), "", 0, "R", false, 0, "")
		pdf.CellFormat(25, 7, fmt.Sprintf("%.1f%%", sum.Share(c)), "", 0, "R", false, 0, "")
		pdf.Ln(7)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// formatAmount groups thousands for display, e.g. "1,234.50".
func formatAmount(m core.Money) string {
	return humanize.FormatFloat("#,###.##", m.Decimal().InexactFloat64())
}
