package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

type ExportFormat string

const (
	FormatCSV  ExportFormat = "csv"
	FormatXLSX ExportFormat = "xlsx"
	FormatPDF  ExportFormat = "pdf"
)

var ExportFormats = []ExportFormat{FormatCSV, FormatXLSX, FormatPDF}

func ParseExportFormat(raw string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "csv":
		return FormatCSV, nil
	case "xlsx", "excel":
		return FormatXLSX, nil
	case "pdf":
		return FormatPDF, nil
	}
	return "", fmt.Errorf("unsupported export format %q", raw)
}

func (f ExportFormat) Extension() string {
	return string(f)
}

// FormatMoney renders an amount as "$X.XX". Negative amounts render as "-$X.XX".
func FormatMoney(amount decimal.Decimal) string {
	if amount.IsNegative() {
		return "-$" + amount.Abs().StringFixed(2)
	}
	return "$" + amount.StringFixed(2)
}

// FormatCredit renders a credit as a deduction, always with a leading minus.
func FormatCredit(credit decimal.Decimal) string {
	return "-$" + credit.Abs().StringFixed(2)
}

func FormatQuantity(qty decimal.Decimal) string {
	return qty.StringFixed(2)
}

func FormatInvoiceNumber(id int64) string {
	return fmt.Sprintf("FACTURA #%06d", id)
}
