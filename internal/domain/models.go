package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const DateLayout = "2006-01-02"

type Product struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// LineItem is a snapshot of a product taken when it was added to an invoice.
// Later catalog changes never reach it.
type LineItem struct {
	ProductCode string          `json:"product_code"`
	ProductName string          `json:"product_name"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    decimal.Decimal `json:"quantity"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type Invoice struct {
	ID           int64           `json:"id"`
	Date         time.Time       `json:"date"`
	CustomerName string          `json:"customer_name"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Credit       decimal.Decimal `json:"credit"`
	Total        decimal.Decimal `json:"total"`
	CSVPath      string          `json:"csv_path,omitempty"`
	XLSXPath     string          `json:"xlsx_path,omitempty"`
	PDFPath      string          `json:"pdf_path,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	Items        []LineItem      `json:"items"`
}

type InvoiceSummary struct {
	ID           int64           `json:"id"`
	Date         time.Time       `json:"date"`
	CustomerName string          `json:"customer_name"`
	Total        decimal.Decimal `json:"total"`
	CreatedAt    time.Time       `json:"created_at"`
}

func (inv Invoice) Summary() InvoiceSummary {
	return InvoiceSummary{
		ID:           inv.ID,
		Date:         inv.Date,
		CustomerName: inv.CustomerName,
		Total:        inv.Total,
		CreatedAt:    inv.CreatedAt,
	}
}

// ArtifactPath returns the recorded output path for format, or "" when none
// has been produced yet.
func (inv Invoice) ArtifactPath(format ExportFormat) string {
	switch format {
	case FormatCSV:
		return inv.CSVPath
	case FormatXLSX:
		return inv.XLSXPath
	case FormatPDF:
		return inv.PDFPath
	}
	return ""
}

func (inv *Invoice) SetArtifactPath(format ExportFormat, path string) {
	switch format {
	case FormatCSV:
		inv.CSVPath = path
	case FormatXLSX:
		inv.XLSXPath = path
	case FormatPDF:
		inv.PDFPath = path
	}
}

type Artifact struct {
	InvoiceID int64        `json:"invoice_id"`
	Format    ExportFormat `json:"format"`
	Path      string       `json:"path"`
}

type CreateInvoiceRequest struct {
	Date         string               `json:"date"`
	CustomerName string               `json:"customer_name"`
	Credit       decimal.Decimal      `json:"credit"`
	Items        []InvoiceItemRequest `json:"items"`
}

type InvoiceItemRequest struct {
	Code     string          `json:"code"`
	Quantity decimal.Decimal `json:"quantity"`
}
