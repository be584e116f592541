package export

import (
	"io"

	"github.com/jung-kurt/gofpdf"

	"mexiquense/facturacion/internal/domain"
)

const maxPDFNameRunes = 40

type pdfColumn struct {
	title string
	width float64
	align string
}

// Widths are inches on a Letter page.
var pdfColumns = []pdfColumn{
	{"UPC", 1.2, "L"},
	{"PRODUCTO", 3, "L"},
	{"PRECIO", 1, "R"},
	{"CANT.", 0.8, "R"},
	{"TOTAL", 1, "R"},
}

type pdfWriter struct {
	compress bool
}

func (p pdfWriter) write(w io.Writer, inv *domain.Invoice, lh Letterhead) error {
	pdf := gofpdf.New("P", "in", "Letter", "")
	pdf.SetCompression(p.compress)
	pdf.SetTitle(domain.FormatInvoiceNumber(inv.ID), true)
	pdf.SetAutoPageBreak(true, 0.6)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageWidth, _ := pdf.GetPageSize()
	tableWidth := 0.0
	for _, c := range pdfColumns {
		tableWidth += c.width
	}
	left := (pageWidth - tableWidth) / 2

	pdf.SetFont("Helvetica", "B", 20)
	pdf.CellFormat(0, 0.4, tr(lh.MarketName), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 12)
	pdf.CellFormat(0, 0.3, tr(lh.Title), "", 1, "C", false, 0, "")
	pdf.Ln(0.25)

	pdf.SetX(left)
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(tableWidth, 0.3, domain.FormatInvoiceNumber(inv.ID), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.SetX(left)
	pdf.CellFormat(tableWidth, 0.25, "Fecha: "+inv.Date.Format(domain.DateLayout), "", 1, "L", false, 0, "")
	pdf.SetX(left)
	pdf.CellFormat(tableWidth, 0.25, tr("Cliente: "+inv.CustomerName), "", 1, "L", false, 0, "")
	pdf.Ln(0.2)

	pdf.SetX(left)
	pdf.SetFont("Helvetica", "B", 10)
	pdf.SetFillColor(0x1D, 0x84, 0x45)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetDrawColor(0, 0, 0)
	for _, c := range pdfColumns {
		pdf.CellFormat(c.width, 0.3, c.title, "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	pdf.SetFillColor(245, 245, 220)
	pdf.SetTextColor(0, 0, 0)
	for _, item := range inv.Items {
		values := []string{
			item.ProductCode,
			truncateRunes(item.ProductName, maxPDFNameRunes),
			domain.FormatMoney(item.UnitPrice),
			domain.FormatQuantity(item.Quantity),
			domain.FormatMoney(item.LineTotal),
		}
		pdf.SetX(left)
		for i, c := range pdfColumns {
			pdf.CellFormat(c.width, 0.25, tr(values[i]), "1", 0, c.align, true, 0, "")
		}
		pdf.Ln(-1)
	}
	pdf.Ln(0.25)

	labelWidth := tableWidth - pdfColumns[len(pdfColumns)-1].width
	valueWidth := pdfColumns[len(pdfColumns)-1].width
	totalRow := func(label, value string) {
		pdf.SetX(left)
		pdf.CellFormat(labelWidth, 0.3, tr(label), "", 0, "R", false, 0, "")
		pdf.CellFormat(valueWidth, 0.3, value, "", 1, "R", false, 0, "")
	}

	pdf.SetFont("Helvetica", "", 11)
	totalRow("SUBTOTAL:", domain.FormatMoney(inv.Subtotal))
	totalRow("CRÉDITO:", domain.FormatCredit(inv.Credit))
	pdf.SetFont("Helvetica", "B", 14)
	pdf.SetTextColor(0xD4, 0x54, 0x38)
	totalRow("TOTAL:", domain.FormatMoney(inv.Total))

	pdf.SetTextColor(0, 0, 0)
	pdf.Ln(0.5)
	pdf.SetFont("Helvetica", "I", 10)
	pdf.CellFormat(0, 0.3, tr(lh.Footer), "", 1, "C", false, 0, "")

	if err := pdf.Error(); err != nil {
		return err
	}
	return pdf.Output(w)
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
