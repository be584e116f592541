package export

import (
	"io"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"mexiquense/facturacion/internal/domain"
)

const (
	sheetName      = "Factura"
	tableHeaderRow = 8
)

// writeXLSX lays out a title block in rows 1-7, the line table from row 8,
// one blank row, then the totals in columns D and E as raw numbers.
func writeXLSX(w io.Writer, inv *domain.Invoice, lh Letterhead) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	titleStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 16}})
	if err != nil {
		return err
	}
	boldStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"1D8445"}},
	})
	if err != nil {
		return err
	}
	moneyStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2})
	if err != nil {
		return err
	}
	totalStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2, Font: &excelize.Font{Bold: true, Color: "D45438"}})
	if err != nil {
		return err
	}

	header := []struct {
		cell  string
		value string
		style int
	}{
		{"A1", lh.MarketName, titleStyle},
		{"A2", lh.Title, 0},
		{"A4", domain.FormatInvoiceNumber(inv.ID), boldStyle},
		{"A5", "Fecha: " + inv.Date.Format(domain.DateLayout), 0},
		{"A6", "Cliente: " + inv.CustomerName, 0},
	}
	for _, h := range header {
		if err := f.SetCellStr(sheetName, h.cell, h.value); err != nil {
			return err
		}
		if h.style != 0 {
			if err := f.SetCellStyle(sheetName, h.cell, h.cell, h.style); err != nil {
				return err
			}
		}
	}

	if err := f.SetSheetRow(sheetName, cell("A", tableHeaderRow), &[]any{"UPC", "PRODUCTO", "PRECIO", "CANTIDAD", "TOTAL"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetName, cell("A", tableHeaderRow), cell("E", tableHeaderRow), headerStyle); err != nil {
		return err
	}

	row := tableHeaderRow + 1
	for _, item := range inv.Items {
		if err := f.SetCellStr(sheetName, cell("A", row), item.ProductCode); err != nil {
			return err
		}
		if err := f.SetCellStr(sheetName, cell("B", row), item.ProductName); err != nil {
			return err
		}
		for col, v := range map[string]decimal.Decimal{"C": item.UnitPrice, "D": item.Quantity, "E": item.LineTotal} {
			if err := setNumber(f, cell(col, row), v); err != nil {
				return err
			}
		}
		if err := f.SetCellStyle(sheetName, cell("C", row), cell("E", row), moneyStyle); err != nil {
			return err
		}
		row++
	}

	row++
	totals := []struct {
		label string
		value decimal.Decimal
		style int
	}{
		{"SUBTOTAL:", inv.Subtotal, moneyStyle},
		{"CRÉDITO:", inv.Credit.Neg(), moneyStyle},
		{"TOTAL:", inv.Total, totalStyle},
	}
	for _, t := range totals {
		if err := f.SetCellStr(sheetName, cell("D", row), t.label); err != nil {
			return err
		}
		if err := setNumber(f, cell("E", row), t.value); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell("D", row), cell("D", row), boldStyle); err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, cell("E", row), cell("E", row), t.style); err != nil {
			return err
		}
		row++
	}

	for col, width := range map[string]float64{"A": 18, "B": 40, "C": 12, "D": 12, "E": 14} {
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return err
		}
	}

	return f.Write(w)
}

func cell(col string, row int) string {
	name, _ := excelize.JoinCellName(col, row)
	return name
}

func setNumber(f *excelize.File, axis string, v decimal.Decimal) error {
	return f.SetCellFloat(sheetName, axis, v.InexactFloat64(), -1, 64)
}
