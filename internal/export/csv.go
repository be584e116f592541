package export

import (
	"encoding/csv"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"mexiquense/facturacion/internal/domain"
)

var csvHeader = []string{"UPC", "PRODUCT", "PRICE", "QTY", "TOTAL"}

// writeCSV emits UTF-8 with a byte order mark so spreadsheet tools pick the
// right encoding for accented text.
func writeCSV(w io.Writer, inv *domain.Invoice, _ Letterhead) error {
	bw := transform.NewWriter(w, unicode.UTF8BOM.NewEncoder())
	cw := csv.NewWriter(bw)

	records := make([][]string, 0, len(inv.Items)+4)
	records = append(records, csvHeader)
	for _, item := range inv.Items {
		records = append(records, []string{
			item.ProductCode,
			item.ProductName,
			domain.FormatMoney(item.UnitPrice),
			domain.FormatQuantity(item.Quantity),
			domain.FormatMoney(item.LineTotal),
		})
	}
	records = append(records,
		[]string{"", "", "", "SUBTOTAL:", domain.FormatMoney(inv.Subtotal)},
		[]string{"", "", "", "CRÉDITO:", domain.FormatCredit(inv.Credit)},
		[]string{"", "", "", "TOTAL:", domain.FormatMoney(inv.Total)},
	)

	if err := cw.WriteAll(records); err != nil {
		return err
	}
	return bw.Close()
}
