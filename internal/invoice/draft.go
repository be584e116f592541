package invoice

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"mexiquense/facturacion/internal/domain"
)

var ErrEmptyInvoice = errors.New("invoice has no line items")

// Writer persists a finalized invoice header and its lines as one unit.
type Writer interface {
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (int64, error)
}

// Draft is an invoice under construction. The zero value is ready to use.
// It is owned by one caller and is not safe for concurrent use.
type Draft struct {
	lines  []domain.LineItem
	credit decimal.Decimal
}

func New() *Draft {
	return &Draft{}
}

// Start discards all lines and the credit.
func (d *Draft) Start() {
	d.lines = nil
	d.credit = decimal.Zero
}

// AddLine appends a line. Quantity is taken as given, including zero or
// negative values.
func (d *Draft) AddLine(code, name string, unitPrice, qty decimal.Decimal) domain.LineItem {
	item := domain.LineItem{
		ProductCode: code,
		ProductName: name,
		UnitPrice:   unitPrice,
		Quantity:    qty,
		LineTotal:   unitPrice.Mul(qty),
	}
	d.lines = append(d.lines, item)
	return item
}

// AddProduct snapshots p into a new line.
func (d *Draft) AddProduct(p domain.Product, qty decimal.Decimal) domain.LineItem {
	return d.AddLine(p.Code, p.Name, p.UnitPrice, qty)
}

// ApplyCredit replaces any previous credit with |amount|.
func (d *Draft) ApplyCredit(amount decimal.Decimal) {
	d.credit = amount.Abs()
}

func (d *Draft) Credit() decimal.Decimal {
	return d.credit
}

func (d *Draft) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	for _, l := range d.lines {
		sum = sum.Add(l.LineTotal)
	}
	return sum
}

// Total is the subtotal minus credit, floored at zero.
func (d *Draft) Total() decimal.Decimal {
	total := d.Subtotal().Sub(d.credit)
	if total.IsNegative() {
		return decimal.Zero
	}
	return total
}

func (d *Draft) Lines() []domain.LineItem {
	return slices.Clone(d.lines)
}

func (d *Draft) Len() int {
	return len(d.lines)
}

// Invoice builds the header and lines that Finalize would persist.
func (d *Draft) Invoice(date time.Time, customer string) domain.Invoice {
	return domain.Invoice{
		Date:         date,
		CustomerName: customer,
		Subtotal:     d.Subtotal(),
		Credit:       d.credit,
		Total:        d.Total(),
		Items:        d.Lines(),
	}
}

// Finalize persists the draft through w and returns the new invoice id.
// An empty draft is rejected before anything is written. The draft keeps its
// lines afterwards; call Start to begin the next invoice.
func (d *Draft) Finalize(ctx context.Context, w Writer, date time.Time, customer string) (int64, error) {
	if len(d.lines) == 0 {
		return 0, ErrEmptyInvoice
	}
	return w.CreateInvoice(ctx, d.Invoice(date, customer))
}
