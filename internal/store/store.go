package store

import (
	"context"
	"errors"
	"fmt"

	"mexiquense/facturacion/internal/domain"
)

var ErrNotFound = errors.New("not found")

// StorageError marks an underlying persistence fault, as opposed to a
// missing record.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// Wrap returns nil for nil, passes ErrNotFound through untouched and wraps
// everything else in a StorageError.
func Wrap(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var se *StorageError
	if errors.As(err, &se) {
		return err
	}
	return &StorageError{Op: op, Err: err}
}

type CatalogStore interface {
	UpsertProduct(ctx context.Context, product domain.Product) error
	FindProductsByPartialCode(ctx context.Context, fragment string) ([]domain.Product, error)
	GetProductByCode(ctx context.Context, code string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
}

type InvoiceStore interface {
	CreateInvoice(ctx context.Context, invoice domain.Invoice) (int64, error)
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	ListInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error)
	SetArtifactPath(ctx context.Context, id int64, format domain.ExportFormat, path string) error
}

type Repository interface {
	CatalogStore
	InvoiceStore
}

const DefaultInvoiceListLimit = 50
