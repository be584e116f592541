package memory

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mexiquense/facturacion/internal/domain"
	"mexiquense/facturacion/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	products map[string]domain.Product
	invoices map[int64]domain.Invoice
	nextID   int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		products: make(map[string]domain.Product),
		invoices: make(map[int64]domain.Invoice),
		nextID:   1,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewSeeded returns a store with a handful of catalog rows for demo mode.
func NewSeeded() *Store {
	s := New()
	seed := []struct {
		code  string
		name  string
		price string
		qty   int64
	}{
		{"7501055300075", "Coca-Cola 600ml", "18.50", 48},
		{"7501000111206", "Pan Blanco Bimbo", "45.00", 12},
		{"7501020515343", "Leche Lala Entera 1L", "27.90", 24},
		{"CILANTRO001", "Cilantro", "1.50", 30},
		{"TORTILLAS001", "Tortillas de Maiz 1kg", "22.00", 20},
		{"JALAPENO001", "Chile Jalapeno", "3.25", 40},
	}
	for _, p := range seed {
		_ = s.UpsertProduct(context.Background(), domain.Product{
			Code:      p.code,
			Name:      p.name,
			UnitPrice: decimal.RequireFromString(p.price),
			Quantity:  decimal.NewFromInt(p.qty),
		})
	}
	return s
}

func (s *Store) UpsertProduct(_ context.Context, product domain.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if existing, ok := s.products[product.Code]; ok {
		existing.Name = product.Name
		existing.UnitPrice = product.UnitPrice
		existing.Quantity = product.Quantity
		existing.UpdatedAt = now
		s.products[product.Code] = existing
		return nil
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	s.products[product.Code] = product
	return nil
}

func (s *Store) FindProductsByPartialCode(_ context.Context, fragment string) ([]domain.Product, error) {
	needle := strings.ToUpper(fragment)

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, 8)
	for code, p := range s.products {
		if strings.Contains(strings.ToUpper(code), needle) {
			out = append(out, p)
		}
	}
	sortByCode(out)
	return out, nil
}

func (s *Store) GetProductByCode(_ context.Context, code string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[code]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &p, nil
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sortByCode(out)
	return out, nil
}

func (s *Store) CreateInvoice(_ context.Context, invoice domain.Invoice) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	invoice.ID = s.nextID
	s.nextID++
	invoice.CreatedAt = s.now()
	invoice.Items = slices.Clone(invoice.Items)
	s.invoices[invoice.ID] = invoice
	return invoice.ID, nil
}

func (s *Store) GetInvoice(_ context.Context, id int64) (*domain.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	inv, ok := s.invoices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	inv.Items = slices.Clone(inv.Items)
	return &inv, nil
}

func (s *Store) ListInvoices(_ context.Context, limit int) ([]domain.InvoiceSummary, error) {
	if limit < 1 {
		limit = store.DefaultInvoiceListLimit
	}

	s.mu.RLock()
	out := make([]domain.InvoiceSummary, 0, len(s.invoices))
	for _, inv := range s.invoices {
		out = append(out, inv.Summary())
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b domain.InvoiceSummary) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) SetArtifactPath(_ context.Context, id int64, format domain.ExportFormat, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, ok := s.invoices[id]
	if !ok {
		return store.ErrNotFound
	}
	inv.SetArtifactPath(format, path)
	s.invoices[id] = inv
	return nil
}

func sortByCode(products []domain.Product) {
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Code, b.Code)
	})
}
