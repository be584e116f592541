package service

import (
	"context"
	"io"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"mexiquense/facturacion/internal/cache"
	"mexiquense/facturacion/internal/domain"
	"mexiquense/facturacion/internal/export"
	"mexiquense/facturacion/internal/importer"
	"mexiquense/facturacion/internal/invoice"
	"mexiquense/facturacion/internal/store"
)

var (
	ErrInvalidQuery   = errors.New("invalid search query")
	ErrInvalidRequest = errors.New("invalid request")
)

const (
	DefaultSearchMinLength = 3
	DefaultCustomer        = "Cliente General"
	defaultSearchCacheTTL  = 5 * time.Minute
)

type Options struct {
	SearchMinLength int
	SearchCacheTTL  time.Duration
	DefaultCustomer string
	Log             logrus.FieldLogger
	Now             func() time.Time
}

// Service is the entry point the CLI and HTTP layers share. Catalog imports,
// invoice finalization and exports run one at a time.
type Service struct {
	catalog  store.CatalogStore
	invoices store.InvoiceStore
	pipeline *importer.Pipeline
	renderer *export.Renderer
	cache    cache.SearchCache

	writeMu sync.Mutex

	minQuery        int
	cacheTTL        time.Duration
	defaultCustomer string
	log             logrus.FieldLogger
	now             func() time.Time
}

func New(repo store.Repository, renderer *export.Renderer, searchCache cache.SearchCache, opts Options) *Service {
	if opts.SearchMinLength < 1 {
		opts.SearchMinLength = DefaultSearchMinLength
	}
	if opts.SearchCacheTTL <= 0 {
		opts.SearchCacheTTL = defaultSearchCacheTTL
	}
	if strings.TrimSpace(opts.DefaultCustomer) == "" {
		opts.DefaultCustomer = DefaultCustomer
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if searchCache == nil {
		searchCache = cache.NoopSearchCache{}
	}

	return &Service{
		catalog:         repo,
		invoices:        repo,
		pipeline:        importer.NewPipeline(repo, opts.Log),
		renderer:        renderer,
		cache:           searchCache,
		minQuery:        opts.SearchMinLength,
		cacheTTL:        opts.SearchCacheTTL,
		defaultCustomer: strings.TrimSpace(opts.DefaultCustomer),
		log:             opts.Log,
		now:             opts.Now,
	}
}

func (s *Service) ImportTables(ctx context.Context, tables ...importer.Table) (importer.Result, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.pipeline.Import(ctx, tables...)
	if res.Imported > 0 {
		if cerr := s.cache.Invalidate(ctx); cerr != nil {
			s.log.WithError(cerr).Warn("search cache invalidation failed")
		}
	}
	return res, err
}

func (s *Service) ImportFile(ctx context.Context, path string, sheet string) (importer.Result, error) {
	tables, err := importer.ReadFile(path, sheet)
	if err != nil {
		return importer.Result{}, err
	}
	return s.ImportTables(ctx, tables...)
}

// ImportReader imports an uploaded file; name decides the format.
func (s *Service) ImportReader(ctx context.Context, name string, r io.Reader, sheet string) (importer.Result, error) {
	tables, err := importer.Read(name, r, sheet)
	if err != nil {
		return importer.Result{}, errors.Wrap(ErrInvalidRequest, err.Error())
	}
	return s.ImportTables(ctx, tables...)
}

// SearchProducts finds products whose code contains fragment, ignoring case.
// Fragments shorter than the configured minimum are rejected.
func (s *Service) SearchProducts(ctx context.Context, fragment string) ([]domain.Product, error) {
	fragment = strings.TrimSpace(fragment)
	if utf8.RuneCountInString(fragment) < s.minQuery {
		return nil, errors.Wrapf(ErrInvalidQuery, "search needs at least %d characters", s.minQuery)
	}

	if cached, ok, err := s.cache.Get(ctx, fragment); err != nil {
		s.log.WithError(err).Warn("search cache read failed")
	} else if ok {
		return cached, nil
	}

	products, err := s.catalog.FindProductsByPartialCode(ctx, fragment)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, fragment, products, s.cacheTTL); err != nil {
		s.log.WithError(err).Warn("search cache write failed")
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, code string) (*domain.Product, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, errors.Wrap(ErrInvalidRequest, "product code is required")
	}
	return s.catalog.GetProductByCode(ctx, code)
}

func (s *Service) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return s.catalog.ListProducts(ctx)
}

// CreateInvoice looks up every requested code, snapshots the products into a
// draft and finalizes it.
func (s *Service) CreateInvoice(ctx context.Context, req domain.CreateInvoiceRequest) (*domain.Invoice, error) {
	date, err := s.invoiceDate(req.Date)
	if err != nil {
		return nil, err
	}
	customer := strings.TrimSpace(req.CustomerName)
	if customer == "" {
		customer = s.defaultCustomer
	}

	draft := invoice.New()
	for i, item := range req.Items {
		code := strings.TrimSpace(item.Code)
		if code == "" {
			return nil, errors.Wrapf(ErrInvalidRequest, "item %d: product code is required", i+1)
		}
		if !item.Quantity.IsPositive() {
			return nil, errors.Wrapf(ErrInvalidRequest, "item %d: quantity must be greater than zero", i+1)
		}
		product, err := s.catalog.GetProductByCode(ctx, code)
		if err != nil {
			return nil, errors.Wrapf(err, "product %s", code)
		}
		draft.AddProduct(*product, item.Quantity)
	}
	draft.ApplyCredit(req.Credit)

	s.writeMu.Lock()
	id, err := draft.Finalize(ctx, s.invoices, date, customer)
	s.writeMu.Unlock()
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"invoice_id": id,
		"lines":      draft.Len(),
		"total":      draft.Total().StringFixed(2),
	}).Info("invoice finalized")
	return s.invoices.GetInvoice(ctx, id)
}

func (s *Service) invoiceDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		y, m, d := s.now().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
	}
	date, err := time.Parse(domain.DateLayout, raw)
	if err != nil {
		return time.Time{}, errors.Wrapf(ErrInvalidRequest, "date %q must look like YYYY-MM-DD", raw)
	}
	return date, nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	return s.invoices.GetInvoice(ctx, id)
}

func (s *Service) ListInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error) {
	return s.invoices.ListInvoices(ctx, limit)
}

func (s *Service) ExportInvoice(ctx context.Context, id int64, format domain.ExportFormat) (domain.Artifact, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.renderer.Render(ctx, id, format)
}

func (s *Service) ExportInvoiceAll(ctx context.Context, id int64) ([]domain.Artifact, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.renderer.RenderAll(ctx, id)
}

// ParseAmount parses a user-supplied money amount, accepting a leading "$".
// Blank means zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "$")
	if raw == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, errors.Wrapf(ErrInvalidRequest, "amount %q is not a number", raw)
	}
	return d, nil
}
