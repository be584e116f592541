package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"mexiquense/facturacion/internal/domain"
	"mexiquense/facturacion/internal/store"
)

type Store struct {
	db *sqlx.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sqlx.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(4)
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

type productRow struct {
	Code      string          `db:"code"`
	Name      string          `db:"name"`
	UnitPrice decimal.Decimal `db:"unit_price"`
	Quantity  decimal.Decimal `db:"quantity"`
	CreatedAt time.Time       `db:"created_at"`
	UpdatedAt time.Time       `db:"updated_at"`
}

func (r productRow) toDomain() domain.Product {
	return domain.Product{
		Code:      r.Code,
		Name:      r.Name,
		UnitPrice: r.UnitPrice,
		Quantity:  r.Quantity,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

const productColumns = `code, name, unit_price, quantity, created_at, updated_at`

func (s *Store) UpsertProduct(ctx context.Context, product domain.Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (code, name, unit_price, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (code)
		DO UPDATE SET name = EXCLUDED.name,
			unit_price = EXCLUDED.unit_price,
			quantity = EXCLUDED.quantity,
			updated_at = now()
	`, product.Code, product.Name, product.UnitPrice, product.Quantity)
	return wrap("upsert product", err)
}

func (s *Store) FindProductsByPartialCode(ctx context.Context, fragment string) ([]domain.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+productColumns+`
		FROM products
		WHERE strpos(upper(code), upper($1)) > 0
		ORDER BY code COLLATE "C"
	`, fragment)
	if err != nil {
		return nil, wrap("find products by partial code", err)
	}
	return toProducts(rows), nil
}

func (s *Store) GetProductByCode(ctx context.Context, code string) (*domain.Product, error) {
	var row productRow
	err := s.db.GetContext(ctx, &row, `
		SELECT `+productColumns+`
		FROM products
		WHERE code = $1
	`, code)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrap("get product", err)
	}
	p := row.toDomain()
	return &p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	var rows []productRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+productColumns+`
		FROM products
		ORDER BY code COLLATE "C"
	`)
	if err != nil {
		return nil, wrap("list products", err)
	}
	return toProducts(rows), nil
}

type invoiceRow struct {
	ID           int64           `db:"id"`
	InvoiceDate  time.Time       `db:"invoice_date"`
	CustomerName string          `db:"customer_name"`
	Subtotal     decimal.Decimal `db:"subtotal"`
	Credit       decimal.Decimal `db:"credit"`
	Total        decimal.Decimal `db:"total"`
	CSVPath      sql.NullString  `db:"csv_path"`
	XLSXPath     sql.NullString  `db:"xlsx_path"`
	PDFPath      sql.NullString  `db:"pdf_path"`
	CreatedAt    time.Time       `db:"created_at"`
}

type lineRow struct {
	InvoiceID   int64           `db:"invoice_id"`
	Position    int             `db:"position"`
	ProductCode string          `db:"product_code"`
	ProductName string          `db:"product_name"`
	UnitPrice   decimal.Decimal `db:"unit_price"`
	Quantity    decimal.Decimal `db:"quantity"`
	LineTotal   decimal.Decimal `db:"line_total"`
}

// CreateInvoice writes the header and every line in one transaction. A
// failure on any line rolls back the header too.
func (s *Store) CreateInvoice(ctx context.Context, invoice domain.Invoice) (int64, error) {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, wrap("begin invoice", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO invoices (invoice_date, customer_name, subtotal, credit, total, created_at)
		VALUES ($1, $2, $3, $4, $5, now())
		RETURNING id
	`, invoice.Date, invoice.CustomerName, invoice.Subtotal, invoice.Credit, invoice.Total).Scan(&id)
	if err != nil {
		return 0, wrap("insert invoice", err)
	}

	if len(invoice.Items) > 0 {
		lines := make([]lineRow, 0, len(invoice.Items))
		for i, item := range invoice.Items {
			lines = append(lines, lineRow{
				InvoiceID:   id,
				Position:    i + 1,
				ProductCode: item.ProductCode,
				ProductName: item.ProductName,
				UnitPrice:   item.UnitPrice,
				Quantity:    item.Quantity,
				LineTotal:   item.LineTotal,
			})
		}
		_, err = tx.NamedExecContext(ctx, `
			INSERT INTO invoice_lines (invoice_id, position, product_code, product_name, unit_price, quantity, line_total)
			VALUES (:invoice_id, :position, :product_code, :product_name, :unit_price, :quantity, :line_total)
		`, lines)
		if err != nil {
			return 0, wrap("insert invoice lines", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, wrap("commit invoice", err)
	}
	return id, nil
}

func (s *Store) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	var row invoiceRow
	err := s.db.GetContext(ctx, &row, `
		SELECT id, invoice_date, customer_name, subtotal, credit, total,
			csv_path, xlsx_path, pdf_path, created_at
		FROM invoices
		WHERE id = $1
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, wrap("get invoice", err)
	}

	var lines []lineRow
	err = s.db.SelectContext(ctx, &lines, `
		SELECT invoice_id, position, product_code, product_name, unit_price, quantity, line_total
		FROM invoice_lines
		WHERE invoice_id = $1
		ORDER BY position
	`, id)
	if err != nil {
		return nil, wrap("get invoice lines", err)
	}

	inv := domain.Invoice{
		ID:           row.ID,
		Date:         row.InvoiceDate,
		CustomerName: row.CustomerName,
		Subtotal:     row.Subtotal,
		Credit:       row.Credit,
		Total:        row.Total,
		CSVPath:      row.CSVPath.String,
		XLSXPath:     row.XLSXPath.String,
		PDFPath:      row.PDFPath.String,
		CreatedAt:    row.CreatedAt,
		Items:        make([]domain.LineItem, 0, len(lines)),
	}
	for _, l := range lines {
		inv.Items = append(inv.Items, domain.LineItem{
			ProductCode: l.ProductCode,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal,
		})
	}
	return &inv, nil
}

func (s *Store) ListInvoices(ctx context.Context, limit int) ([]domain.InvoiceSummary, error) {
	if limit < 1 {
		limit = store.DefaultInvoiceListLimit
	}

	var rows []invoiceRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, invoice_date, customer_name, subtotal, credit, total,
			csv_path, xlsx_path, pdf_path, created_at
		FROM invoices
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, wrap("list invoices", err)
	}

	out := make([]domain.InvoiceSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, domain.InvoiceSummary{
			ID:           r.ID,
			Date:         r.InvoiceDate,
			CustomerName: r.CustomerName,
			Total:        r.Total,
			CreatedAt:    r.CreatedAt,
		})
	}
	return out, nil
}

var artifactColumns = map[domain.ExportFormat]string{
	domain.FormatCSV:  "csv_path",
	domain.FormatXLSX: "xlsx_path",
	domain.FormatPDF:  "pdf_path",
}

func (s *Store) SetArtifactPath(ctx context.Context, id int64, format domain.ExportFormat, path string) error {
	column, ok := artifactColumns[format]
	if !ok {
		return errors.Errorf("unknown export format %q", format)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE invoices SET `+column+` = $2 WHERE id = $1`, id, nullIfEmpty(path))
	if err != nil {
		return wrap("set artifact path", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return wrap("set artifact path", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func toProducts(rows []productRow) []domain.Product {
	out := make([]domain.Product, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.toDomain())
	}
	return out
}

// wrap names the violated constraint when postgres reports one so the
// storage error points at the offending rule.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.ConstraintName != "" {
		err = errors.Wrapf(err, "constraint %s", pgErr.ConstraintName)
	}
	return store.Wrap(op, err)
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
