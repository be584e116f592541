package importer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mexiquense/facturacion/internal/domain"
	"mexiquense/facturacion/internal/store"
)

const (
	ColumnCode     = "UPC"
	ColumnQuantity = "QTY"
	ColumnName     = "PRODUCT"
	ColumnPrice    = "PRICE"
)

var RequiredColumns = []string{ColumnCode, ColumnQuantity, ColumnName, ColumnPrice}

// SchemaError rejects a whole import because a required column is absent.
type SchemaError struct {
	Table   string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s", e.Table, strings.Join(e.Missing, ", "))
}

// RowError describes one rejected row. The rest of the import carries on.
type RowError struct {
	Table  string `json:"table"`
	Line   int    `json:"line"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason"`
}

func (e RowError) String() string {
	return fmt.Sprintf("%s line %d: %s", e.Table, e.Line, e.Reason)
}

type Result struct {
	RunID    uuid.UUID     `json:"run_id"`
	Imported int           `json:"imported"`
	Skipped  int           `json:"skipped"`
	Errors   []RowError    `json:"errors"`
	Duration time.Duration `json:"duration"`
}

type Pipeline struct {
	catalog store.CatalogStore
	log     logrus.FieldLogger
}

func NewPipeline(catalog store.CatalogStore, log logrus.FieldLogger) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{catalog: catalog, log: log}
}

type headerIndex map[string]int

func makeHeaderIndex(header []string) headerIndex {
	idx := make(headerIndex, len(header))
	for i, h := range header {
		key := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, seen := idx[key]; !seen {
			idx[key] = i
		}
	}
	return idx
}

func (h headerIndex) cell(row []string, column string) string {
	pos := h[column]
	if pos >= len(row) {
		return ""
	}
	return row[pos]
}

// Validate checks every table's header before anything is written. Tables
// with no header at all, such as a blank worksheet, carry no schema and are
// not checked.
func Validate(tables ...Table) error {
	for _, t := range tables {
		if !t.hasHeader() {
			continue
		}
		idx := makeHeaderIndex(t.Header)
		var missing []string
		for _, col := range RequiredColumns {
			if _, ok := idx[col]; !ok {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return &SchemaError{Table: t.Name, Missing: missing}
		}
	}
	return nil
}

// Import upserts every usable row from tables. Row problems are collected in
// the Result; only a schema problem or a cancelled context returns an error.
func (p *Pipeline) Import(ctx context.Context, tables ...Table) (Result, error) {
	res := Result{RunID: uuid.New()}
	log := p.log.WithField("run_id", res.RunID.String())

	if err := Validate(tables...); err != nil {
		log.WithError(err).Warn("import rejected")
		return res, err
	}

	started := time.Now()
	resolver := NewResolver()
	log.WithField("tables", len(tables)).Info("import started")

	for _, t := range tables {
		if !t.hasHeader() {
			log.WithField("table", t.Name).Debug("table has no header row, skipped")
			continue
		}
		idx := makeHeaderIndex(t.Header)
		for i, row := range t.Rows {
			if err := ctx.Err(); err != nil {
				return res, err
			}
			if isEmptyRow(row) {
				res.Skipped++
				continue
			}

			rowErr, ok := p.importRow(ctx, resolver, idx, row)
			if ok {
				res.Imported++
				continue
			}
			rowErr.Table = t.Name
			rowErr.Line = t.LineOf(i)
			res.Errors = append(res.Errors, rowErr)
			log.WithFields(logrus.Fields{
				"table": rowErr.Table,
				"line":  rowErr.Line,
				"code":  rowErr.Code,
			}).Warn(rowErr.Reason)
		}
	}

	res.Duration = time.Since(started)
	log.WithFields(logrus.Fields{
		"imported": res.Imported,
		"failed":   len(res.Errors),
		"skipped":  res.Skipped,
		"duration": res.Duration.String(),
	}).Info("import finished")
	return res, nil
}

func (p *Pipeline) importRow(ctx context.Context, resolver *Resolver, idx headerIndex, row []string) (RowError, bool) {
	name := cleanName(idx.cell(row, ColumnName))
	rawCode := CleanCell(idx.cell(row, ColumnCode))
	if name == "" {
		return RowError{Code: rawCode, Reason: "product name is blank"}, false
	}

	price, ok := parsePrice(idx.cell(row, ColumnPrice))
	if !ok {
		p.log.WithField("value", idx.cell(row, ColumnPrice)).Debug("unreadable price treated as zero")
	}
	if price.IsNegative() {
		return RowError{Code: rawCode, Reason: fmt.Sprintf("negative price %s", price.String())}, false
	}

	product := domain.Product{
		Code:      resolver.Resolve(rawCode, name),
		Name:      name,
		UnitPrice: price,
		Quantity:  parseQuantity(idx.cell(row, ColumnQuantity)),
	}
	if err := p.catalog.UpsertProduct(ctx, product); err != nil {
		return RowError{Code: product.Code, Reason: "upsert failed: " + err.Error()}, false
	}
	return RowError{}, true
}
