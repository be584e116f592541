package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"mexiquense/facturacion/internal/domain"
)

const DefaultDir = "facturas"

type Letterhead struct {
	MarketName string
	Title      string
	Footer     string
}

func DefaultLetterhead() Letterhead {
	return Letterhead{
		MarketName: "EL MEXIQUENSE MARKET",
		Title:      "Sistema de Facturación",
		Footer:     "Gracias por su compra",
	}
}

// Store is the slice of the invoice store the renderer needs.
type Store interface {
	GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error)
	SetArtifactPath(ctx context.Context, id int64, format domain.ExportFormat, path string) error
}

type Options struct {
	Dir         string
	Letterhead  Letterhead
	CompressPDF bool
	Log         logrus.FieldLogger
	Now         func() time.Time
}

type Renderer struct {
	invoices   Store
	dir        string
	letterhead Letterhead
	backends   map[domain.ExportFormat]backend
	log        logrus.FieldLogger
	now        func() time.Time
}

type backend func(w io.Writer, inv *domain.Invoice, lh Letterhead) error

func NewRenderer(invoices Store, opts Options) *Renderer {
	if opts.Dir == "" {
		opts.Dir = DefaultDir
	}
	if opts.Letterhead == (Letterhead{}) {
		opts.Letterhead = DefaultLetterhead()
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	pdf := pdfWriter{compress: opts.CompressPDF}
	return &Renderer{
		invoices:   invoices,
		dir:        opts.Dir,
		letterhead: opts.Letterhead,
		backends: map[domain.ExportFormat]backend{
			domain.FormatCSV:  writeCSV,
			domain.FormatXLSX: writeXLSX,
			domain.FormatPDF:  pdf.write,
		},
		log: opts.Log,
		now: opts.Now,
	}
}

// FileName is Factura_<id>_<YYYYMMDD_HHMMSS>.<ext>.
func FileName(id int64, format domain.ExportFormat, at time.Time) string {
	return fmt.Sprintf("Factura_%d_%s.%s", id, at.Format("20060102_150405"), format.Extension())
}

// Render re-reads invoice id from the store and writes it in format. Totals
// come from the stored header, never from a recomputation.
func (r *Renderer) Render(ctx context.Context, id int64, format domain.ExportFormat) (domain.Artifact, error) {
	write, ok := r.backends[format]
	if !ok {
		return domain.Artifact{}, errors.Errorf("unsupported export format %q", format)
	}

	inv, err := r.invoices.GetInvoice(ctx, id)
	if err != nil {
		return domain.Artifact{}, err
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return domain.Artifact{}, errors.Wrap(err, "create export directory")
	}
	path := filepath.Join(r.dir, FileName(id, format, r.now()))
	if err := writeFile(path, func(w io.Writer) error { return write(w, inv, r.letterhead) }); err != nil {
		return domain.Artifact{}, errors.Wrapf(err, "write %s export", format)
	}

	log := r.log.WithFields(logrus.Fields{
		"invoice_id": id,
		"format":     format,
		"path":       path,
	})
	if err := r.invoices.SetArtifactPath(ctx, id, format, path); err != nil {
		log.WithError(err).Warn("export written but artifact path not recorded")
	} else {
		log.Info("invoice exported")
	}

	return domain.Artifact{InvoiceID: id, Format: format, Path: path}, nil
}

// RenderAll writes csv, xlsx and pdf in that order and stops at the first
// failure.
func (r *Renderer) RenderAll(ctx context.Context, id int64) ([]domain.Artifact, error) {
	out := make([]domain.Artifact, 0, len(domain.ExportFormats))
	for _, f := range domain.ExportFormats {
		a, err := r.Render(ctx, id, f)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

func writeFile(path string, fill func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}
