package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"mexiquense/facturacion/internal/domain"
	"mexiquense/facturacion/internal/httpapi"
	"mexiquense/facturacion/internal/importer"
	"mexiquense/facturacion/internal/service"
	"mexiquense/facturacion/internal/store"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("facturacion failed")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "facturacion",
		Usage: "inventory import and invoicing for a small market",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:  "migrate",
				Usage: "apply database migrations",
				Action: func(c *cli.Context) error {
					cfg, log, err := loadConfig()
					if err != nil {
						return err
					}
					if cfg.DatabaseURL == "" {
						return errDatabaseRequired
					}
					return migrate(cfg, log)
				},
			},
			{
				Name:      "import",
				Usage:     "load a CSV or XLSX inventory file into the catalog",
				ArgsUsage: "FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "sheet", Usage: "only import this workbook sheet"},
				},
				Action: withRuntime(importFile),
			},
			{
				Name:  "products",
				Usage: "query the catalog",
				Subcommands: []*cli.Command{
					{
						Name:      "search",
						Usage:     "find products whose code contains FRAGMENT",
						ArgsUsage: "FRAGMENT",
						Action: withRuntime(func(c *cli.Context, rt *runtime) error {
							products, err := rt.svc.SearchProducts(c.Context, c.Args().First())
							if err != nil {
								return err
							}
							printProducts(c.App.Writer, products)
							return nil
						}),
					},
					{
						Name:  "list",
						Usage: "list the whole catalog",
						Action: withRuntime(func(c *cli.Context, rt *runtime) error {
							products, err := rt.svc.ListProducts(c.Context)
							if err != nil {
								return err
							}
							printProducts(c.App.Writer, products)
							return nil
						}),
					},
				},
			},
			{
				Name:  "invoices",
				Usage: "create, inspect and export invoices",
				Subcommands: []*cli.Command{
					{
						Name:  "create",
						Usage: "finalize an invoice from catalog codes",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "customer", Usage: "customer name"},
							&cli.StringFlag{Name: "date", Usage: "invoice date as YYYY-MM-DD, default today"},
							&cli.StringFlag{Name: "credit", Usage: "credit to subtract from the subtotal"},
							&cli.StringSliceFlag{Name: "item", Usage: "CODE=QTY, repeatable", Required: true},
						},
						Action: withRuntime(createInvoice),
					},
					{
						Name:  "list",
						Usage: "list recent invoices, newest first",
						Flags: []cli.Flag{
							&cli.IntFlag{Name: "limit", Value: store.DefaultInvoiceListLimit},
						},
						Action: withRuntime(func(c *cli.Context, rt *runtime) error {
							invoices, err := rt.svc.ListInvoices(c.Context, c.Int("limit"))
							if err != nil {
								return err
							}
							printInvoiceList(c.App.Writer, invoices)
							return nil
						}),
					},
					{
						Name:      "show",
						Usage:     "print one invoice",
						ArgsUsage: "ID",
						Action: withRuntime(func(c *cli.Context, rt *runtime) error {
							id, err := parseInvoiceID(c.Args().First())
							if err != nil {
								return err
							}
							inv, err := rt.svc.GetInvoice(c.Context, id)
							if err != nil {
								return err
							}
							printInvoice(c.App.Writer, inv)
							return nil
						}),
					},
					{
						Name:      "export",
						Usage:     "write an invoice as csv, xlsx, pdf or all three",
						ArgsUsage: "ID",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "format", Value: "pdf", Usage: "csv, xlsx, pdf or all"},
						},
						Action: withRuntime(exportInvoice),
					},
				},
			},
		},
	}
}

// withRuntime opens the database-backed runtime for one command and closes it
// afterwards.
func withRuntime(fn func(*cli.Context, *runtime) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		rt, err := open(c.Context, true)
		if err != nil {
			return err
		}
		defer rt.Close()
		return fn(c, rt)
	}
}

func serve(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := open(ctx, false)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.cfg.DatabaseURL != "" {
		if err := migrate(rt.cfg, rt.log); err != nil {
			return err
		}
	}

	api := httpapi.New(rt.svc, httpapi.Options{
		AllowedOrigin:  rt.cfg.AllowedOrigin,
		UploadMaxBytes: rt.cfg.UploadMaxBytes,
		Log:            rt.log,
	})
	server := &http.Server{
		Addr:              rt.cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		rt.log.WithField("addr", rt.cfg.Address()).Info("facturacion listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.Wrap(err, "server error")
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		rt.log.WithError(err).Warn("shutdown error")
	}
	rt.log.Info("server stopped")
	return nil
}

func importFile(c *cli.Context, rt *runtime) error {
	path := c.Args().First()
	if path == "" {
		return cli.Exit("import needs a FILE argument", 2)
	}
	res, err := rt.svc.ImportFile(c.Context, path, c.String("sheet"))
	if err != nil {
		return err
	}
	printImportResult(c.App.Writer, res)
	return nil
}

func createInvoice(c *cli.Context, rt *runtime) error {
	items, err := parseItems(c.StringSlice("item"))
	if err != nil {
		return err
	}
	credit, err := service.ParseAmount(c.String("credit"))
	if err != nil {
		return err
	}
	inv, err := rt.svc.CreateInvoice(c.Context, domain.CreateInvoiceRequest{
		Date:         c.String("date"),
		CustomerName: c.String("customer"),
		Credit:       credit,
		Items:        items,
	})
	if err != nil {
		return err
	}
	printInvoice(c.App.Writer, inv)
	return nil
}

func exportInvoice(c *cli.Context, rt *runtime) error {
	id, err := parseInvoiceID(c.Args().First())
	if err != nil {
		return err
	}

	var artifacts []domain.Artifact
	if strings.EqualFold(c.String("format"), "all") {
		artifacts, err = rt.svc.ExportInvoiceAll(c.Context, id)
	} else {
		var format domain.ExportFormat
		format, err = domain.ParseExportFormat(c.String("format"))
		if err != nil {
			return err
		}
		var a domain.Artifact
		a, err = rt.svc.ExportInvoice(c.Context, id, format)
		artifacts = append(artifacts, a)
	}
	if err != nil {
		return err
	}
	for _, a := range artifacts {
		fmt.Fprintf(c.App.Writer, "%s\t%s\n", a.Format, a.Path)
	}
	return nil
}

// parseItems reads CODE=QTY pairs. A bare CODE means one unit.
func parseItems(specs []string) ([]domain.InvoiceItemRequest, error) {
	items := make([]domain.InvoiceItemRequest, 0, len(specs))
	for _, spec := range specs {
		code, rawQty, found := strings.Cut(spec, "=")
		code = strings.TrimSpace(code)
		if code == "" {
			return nil, errors.Wrapf(service.ErrInvalidRequest, "item %q has no product code", spec)
		}
		qty := decimal.NewFromInt(1)
		if found {
			parsed, err := decimal.NewFromString(strings.TrimSpace(rawQty))
			if err != nil {
				return nil, errors.Wrapf(service.ErrInvalidRequest, "item %q has a bad quantity", spec)
			}
			qty = parsed
		}
		items = append(items, domain.InvoiceItemRequest{Code: code, Quantity: qty})
	}
	return items, nil
}

func parseInvoiceID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id < 1 {
		return 0, errors.Wrapf(service.ErrInvalidRequest, "invoice id %q must be a positive integer", raw)
	}
	return id, nil
}

func printProducts(w io.Writer, products []domain.Product) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CODE\tNAME\tPRICE\tQTY")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.Code, p.Name, domain.FormatMoney(p.UnitPrice), domain.FormatQuantity(p.Quantity))
	}
	_ = tw.Flush()
}

func printInvoiceList(w io.Writer, invoices []domain.InvoiceSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tTOTAL")
	for _, inv := range invoices {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", inv.ID, inv.Date.Format(domain.DateLayout), inv.CustomerName, domain.FormatMoney(inv.Total))
	}
	_ = tw.Flush()
}

func printInvoice(w io.Writer, inv *domain.Invoice) {
	fmt.Fprintf(w, "%s\n", domain.FormatInvoiceNumber(inv.ID))
	fmt.Fprintf(w, "Fecha: %s\n", inv.Date.Format(domain.DateLayout))
	fmt.Fprintf(w, "Cliente: %s\n\n", inv.CustomerName)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tPRODUCT\tQTY\tPRICE\tTOTAL\t")
	for _, it := range inv.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n", it.ProductCode, it.ProductName,
			domain.FormatQuantity(it.Quantity), domain.FormatMoney(it.UnitPrice), domain.FormatMoney(it.LineTotal))
	}
	fmt.Fprintf(tw, "\t\t\tSubtotal\t%s\t\n", domain.FormatMoney(inv.Subtotal))
	fmt.Fprintf(tw, "\t\t\tCrédito\t%s\t\n", domain.FormatCredit(inv.Credit))
	fmt.Fprintf(tw, "\t\t\tTOTAL\t%s\t\n", domain.FormatMoney(inv.Total))
	_ = tw.Flush()
}

func printImportResult(w io.Writer, res importer.Result) {
	fmt.Fprintf(w, "run %s: %d imported, %d skipped, %d failed in %s\n",
		res.RunID, res.Imported, res.Skipped, len(res.Errors), res.Duration.Round(time.Millisecond))
	for _, e := range res.Errors {
		fmt.Fprintf(w, "  %s\n", e)
	}
}
