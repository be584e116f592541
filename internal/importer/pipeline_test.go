package importer

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"mexiquense/facturacion/internal/domain"
	"mexiquense/facturacion/internal/store/memory"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func mustCSV(t *testing.T, body string) Table {
	t.Helper()
	tbl, err := ReadCSV("inventario.csv", strings.NewReader(body))
	require.NoError(t, err)
	return tbl
}

func TestImportUpsertsRows(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()
	p := NewPipeline(catalog, quietLogger())

	res, err := p.Import(ctx, mustCSV(t, "UPC,QTY,PRODUCT,PRICE\n7501,3,Leche,$27.90\n,10,Cilantro,1.50\nnan,5,Cilantro,\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, res.Imported)
	assert.Empty(t, res.Errors)

	all, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "7501", all[0].Code)
	assert.Equal(t, "CILANTRO001", all[1].Code)
	assert.Equal(t, "CILANTRO002", all[2].Code)
	assert.True(t, all[0].UnitPrice.Equal(decimal.RequireFromString("27.90")))
	assert.True(t, all[2].UnitPrice.IsZero())
}

func TestImportIsIdempotentForRealCodes(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()
	p := NewPipeline(catalog, quietLogger())
	tbl := mustCSV(t, "UPC,QTY,PRODUCT,PRICE\nA1,1,Uno,1\nB2,2,Dos,2\n")

	_, err := p.Import(ctx, tbl)
	require.NoError(t, err)
	first, err := catalog.ListProducts(ctx)
	require.NoError(t, err)

	_, err = p.Import(ctx, tbl)
	require.NoError(t, err)
	second, err := catalog.ListProducts(ctx)
	require.NoError(t, err)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].Code, second[i].Code)
		assert.Equal(t, first[i].Name, second[i].Name)
		assert.True(t, first[i].UnitPrice.Equal(second[i].UnitPrice))
	}
}

func TestImportSynthesizedCodesRestartEachRun(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()
	p := NewPipeline(catalog, quietLogger())

	_, err := p.Import(ctx, mustCSV(t, "UPC,QTY,PRODUCT,PRICE\n,1,Ajo,1\n"))
	require.NoError(t, err)
	_, err = p.Import(ctx, mustCSV(t, "UPC,QTY,PRODUCT,PRICE\n,4,Ajo,2\n"))
	require.NoError(t, err)

	// Counters are per run, so the second run lands on AJO001 again.
	all, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "AJO001", all[0].Code)
	assert.True(t, all[0].UnitPrice.Equal(decimal.NewFromInt(2)))
}

func TestImportMissingColumnFailsWholeImport(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()
	p := NewPipeline(catalog, quietLogger())

	good := mustCSV(t, "UPC,QTY,PRODUCT,PRICE\nA1,1,Uno,1\n")
	bad := mustCSV(t, "UPC,QTY,PRODUCT\nB1,1,Dos\n")
	_, err := p.Import(ctx, good, bad)

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"PRICE"}, schemaErr.Missing)

	all, err := catalog.ListProducts(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestImportColumnNamesAreCaseSensitive(t *testing.T) {
	_, err := NewPipeline(memory.New(), quietLogger()).Import(context.Background(), mustCSV(t, "upc,QTY,PRODUCT,PRICE\n"))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, []string{"UPC"}, schemaErr.Missing)
}

func TestImportRowErrorsDoNotStopTheRun(t *testing.T) {
	ctx := context.Background()
	catalog := memory.New()
	p := NewPipeline(catalog, quietLogger())

	body := "UPC,QTY,PRODUCT,PRICE,NOTES\n" +
		"A1,1,Uno,1,x\n" +
		"A2,1,,1,blank name\n" +
		",,,,\n" +
		"A3,1,Tres,-2,negative\n" +
		"A4,abc,Cuatro,oops,zeroes\n"
	res, err := p.Import(ctx, mustCSV(t, body))
	require.NoError(t, err)

	assert.Equal(t, 2, res.Imported)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 3, res.Errors[0].Line)
	assert.Equal(t, "A2", res.Errors[0].Code)
	assert.Equal(t, 5, res.Errors[1].Line)

	got, err := catalog.GetProductByCode(ctx, "A4")
	require.NoError(t, err)
	assert.True(t, got.UnitPrice.IsZero())
	assert.True(t, got.Quantity.IsZero())
}

type failingCatalog struct {
	*memory.Store
	failCode string
}

func (f failingCatalog) UpsertProduct(ctx context.Context, p domain.Product) error {
	if p.Code == f.failCode {
		return errors.New("disk full")
	}
	return f.Store.UpsertProduct(ctx, p)
}

func TestImportUpsertFailureBecomesRowError(t *testing.T) {
	ctx := context.Background()
	catalog := failingCatalog{Store: memory.New(), failCode: "B2"}
	p := NewPipeline(catalog, quietLogger())

	res, err := p.Import(ctx, mustCSV(t, "UPC,QTY,PRODUCT,PRICE\nA1,1,Uno,1\nB2,1,Dos,2\nC3,1,Tres,3\n"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "B2", res.Errors[0].Code)
	assert.Contains(t, res.Errors[0].Reason, "disk full")
}

func TestImportStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewPipeline(memory.New(), quietLogger()).Import(ctx, mustCSV(t, "UPC,QTY,PRODUCT,PRICE\nA1,1,Uno,1\n"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestImportSkipsBlankWorksheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"UPC", "QTY", "PRODUCT", "PRICE"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"7501", 2, "Frijol", 31.5}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"", 1, "Arroz", 20}))
	_, err := f.NewSheet("Notas")
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	tables, err := ReadXLSX("inv.xlsx", buf, "")
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "inv.xlsx:Notas", tables[1].Name)
	require.NoError(t, Validate(tables...))

	ctx := context.Background()
	catalog := memory.New()
	res, err := NewPipeline(catalog, quietLogger()).Import(ctx, tables...)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Imported)
	assert.Empty(t, res.Errors)

	_, err = catalog.GetProductByCode(ctx, "ARROZ001")
	assert.NoError(t, err)
}

func TestValidateStillRejectsHeaderWithoutRequiredColumns(t *testing.T) {
	err := Validate(Table{Name: "vacia"}, mustCSV(t, "NOTAS\nrevisar precios\n"))
	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "inventario.csv", schemaErr.Table)
	assert.Len(t, schemaErr.Missing, 4)
}
