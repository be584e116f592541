package httpapi

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mexiquense/facturacion/internal/domain"
	"mexiquense/facturacion/internal/export"
	"mexiquense/facturacion/internal/service"
	"mexiquense/facturacion/internal/store/memory"
)

// newTestAPI wires a seeded in-memory store, a renderer writing into a temp
// directory and the real service, so handler tests run the full request path.
func newTestAPI(t *testing.T) http.Handler {
	t.Helper()

	log, _ := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)

	repo := memory.NewSeeded()
	renderer := export.NewRenderer(repo, export.Options{Dir: t.TempDir(), Log: log})
	svc := service.New(repo, renderer, nil, service.Options{Log: log})
	return New(svc, Options{AllowedOrigin: "*", Log: log}).Handler()
}

func do(t *testing.T, h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func postJSON(t *testing.T, h http.Handler, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(t, h, req)
}

func uploadRequest(t *testing.T, filename string, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/products/import", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type productsBody struct {
	Products []domain.Product `json:"products"`
}

type invoiceBody struct {
	Invoice domain.Invoice `json:"invoice"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, dest any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(dest))
}

func TestHandleHealth(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decode(t, rec, &body)
	assert.Equal(t, true, body["ok"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestPreflightShortCircuits(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, httptest.NewRequest(http.MethodOptions, "/api/v1/invoices", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestSearchProducts(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products?q=cil", nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body productsBody
	decode(t, rec, &body)
	require.Len(t, body.Products, 1)
	assert.Equal(t, "CILANTRO001", body.Products[0].Code)
	assert.True(t, decimal.RequireFromString("1.50").Equal(body.Products[0].UnitPrice))
}

func TestSearchProductsRejectsShortQuery(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products?q=ci", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListProductsWithoutQuery(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body productsBody
	decode(t, rec, &body)
	assert.Len(t, body.Products, 6)
}

func TestGetProductNotFound(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products/NOPE", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestImportUploadThenSearch(t *testing.T) {
	h := newTestAPI(t)

	csv := "UPC,QTY,PRODUCT,PRICE\n" +
		"ABC123,4,Salsa Verde,$2.75\n" +
		",,,\n" +
		",1,Epazote,0.99\n" +
		"BAD1,1,,1.00\n"
	rec := do(t, h, uploadRequest(t, "bodega.csv", csv))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		Result struct {
			Imported int `json:"imported"`
			Skipped  int `json:"skipped"`
			Errors   []struct {
				Line int `json:"line"`
			} `json:"errors"`
		} `json:"result"`
	}
	decode(t, rec, &body)
	assert.Equal(t, 2, body.Result.Imported)
	assert.Equal(t, 1, body.Result.Skipped)
	require.Len(t, body.Result.Errors, 1)
	assert.Equal(t, 5, body.Result.Errors[0].Line)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/products/EPAZOTE001", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestImportMissingColumnIsUnprocessable(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, uploadRequest(t, "bodega.csv", "UPC,QTY,PRODUCT\nA,1,Ajo\n"))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body map[string]string
	decode(t, rec, &body)
	assert.Contains(t, body["error"], "PRICE")
}

func TestImportRejectsUnknownFileType(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, uploadRequest(t, "bodega.json", "{}"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestImportRequiresMultipart(t *testing.T) {
	h := newTestAPI(t)

	rec := postJSON(t, h, "/api/v1/products/import", map[string]string{"file": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInvoiceLifecycle(t *testing.T) {
	h := newTestAPI(t)

	rec := postJSON(t, h, "/api/v1/invoices", map[string]any{
		"date":          "2026-02-03",
		"customer_name": "Doña Rosa",
		"credit":        "5",
		"items": []map[string]any{
			{"code": "CILANTRO001", "quantity": "2"},
			{"code": "7501055300075", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created invoiceBody
	decode(t, rec, &created)
	inv := created.Invoice
	require.Positive(t, inv.ID)
	assert.Equal(t, "Doña Rosa", inv.CustomerName)
	assert.True(t, decimal.RequireFromString("21.50").Equal(inv.Subtotal))
	assert.True(t, decimal.RequireFromString("16.50").Equal(inv.Total))
	require.Len(t, inv.Items, 2)
	assert.Equal(t, "CILANTRO001", inv.Items[0].ProductCode)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/invoices", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Invoices []domain.InvoiceSummary `json:"invoices"`
	}
	decode(t, rec, &list)
	require.Len(t, list.Invoices, 1)
	assert.Equal(t, inv.ID, list.Invoices[0].ID)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/1/exports/pdf", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var exported struct {
		Artifacts []domain.Artifact `json:"artifacts"`
	}
	decode(t, rec, &exported)
	require.Len(t, exported.Artifacts, 1)
	assert.FileExists(t, exported.Artifacts[0].Path)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fetched invoiceBody
	decode(t, rec, &fetched)
	assert.Equal(t, exported.Artifacts[0].Path, fetched.Invoice.PDFPath)
}

func TestExportAllFormats(t *testing.T) {
	h := newTestAPI(t)

	rec := postJSON(t, h, "/api/v1/invoices", map[string]any{
		"items": []map[string]any{{"code": "JALAPENO001", "quantity": "3"}},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/1/exports/all", nil))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var exported struct {
		Artifacts []domain.Artifact `json:"artifacts"`
	}
	decode(t, rec, &exported)
	require.Len(t, exported.Artifacts, 3)
	for _, a := range exported.Artifacts {
		info, err := os.Stat(a.Path)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}
}

func TestCreateInvoiceErrors(t *testing.T) {
	h := newTestAPI(t)

	tests := []struct {
		name    string
		payload map[string]any
		status  int
	}{
		{"empty", map[string]any{"items": []any{}}, http.StatusUnprocessableEntity},
		{"unknown code", map[string]any{"items": []map[string]any{{"code": "NOPE", "quantity": "1"}}}, http.StatusNotFound},
		{"zero quantity", map[string]any{"items": []map[string]any{{"code": "CILANTRO001", "quantity": "0"}}}, http.StatusBadRequest},
		{"bad date", map[string]any{"date": "03/02/2026", "items": []map[string]any{{"code": "CILANTRO001", "quantity": "1"}}}, http.StatusBadRequest},
		{"unknown field", map[string]any{"discount": 5}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, h, "/api/v1/invoices", tt.payload)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}

func TestInvoiceRouteValidation(t *testing.T) {
	h := newTestAPI(t)

	rec := do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/abc", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/42", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/42/exports/docx", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, httptest.NewRequest(http.MethodPost, "/api/v1/invoices/42/exports/csv", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestParsePositiveLimit(t *testing.T) {
	assert.Equal(t, 50, parsePositiveLimit("", 50, 500))
	assert.Equal(t, 50, parsePositiveLimit("-3", 50, 500))
	assert.Equal(t, 7, parsePositiveLimit("7", 50, 500))
	assert.Equal(t, 500, parsePositiveLimit("9000", 50, 500))
}
