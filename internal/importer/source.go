package importer

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Table is one header row plus its data rows, already decoded to strings.
// HeaderLine is the 1-based source line of the header.
type Table struct {
	Name       string
	Header     []string
	Rows       [][]string
	HeaderLine int
}

// LineOf returns the 1-based source line for data row i.
func (t Table) LineOf(i int) int {
	return t.HeaderLine + i + 1
}

// ReadCSV decodes UTF-8 text with or without a byte order mark. Invalid
// sequences become U+FFFD instead of failing the read.
func ReadCSV(name string, r io.Reader) (Table, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return Table{}, errors.Wrapf(err, "read csv %s", name)
	}
	return tableFromRecords(name, records), nil
}

// ReadXLSX converts workbook sheets to tables. An empty sheet name converts
// every sheet in workbook order; a named sheet must exist.
func ReadXLSX(name string, r io.Reader, sheet string) ([]Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.Wrapf(err, "open workbook %s", name)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if sheet != "" {
		if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
			return nil, errors.Errorf("workbook %s has no sheet %q (sheets: %s)", name, sheet, strings.Join(sheets, ", "))
		}
		sheets = []string{sheet}
	}

	tables := make([]Table, 0, len(sheets))
	for _, s := range sheets {
		rows, err := f.GetRows(s)
		if err != nil {
			return nil, errors.Wrapf(err, "read sheet %s", s)
		}
		tables = append(tables, tableFromRecords(name+":"+s, rows))
	}
	return tables, nil
}

// ReadFile opens path and converts it with Read.
func ReadFile(path string, sheet string) ([]Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open import file")
	}
	defer f.Close()

	return Read(filepath.Base(path), f, sheet)
}

// Read picks the reader from the extension of name. sheet only applies to
// workbooks.
func Read(name string, r io.Reader, sheet string) ([]Table, error) {
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv", ".txt":
		t, err := ReadCSV(name, r)
		if err != nil {
			return nil, err
		}
		return []Table{t}, nil
	case ".xlsx", ".xlsm":
		return ReadXLSX(name, r, sheet)
	default:
		return nil, errors.Errorf("unsupported import file type %q", ext)
	}
}

func (t Table) hasHeader() bool {
	return !isEmptyRow(t.Header)
}

// tableFromRecords takes the first non-blank record as the header.
func tableFromRecords(name string, records [][]string) Table {
	for i, rec := range records {
		if isEmptyRow(rec) {
			continue
		}
		return Table{
			Name:       name,
			Header:     rec,
			Rows:       records[i+1:],
			HeaderLine: i + 1,
		}
	}
	return Table{Name: name}
}
