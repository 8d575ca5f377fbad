// Package xlsx stores transactions in a single spreadsheet file.
//
// The workbook has one sheet with a header row (date, description, amount,
// category) and one row per transaction. Every Save rewrites the file.
package xlsx

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"pfm/internal/core"
	pfmlog "pfm/internal/log"
	ports "pfm/internal/sheets"
)

// SheetName is the sheet written by Save and Encode.
const SheetName = "Sheet1"

// ContentType is the MIME type of the encoded workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Store is a TransactionStore backed by one .xlsx file.
type Store struct {
	path string
}

var _ ports.TransactionStore = (*Store)(nil)

// New returns a Store for the file at path. The file is not touched until
// the first Load or Save.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads every transaction from the backing file. A missing file is an
// empty data set; a file that cannot be parsed is an error.
func (s *Store) Load(ctx context.Context) ([]core.Transaction, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		slog.DebugContext(ctx, "Transactions file not found, starting empty", pfmlog.FieldComponent, pfmlog.ComponentSheets, "path", s.path)
		return []core.Transaction{}, nil
	}
	txs, err := ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", s.path, err)
	}
	return txs, nil
}

// Save overwrites the backing file with txs.
func (s *Store) Save(ctx context.Context, txs []core.Transaction) error {
	f, err := build(txs)
	if err != nil {
		return err
	}
	defer f.Close()

	if dir := filepath.Dir(s.path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save %s: %w", s.path, err)
	}
	slog.DebugContext(ctx, "Transactions file written", pfmlog.FieldComponent, pfmlog.ComponentSheets, "path", s.path, "count", len(txs))
	return nil
}

// Encode writes txs as an .xlsx workbook to w.
func Encode(w io.Writer, txs []core.Transaction) error {
	f, err := build(txs)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("encode workbook: %w", err)
	}
	return nil
}

// Decode reads transactions from the first sheet of an .xlsx workbook.
func Decode(r io.Reader) ([]core.Transaction, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformed, err)
	}
	defer f.Close()
	return readFirstSheet(f)
}

// ReadFile reads transactions from a spreadsheet file. Files ending in .xls
// are read with the legacy BIFF reader; anything else is opened as .xlsx.
func ReadFile(path string) ([]core.Transaction, error) {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return readLegacy(path)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformed, err)
	}
	defer f.Close()
	return readFirstSheet(f)
}

func readFirstSheet(f *excelize.File) ([]core.Transaction, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return []core.Transaction{}, nil
	}
	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", ports.ErrMalformed, sheets[0], err)
	}
	return ports.ParseRows(rows, 0)
}

// readLegacy reads a pre-2007 .xls workbook. Legacy files are import-only;
// Save always writes .xlsx.
func readLegacy(path string) ([]core.Transaction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrMalformed, err)
	}
	return ports.ParseRows(wb.ReadAllCells(1_000_000), 0)
}

func build(txs []core.Transaction) (*excelize.File, error) {
	f := excelize.NewFile()
	header := make([]interface{}, len(ports.Header))
	for i, h := range ports.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, t := range txs {
		cellRef, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []interface{}{t.Date, t.Description, ports.AmountCell(t.Amount), t.Category}
		if err := f.SetSheetRow(SheetName, cellRef, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	return f, nil
}
