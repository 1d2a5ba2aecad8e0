package xlsx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/xuri/excelize/v2"
)

// Header is written as the first row of every new sheet.
var Header = []string{
	"Jenis Dokumen",
	"Nama Toko",
	"Keterangan",
	"Jenis ID Pembeli",
	"Nomor Dokumen Pembeli",
	"NPWP 15",
	"NPWP 16 / NIK",
	"ID TKU",
	"Nama",
	"Alamat",
}

// Store is a RecordStore backed by a single workbook on disk. The file is
// reopened for every call so edits made in a spreadsheet app are seen.
type Store struct {
	mu   sync.Mutex
	path string
}

func New(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("workbook path is required")
	}
	return &Store{path: path}, nil
}

func (s *Store) AppendRow(_ context.Context, sheet string, row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	if err := ensureSheet(f, sheet); err != nil {
		return err
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	next := len(rows) + 1
	if err := writeRow(f, sheet, next, row); err != nil {
		return err
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	slog.Debug("xlsx_row_appended", "sheet", sheet, "row", next)
	return nil
}

func (s *Store) FindRows(_ context.Context, sheet string, columns []string, tokens []string) (bool, error) {
	if len(tokens) == 0 {
		return false, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	f, err := s.open()
	if err != nil {
		return false, err
	}
	defer f.Close()

	if idx, _ := f.GetSheetIndex(sheet); idx == -1 {
		return false, nil
	}
	indexes := make([]int, 0, len(columns))
	for _, col := range columns {
		n, err := excelize.ColumnNameToNumber(col)
		if err != nil {
			return false, fmt.Errorf("column %q: %w", col, err)
		}
		indexes = append(indexes, n-1)
	}
	wanted := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		wanted[token] = struct{}{}
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return false, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	for _, row := range rows {
		for _, i := range indexes {
			if i >= len(row) {
				continue
			}
			cell := strings.TrimSpace(row[i])
			if _, ok := wanted[cell]; ok && cell != "" {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *Store) open() (*excelize.File, error) {
	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	f, err := excelize.OpenFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	return f, nil
}

func ensureSheet(f *excelize.File, sheet string) error {
	if idx, _ := f.GetSheetIndex(sheet); idx != -1 {
		return nil
	}
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("create sheet %s: %w", sheet, err)
	}
	// a fresh workbook carries an unused default sheet
	if f.SheetCount == 2 {
		if idx, _ := f.GetSheetIndex("Sheet1"); idx != -1 {
			if rows, _ := f.GetRows("Sheet1"); len(rows) == 0 {
				_ = f.DeleteSheet("Sheet1")
			}
		}
	}
	if err := writeRow(f, sheet, 1, Header); err != nil {
		return err
	}
	_ = f.SetColWidth(sheet, "I", "I", 28)
	_ = f.SetColWidth(sheet, "J", "J", 48)
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("write row %d: %w", row, err)
	}
	return nil
}
