package google

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/iunoo/bot-autoinput-npwpktp/internal/infrastructure/resilience"
)

// SheetStore appends records to tabs of a single spreadsheet.
type SheetStore struct {
	svc           *sheets.Service
	spreadsheetID string
	executor      *resilience.Executor
}

func NewSheetStore(ctx context.Context, spreadsheetID string, executor *resilience.Executor, opts ...option.ClientOption) (*SheetStore, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return &SheetStore{svc: svc, spreadsheetID: spreadsheetID, executor: executor}, nil
}

func (s *SheetStore) AppendRow(ctx context.Context, sheet string, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	body := &sheets.ValueRange{Values: [][]interface{}{values}}

	return runOnce(ctx, s.executor, "sheets_append", func(ctx context.Context) error {
		resp, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, sheetRange(sheet, "A1"), body).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		if err != nil {
			return classifyAPIError("sheets append", err)
		}
		if resp.Updates != nil {
			slog.Debug("sheets_row_appended", "sheet", sheet, "updated_cells", resp.Updates.UpdatedCells)
		}
		return nil
	})
}

// FindRows scans whole columns; the sheets are small enough for that.
func (s *SheetStore) FindRows(ctx context.Context, sheet string, columns []string, tokens []string) (bool, error) {
	if len(tokens) == 0 || len(columns) == 0 {
		return false, nil
	}
	ranges := make([]string, len(columns))
	for i, col := range columns {
		ranges[i] = sheetRange(sheet, col+":"+col)
	}

	var resp *sheets.BatchGetValuesResponse
	err := run(ctx, s.executor, "sheets_batch_get", func(ctx context.Context) error {
		var err error
		resp, err = s.svc.Spreadsheets.Values.BatchGet(s.spreadsheetID).Ranges(ranges...).Context(ctx).Do()
		if err != nil {
			return classifyAPIError("sheets batch get", err)
		}
		return nil
	})
	if err != nil {
		return false, err
	}

	wanted := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		wanted[token] = struct{}{}
	}
	for _, vr := range resp.ValueRanges {
		for _, row := range vr.Values {
			if len(row) == 0 {
				continue
			}
			cell := strings.TrimSpace(fmt.Sprint(row[0]))
			if _, ok := wanted[cell]; ok && cell != "" {
				slog.Warn("sheets_duplicate_cell", "sheet", sheet, "range", vr.Range)
				return true, nil
			}
		}
	}
	return false, nil
}

func sheetRange(sheet, cells string) string {
	return "'" + strings.ReplaceAll(sheet, "'", "''") + "'!" + cells
}
