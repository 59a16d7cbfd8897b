// Package export writes stored reports to a spreadsheet.
package export

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/chmdznr/fieldsync/internal/drafts"
	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/xuri/excelize/v2"
)

// SheetName is the worksheet holding one row per report.
const SheetName = "Respostas"

var fixedColumns = []string{"id", "form_id", "form_title", "status", "created_at", "photos"}

// Columns returns the header row for records: the fixed columns followed
// by every answer key, sorted.
func Columns(records []models.ResponseRecord) []string {
	keys := map[string]struct{}{}
	for _, r := range records {
		for k := range r.Answers {
			keys[k] = struct{}{}
		}
	}
	answerKeys := make([]string, 0, len(keys))
	for k := range keys {
		answerKeys = append(answerKeys, k)
	}
	sort.Strings(answerKeys)
	return append(append([]string{}, fixedColumns...), answerKeys...)
}

// WriteXLSX writes every record in store to path and returns the number
// of rows written.
func WriteXLSX(ctx context.Context, store *drafts.Store, path string) (int, error) {
	records := store.LoadAll(ctx)
	if err := Records(records, path); err != nil {
		return 0, err
	}
	return len(records), nil
}

// Records writes records to a new workbook at path.
func Records(records []models.ResponseRecord, path string) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	columns := Columns(records)
	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := recordRow(r, columns[len(fixedColumns):])
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write report %s: %w", r.ID, err)
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

func recordRow(r models.ResponseRecord, answerKeys []string) []any {
	photos := 0
	for _, list := range r.Photos {
		photos += len(list)
	}
	row := []any{
		r.ID,
		r.FormID,
		r.FormTitle,
		string(r.Status),
		drafts.ISOTimestamp(r.CreatedAt),
		photos,
	}
	for _, k := range answerKeys {
		row = append(row, cellValue(r.Answers[k]))
	}
	return row
}

func cellValue(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string, bool, float64, int:
		return t
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = fmt.Sprint(item)
		}
		return strings.Join(parts, ", ")
	case []string:
		return strings.Join(t, ", ")
	default:
		return fmt.Sprint(t)
	}
}
