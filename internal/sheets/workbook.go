package sheets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/xuri/excelize/v2"
)

// WorkbookStore keeps sheets as worksheets of an xlsx workbook. Row 1 of each
// worksheet holds the column names; cells are read back as text.
type WorkbookStore struct {
	path string
	mu   sync.Mutex
}

// NewWorkbookStore constructs a store over the workbook at path. The file is
// created on first write when missing.
func NewWorkbookStore(path string) *WorkbookStore {
	return &WorkbookStore{path: path}
}

// Fetch reads every data row of the worksheet.
func (s *WorkbookStore) Fetch(ctx context.Context, sheet Sheet) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !sheet.Valid() {
		return nil, ErrUnknownSheet
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(string(sheet))
	if err != nil {
		return nil, fmt.Errorf("sheets: workbook index %s: %w", sheet, err)
	}
	if idx == -1 {
		return nil, nil
	}
	cells, err := f.GetRows(string(sheet))
	if err != nil {
		return nil, fmt.Errorf("sheets: workbook rows %s: %w", sheet, err)
	}
	if len(cells) == 0 {
		return nil, nil
	}
	header := cells[0]
	out := make([]Row, 0, len(cells)-1)
	for _, line := range cells[1:] {
		row := Row{}
		for col, name := range header {
			if name == "" {
				continue
			}
			value := ""
			if col < len(line) {
				value = line[col]
			}
			row[name] = value
		}
		out = append(out, row)
	}
	return out, nil
}

// Post applies the batch and saves the workbook.
func (s *WorkbookStore) Post(ctx context.Context, sheet Sheet, mode Mode, rows []Row) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkPost(sheet, mode, rows); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := s.open()
	if err != nil {
		return err
	}
	defer f.Close()

	name := string(sheet)
	idx, err := f.GetSheetIndex(name)
	if err != nil {
		return fmt.Errorf("sheets: workbook index %s: %w", sheet, err)
	}
	if idx == -1 {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("sheets: workbook new sheet %s: %w", sheet, err)
		}
	}
	cells, err := f.GetRows(name)
	if err != nil {
		return fmt.Errorf("sheets: workbook rows %s: %w", sheet, err)
	}
	var header []string
	if len(cells) > 0 {
		header = cells[0]
	}
	columns := make(map[string]int, len(header))
	for i, h := range header {
		columns[h] = i
	}
	ensureColumn := func(field string) (int, error) {
		if col, ok := columns[field]; ok {
			return col, nil
		}
		col := len(header)
		header = append(header, field)
		columns[field] = col
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return 0, err
		}
		return col, f.SetCellValue(name, cell, field)
	}

	switch mode {
	case ModeInsert:
		next := len(cells) + 1
		if next == 1 {
			next = 2
		}
		for _, row := range rows {
			for _, field := range orderedFields(sheet, row) {
				col, err := ensureColumn(field)
				if err != nil {
					return fmt.Errorf("sheets: workbook header %s: %w", sheet, err)
				}
				cell, err := excelize.CoordinatesToCellName(col+1, next)
				if err != nil {
					return err
				}
				if err := f.SetCellValue(name, cell, row[field]); err != nil {
					return fmt.Errorf("sheets: workbook write %s: %w", sheet, err)
				}
			}
			next++
		}
	case ModeUpdate:
		keyCol, ok := columns[sheet.KeyField()]
		if !ok {
			return fmt.Errorf("%w: %s has no %s column", ErrRowNotFound, sheet, sheet.KeyField())
		}
		for _, patch := range rows {
			key := patch.Key(sheet)
			matched := false
			for i, line := range cells[1:] {
				if keyCol >= len(line) || line[keyCol] != key {
					continue
				}
				matched = true
				for field, value := range patch {
					col, err := ensureColumn(field)
					if err != nil {
						return fmt.Errorf("sheets: workbook header %s: %w", sheet, err)
					}
					cell, err := excelize.CoordinatesToCellName(col+1, i+2)
					if err != nil {
						return err
					}
					if err := f.SetCellValue(name, cell, value); err != nil {
						return fmt.Errorf("sheets: workbook write %s: %w", sheet, err)
					}
				}
			}
			if !matched {
				return fmt.Errorf("%w: %s %s", ErrRowNotFound, sheet, key)
			}
		}
	}
	if err := f.SaveAs(s.path); err != nil {
		return fmt.Errorf("sheets: workbook save: %w", err)
	}
	return nil
}

func (s *WorkbookStore) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(s.path)
	if err == nil {
		return f, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return excelize.NewFile(), nil
	}
	return nil, fmt.Errorf("sheets: open workbook: %w", err)
}

// orderedFields puts the key column first so new worksheets read naturally.
func orderedFields(sheet Sheet, row Row) []string {
	key := sheet.KeyField()
	fields := make([]string, 0, len(row))
	if _, ok := row[key]; ok && key != "" {
		fields = append(fields, key)
	}
	rest := make([]string, 0, len(row))
	for field := range row {
		if field != key {
			rest = append(rest, field)
		}
	}
	sort.Strings(rest)
	return append(fields, rest...)
}
