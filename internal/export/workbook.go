// Package export writes regression samples and verdicts to spreadsheet
// workbooks for review outside the run log.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sheet is one worksheet: a header row followed by numeric rows.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]float64
}

// TextSheet is a worksheet of string cells, e.g. a summary table.
type TextSheet struct {
	Name   string
	Header []string
	Rows   [][]string
}

// maxSheetName is the Excel limit on worksheet names.
const maxSheetName = 31

// Workbook collects sheets and saves them as one .xlsx file.
type Workbook struct {
	f      *excelize.File
	sheets int
}

// NewWorkbook starts an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{f: excelize.NewFile()}
}

// AddSheet appends numeric data. The header row is frozen.
func (w *Workbook) AddSheet(s Sheet) error {
	rows := make([][]any, len(s.Rows))
	for i, r := range s.Rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = v
		}
		rows[i] = row
	}
	return w.add(s.Name, s.Header, rows)
}

// AddTextSheet appends string data.
func (w *Workbook) AddTextSheet(s TextSheet) error {
	rows := make([][]any, len(s.Rows))
	for i, r := range s.Rows {
		row := make([]any, len(r))
		for j, v := range r {
			row[j] = v
		}
		rows[i] = row
	}
	return w.add(s.Name, s.Header, rows)
}

func (w *Workbook) add(name string, header []string, rows [][]any) error {
	name = sheetName(name)
	if w.sheets == 0 {
		if err := w.f.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename first sheet: %w", err)
		}
	} else if _, err := w.f.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheets++

	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := w.f.SetSheetRow(name, "A1", &hdr); err != nil {
		return fmt.Errorf("sheet %s header: %w", name, err)
	}
	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.f.SetSheetRow(name, cell, &rows[i]); err != nil {
			return fmt.Errorf("sheet %s row %d: %w", name, i+1, err)
		}
	}
	return w.f.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})
}

// Save writes the workbook to path.
func (w *Workbook) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := w.f.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return w.f.Close()
}

// ReadSheet loads a numeric sheet written by AddSheet. Empty cells read as 0.
func ReadSheet(path, name string) (Sheet, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Sheet{}, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	name = sheetName(name)
	rows, err := f.GetRows(name)
	if err != nil {
		return Sheet{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	if len(rows) == 0 {
		return Sheet{}, fmt.Errorf("sheet %s is empty", name)
	}
	s := Sheet{Name: name, Header: rows[0]}
	for i, r := range rows[1:] {
		row := make([]float64, len(s.Header))
		for j := 0; j < len(r) && j < len(row); j++ {
			if strings.TrimSpace(r[j]) == "" {
				continue
			}
			if row[j], err = strconv.ParseFloat(r[j], 64); err != nil {
				return Sheet{}, fmt.Errorf("sheet %s row %d column %s: %w", name, i+1, s.Header[j], err)
			}
		}
		s.Rows = append(s.Rows, row)
	}
	return s, nil
}

func sheetName(s string) string {
	s = strings.NewReplacer("/", "_", "\\", "_", "?", "_", "*", "_", "[", "(", "]", ")", ":", "_").Replace(s)
	if len(s) > maxSheetName {
		s = s[:maxSheetName]
	}
	return s
}
