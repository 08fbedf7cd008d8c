package catalog

import (
	"fmt"
	"strconv"

	"github.com/xuri/excelize/v2"
)

// readXLSXRows returns the cells of the first sheet as strings.
func readXLSXRows(path string) ([][]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("xlsx has no sheets")
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}

// writeXLSXRows writes rows to the first sheet. Numeric cells are stored as numbers.
func writeXLSXRows(path string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		values := make([]interface{}, len(row))
		for j, v := range row {
			if n, err := strconv.ParseFloat(v, 64); err == nil && i > 0 {
				values[j] = n
			} else {
				values[j] = v
			}
		}
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return f.SaveAs(path)
}
