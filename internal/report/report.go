// Package report renders a day of the ledger as an XLSX workbook.
package report

import (
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"diet-ledger/internal/models"
	"diet-ledger/internal/target"
)

const (
	SheetEntries = "Meals"
	SheetSummary = "Summary"
)

// Day is everything the report shows for one date.
type Day struct {
	Date     string
	Entries  []models.MealEntry
	Totals   models.Totals
	Profile  models.Profile
	Target   target.Summary
	Progress float64
}

// Build creates the workbook. The caller owns the returned file and must Close it.
func Build(d Day) (*excelize.File, error) {
	f := excelize.NewFile()

	if err := f.SetSheetName("Sheet1", SheetEntries); err != nil {
		f.Close()
		return nil, err
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#E2E8F0"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		f.Close()
		return nil, err
	}
	numStyle, err := f.NewStyle(&excelize.Style{NumFmt: 2}) // 0.00
	if err != nil {
		f.Close()
		return nil, err
	}

	headers := []interface{}{"Meal", "Food", "Grams", "Energy (kcal)", "Protein (g)", "Carbohydrate (g)", "Fat (g)"}
	if err := f.SetSheetRow(SheetEntries, "A1", &headers); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetRowStyle(SheetEntries, 1, 1, headerStyle); err != nil {
		f.Close()
		return nil, err
	}

	for i, e := range d.Entries {
		row := []interface{}{string(e.MealSlot), e.FoodName, e.Grams, e.EnergyKcal, e.ProteinG, e.CarbG, e.FatG}
		if err := f.SetSheetRow(SheetEntries, fmt.Sprintf("A%d", i+2), &row); err != nil {
			f.Close()
			return nil, err
		}
	}
	totalRow := len(d.Entries) + 2
	totals := []interface{}{"Total", "", "", d.Totals.EnergyKcal, d.Totals.ProteinG, d.Totals.CarbG, d.Totals.FatG}
	if err := f.SetSheetRow(SheetEntries, fmt.Sprintf("A%d", totalRow), &totals); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetRowStyle(SheetEntries, totalRow, totalRow, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := f.SetCellStyle(SheetEntries, "D2", fmt.Sprintf("G%d", totalRow), numStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := setColWidths(f, SheetEntries, map[string]float64{"A": 12, "B": 24, "C:G": 16}); err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.NewSheet(SheetSummary); err != nil {
		f.Close()
		return nil, err
	}
	p := d.Profile
	summary := [][]interface{}{
		{"Field", "Value"},
		{"Date", d.Date},
		{"Height (cm)", p.HeightCm},
		{"Weight (kg)", p.WeightKg},
		{"Age", p.AgeYears},
		{"Sex", string(p.Sex)},
		{"Activity multiplier", p.ActivityMultiplier},
		{"Goal delta (kcal/day)", p.GoalDeltaKcal},
		{"BMR (kcal)", round0(d.Target.BMR)},
		{"TEE (kcal)", round0(d.Target.TEE)},
		{"Daily target (kcal)", round0(d.Target.DailyKcal)},
		{"Energy eaten (kcal)", d.Totals.EnergyKcal},
		{"Progress", fmt.Sprintf("%.0f%%", d.Progress*100)},
	}
	for i, row := range summary {
		r := row
		if err := f.SetSheetRow(SheetSummary, fmt.Sprintf("A%d", i+1), &r); err != nil {
			f.Close()
			return nil, err
		}
	}
	if err := f.SetRowStyle(SheetSummary, 1, 1, headerStyle); err != nil {
		f.Close()
		return nil, err
	}
	if err := setColWidths(f, SheetSummary, map[string]float64{"A": 24, "B": 16}); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// FileName is the download name for a day's report.
func FileName(date string) string {
	return fmt.Sprintf("daily_report_%s.xlsx", date)
}

// setColWidths takes "A" or "C:G" style column ranges.
func setColWidths(f *excelize.File, sheet string, widths map[string]float64) error {
	for cols, w := range widths {
		start, end, found := strings.Cut(cols, ":")
		if !found {
			end = start
		}
		if err := f.SetColWidth(sheet, start, end, w); err != nil {
			return fmt.Errorf("set width of %s!%s: %w", sheet, cols, err)
		}
	}
	return nil
}

func round0(v float64) float64 {
	return float64(int64(v + 0.5))
}
