package catalog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"diet-ledger/internal/models"
)

var builtinFoods = []models.FoodReference{
	{Name: "Armut", EnergyKcal: 57, ProteinG: 0.4, CarbG: 15, FatG: 0.2},
	{Name: "Ayva", EnergyKcal: 57, ProteinG: 0.4, CarbG: 15, FatG: 0.1},
	{Name: "Badem", EnergyKcal: 579, ProteinG: 21, CarbG: 22, FatG: 50},
	{Name: "Bal", EnergyKcal: 304, ProteinG: 0.3, CarbG: 82, FatG: 0},
	{Name: "Somon", EnergyKcal: 208, ProteinG: 20, CarbG: 0, FatG: 13},
	{Name: "Tavuk Göğsü", EnergyKcal: 165, ProteinG: 31, CarbG: 0, FatG: 3.6},
	{Name: "Pirinç (pişmiş)", EnergyKcal: 130, ProteinG: 2.7, CarbG: 28, FatG: 0.3},
	{Name: "Ekmek (beyaz)", EnergyKcal: 265, ProteinG: 9, CarbG: 49, FatG: 3.2},
	{Name: "Yumurta", EnergyKcal: 155, ProteinG: 13, CarbG: 1.1, FatG: 11},
	{Name: "Yoğurt (light)", EnergyKcal: 59, ProteinG: 10, CarbG: 3.6, FatG: 0.4},
}

// Builtin returns the seed table.
func Builtin() []models.FoodReference {
	out := make([]models.FoodReference, len(builtinFoods))
	copy(out, builtinFoods)
	return out
}

// Seed writes the built-in table to path as CSV or XLSX.
func Seed(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	rows := [][]string{RequiredColumns}
	for _, f := range builtinFoods {
		rows = append(rows, []string{f.Name, ftoa(f.EnergyKcal), ftoa(f.ProteinG), ftoa(f.CarbG), ftoa(f.FatG)})
	}

	if isXLSX(path) {
		return writeXLSXRows(path, rows)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(file)
	if err := w.WriteAll(rows); err != nil {
		file.Close()
		return fmt.Errorf("write csv: %w", err)
	}
	return file.Close()
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
