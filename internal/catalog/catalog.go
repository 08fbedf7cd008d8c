// Package catalog loads the per-100g food reference table and answers
// lookups against it. A Catalog is read-only once loaded.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

// Required header names, in canonical order.
const (
	ColName    = "name"
	ColEnergy  = "energy_kcal_per_100g"
	ColProtein = "protein_g_per_100g"
	ColCarb    = "carb_g_per_100g"
	ColFat     = "fat_g_per_100g"
)

var RequiredColumns = []string{ColName, ColEnergy, ColProtein, ColCarb, ColFat}

type Options struct {
	// Strict rejects non-numeric or negative cells. When false they load as zero.
	Strict bool
}

type Catalog struct {
	foods []models.FoodReference
	index map[string]int
}

// Lookup returns the reference for name or an ErrUnknownFood error.
func (c *Catalog) Lookup(name string) (models.FoodReference, error) {
	i, ok := c.index[strings.TrimSpace(name)]
	if !ok {
		return models.FoodReference{}, fmt.Errorf("%w: %q", models.ErrUnknownFood, name)
	}
	return c.foods[i], nil
}

// List returns the foods in source order.
func (c *Catalog) List() []models.FoodReference {
	out := make([]models.FoodReference, len(c.foods))
	copy(out, c.foods)
	return out
}

func (c *Catalog) Len() int {
	return len(c.foods)
}

// New builds a catalog from already-parsed references.
func New(foods []models.FoodReference) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int, len(foods))}
	for _, f := range foods {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, fmt.Errorf("%w: empty food name", models.ErrCatalogFormat)
		}
		if _, dup := c.index[f.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate food name %q", models.ErrCatalogFormat, f.Name)
		}
		c.index[f.Name] = len(c.foods)
		c.foods = append(c.foods, f)
	}
	return c, nil
}

// LoadOrSeed writes the built-in table to path when the file is missing and
// then loads it.
func LoadOrSeed(path string, opts Options, log *logger.Logger) (*Catalog, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		log.Info("catalog %s not found, seeding %d built-in foods", path, len(builtinFoods))
		if err := Seed(path); err != nil {
			return nil, fmt.Errorf("%w: seed %s: %v", models.ErrCatalogLoad, path, err)
		}
	}
	return Load(path, opts, log)
}

// Load reads a CSV or XLSX catalog, chosen by file extension.
func Load(path string, opts Options, log *logger.Logger) (*Catalog, error) {
	rows, err := readRows(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrCatalogLoad, err)
	}

	c, err := parseRows(rows, opts, log)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	log.Info("loaded %d foods from %s", c.Len(), path)
	return c, nil
}

func readRows(path string) ([][]string, error) {
	if isXLSX(path) {
		return readXLSXRows(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readCSVRows(f)
}

func readCSVRows(r io.Reader) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	return rows, nil
}

func isXLSX(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".xlsx")
}

func parseRows(rows [][]string, opts Options, log *logger.Logger) (*Catalog, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: empty file, no header row", models.ErrCatalogLoad)
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		cols[h] = i
	}
	var missing []string
	for _, name := range RequiredColumns {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing required columns %s", models.ErrCatalogLoad, strings.Join(missing, ", "))
	}

	var foods []models.FoodReference
	for n, row := range rows[1:] {
		line := n + 2
		name := cell(row, cols[ColName])
		if name == "" {
			if isBlank(row) {
				continue
			}
			return nil, fmt.Errorf("%w: line %d: empty name", models.ErrCatalogFormat, line)
		}

		ref := models.FoodReference{Name: name}
		targets := []struct {
			col string
			dst *float64
		}{
			{ColEnergy, &ref.EnergyKcal},
			{ColProtein, &ref.ProteinG},
			{ColCarb, &ref.CarbG},
			{ColFat, &ref.FatG},
		}
		for _, t := range targets {
			raw := cell(row, cols[t.col])
			v, err := parseAmount(raw)
			if err != nil {
				if opts.Strict {
					return nil, fmt.Errorf("%w: line %d, %s=%q: %v", models.ErrCatalogFormat, line, t.col, raw, err)
				}
				log.Warn("catalog line %d: %s=%q treated as 0 (%v)", line, t.col, raw, err)
				v = 0
			}
			*t.dst = v
		}
		foods = append(foods, ref)
	}

	return New(foods)
}

func parseAmount(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("empty value")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("not a number")
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, errors.New("not a finite number")
	}
	if v < 0 {
		return 0, errors.New("negative value")
	}
	return v, nil
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
