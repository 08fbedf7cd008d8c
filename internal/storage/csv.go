// internal/storage/csv.go
package storage

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

// Ledger file columns. id is optional on read.
var ledgerColumns = []string{
	"id", "date", "meal_slot", "food_name", "grams",
	"energy_kcal", "protein_g", "carb_g", "fat_g",
}

// CSVStorage keeps the ledger in a single flat file, rewritten in full on
// every save.
type CSVStorage struct {
	path string
	log  *logger.Logger
}

func NewCSVStorage(path string, log *logger.Logger) (*CSVStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %w", err)
	}
	return &CSVStorage{path: path, log: log}, nil
}

func (s *CSVStorage) Path() string {
	return s.path
}

func (s *CSVStorage) Close() error {
	return nil
}

func (s *CSVStorage) Load() ([]models.MealEntry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.log.Info("ledger file %s not found, starting empty", s.path)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger: %w", err)
	}
	defer f.Close()

	return s.decode(f)
}

func (s *CSVStorage) decode(r io.Reader) ([]models.MealEntry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	rows, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make(map[string]int)
	for i, h := range rows[0] {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, c := range ledgerColumns[1:] {
		if _, ok := cols[c]; !ok {
			return nil, fmt.Errorf("ledger file missing column %q", c)
		}
	}

	get := func(row []string, col string) string {
		i, ok := cols[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var entries []models.MealEntry
	for n, row := range rows[1:] {
		line := n + 2
		e := models.MealEntry{
			ID:       get(row, "id"),
			FoodName: get(row, "food_name"),
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}

		e.Date = get(row, "date")
		if _, err := time.Parse(models.DateLayout, e.Date); err != nil {
			return nil, fmt.Errorf("ledger line %d: invalid date %q", line, e.Date)
		}

		if e.MealSlot, err = models.ParseMealSlot(get(row, "meal_slot")); err != nil {
			s.log.Warn("ledger line %d: %v, filing under %s", line, err, models.Snack)
			e.MealSlot = models.Snack
		}

		fields := []struct {
			col string
			dst *float64
		}{
			{"grams", &e.Grams},
			{"energy_kcal", &e.EnergyKcal},
			{"protein_g", &e.ProteinG},
			{"carb_g", &e.CarbG},
			{"fat_g", &e.FatG},
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(get(row, f.col), 64)
			if err != nil {
				return nil, fmt.Errorf("ledger line %d: invalid %s %q", line, f.col, get(row, f.col))
			}
			*f.dst = v
		}
		if err := checkAmounts(e); err != nil {
			return nil, fmt.Errorf("ledger line %d: %w", line, err)
		}
		entries = append(entries, e)
	}

	s.log.Debug("read %d ledger entries from %s", len(entries), s.path)
	return entries, nil
}

// Save rewrites the whole file through a temp file and rename.
func (s *CSVStorage) Save(entries []models.MealEntry) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(ledgerColumns); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, e := range entries {
		row := []string{
			e.ID, e.Date, string(e.MealSlot), e.FoodName, ftoa(e.Grams),
			ftoa(e.EnergyKcal), ftoa(e.ProteinG), ftoa(e.CarbG), ftoa(e.FatG),
		}
		if err := w.Write(row); err != nil {
			tmp.Close()
			return fmt.Errorf("failed to write entry %s: %w", e.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to flush ledger: %w", err)
	}

	info, statErr := tmp.Stat()
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	if statErr == nil {
		s.log.Debug("wrote %d entries to %s (%s)", len(entries), s.path, humanize.Bytes(uint64(info.Size())))
	}
	return nil
}

func ftoa(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
