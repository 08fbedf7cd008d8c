// Package storage persists the meal ledger, either as a CSV flat file or in
// SQLite.
package storage

import (
	"fmt"
	"math"
	"strings"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

const (
	BackendCSV    = "csv"
	BackendSQLite = "sqlite"
)

// Backend is a ledger repository that owns an underlying resource.
type Backend interface {
	Load() ([]models.MealEntry, error)
	Save(entries []models.MealEntry) error
	Close() error
}

// Open returns the backend named by kind, rooted at path.
func Open(kind, path string, log *logger.Logger) (Backend, error) {
	switch strings.ToLower(kind) {
	case "", BackendCSV:
		s, err := NewCSVStorage(path, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	case BackendSQLite:
		s, err := NewSQLiteStorage(path, log)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}

// checkAmounts rejects stored entries whose numbers could not have come from
// the ledger: grams must be positive and every value finite and non-negative.
func checkAmounts(e models.MealEntry) error {
	if !(e.Grams > 0) || math.IsInf(e.Grams, 0) {
		return fmt.Errorf("invalid grams %g", e.Grams)
	}
	values := []struct {
		name string
		v    float64
	}{
		{"energy_kcal", e.EnergyKcal},
		{"protein_g", e.ProteinG},
		{"carb_g", e.CarbG},
		{"fat_g", e.FatG},
	}
	for _, f := range values {
		if math.IsNaN(f.v) || math.IsInf(f.v, 0) || f.v < 0 {
			return fmt.Errorf("invalid %s %g", f.name, f.v)
		}
	}
	return nil
}
