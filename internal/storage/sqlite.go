// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

// SQLiteStorage keeps the ledger in a meal_entries table. Save replaces the
// table contents in one transaction, matching the flat-file semantics.
type SQLiteStorage struct {
	db  *sql.DB
	log *logger.Logger
}

func NewSQLiteStorage(dbPath string, log *logger.Logger) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	storage := &SQLiteStorage{db: db, log: log}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS meal_entries (
        id TEXT PRIMARY KEY,
        position INTEGER NOT NULL,
        date TEXT NOT NULL,
        meal_slot TEXT NOT NULL,
        food_name TEXT NOT NULL,
        grams REAL NOT NULL,
        energy_kcal REAL NOT NULL,
        protein_g REAL NOT NULL,
        carb_g REAL NOT NULL,
        fat_g REAL NOT NULL
    );

    CREATE INDEX IF NOT EXISTS idx_meal_entries_date ON meal_entries(date);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

func (s *SQLiteStorage) Save(entries []models.MealEntry) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM meal_entries`); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}

	entryQuery := `
        INSERT INTO meal_entries (id, position, date, meal_slot, food_name, grams, energy_kcal, protein_g, carb_g, fat_g)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for i, e := range entries {
		_, err = tx.Exec(entryQuery,
			e.ID, i, e.Date, string(e.MealSlot), e.FoodName,
			e.Grams, e.EnergyKcal, e.ProteinG, e.CarbG, e.FatG)
		if err != nil {
			return fmt.Errorf("failed to insert entry %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	s.log.Debug("stored %d entries in sqlite", len(entries))
	return nil
}

func (s *SQLiteStorage) Load() ([]models.MealEntry, error) {
	query := `
        SELECT id, date, meal_slot, food_name, grams, energy_kcal, protein_g, carb_g, fat_g
        FROM meal_entries
        ORDER BY position
    `

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query entries: %w", err)
	}
	defer rows.Close()

	var entries []models.MealEntry
	for rows.Next() {
		var e models.MealEntry
		var slotStr string

		err := rows.Scan(
			&e.ID, &e.Date, &slotStr, &e.FoodName,
			&e.Grams, &e.EnergyKcal, &e.ProteinG, &e.CarbG, &e.FatG)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		if e.MealSlot, err = models.ParseMealSlot(slotStr); err != nil {
			s.log.Warn("entry %s: %v, filing under %s", e.ID, err, models.Snack)
			e.MealSlot = models.Snack
		}
		if err := checkAmounts(e); err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}

	return entries, nil
}
