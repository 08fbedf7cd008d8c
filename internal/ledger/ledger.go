// Package ledger holds the day-partitioned log of meal entries. Every
// mutation is written through to a Repository; the in-memory log stays
// authoritative when a write fails.
package ledger

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

// FoodLookup resolves a food name to its per-100g reference.
type FoodLookup interface {
	Lookup(name string) (models.FoodReference, error)
}

// Repository persists the full entry list. Save replaces whatever was stored.
type Repository interface {
	Load() ([]models.MealEntry, error)
	Save(entries []models.MealEntry) error
}

type Store struct {
	mu      sync.RWMutex
	entries []models.MealEntry
	foods   FoodLookup
	repo    Repository
	log     *logger.Logger
}

// Open loads previously persisted entries and returns a ready store.
func Open(foods FoodLookup, repo Repository, log *logger.Logger) (*Store, error) {
	entries, err := repo.Load()
	if err != nil {
		return nil, fmt.Errorf("load ledger: %w", err)
	}
	log.Info("ledger opened with %d entries", len(entries))
	return &Store{
		entries: entries,
		foods:   foods,
		repo:    repo,
		log:     log,
	}, nil
}

// Add appends a new entry with nutrients derived from the catalog.
// A returned ErrPersistence error still means the entry was added.
func (s *Store) Add(slot models.MealSlot, date, foodName string, grams float64) (models.MealEntry, error) {
	if err := validateSlot(slot); err != nil {
		return models.MealEntry{}, err
	}
	if err := validateDate(date); err != nil {
		return models.MealEntry{}, err
	}
	if err := validateGrams(grams); err != nil {
		return models.MealEntry{}, err
	}
	ref, err := s.foods.Lookup(foodName)
	if err != nil {
		return models.MealEntry{}, err
	}

	entry := models.MealEntry{
		ID:       uuid.NewString(),
		Date:     date,
		MealSlot: slot,
		FoodName: ref.Name,
		Grams:    grams,
	}
	applyNutrients(&entry, ref)
	if err := checkNutrients(entry); err != nil {
		return models.MealEntry{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.log.Debug("added %s %s %gg to %s (%.2f kcal)", entry.MealSlot, entry.FoodName, grams, date, entry.EnergyKcal)
	return entry, s.persist()
}

// Edit changes the slot and/or gram amount of an entry. Nutrients are
// re-derived from the current catalog only when grams change.
func (s *Store) Edit(id string, slot *models.MealSlot, grams *float64) (models.MealEntry, error) {
	if slot != nil {
		if err := validateSlot(*slot); err != nil {
			return models.MealEntry{}, err
		}
	}
	if grams != nil {
		if err := validateGrams(*grams); err != nil {
			return models.MealEntry{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.MealEntry{}, fmt.Errorf("%w: %s", models.ErrEntryNotFound, id)
	}
	entry := s.entries[i]

	if grams != nil && *grams != entry.Grams {
		ref, err := s.foods.Lookup(entry.FoodName)
		if err != nil {
			return models.MealEntry{}, err
		}
		entry.Grams = *grams
		applyNutrients(&entry, ref)
		if err := checkNutrients(entry); err != nil {
			return models.MealEntry{}, err
		}
	}
	if slot != nil {
		entry.MealSlot = *slot
	}

	s.entries[i] = entry
	s.log.Debug("edited entry %s: %s %gg", id, entry.MealSlot, entry.Grams)
	return entry, s.persist()
}

// Delete removes the entries with the given ids. Unknown ids are ignored.
func (s *Store) Delete(ids ...string) (int, error) {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.filter(func(e models.MealEntry) bool {
		_, ok := drop[e.ID]
		return ok
	})
	if removed == 0 {
		return 0, nil
	}
	s.log.Debug("deleted %d entries", removed)
	return removed, s.persist()
}

// ClearDay removes every entry for date.
func (s *Store) ClearDay(date string) (int, error) {
	if err := validateDate(date); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := s.filter(func(e models.MealEntry) bool { return e.Date == date })
	if removed == 0 {
		return 0, nil
	}
	s.log.Info("cleared %d entries for %s", removed, date)
	return removed, s.persist()
}

func (s *Store) Get(id string) (models.MealEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return models.MealEntry{}, fmt.Errorf("%w: %s", models.ErrEntryNotFound, id)
	}
	return s.entries[i], nil
}

// Entries returns the entries for date in insertion order.
func (s *Store) Entries(date string) []models.MealEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.MealEntry{}
	for _, e := range s.entries {
		if e.Date == date {
			out = append(out, e)
		}
	}
	return out
}

// All returns every entry across all dates.
func (s *Store) All() []models.MealEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MealEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Aggregate sums the nutrients of all entries for date. It is recomputed on
// every call.
func (s *Store) Aggregate(date string) models.Totals {
	return Sum(s.Entries(date))
}

// BySlot groups the day's entries under every meal slot, in slot order.
func (s *Store) BySlot(date string) []models.SlotGroup {
	entries := s.Entries(date)
	groups := make([]models.SlotGroup, 0, len(models.MealSlots))
	for _, slot := range models.MealSlots {
		g := models.SlotGroup{MealSlot: slot, Entries: []models.MealEntry{}}
		for _, e := range entries {
			if e.MealSlot == slot {
				g.Entries = append(g.Entries, e)
			}
		}
		g.Totals = Sum(g.Entries)
		groups = append(groups, g)
	}
	return groups
}

// Sum adds the nutrient fields of entries using exact decimal arithmetic.
// Non-finite values count as zero.
func Sum(entries []models.MealEntry) models.Totals {
	var energy, protein, carb, fat decimal.Decimal
	for _, e := range entries {
		energy = energy.Add(toDecimal(e.EnergyKcal))
		protein = protein.Add(toDecimal(e.ProteinG))
		carb = carb.Add(toDecimal(e.CarbG))
		fat = fat.Add(toDecimal(e.FatG))
	}
	return models.Totals{
		EnergyKcal: energy.InexactFloat64(),
		ProteinG:   protein.InexactFloat64(),
		CarbG:      carb.InexactFloat64(),
		FatG:       fat.InexactFloat64(),
	}
}

// Scale returns per100 × grams / 100 rounded to two decimals.
func Scale(per100, grams float64) float64 {
	return decimal.NewFromFloat(per100).
		Mul(decimal.NewFromFloat(grams)).
		Div(decimal.NewFromInt(100)).
		Round(2).
		InexactFloat64()
}

func toDecimal(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}

// checkNutrients rejects amounts so large that a derived value overflows.
func checkNutrients(e models.MealEntry) error {
	for _, v := range []float64{e.EnergyKcal, e.ProteinG, e.CarbG, e.FatG} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %g g of %s overflows nutrient values", models.ErrInvalidGrams, e.Grams, e.FoodName)
		}
	}
	return nil
}

func applyNutrients(e *models.MealEntry, ref models.FoodReference) {
	e.EnergyKcal = Scale(ref.EnergyKcal, e.Grams)
	e.ProteinG = Scale(ref.ProteinG, e.Grams)
	e.CarbG = Scale(ref.CarbG, e.Grams)
	e.FatG = Scale(ref.FatG, e.Grams)
}

// filter drops entries matching drop and returns how many went. Caller holds mu.
func (s *Store) filter(drop func(models.MealEntry) bool) int {
	kept := s.entries[:0:0]
	for _, e := range s.entries {
		if !drop(e) {
			kept = append(kept, e)
		}
	}
	removed := len(s.entries) - len(kept)
	s.entries = kept
	return removed
}

func (s *Store) indexOf(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

// persist writes the full log. Caller holds mu.
func (s *Store) persist() error {
	snapshot := make([]models.MealEntry, len(s.entries))
	copy(snapshot, s.entries)
	if err := s.repo.Save(snapshot); err != nil {
		s.log.Error("persist ledger: %v", err)
		return fmt.Errorf("%w: %v", models.ErrPersistence, err)
	}
	return nil
}

func validateSlot(slot models.MealSlot) error {
	if slot.Order() >= len(models.MealSlots) {
		return fmt.Errorf("%w: %q", models.ErrInvalidMealSlot, slot)
	}
	return nil
}

func validateDate(date string) error {
	if _, err := time.Parse(models.DateLayout, date); err != nil {
		return fmt.Errorf("%w: %q", models.ErrInvalidDate, date)
	}
	return nil
}

func validateGrams(grams float64) error {
	if !(grams > 0) || math.IsInf(grams, 0) {
		return fmt.Errorf("%w: got %g", models.ErrInvalidGrams, grams)
	}
	return nil
}
