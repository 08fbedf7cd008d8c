// internal/models/meal.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-date format used for ledger partitioning.
const DateLayout = "2006-01-02"

type MealSlot string

const (
	Morning MealSlot = "Morning"
	Noon    MealSlot = "Noon"
	Evening MealSlot = "Evening"
	Snack   MealSlot = "Snack"
)

// MealSlots lists the slots in display order.
var MealSlots = []MealSlot{Morning, Noon, Evening, Snack}

// legacy labels found in older log files
var slotAliases = map[string]MealSlot{
	"morning":   Morning,
	"breakfast": Morning,
	"sabah":     Morning,
	"kahvaltı":  Morning,
	"noon":      Noon,
	"lunch":     Noon,
	"öğle":      Noon,
	"evening":   Evening,
	"dinner":    Evening,
	"akşam":     Evening,
	"snack":     Snack,
	"ara öğün":  Snack,
}

func ParseMealSlot(s string) (MealSlot, error) {
	slot, ok := slotAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidMealSlot, s)
	}
	return slot, nil
}

// Order returns the display position of the slot, or len(MealSlots) if unknown.
func (m MealSlot) Order() int {
	for i, s := range MealSlots {
		if s == m {
			return i
		}
	}
	return len(MealSlots)
}

// ParseDate normalizes a YYYY-MM-DD string. "today" resolves against now.
func ParseDate(s string, now time.Time) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "today") {
		return now.Format(DateLayout), nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return t.Format(DateLayout), nil
}

// FoodReference holds nutrient quantities per 100 g of a food.
type FoodReference struct {
	Name       string  `json:"name"`
	EnergyKcal float64 `json:"energy_kcal_per_100g"`
	ProteinG   float64 `json:"protein_g_per_100g"`
	CarbG      float64 `json:"carb_g_per_100g"`
	FatG       float64 `json:"fat_g_per_100g"`
}

type MealEntry struct {
	ID         string   `json:"id"`
	Date       string   `json:"date"`
	MealSlot   MealSlot `json:"meal_slot"`
	FoodName   string   `json:"food_name"`
	Grams      float64  `json:"grams"`
	EnergyKcal float64  `json:"energy_kcal"`
	ProteinG   float64  `json:"protein_g"`
	CarbG      float64  `json:"carb_g"`
	FatG       float64  `json:"fat_g"`
}

// Totals is the field-wise sum of a set of entries.
type Totals struct {
	EnergyKcal float64 `json:"energy_kcal"`
	ProteinG   float64 `json:"protein_g"`
	CarbG      float64 `json:"carb_g"`
	FatG       float64 `json:"fat_g"`
}

// MacroSplit is the share of each macro in total macro grams, in percent.
type MacroSplit struct {
	ProteinPct float64 `json:"protein_pct"`
	CarbPct    float64 `json:"carb_pct"`
	FatPct     float64 `json:"fat_pct"`
}

type SlotGroup struct {
	MealSlot MealSlot    `json:"meal_slot"`
	Entries  []MealEntry `json:"entries"`
	Totals   Totals      `json:"totals"`
}

// Snapshot is the read-only view handed to the advisory service.
type Snapshot struct {
	Date       string      `json:"date"`
	Entries    []MealEntry `json:"entries"`
	Aggregate  Totals      `json:"aggregate"`
	Profile    Profile     `json:"profile"`
	TargetKcal float64     `json:"target_kcal"`
}
