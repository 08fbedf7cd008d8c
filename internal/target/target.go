// Package target computes the daily energy target from a profile and the
// day's progress against it.
package target

import (
	"math"

	"github.com/shopspring/decimal"

	"diet-ledger/internal/models"
)

// FloorKcal is the lowest daily target ever returned.
const FloorKcal = 1200

type GoalPreset struct {
	Name      string  `json:"name"`
	DeltaKcal float64 `json:"delta_kcal"`
}

var GoalPresets = []GoalPreset{
	{Name: "lose", DeltaKcal: -500},
	{Name: "maintain", DeltaKcal: 0},
	{Name: "gain", DeltaKcal: 300},
}

// BMR is the Mifflin-St Jeor basal metabolic rate in kcal/day.
func BMR(p models.Profile) float64 {
	s := -161.0
	if p.Sex == models.Male {
		s = 5
	}
	return 10*p.WeightKg + 6.25*p.HeightCm - 5*p.AgeYears + s
}

// TEE scales BMR by the activity multiplier.
func TEE(p models.Profile) float64 {
	return BMR(p) * p.ActivityMultiplier
}

// Daily is TEE plus the goal delta, never below FloorKcal.
func Daily(p models.Profile) float64 {
	return math.Max(FloorKcal, TEE(p)+p.GoalDeltaKcal)
}

// Progress is energy/daily clamped to [0, 1].
func Progress(energyKcal, dailyKcal float64) float64 {
	if dailyKcal <= 0 || math.IsNaN(energyKcal) {
		return 0
	}
	r := energyKcal / dailyKcal
	return math.Min(1, math.Max(0, r))
}

// Summary bundles the target figures for display.
type Summary struct {
	BMR       float64 `json:"bmr_kcal"`
	TEE       float64 `json:"tee_kcal"`
	DailyKcal float64 `json:"daily_target_kcal"`
}

func Summarize(p models.Profile) Summary {
	return Summary{BMR: BMR(p), TEE: TEE(p), DailyKcal: Daily(p)}
}

// MacroSplit returns each macro's share of total macro grams, rounded to
// one decimal. All zero when the day has no macros.
func MacroSplit(t models.Totals) models.MacroSplit {
	protein, carb, fat := finite(t.ProteinG), finite(t.CarbG), finite(t.FatG)
	total := protein.Add(carb).Add(fat)
	if !total.IsPositive() {
		return models.MacroSplit{}
	}
	hundred := decimal.NewFromInt(100)
	pct := func(v decimal.Decimal) float64 {
		return v.Mul(hundred).Div(total).Round(1).InexactFloat64()
	}
	return models.MacroSplit{
		ProteinPct: pct(protein),
		CarbPct:    pct(carb),
		FatPct:     pct(fat),
	}
}

func finite(v float64) decimal.Decimal {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(v)
}
