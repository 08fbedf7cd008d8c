// internal/models/profile.go
package models

import (
	"fmt"
	"strings"
)

type Sex string

const (
	Male   Sex = "Male"
	Female Sex = "Female"
)

func ParseSex(s string) (Sex, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "male", "m", "erkek":
		return Male, nil
	case "female", "f", "kadın":
		return Female, nil
	}
	return "", fmt.Errorf("%w: unknown sex %q", ErrInvalidProfile, s)
}

// ActivityLevel pairs a label with its TDEE multiplier.
type ActivityLevel struct {
	Name       string  `json:"name"`
	Multiplier float64 `json:"multiplier"`
}

// ActivityLevels runs from sedentary to very active.
var ActivityLevels = []ActivityLevel{
	{Name: "sedentary", Multiplier: 1.2},
	{Name: "light", Multiplier: 1.375},
	{Name: "moderate", Multiplier: 1.55},
	{Name: "active", Multiplier: 1.725},
	{Name: "very_active", Multiplier: 1.9},
}

type Profile struct {
	HeightCm           float64 `json:"height_cm" toml:"height_cm"`
	WeightKg           float64 `json:"weight_kg" toml:"weight_kg"`
	AgeYears           float64 `json:"age_years" toml:"age_years"`
	Sex                Sex     `json:"sex" toml:"sex"`
	ActivityMultiplier float64 `json:"activity_multiplier" toml:"activity_multiplier"`
	GoalDeltaKcal      float64 `json:"goal_delta_kcal" toml:"goal_delta_kcal"`
}

func DefaultProfile() Profile {
	return Profile{
		HeightCm:           175,
		WeightKg:           80,
		AgeYears:           28,
		Sex:                Male,
		ActivityMultiplier: 1.55,
		GoalDeltaKcal:      -500,
	}
}

// Validate checks the profile against the ranges the input form allows.
func (p Profile) Validate() error {
	switch {
	case p.HeightCm < 100 || p.HeightCm > 230:
		return fmt.Errorf("%w: height_cm must be within 100-230, got %g", ErrInvalidProfile, p.HeightCm)
	case p.WeightKg < 30 || p.WeightKg > 250:
		return fmt.Errorf("%w: weight_kg must be within 30-250, got %g", ErrInvalidProfile, p.WeightKg)
	case p.AgeYears < 10 || p.AgeYears > 100:
		return fmt.Errorf("%w: age_years must be within 10-100, got %g", ErrInvalidProfile, p.AgeYears)
	case p.Sex != Male && p.Sex != Female:
		return fmt.Errorf("%w: sex must be Male or Female, got %q", ErrInvalidProfile, p.Sex)
	}
	for _, lvl := range ActivityLevels {
		if lvl.Multiplier == p.ActivityMultiplier {
			return nil
		}
	}
	return fmt.Errorf("%w: unsupported activity_multiplier %g", ErrInvalidProfile, p.ActivityMultiplier)
}
