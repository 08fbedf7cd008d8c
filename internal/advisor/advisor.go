// Package advisor turns a day snapshot into a free-text nutrition suggestion
// from an LLM. It only reads the snapshot; nothing it returns flows back into
// the ledger.
package advisor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"diet-ledger/internal/logger"
	"diet-ledger/internal/models"
)

const (
	ModeOff     = "off"
	ModeOpenAI  = "openai"
	ModeGateway = "gateway"
)

type Advisor interface {
	Advise(ctx context.Context, snap models.Snapshot) (string, error)
}

type Config struct {
	Mode        string
	Endpoint    string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
	Language    string
}

// New picks the client for cfg.Mode. An unknown or empty mode yields an
// advisor that always reports the service as unavailable.
func New(cfg Config, log *logger.Logger) Advisor {
	switch strings.ToLower(cfg.Mode) {
	case ModeOpenAI:
		return NewChatClient(cfg, log)
	case ModeGateway:
		return NewSamplingClient(cfg, log)
	default:
		return disabled{reason: fmt.Sprintf("advisor mode %q is not enabled", cfg.Mode)}
	}
}

type disabled struct {
	reason string
}

func (d disabled) Advise(ctx context.Context, snap models.Snapshot) (string, error) {
	return "", fmt.Errorf("%w: %s", models.ErrAdvisoryUnavailable, d.reason)
}

const systemPrompt = "You are a professional dietitian. Write short, clear and actionable advice."

// BuildPrompt renders the snapshot into the user message.
func BuildPrompt(snap models.Snapshot, language string) string {
	p := snap.Profile
	var b strings.Builder

	fmt.Fprintf(&b, "User profile:\n")
	fmt.Fprintf(&b, "- Height: %g cm\n", p.HeightCm)
	fmt.Fprintf(&b, "- Weight: %g kg\n", p.WeightKg)
	fmt.Fprintf(&b, "- Age: %g\n", p.AgeYears)
	fmt.Fprintf(&b, "- Sex: %s\n", p.Sex)
	fmt.Fprintf(&b, "- Activity multiplier: %g\n", p.ActivityMultiplier)
	fmt.Fprintf(&b, "- Goal adjustment: %+g kcal/day\n", p.GoalDeltaKcal)
	fmt.Fprintf(&b, "- Daily energy target: %.0f kcal\n\n", snap.TargetKcal)

	fmt.Fprintf(&b, "Meals on %s:\n", snap.Date)
	for _, e := range snap.Entries {
		fmt.Fprintf(&b, "- %s: %s %.0f g\n", e.MealSlot, e.FoodName, e.Grams)
	}

	a := snap.Aggregate
	fmt.Fprintf(&b, "\nTotals so far:\n")
	fmt.Fprintf(&b, "- Energy: %.0f kcal\n", a.EnergyKcal)
	fmt.Fprintf(&b, "- Protein: %.1f g\n", a.ProteinG)
	fmt.Fprintf(&b, "- Carbohydrate: %.1f g\n", a.CarbG)
	fmt.Fprintf(&b, "- Fat: %.1f g\n\n", a.FatG)

	b.WriteString("Please provide:\n")
	b.WriteString("1) Which foods to add or reduce, and roughly by how much.\n")
	b.WriteString("2) A suggested macro split for the rest of the day against the target.\n")
	b.WriteString("3) The expected weight change over one month on this plan, as a reasonable range.\n")
	b.WriteString("4) Three short tips for sustainability.\n")
	if language != "" {
		fmt.Fprintf(&b, "\nAnswer in %s.\n", language)
	}
	return b.String()
}

func checkSnapshot(snap models.Snapshot) error {
	if len(snap.Entries) == 0 {
		return fmt.Errorf("%w: %s", models.ErrNothingToAdvise, snap.Date)
	}
	return nil
}

// truncate shortens s to at most n runes, ending in "..." when cut.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 3 {
		return string(r[:n])
	}
	return string(r[:n-3]) + "..."
}
