// Package forecast projects a current price over a set of horizons using the
// composite signal.
package forecast

import (
	"fmt"
	"math"
	"sort"
)

// Horizon is a forward offset with its baseline confidence prior.
type Horizon struct {
	Name  string  `yaml:"name"`
	Days  float64 `yaml:"days"`
	Prior float64 `yaml:"prior"`
}

// Seconds returns the horizon length in whole seconds.
func (h Horizon) Seconds() int64 {
	return int64(math.Round(h.Days * 86400))
}

// DefaultHorizons returns hour through six months. Priors decay with length.
func DefaultHorizons() []Horizon {
	return []Horizon{
		{Name: "hour", Days: 1.0 / 24, Prior: 0.95},
		{Name: "day", Days: 1, Prior: 0.92},
		{Name: "week", Days: 7, Prior: 0.88},
		{Name: "twoWeeks", Days: 15, Prior: 0.85},
		{Name: "month", Days: 30, Prior: 0.80},
		{Name: "threeMonths", Days: 90, Prior: 0.75},
		{Name: "sixMonths", Days: 180, Prior: 0.70},
	}
}

// ValidateHorizons rejects empty sets, duplicate names, non-positive
// lengths, priors outside [0,1] and priors that grow with horizon length.
func ValidateHorizons(hs []Horizon) error {
	if len(hs) == 0 {
		return fmt.Errorf("at least one horizon is required")
	}
	seen := make(map[string]bool, len(hs))
	for _, h := range hs {
		if h.Name == "" {
			return fmt.Errorf("horizon name is required")
		}
		if seen[h.Name] {
			return fmt.Errorf("duplicate horizon %q", h.Name)
		}
		seen[h.Name] = true
		if h.Days <= 0 {
			return fmt.Errorf("horizon %q: days must be positive", h.Name)
		}
		if h.Prior < 0 || h.Prior > 1 {
			return fmt.Errorf("horizon %q: prior must be within [0,1]", h.Name)
		}
	}

	sorted := Sorted(hs)
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Prior > sorted[i-1].Prior {
			return fmt.Errorf("horizon %q prior %.2f exceeds shorter horizon %q prior %.2f",
				sorted[i].Name, sorted[i].Prior, sorted[i-1].Name, sorted[i-1].Prior)
		}
	}
	return nil
}

// Sorted returns a copy of hs ordered by length, shortest first.
func Sorted(hs []Horizon) []Horizon {
	out := make([]Horizon, len(hs))
	copy(out, hs)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Days < out[j].Days })
	return out
}
