// Package scorer computes the attribute-completeness quality score of
// enriched entities.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-enrich/internal/model"
)

// Signal is one scored attribute group. It counts as present when any of
// its columns holds a non-blank value.
type Signal struct {
	Name    string
	Columns []string
	Weight  int
}

// DefaultSignals returns the scoring signals. Weights sum to 100.
func DefaultSignals() []Signal {
	return []Signal{
		{Name: "identity", Columns: []string{"name"}, Weight: 20},
		{Name: "registration", Columns: []string{"tax_id"}, Weight: 20},
		{Name: "website", Columns: []string{"website"}, Weight: 15},
		{Name: "scale", Columns: []string{"size", "employees"}, Weight: 15},
		{Name: "location", Columns: []string{"city", "state"}, Weight: 10},
		{Name: "description", Columns: []string{"description"}, Weight: 10},
		{Name: "product", Columns: []string{"principal_product"}, Weight: 10},
	}
}

// Tier thresholds.
const (
	HighThreshold   = 90
	MediumThreshold = 60
)

// ValidateSignals checks that signals are internally consistent.
func ValidateSignals(signals []Signal) error {
	var errs []string
	sum := 0
	for _, s := range signals {
		if s.Weight < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", s.Name))
		}
		if len(s.Columns) == 0 {
			errs = append(errs, fmt.Sprintf("%s has no columns", s.Name))
		}
		sum += s.Weight
	}
	if sum != 100 {
		errs = append(errs, fmt.Sprintf("weights should sum to 100, got %d", sum))
	}
	if len(errs) > 0 {
		return eris.Errorf("scorer: signal validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

var defaultSignals = DefaultSignals()

// Score returns the weighted presence score of r, clamped to 0..100.
func Score(r model.Record) int {
	return ScoreWith(defaultSignals, r)
}

// ScoreWith scores r against custom signals.
func ScoreWith(signals []Signal, r model.Record) int {
	total := 0
	for _, s := range signals {
		for _, col := range s.Columns {
			if present(r[col]) {
				total += s.Weight
				break
			}
		}
	}
	return min(max(total, 0), 100)
}

// Tier maps a score to its quality tier.
func Tier(score int) string {
	switch {
	case score >= HighThreshold:
		return model.TierHigh
	case score >= MediumThreshold:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// Derive returns the derived quality columns of a merged record. It is the
// single scoring path for both inserts and updates.
func Derive(merged model.Record) model.Record {
	s := Score(merged)
	return model.Record{"quality_score": s, "quality_tier": Tier(s)}
}

func present(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return strings.TrimSpace(t) != ""
	case *string:
		return t != nil && strings.TrimSpace(*t) != ""
	case []byte:
		return len(strings.TrimSpace(string(t))) > 0
	default:
		return true
	}
}
