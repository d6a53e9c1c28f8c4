package parlay

import (
	"fmt"
	"sort"

	"github.com/Vodeneev/parlaybet/internal/pkg/config"
	"github.com/Vodeneev/parlaybet/internal/pkg/models"
	"github.com/Vodeneev/parlaybet/internal/pkg/rules"
)

// CompatibilityValidator classifies every pair of legs against the rule table and
// computes the correlation tax. It holds no per-call state.
type CompatibilityValidator struct {
	table    *rules.Table
	taxBase  float64
	taxSlope float64
}

func NewCompatibilityValidator(table *rules.Table, cfg config.EngineConfig) *CompatibilityValidator {
	if table == nil {
		table = rules.Default()
	}
	return &CompatibilityValidator{
		table:    table,
		taxBase:  cfg.TaxBase,
		taxSlope: cfg.TaxSlope,
	}
}

// Table returns the rule table the validator was built with.
func (v *CompatibilityValidator) Table() *rules.Table {
	return v.table
}

type describedLeg struct {
	leg  models.ParlayLeg
	key  models.LegKey
	desc rules.LegDescriptor
}

// Validate checks legs for the given sportsbook.
func (v *CompatibilityValidator) Validate(legs []models.ParlayLeg, sportsbookID string) ValidationResult {
	policy, fallback := v.table.ResolvePolicy(sportsbookID)
	res := ValidationResult{
		IsValid:                  true,
		Violations:               []RuleViolation{},
		Warnings:                 []string{},
		CorrelationTaxMultiplier: 1.0,
		SportsbookID:             sportsbookID,
		PolicyID:                 policy.ID,
		PolicyFallback:           fallback,
	}
	if fallback {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("unknown sportsbook %q, applying strictest policy %q", sportsbookID, policy.ID))
	}
	if len(legs) <= 1 {
		return res
	}

	// Canonical order makes the output independent of input order.
	dl := make([]describedLeg, len(legs))
	for i, l := range legs {
		dl[i] = describedLeg{leg: l, key: l.Key(), desc: rules.Describe(l)}
	}
	sort.SliceStable(dl, func(i, j int) bool { return dl[i].key.Less(dl[j].key) })

	if policy.MaxLegs > 0 && len(dl) > policy.MaxLegs {
		res.Warnings = append(res.Warnings,
			fmt.Sprintf("%d legs exceed %s max_legs %d", len(dl), policy.ID, policy.MaxLegs))
	}
	if policy.MinOddsPerLeg > 0 {
		for _, d := range dl {
			if d.leg.OddsDecimal < policy.MinOddsPerLeg {
				res.Warnings = append(res.Warnings,
					fmt.Sprintf("leg %s odds %.2f below %s min_odds_per_leg %.2f", d.key, d.leg.OddsDecimal, policy.ID, policy.MinOddsPerLeg))
			}
		}
	}

	for i := 0; i < len(dl); i++ {
		for j := i + 1; j < len(dl); j++ {
			a, b := dl[i], dl[j]
			if viol, ok := duplicateSelection(a, b); ok {
				res.Violations = append(res.Violations, viol)
				continue
			}
			m, ok := v.table.Classify(a.desc, b.desc)
			if !ok {
				continue
			}
			viol := RuleViolation{
				RuleType:        m.Rule.ID,
				Severity:        m.Kind.Severity(),
				Description:     m.Rule.Description,
				Leg1ID:          a.key.String(),
				Leg2ID:          b.key.String(),
				SuggestedAction: m.Rule.SuggestedAction,
			}
			switch m.Kind {
			case rules.KindStronglyCorrelated:
				viol.Prohibited = policy.Prohibits(m.Rule.ID)
				if !viol.Prohibited {
					res.Warnings = append(res.Warnings,
						fmt.Sprintf("%s allowed by %s: %s + %s", m.Rule.ID, policy.ID, viol.Leg1ID, viol.Leg2ID))
				}
			case rules.KindSoftlyCorrelated:
				score := clamp(m.Rule.Score, 0, 1)
				viol.CorrelationScore = &score
				res.CorrelationTaxMultiplier *= v.taxBase + v.taxSlope*score
			}
			res.Violations = append(res.Violations, viol)
		}
	}

	for _, viol := range res.Violations {
		if viol.Blocking() {
			res.IsValid = false
			break
		}
	}
	if res.CorrelationTaxMultiplier < 1 {
		res.CorrelationTaxMultiplier = 1
	}
	return res
}

// duplicateSelection flags the same selection taken twice, at any bookmaker.
func duplicateSelection(a, b describedLeg) (RuleViolation, bool) {
	if a.key.GameID != b.key.GameID || a.key.MarketType != b.key.MarketType || a.key.SelectionName != b.key.SelectionName {
		return RuleViolation{}, false
	}
	return RuleViolation{
		RuleType:        RuleDuplicateSelection,
		Severity:        SeverityHardBlock,
		Description:     "the same selection appears twice",
		Leg1ID:          a.key.String(),
		Leg2ID:          b.key.String(),
		SuggestedAction: "remove the duplicate leg",
	}, true
}
