package parlay

import (
	"time"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
	"github.com/Vodeneev/parlaybet/internal/pkg/rules"
)

// Severity aliases the rule severity so callers need only this package.
type Severity = rules.Severity

const (
	SeverityHardBlock = rules.SeverityHardBlock
	SeveritySoftBlock = rules.SeveritySoftBlock
	SeverityWarning   = rules.SeverityWarning
)

// RuleDuplicateSelection is raised by the engine itself, not by a catalog.
const RuleDuplicateSelection = "duplicate_selection"

// RuleViolation is one classified pair of legs.
type RuleViolation struct {
	RuleType         string   `json:"rule_type"`
	Severity         Severity `json:"severity"`
	Description      string   `json:"description"`
	Leg1ID           string   `json:"leg1_id"`
	Leg2ID           string   `json:"leg2_id"`
	CorrelationScore *float64 `json:"correlation_score,omitempty"`
	SuggestedAction  string   `json:"suggested_action,omitempty"`
	// Prohibited is set on SOFT_BLOCK violations the active sportsbook policy forbids.
	Prohibited bool `json:"prohibited,omitempty"`
}

// Blocking reports whether the violation makes the parlay invalid.
func (v RuleViolation) Blocking() bool {
	return v.Severity == SeverityHardBlock || (v.Severity == SeveritySoftBlock && v.Prohibited)
}

// ValidationResult is the output of the compatibility stage.
type ValidationResult struct {
	IsValid                  bool            `json:"is_valid"`
	Violations               []RuleViolation `json:"violations"`
	Warnings                 []string        `json:"warnings"`
	CorrelationTaxMultiplier float64         `json:"correlation_tax_multiplier"`
	SportsbookID             string          `json:"sportsbook_id"`
	PolicyID                 string          `json:"policy_id"`
	PolicyFallback           bool            `json:"policy_fallback"`
}

// BlockingRules returns the rule ids of blocking violations, in violation order.
func (r ValidationResult) BlockingRules() []string {
	var out []string
	for _, v := range r.Violations {
		if v.Blocking() {
			out = append(out, v.RuleType)
		}
	}
	return out
}

// LegAvailability is the market check outcome for one leg.
type LegAvailability struct {
	Leg                   models.ParlayLeg `json:"leg"`
	IsValid               bool             `json:"is_valid"`
	Reason                string           `json:"reason,omitempty"`
	CurrentOdds           *float64         `json:"current_odds,omitempty"`
	MatchedLine           *float64         `json:"matched_line,omitempty"`
	OddsDriftPercent      float64          `json:"odds_drift_percent,omitempty"`
	AlternativeBookmakers []string         `json:"alternative_bookmakers,omitempty"`
}

// MarketValidationOutcome is the output of the market availability stage.
type MarketValidationOutcome struct {
	Legs        []LegAvailability  `json:"legs"`
	ValidLegs   []models.ParlayLeg `json:"valid_legs"`
	InvalidLegs []LegAvailability  `json:"invalid_legs"`
	TotalOdds   float64            `json:"total_odds"`
	Success     bool               `json:"success"`
	Reason      string             `json:"reason,omitempty"`
}

// TraceStep records one Bayesian update.
type TraceStep struct {
	SourceType      string  `json:"source_type"`
	Adjusted        float64 `json:"adjusted"`
	Likelihood      float64 `json:"likelihood"`
	PosteriorBefore float64 `json:"posterior_before"`
	PosteriorAfter  float64 `json:"posterior_after"`
}

// NoteInsufficientEvidence is attached when no evidence sources were supplied.
const NoteInsufficientEvidence = "InsufficientEvidence"

// ConfidenceAssessment is the output of the fusion stage.
type ConfidenceAssessment struct {
	PosteriorConfidence float64     `json:"posterior_confidence"`
	FusedConfidence     float64     `json:"fused_confidence"` // before the game context adjustment
	DynamicThreshold    float64     `json:"dynamic_threshold"`
	ShouldFlag          bool        `json:"should_flag"`
	AverageReliability  float64     `json:"average_reliability"`
	Trace               []TraceStep `json:"trace"`
	Notes               []string    `json:"notes,omitempty"`
}

// Status is the terminal state of a validation session.
type Status string

const (
	StatusAccepted             Status = "ACCEPTED"
	StatusFlagged              Status = "FLAGGED"
	StatusRejectedIncompatible Status = "REJECTED_INCOMPATIBLE"
	StatusMarketUnavailable    Status = "MARKET_UNAVAILABLE"
	StatusInsufficientLegs     Status = "INSUFFICIENT_LEGS"
)

// Request is one candidate parlay.
type Request struct {
	Legs         []models.ParlayLeg      `json:"legs"`
	SportsbookID string                  `json:"sportsbook_id"`
	Evidence     []models.EvidenceSource `json:"evidence,omitempty"`
	Context      models.GameContext      `json:"context"`
	// MinLegs is the number of tradeable legs the caller needs; 0 uses engine.min_legs.
	MinLegs int `json:"min_legs,omitempty"`
}

// Report combines the three stages for one request.
type Report struct {
	SessionID                string                   `json:"session_id"`
	Status                   Status                   `json:"status"`
	IsValid                  bool                     `json:"is_valid"`
	Reason                   string                   `json:"reason,omitempty"`
	Compatibility            ValidationResult         `json:"compatibility"`
	CorrelationTaxMultiplier float64                  `json:"correlation_tax_multiplier"`
	MarketOutcome            *MarketValidationOutcome `json:"market_outcome,omitempty"`
	Confidence               *ConfidenceAssessment    `json:"confidence,omitempty"`
	EffectiveOdds            float64                  `json:"effective_odds,omitempty"` // total odds / correlation tax
	SnapshotFetchedAt        time.Time                `json:"snapshot_fetched_at,omitempty"`
}
