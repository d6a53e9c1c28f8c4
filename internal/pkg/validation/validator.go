package validation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Vodeneev/parlaybet/internal/pkg/models"
)

// MaxLegs bounds the size of a single candidate accepted over the wire.
const MaxLegs = 50

var bookmakerPattern = regexp.MustCompile(`^[\p{L}\p{N}_\-. ]+$`)

// ValidateLeg checks that a leg is structurally usable. Odds and lines are left to the
// market check, which reports them per leg instead of failing the request.
func ValidateLeg(leg models.ParlayLeg) error {
	var errs []error
	if strings.TrimSpace(leg.GameID) == "" {
		errs = append(errs, fmt.Errorf("game_id cannot be empty"))
	}
	if strings.TrimSpace(leg.MarketType) == "" {
		errs = append(errs, fmt.Errorf("market_type cannot be empty"))
	}
	if strings.TrimSpace(leg.SelectionName) == "" {
		errs = append(errs, fmt.Errorf("selection_name cannot be empty"))
	}
	if b := strings.TrimSpace(leg.Bookmaker); b == "" {
		errs = append(errs, fmt.Errorf("bookmaker cannot be empty"))
	} else if !bookmakerPattern.MatchString(b) {
		errs = append(errs, fmt.Errorf("invalid bookmaker: %s", leg.Bookmaker))
	}
	return errors.Join(errs...)
}

// ValidateLegs validates every leg and the leg count.
func ValidateLegs(legs []models.ParlayLeg) error {
	if len(legs) > MaxLegs {
		return fmt.Errorf("too many legs: %d > %d", len(legs), MaxLegs)
	}
	var errs []error
	for i, leg := range legs {
		if err := ValidateLeg(leg); err != nil {
			errs = append(errs, fmt.Errorf("leg %d validation failed: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// ValidateEvidence rejects sources without a type. Values out of [0,1] are clamped
// by the fusion engine, not rejected.
func ValidateEvidence(sources []models.EvidenceSource) error {
	var errs []error
	for i, s := range sources {
		if strings.TrimSpace(s.SourceType) == "" {
			errs = append(errs, fmt.Errorf("evidence %d: source_type cannot be empty", i))
		}
	}
	return errors.Join(errs...)
}
