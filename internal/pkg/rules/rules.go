// Package rules holds the static, read-only catalogs used to classify pairs of parlay legs
// and the per-sportsbook policy table. A Table is built once at start and shared by reference.
package rules

import (
	"fmt"
	"sort"
	"strings"
)

// Severity of a rule violation.
type Severity string

const (
	SeverityHardBlock Severity = "HARD_BLOCK"
	SeveritySoftBlock Severity = "SOFT_BLOCK"
	SeverityWarning   Severity = "WARNING"
)

// Kind is the catalog a rule belongs to. Catalogs are consulted in this order.
type Kind int

const (
	KindMutuallyExclusive Kind = iota
	KindStronglyCorrelated
	KindSoftlyCorrelated
)

func (k Kind) String() string {
	switch k {
	case KindMutuallyExclusive:
		return "mutually_exclusive"
	case KindStronglyCorrelated:
		return "strongly_correlated"
	case KindSoftlyCorrelated:
		return "softly_correlated"
	default:
		return "unknown"
	}
}

// Severity returns the violation severity for rules of this kind.
func (k Kind) Severity() Severity {
	switch k {
	case KindMutuallyExclusive:
		return SeverityHardBlock
	case KindStronglyCorrelated:
		return SeveritySoftBlock
	default:
		return SeverityWarning
	}
}

// Scope narrows when a rule applies to two legs of the same game.
type Scope string

const (
	ScopeSameGame         Scope = "same_game"
	ScopeSameSubject      Scope = "same_subject"
	ScopeDifferentSubject Scope = "different_subject"
)

func (s Scope) valid() bool {
	switch s {
	case ScopeSameGame, ScopeSameSubject, ScopeDifferentSubject:
		return true
	}
	return false
}

// Matches reports whether the scope holds for the two descriptors.
// Rules never apply across games.
func (s Scope) Matches(a, b LegDescriptor) bool {
	if a.GameID == "" || a.GameID != b.GameID {
		return false
	}
	switch s {
	case ScopeSameSubject:
		return a.Subject == b.Subject
	case ScopeDifferentSubject:
		return a.Subject != b.Subject
	default:
		return true
	}
}

// PairKey is the order-independent key of two canonical tokens.
type PairKey string

// NewPairKey sorts the tokens so (a,b) and (b,a) share one entry.
func NewPairKey(a, b string) PairKey {
	a, b = strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if b < a {
		a, b = b, a
	}
	return PairKey(a + "|" + b)
}

// Rule is one entry of a catalog.
type Rule struct {
	ID              string   `yaml:"id" json:"id"`
	Tokens          []string `yaml:"tokens" json:"tokens"`
	Scope           Scope    `yaml:"scope" json:"scope"`
	Score           float64  `yaml:"score,omitempty" json:"score,omitempty"` // softly correlated only
	Description     string   `yaml:"description" json:"description"`
	SuggestedAction string   `yaml:"suggested_action,omitempty" json:"suggested_action,omitempty"`
}

func (r Rule) key() PairKey {
	return NewPairKey(r.Tokens[0], r.Tokens[1])
}

// Match is the outcome of classifying a pair.
type Match struct {
	Rule Rule
	Kind Kind
}

// Policy is a sportsbook's parlay policy.
type Policy struct {
	ID                     string   `yaml:"id" json:"id"`
	ProhibitedCombinations []string `yaml:"prohibited_combinations" json:"prohibited_combinations"`
	MaxLegs                int      `yaml:"max_legs" json:"max_legs"`
	MinOddsPerLeg          float64  `yaml:"min_odds_per_leg" json:"min_odds_per_leg"`
	SGPSettlement          string   `yaml:"sgp_settlement" json:"sgp_settlement"`
}

// Prohibits reports whether the policy disallows combinations flagged by ruleID.
func (p Policy) Prohibits(ruleID string) bool {
	for _, id := range p.ProhibitedCombinations {
		if strings.EqualFold(id, ruleID) {
			return true
		}
	}
	return false
}

func (p Policy) clone() Policy {
	p.ProhibitedCombinations = append([]string(nil), p.ProhibitedCombinations...)
	return p
}

// stricterThan orders policies: more prohibitions, fewer legs, higher minimum odds, then id.
func (p Policy) stricterThan(o Policy) bool {
	if len(p.ProhibitedCombinations) != len(o.ProhibitedCombinations) {
		return len(p.ProhibitedCombinations) > len(o.ProhibitedCombinations)
	}
	pl, ol := p.MaxLegs, o.MaxLegs
	if pl <= 0 {
		pl = int(^uint(0) >> 1)
	}
	if ol <= 0 {
		ol = int(^uint(0) >> 1)
	}
	if pl != ol {
		return pl < ol
	}
	if p.MinOddsPerLeg != o.MinOddsPerLeg {
		return p.MinOddsPerLeg > o.MinOddsPerLeg
	}
	return p.ID < o.ID
}

// Table is the immutable rule and policy table.
type Table struct {
	catalogs  [3]map[PairKey][]Rule
	policies  map[string]Policy
	strictest Policy
}

// Classify returns the first rule matching the pair, consulting the mutually exclusive,
// strongly correlated and softly correlated catalogs in that order.
func (t *Table) Classify(a, b LegDescriptor) (Match, bool) {
	key := NewPairKey(a.Token, b.Token)
	for kind, catalog := range t.catalogs {
		for _, r := range catalog[key] {
			if r.Scope.Matches(a, b) {
				return Match{Rule: r, Kind: Kind(kind)}, true
			}
		}
	}
	return Match{}, false
}

// Policy looks a sportsbook policy up by id (case-insensitive).
func (t *Table) Policy(id string) (Policy, bool) {
	p, ok := t.policies[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return Policy{}, false
	}
	return p.clone(), true
}

// ResolvePolicy returns the policy for id, or the strictest known policy with fallback=true.
func (t *Table) ResolvePolicy(id string) (policy Policy, fallback bool) {
	if p, ok := t.Policy(id); ok {
		return p, false
	}
	return t.strictest.clone(), true
}

// Strictest returns the policy used for unknown sportsbooks.
func (t *Table) Strictest() Policy {
	return t.strictest.clone()
}

// Sportsbooks returns all policies sorted by id.
func (t *Table) Sportsbooks() []Policy {
	out := make([]Policy, 0, len(t.policies))
	for _, p := range t.policies {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Rules returns a copy of one catalog, sorted by pair key then id.
func (t *Table) Rules(kind Kind) []Rule {
	if kind < KindMutuallyExclusive || kind > KindSoftlyCorrelated {
		return nil
	}
	var out []Rule
	for _, rs := range t.catalogs[kind] {
		for _, r := range rs {
			r.Tokens = append([]string(nil), r.Tokens...)
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].key(), out[j].key()
		if ki != kj {
			return ki < kj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// New validates a File and builds a Table from it.
func New(f File) (*Table, error) {
	t := &Table{policies: map[string]Policy{}}
	lists := [3][]Rule{f.MutuallyExclusive, f.StronglyCorrelated, f.SoftlyCorrelated}
	for kind, list := range lists {
		t.catalogs[kind] = map[PairKey][]Rule{}
		for i, r := range list {
			r, err := normalizeRule(r, Kind(kind))
			if err != nil {
				return nil, fmt.Errorf("%s rule %d: %w", Kind(kind), i, err)
			}
			k := r.key()
			t.catalogs[kind][k] = append(t.catalogs[kind][k], r)
		}
	}

	strong := map[string]bool{}
	for _, rs := range t.catalogs[KindStronglyCorrelated] {
		for _, r := range rs {
			strong[strings.ToLower(r.ID)] = true
		}
	}

	if len(f.Sportsbooks) == 0 {
		return nil, fmt.Errorf("at least one sportsbook policy is required")
	}
	first := true
	for i, p := range f.Sportsbooks {
		id := strings.ToLower(strings.TrimSpace(p.ID))
		if id == "" {
			return nil, fmt.Errorf("sportsbook %d: empty id", i)
		}
		if _, dup := t.policies[id]; dup {
			return nil, fmt.Errorf("sportsbook %q: duplicate id", id)
		}
		if p.MaxLegs < 0 {
			return nil, fmt.Errorf("sportsbook %q: max_legs must be >= 0", id)
		}
		for _, ruleID := range p.ProhibitedCombinations {
			if !strong[strings.ToLower(strings.TrimSpace(ruleID))] {
				return nil, fmt.Errorf("sportsbook %q: prohibited combination %q is not a strongly correlated rule", id, ruleID)
			}
		}
		p.ID = id
		p = p.clone()
		t.policies[id] = p
		if first || p.stricterThan(t.strictest) {
			t.strictest = p
			first = false
		}
	}
	return t, nil
}

func normalizeRule(r Rule, kind Kind) (Rule, error) {
	r.ID = strings.TrimSpace(r.ID)
	if r.ID == "" {
		return r, fmt.Errorf("empty id")
	}
	if len(r.Tokens) != 2 {
		return r, fmt.Errorf("rule %q: exactly two tokens required, got %d", r.ID, len(r.Tokens))
	}
	toks := make([]string, 2)
	for i, tok := range r.Tokens {
		tok = strings.ToLower(strings.TrimSpace(tok))
		if tok == "" {
			return r, fmt.Errorf("rule %q: empty token", r.ID)
		}
		toks[i] = tok
	}
	r.Tokens = toks
	if r.Scope == "" {
		r.Scope = ScopeSameGame
	}
	if !r.Scope.valid() {
		return r, fmt.Errorf("rule %q: unknown scope %q", r.ID, r.Scope)
	}
	if kind == KindSoftlyCorrelated {
		if r.Score < 0 || r.Score > 1 {
			return r, fmt.Errorf("rule %q: score must be in [0,1], got %v", r.ID, r.Score)
		}
	} else {
		r.Score = 0
	}
	return r, nil
}
