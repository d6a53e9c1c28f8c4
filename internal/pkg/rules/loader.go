package rules

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a rules file.
//
//	mutually_exclusive:
//	  - id: opposing_moneylines
//	    tokens: [h2h, h2h]
//	    scope: same_game
//	softly_correlated:
//	  - id: spread_total_over
//	    tokens: [spreads, totals_over]
//	    score: 0.15
//	sportsbooks:
//	  - id: draftkings
//	    prohibited_combinations: [moneyline_spread_same_team]
//	    max_legs: 20
type File struct {
	MutuallyExclusive  []Rule   `yaml:"mutually_exclusive"`
	StronglyCorrelated []Rule   `yaml:"strongly_correlated"`
	SoftlyCorrelated   []Rule   `yaml:"softly_correlated"`
	Sportsbooks        []Policy `yaml:"sportsbooks"`
}

// LoadFile reads and validates a rules file.
func LoadFile(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Table from YAML bytes. Unknown keys are rejected.
func Parse(data []byte) (*Table, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	t, err := New(f)
	if err != nil {
		return nil, fmt.Errorf("invalid rules file: %w", err)
	}
	return t, nil
}
