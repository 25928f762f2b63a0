package domain

import "time"

// RuleConfig defines a custom policy rule evaluated after the builtin checks.
type RuleConfig struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Version     string `json:"version"`

	// CEL expression over the claim variables; must yield bool, int or double.
	Expression string `json:"expression"`

	// Outcome bands for value-to-outcome mapping
	Bands []RuleBand `json:"bands"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
}

// RuleBand maps a value range to an outcome. A bool result is mapped as
// 1 for true and 0 for false.
type RuleBand struct {
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
	Outcome    string   `json:"outcome"` // ".pass" or ".fail"
	Reason     string   `json:"reason"`
}

// Predefined rule outcomes
const (
	RuleOutcomePass  = ".pass"
	RuleOutcomeFail  = ".fail"
	RuleOutcomeError = ".err"
)
