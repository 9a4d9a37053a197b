// Package policy implements the release decision for expediente costs.
// Given the cost scraped from the portal and the cost saved in the source
// spreadsheet, it decides whether the case should be liberated and which
// rule fired. The decision is pure: it never touches the browser.
package policy

import "github.com/ike-ops/expedientes-cli/internal/model"

// Config enables the optional release rules. Exact match is always active.
type Config struct {
	MarginLogic   bool `json:"margin_logic" mapstructure:"margin_logic"`
	SuperiorLogic bool `json:"superior_logic" mapstructure:"superior_logic"`
}

// Rule identifiers, in evaluation priority order.
const (
	RuleNone     = 0
	RuleExact    = 1
	RuleMargin   = 2
	RuleSuperior = 3
)

// Decision is the outcome of evaluating the release rules.
type Decision struct {
	Release bool
	Rule    int
}

// Decide evaluates the rules in strict priority order; the first match wins.
//
//  1. Exact match (always active): system cost equals saved cost.
//  2. Margin (if enabled): system cost within ±10% of saved cost, inclusive.
//  3. Superior (if enabled): system cost exceeds saved cost.
//
// Costs are integer cents, so rule 1 is exact and the margin bounds are
// evaluated without float rounding.
func Decide(systemCost, savedCost model.Cents, cfg Config) Decision {
	if systemCost == savedCost {
		return Decision{Release: true, Rule: RuleExact}
	}

	if cfg.MarginLogic {
		// system >= saved*0.9 && system <= saved*1.1, in exact integer form.
		if systemCost*10 >= savedCost*9 && systemCost*10 <= savedCost*11 {
			return Decision{Release: true, Rule: RuleMargin}
		}
	}

	if cfg.SuperiorLogic && systemCost > savedCost {
		return Decision{Release: true, Rule: RuleSuperior}
	}

	return Decision{Release: false, Rule: RuleNone}
}
