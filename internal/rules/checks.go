package rules

import (
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/history"
)

// Builtin check names, in evaluation order.
const (
	CheckAmountPositive    = "ClaimAmountPositive"
	CheckAmountLimit       = "ClaimAmountLimit"
	CheckPolicyCoverage    = "PolicyCoverage"
	CheckPolicyIDValid     = "PolicyIdValid"
	CheckClaimantValid     = "ClaimantValid"
	CheckNoDuplicateClaims = "NoDuplicateClaims"
	CheckClaimFrequency    = "ClaimFrequency"
	CheckRequiredDocuments = "RequiredDocuments"
)

// claimFacts is the snapshot every check reads.
type claimFacts struct {
	claim  *domain.Claim
	priors []*domain.Claim // newest first
	tier   string
	limit  domain.Money
}

// builtinCheck returns the failure reasons for one policy rule; none means
// the rule passed.
type builtinCheck struct {
	name string
	eval func(f *claimFacts) []string
}

func (e *Engine) builtinChecks() []builtinCheck {
	return []builtinCheck{
		{CheckAmountPositive, e.checkAmountPositive},
		{CheckAmountLimit, e.checkAmountLimit},
		{CheckPolicyCoverage, e.checkPolicyCoverage},
		{CheckPolicyIDValid, e.checkPolicyID},
		{CheckClaimantValid, e.checkClaimant},
		{CheckNoDuplicateClaims, e.checkDuplicates},
		{CheckClaimFrequency, e.checkFrequency},
		{CheckRequiredDocuments, e.checkDocuments},
	}
}

func (e *Engine) checkAmountPositive(f *claimFacts) []string {
	if f.claim.Amount <= 0 {
		return []string{"Claim amount must be greater than zero"}
	}
	return nil
}

func (e *Engine) checkAmountLimit(f *claimFacts) []string {
	if f.claim.Amount > e.cfg.MaxClaimAmount {
		return []string{fmt.Sprintf("Claim amount %s exceeds maximum limit of %s",
			f.claim.Amount.Display(), e.cfg.MaxClaimAmount.Display())}
	}
	return nil
}

func (e *Engine) checkPolicyCoverage(f *claimFacts) []string {
	if f.claim.Amount > f.limit {
		return []string{fmt.Sprintf("Insufficient coverage for claim amount %s", f.claim.Amount.Display())}
	}
	return nil
}

func (e *Engine) checkPolicyID(f *claimFacts) []string {
	id := strings.TrimSpace(f.claim.PolicyID)
	switch {
	case id == "":
		return []string{"Policy ID is required"}
	case len(id) < e.cfg.MinPolicyIDLength:
		return []string{"Invalid policy ID format"}
	}
	return nil
}

func (e *Engine) checkClaimant(f *claimFacts) []string {
	id := strings.TrimSpace(f.claim.ClaimantID)
	if id == "" {
		return []string{"Claimant ID is required"}
	}
	if strings.Contains(id, "@") {
		if err := e.validate.Var(id, "email"); err != nil {
			return []string{"Invalid claimant email format"}
		}
	}
	return nil
}

func (e *Engine) checkDuplicates(f *claimFacts) []string {
	for _, prior := range f.priors {
		if prior.Amount != f.claim.Amount {
			continue
		}
		if f.claim.SubmittedAt.Sub(prior.SubmittedAt) <= e.cfg.DuplicateWindow {
			return []string{fmt.Sprintf("Duplicate claim detected: Same amount submitted within %d days",
				history.WholeDays(e.cfg.DuplicateWindow))}
		}
	}
	return nil
}

func (e *Engine) checkFrequency(f *claimFacts) []string {
	var reasons []string

	if e.cfg.MaxClaimsPerMonth > 0 {
		monthStart := history.MonthStart(f.claim.SubmittedAt)
		inMonth := 0
		for _, prior := range f.priors {
			if !prior.SubmittedAt.Before(monthStart) {
				inMonth++
			}
		}
		if inMonth >= e.cfg.MaxClaimsPerMonth {
			reasons = append(reasons, fmt.Sprintf("Maximum claims per month (%d) exceeded", e.cfg.MaxClaimsPerMonth))
		}
	}

	if e.cfg.MinDaysBetweenClaims > 0 && len(f.priors) > 0 {
		elapsed := history.WholeDays(f.claim.SubmittedAt.Sub(f.priors[0].SubmittedAt))
		if elapsed < e.cfg.MinDaysBetweenClaims {
			reasons = append(reasons, fmt.Sprintf("Minimum %d days required between claims", e.cfg.MinDaysBetweenClaims))
		}
	}

	return reasons
}

func (e *Engine) checkDocuments(f *claimFacts) []string {
	if f.claim.Amount > e.cfg.DocumentThreshold && f.claim.DocumentCount() == 0 {
		return []string{fmt.Sprintf("Supporting documents required for claims over %s", e.cfg.DocumentThreshold.Display())}
	}
	return nil
}

// coverageFor resolves the policy tier by the longest case-insensitive
// prefix match. Unknown prefixes fall back to the global maximum.
func (e *Engine) coverageFor(policyID string) (string, domain.Money) {
	upper := strings.ToUpper(strings.TrimSpace(policyID))
	tier, limit := "", e.cfg.MaxClaimAmount
	for prefix, ceiling := range e.cfg.CoverageTiers {
		p := strings.ToUpper(prefix)
		if p == "" || !strings.HasPrefix(upper, p) {
			continue
		}
		if len(p) > len(tier) || (len(p) == len(tier) && p < tier) {
			tier, limit = p, ceiling
		}
	}
	return tier, limit
}

// historySince is the earliest submission time any history check needs.
func (e *Engine) historySince(submittedAt time.Time) time.Time {
	since := history.MonthStart(submittedAt)
	if t := submittedAt.Add(-e.cfg.DuplicateWindow); t.Before(since) {
		since = t
	}
	if t := submittedAt.Add(-time.Duration(e.cfg.MinDaysBetweenClaims) * 24 * time.Hour); t.Before(since) {
		since = t
	}
	return since
}
