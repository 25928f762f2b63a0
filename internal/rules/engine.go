// Package rules provides the policy rules engine: builtin claim checks plus
// CEL-Go based custom rules.
package rules

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"

	"github.com/opensource-finance/harrier/internal/domain"
)

// History looks up a claimant's earlier claims.
type History interface {
	Priors(ctx context.Context, claim *domain.Claim, since time.Time) ([]*domain.Claim, error)
}

// RuleStore lists persisted custom rule configurations.
type RuleStore interface {
	ListRuleConfigs(ctx context.Context) ([]*domain.RuleConfig, error)
}

// Engine validates claims against policy rules.
type Engine struct {
	mu            sync.RWMutex
	cfg           domain.RulesConfig
	history       History
	validate      *validator.Validate
	env           *cel.Env
	compiledRules map[string]*CompiledRule
	maxWorkers    int
}

// CompiledRule holds a pre-compiled CEL program.
type CompiledRule struct {
	Config  *domain.RuleConfig
	Program cel.Program
}

// RuleResult is the outcome of one custom rule.
type RuleResult struct {
	RuleID  string
	Score   float64
	Outcome string
	Reason  string
}

// NewEngine creates a rules engine. history may be nil, in which case the
// history checks see no prior claims.
func NewEngine(cfg domain.RulesConfig, history History, maxWorkers int) (*Engine, error) {
	if maxWorkers <= 0 {
		maxWorkers = 10
	}

	env, err := cel.NewEnv(
		cel.Variable("amount", cel.DoubleType),
		cel.Variable("amount_cents", cel.IntType),
		cel.Variable("policy_id", cel.StringType),
		cel.Variable("policy_tier", cel.StringType),
		cel.Variable("claimant_id", cel.StringType),
		cel.Variable("description", cel.StringType),
		cel.Variable("document_count", cel.IntType),
		cel.Variable("document_types", cel.ListType(cel.StringType)),
		cel.Variable("completed_documents", cel.IntType),
		cel.Variable("min_ocr_confidence", cel.DoubleType),
		cel.Variable("prior_claims", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}

	return &Engine{
		cfg:           cfg,
		history:       history,
		validate:      validator.New(),
		env:           env,
		compiledRules: make(map[string]*CompiledRule),
		maxWorkers:    maxWorkers,
	}, nil
}

// Validate runs every builtin check and every loaded custom rule against the
// claim. All rules are evaluated and failing reasons are joined with "; ".
// The error is non-nil only when the history lookup fails.
func (e *Engine) Validate(ctx context.Context, claim *domain.Claim) (*domain.RulesVerdict, error) {
	facts := &claimFacts{claim: claim}
	facts.tier, facts.limit = e.coverageFor(claim.PolicyID)

	if e.history != nil {
		priors, err := e.history.Priors(ctx, claim, e.historySince(claim.SubmittedAt))
		if err != nil {
			return nil, fmt.Errorf("claim history lookup: %w", err)
		}
		facts.priors = priors
	}

	verdict := &domain.RulesVerdict{
		RuleResults: make(map[string]bool),
	}
	record := func(name string, reasons []string) {
		verdict.RulesChecked = append(verdict.RulesChecked, name)
		verdict.RuleResults[name] = len(reasons) == 0
		for _, r := range reasons {
			verdict.Failures = append(verdict.Failures, domain.RuleFailure{Rule: name, Reason: r})
		}
	}

	for _, check := range e.builtinChecks() {
		record(check.name, check.eval(facts))
	}

	for _, result := range e.evaluateCustom(facts) {
		var reasons []string
		switch result.Outcome {
		case domain.RuleOutcomeFail:
			reason := result.Reason
			if reason == "" {
				reason = fmt.Sprintf("rule %s failed", result.RuleID)
			}
			reasons = []string{reason}
		case domain.RuleOutcomeError:
			reasons = []string{fmt.Sprintf("rule %s evaluation error", result.RuleID)}
		}
		record(result.RuleID, reasons)
	}

	verdict.Valid = len(verdict.Failures) == 0
	if !verdict.Valid {
		reasons := make([]string, len(verdict.Failures))
		for i, f := range verdict.Failures {
			reasons[i] = f.Reason
		}
		verdict.Reason = strings.Join(reasons, "; ")
	}

	return verdict, nil
}

// ValidateRule compiles and validates a rule without mutating loaded engine rules.
func (e *Engine) ValidateRule(cfg *domain.RuleConfig) error {
	if cfg == nil {
		return fmt.Errorf("rule config is required")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	_, err := e.compileRule(cfg)
	return err
}

// LoadRule compiles and loads a rule into the engine.
func (e *Engine) LoadRule(cfg *domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	compiled, err := e.compileRule(cfg)
	if err != nil {
		return err
	}

	e.compiledRules[cfg.ID] = compiled

	return nil
}

// LoadRules compiles and loads multiple rules. Disabled rules are skipped.
func (e *Engine) LoadRules(configs []*domain.RuleConfig) error {
	for _, cfg := range configs {
		if cfg.Enabled {
			if err := e.LoadRule(cfg); err != nil {
				return err
			}
		}
	}
	return nil
}

// ReloadRules clears all existing rules and loads new ones. On a compile
// error the previously loaded set stays in place.
func (e *Engine) ReloadRules(configs []*domain.RuleConfig) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	newRules := make(map[string]*CompiledRule)

	for _, cfg := range configs {
		if !cfg.Enabled {
			continue
		}

		compiled, err := e.compileRule(cfg)
		if err != nil {
			return err
		}
		newRules[cfg.ID] = compiled
	}

	e.compiledRules = newRules

	return nil
}

// ReloadFromStore replaces the loaded rules with the enabled rules in store
// and returns how many are loaded.
func (e *Engine) ReloadFromStore(ctx context.Context, store RuleStore) (int, error) {
	configs, err := store.ListRuleConfigs(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list rule configs: %w", err)
	}
	if err := e.ReloadRules(configs); err != nil {
		return 0, err
	}
	return e.RulesCount(), nil
}

// RulesCount returns the number of loaded custom rules.
func (e *Engine) RulesCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.compiledRules)
}

// GetLoadedRules returns the currently loaded rule configurations, ordered by id.
func (e *Engine) GetLoadedRules() []*domain.RuleConfig {
	rules := e.loadedRules()
	configs := make([]*domain.RuleConfig, len(rules))
	for i, compiled := range rules {
		configs[i] = compiled.Config
	}
	return configs
}

// Close cleans up the engine.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.compiledRules = make(map[string]*CompiledRule)
	return nil
}

func (e *Engine) loadedRules() []*CompiledRule {
	e.mu.RLock()
	rules := make([]*CompiledRule, 0, len(e.compiledRules))
	for _, rule := range e.compiledRules {
		rules = append(rules, rule)
	}
	e.mu.RUnlock()

	sort.Slice(rules, func(i, j int) bool {
		return rules[i].Config.ID < rules[j].Config.ID
	})
	return rules
}

// evaluateCustom evaluates all loaded custom rules in parallel. Results keep
// rule id order.
func (e *Engine) evaluateCustom(facts *claimFacts) []RuleResult {
	rules := e.loadedRules()
	if len(rules) == 0 {
		return nil
	}

	activation := e.activation(facts)

	results := make([]RuleResult, len(rules))
	var wg sync.WaitGroup
	sem := make(chan struct{}, e.maxWorkers)

	for i, rule := range rules {
		wg.Add(1)
		go func(idx int, r *CompiledRule) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[idx] = evaluateRule(r, activation)
		}(i, rule)
	}

	wg.Wait()

	return results
}

func (e *Engine) activation(f *claimFacts) map[string]any {
	claim := f.claim

	docTypes := make([]string, 0, len(claim.Documents))
	completed := 0
	minConfidence := 1.0
	for _, doc := range claim.Documents {
		docTypes = append(docTypes, string(doc.Type))
		if doc.OCRStatus != domain.OCRCompleted {
			continue
		}
		completed++
		if doc.OCRConfidence != nil && *doc.OCRConfidence < minConfidence {
			minConfidence = *doc.OCRConfidence
		}
	}

	return map[string]any{
		"amount":              claim.Amount.Float(),
		"amount_cents":        claim.Amount.Cents(),
		"policy_id":           claim.PolicyID,
		"policy_tier":         f.tier,
		"claimant_id":         claim.ClaimantID,
		"description":         claim.Description,
		"document_count":      int64(len(claim.Documents)),
		"document_types":      docTypes,
		"completed_documents": int64(completed),
		"min_ocr_confidence":  minConfidence,
		"prior_claims":        int64(len(f.priors)),
	}
}

// evaluateRule evaluates a single rule and returns the result.
func evaluateRule(rule *CompiledRule, activation map[string]any) RuleResult {
	result := RuleResult{RuleID: rule.Config.ID}

	out, _, err := rule.Program.Eval(activation)
	if err != nil {
		result.Outcome = domain.RuleOutcomeError
		result.Reason = fmt.Sprintf("evaluation error: %v", err)
		return result
	}

	result.Score = toScore(out)
	result.Outcome, result.Reason = matchBand(result.Score, rule.Config.Bands)

	return result
}

// toScore converts a CEL value to a numeric score.
func toScore(val ref.Val) float64 {
	switch v := val.(type) {
	case types.Bool:
		if v {
			return 1.0
		}
		return 0.0
	case types.Double:
		return float64(v)
	case types.Int:
		return float64(v)
	default:
		return 0.0
	}
}

// matchBand finds the matching band for a score.
// Bands are evaluated in order. Use lower inclusive, upper exclusive,
// except when upper is nil (meaning infinity).
func matchBand(score float64, bands []domain.RuleBand) (string, string) {
	for _, band := range bands {
		lower := 0.0
		if band.LowerLimit != nil {
			lower = *band.LowerLimit
		}
		if score < lower {
			continue
		}
		if band.UpperLimit == nil || score < *band.UpperLimit {
			return band.Outcome, band.Reason
		}
	}

	return domain.RuleOutcomePass, "no matching band"
}

func (e *Engine) compileRule(cfg *domain.RuleConfig) (*CompiledRule, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}

	ast, issues := e.env.Compile(cfg.Expression)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile rule %s: %w", cfg.ID, issues.Err())
	}

	outputType := ast.OutputType()
	if outputType != cel.BoolType && outputType != cel.DoubleType && outputType != cel.IntType {
		return nil, fmt.Errorf("rule %s: expression must return bool, int, or double, got %s", cfg.ID, outputType)
	}

	for _, band := range cfg.Bands {
		switch band.Outcome {
		case domain.RuleOutcomePass, domain.RuleOutcomeFail:
		default:
			return nil, fmt.Errorf("rule %s: unknown band outcome %q", cfg.ID, band.Outcome)
		}
	}

	program, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", cfg.ID, err)
	}

	return &CompiledRule{
		Config:  cfg,
		Program: program,
	}, nil
}
