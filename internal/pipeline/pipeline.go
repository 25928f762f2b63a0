// Package pipeline runs a claim from submission to a recorded decision:
// document analysis, rules validation, risk scoring, decision and
// notification.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/narrative"
)

var tracer = otel.Tracer("harrier-pipeline")

// Stage names used in failure reports and spans.
const (
	StageStart     = "start"
	StageDocuments = "documents"
	StageRules     = "rules"
	StageNarrative = "narrative"
	StageScoring   = "scoring"
	StageDecision  = "decision"
)

// Store is the persistence the pipeline needs.
type Store interface {
	GetClaim(ctx context.Context, claimID string) (*domain.Claim, error)
	UpdateClaim(ctx context.Context, claim *domain.Claim) error
	UpdateDocument(ctx context.Context, doc *domain.Document) error
	RecordOutcome(ctx context.Context, claim *domain.Claim, decision *domain.Decision) error
}

// RulesValidator validates a claim against policy rules.
type RulesValidator interface {
	Validate(ctx context.Context, claim *domain.Claim) (*domain.RulesVerdict, error)
}

// RiskAssessor combines the statistical and narrative signals.
type RiskAssessor interface {
	Assess(stat domain.StatisticalScore, narrative domain.NarrativeRisk) *domain.RiskVerdict
}

// FeatureSource builds statistical model inputs for a claim.
type FeatureSource interface {
	Features(ctx context.Context, claim *domain.Claim) (domain.ClaimFeatures, error)
}

// FailureReporter receives pipeline failures.
type FailureReporter interface {
	PipelineFailure(ctx context.Context, claimID, stage string, err error)
}

// Deps are the pipeline collaborators. Classifier, Notifier and Alerts are
// optional.
type Deps struct {
	Store      Store
	Rules      RulesValidator
	Scorer     RiskAssessor
	Analyzer   domain.DocumentAnalyzer
	Classifier domain.DocumentClassifier
	Narrative  domain.NarrativeAnalyzer
	Model      domain.StatisticalScorer
	Features   FeatureSource
	Notifier   domain.Notifier
	Alerts     FailureReporter
	Logger     *slog.Logger

	// Clock and NewID default to time.Now and uuid.
	Clock func() time.Time
	NewID func() string
}

// Pipeline is the claim processing orchestrator.
type Pipeline struct {
	cfg  domain.PipelineConfig
	deps Deps
	rec  *recorder
	log  *slog.Logger
}

// New creates a pipeline.
func New(cfg domain.PipelineConfig, deps Deps) (*Pipeline, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("pipeline: store is required")
	case deps.Rules == nil:
		return nil, fmt.Errorf("pipeline: rules validator is required")
	case deps.Scorer == nil:
		return nil, fmt.Errorf("pipeline: risk scorer is required")
	case deps.Analyzer == nil:
		return nil, fmt.Errorf("pipeline: document analyzer is required")
	case deps.Narrative == nil:
		return nil, fmt.Errorf("pipeline: narrative analyzer is required")
	case deps.Model == nil:
		return nil, fmt.Errorf("pipeline: statistical scorer is required")
	case deps.Features == nil:
		return nil, fmt.Errorf("pipeline: feature source is required")
	}

	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	if deps.NewID == nil {
		deps.NewID = func() string { return uuid.New().String() }
	}
	if cfg.MaxParallel <= 0 {
		cfg.MaxParallel = 1
	}

	return &Pipeline{
		cfg:  cfg,
		deps: deps,
		rec:  &recorder{store: deps.Store, newID: deps.NewID, now: deps.Clock},
		log:  deps.Logger,
	}, nil
}

// Process runs the claim through every stage. Refusals (unknown claim,
// already decided, run in progress) are returned as errors with no state
// change. Any later failure is reported in the result with Success=false
// and the claim left in ProcessingFailed.
func (p *Pipeline) Process(ctx context.Context, claimID string) (*domain.ProcessingResult, error) {
	start := time.Now()

	ctx, span := tracer.Start(ctx, "pipeline.Process",
		trace.WithAttributes(attribute.String("claim.id", claimID)),
	)
	defer span.End()

	claim, err := p.deps.Store.GetClaim(ctx, claimID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if err := p.admit(claim); err != nil {
		return nil, err
	}

	result := &domain.ProcessingResult{
		ClaimID:   claim.ID,
		Documents: []domain.DocumentResult{},
		Metadata:  domain.ProcessingMetadata{TraceID: traceID(span)},
	}
	defer func() {
		result.Status = claim.Status
		result.Metadata.TotalMs = time.Since(start).Milliseconds()
	}()

	log := p.log.With("claim_id", claim.ID, "trace_id", result.Metadata.TraceID)
	log.Info("processing claim", "status", claim.Status, "documents", len(claim.Documents))

	// Start
	if claim.Status == domain.ClaimProcessing {
		log.Warn("re-entering stale processing claim", "updated_at", claim.UpdatedAt)
		claim.Touch(p.deps.Clock())
	} else if err := claim.TransitionTo(domain.ClaimProcessing, p.deps.Clock()); err != nil {
		return p.fail(ctx, span, claim, result, StageStart, err), nil
	}
	if err := p.deps.Store.UpdateClaim(ctx, claim); err != nil {
		return p.fail(ctx, span, claim, result, StageStart, err), nil
	}

	// Documents
	stageStart := time.Now()
	docs, err := p.analyzeDocuments(ctx, claim)
	result.Documents = docs
	result.Metadata.DocumentsMs = time.Since(stageStart).Milliseconds()
	if err != nil {
		return p.fail(ctx, span, claim, result, StageDocuments, err), nil
	}

	// Rules
	stageStart = time.Now()
	verdict, err := p.validate(ctx, claim)
	result.Metadata.RulesMs = time.Since(stageStart).Milliseconds()
	if err != nil {
		return p.fail(ctx, span, claim, result, StageRules, err), nil
	}
	result.Rules = verdict

	if !verdict.Valid {
		if err := p.decide(ctx, claim, result, domain.DispositionReject, verdict.Reason); err != nil {
			return p.fail(ctx, span, claim, result, StageDecision, err), nil
		}
		log.Info("claim rejected by rules", "reason", verdict.Reason)
		return result, nil
	}

	// Narrative and scoring
	stageStart = time.Now()
	risk, err := p.assess(ctx, claim, result)
	result.Metadata.ScoringMs = time.Since(stageStart).Milliseconds()
	if err != nil {
		var se *stageError
		stage := StageScoring
		if errors.As(err, &se) {
			stage = se.stage
		}
		return p.fail(ctx, span, claim, result, stage, err), nil
	}
	result.Risk = risk

	if err := claim.SetScores(risk.CombinedFraud, risk.StatisticalApproval, p.deps.Clock()); err != nil {
		return p.fail(ctx, span, claim, result, StageScoring, err), nil
	}

	// Decision
	if err := p.decide(ctx, claim, result, risk.Disposition, decisionReason(risk)); err != nil {
		return p.fail(ctx, span, claim, result, StageDecision, err), nil
	}

	span.SetAttributes(
		attribute.String("claim.disposition", string(risk.Disposition)),
		attribute.Float64("claim.combined_fraud", risk.CombinedFraud),
	)
	log.Info("claim processed",
		"disposition", risk.Disposition,
		"combined_fraud", risk.CombinedFraud,
		"approval", risk.StatisticalApproval,
	)
	return result, nil
}

// admit refuses claims that an automated run must not touch.
func (p *Pipeline) admit(claim *domain.Claim) error {
	switch {
	case claim.Status.Decided():
		return fmt.Errorf("claim %s is %s: %w", claim.ID, claim.Status, domain.ErrClaimFinalized)
	case claim.Status == domain.ClaimProcessing:
		if p.cfg.StaleAfter <= 0 || p.deps.Clock().Sub(claim.UpdatedAt) < p.cfg.StaleAfter {
			return fmt.Errorf("claim %s: %w", claim.ID, domain.ErrClaimInProgress)
		}
	}
	return nil
}

func (p *Pipeline) validate(ctx context.Context, claim *domain.Claim) (*domain.RulesVerdict, error) {
	ctx, span := tracer.Start(ctx, "pipeline.rules")
	defer span.End()

	verdict, err := p.deps.Rules.Validate(ctx, claim)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Bool("rules.valid", verdict.Valid))
	return verdict, nil
}

type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

// assess runs narrative analysis and the statistical model, then combines
// them. Summary and entities are stored on the result.
func (p *Pipeline) assess(ctx context.Context, claim *domain.Claim, result *domain.ProcessingResult) (*domain.RiskVerdict, error) {
	text := firstDocumentText(claim)
	narrativeText := strings.TrimSpace(strings.TrimSpace(claim.Description) + "\n" + text)

	nctx, nspan := tracer.Start(ctx, "pipeline.narrative")
	summary, err := withTimeout(nctx, p.cfg.ProviderTimeout, func(ctx context.Context) (string, error) {
		return p.deps.Narrative.Summarize(ctx, claim.Description, text)
	})
	if err != nil {
		nspan.RecordError(err)
		nspan.End()
		return nil, &stageError{StageNarrative, fmt.Errorf("summarize: %w", err)}
	}
	result.Summary = summary

	nrisk, err := withTimeout(nctx, p.cfg.ProviderTimeout, func(ctx context.Context) (*domain.NarrativeRisk, error) {
		return p.deps.Narrative.AnalyzeFraudNarrative(ctx, narrativeText)
	})
	if err != nil {
		nspan.RecordError(err)
		nspan.End()
		return nil, &stageError{StageNarrative, fmt.Errorf("fraud narrative: %w", err)}
	}
	nrisk = narrative.WithOCRConfidence(nrisk, claim.Documents)

	entities, err := withTimeout(nctx, p.cfg.ProviderTimeout, func(ctx context.Context) (*domain.Entities, error) {
		return p.deps.Narrative.ExtractEntities(ctx, narrativeText)
	})
	if err != nil {
		p.log.Warn("entity extraction failed", "claim_id", claim.ID, "error", err)
	} else {
		result.Entities = entities
	}
	nspan.SetAttributes(attribute.Float64("narrative.risk_score", nrisk.RiskScore))
	nspan.End()

	sctx, sspan := tracer.Start(ctx, "pipeline.scoring")
	defer sspan.End()

	features, err := p.deps.Features.Features(sctx, claim)
	if err != nil {
		sspan.RecordError(err)
		return nil, &stageError{StageScoring, fmt.Errorf("claim features: %w", err)}
	}

	stat, err := withTimeout(sctx, p.cfg.ProviderTimeout, func(ctx context.Context) (*domain.StatisticalScore, error) {
		return p.deps.Model.Score(ctx, features)
	})
	if err != nil {
		sspan.RecordError(err)
		return nil, &stageError{StageScoring, fmt.Errorf("statistical score: %w", err)}
	}

	verdict := p.deps.Scorer.Assess(*stat, *nrisk)
	sspan.SetAttributes(attribute.Float64("scoring.combined_fraud", verdict.CombinedFraud))
	return verdict, nil
}

// decide records the outcome and notifies the claimant.
func (p *Pipeline) decide(ctx context.Context, claim *domain.Claim, result *domain.ProcessingResult, d domain.Disposition, reason string) error {
	ctx, span := tracer.Start(ctx, "pipeline.decision",
		trace.WithAttributes(attribute.String("claim.disposition", string(d))),
	)
	defer span.End()

	if _, err := p.rec.record(ctx, claim, d, reason); err != nil {
		span.RecordError(err)
		return err
	}

	result.Success = true
	result.FinalDecision = d
	result.Reason = reason

	kind := domain.NotifyDecisionMade
	if d == domain.DispositionManualReview {
		kind = domain.NotifyManualReviewAssigned
	}
	p.notify(ctx, claim, kind)
	return nil
}

func (p *Pipeline) notify(ctx context.Context, claim *domain.Claim, kind domain.NotificationKind) {
	if p.deps.Notifier == nil {
		return
	}
	_, err := withTimeout(ctx, p.cfg.ProviderTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.deps.Notifier.Notify(ctx, claim.ID, claim.ClaimantID, kind)
	})
	if err != nil {
		p.log.Warn("notification failed", "claim_id", claim.ID, "kind", kind, "error", err)
	}
}

// fail marks the run unsuccessful and parks the claim in ProcessingFailed.
// The state write and the report run on a context that outlives ctx.
func (p *Pipeline) fail(ctx context.Context, span trace.Span, claim *domain.Claim, result *domain.ProcessingResult, stage string, err error) *domain.ProcessingResult {
	result.Success = false
	result.FinalDecision = ""
	result.Error = fmt.Sprintf("%s: %v", stage, err)

	span.RecordError(err)
	span.SetStatus(codes.Error, result.Error)

	detached := context.WithoutCancel(ctx)
	if claim.Status == domain.ClaimProcessing {
		if terr := claim.TransitionTo(domain.ClaimProcessingFailed, p.deps.Clock()); terr == nil {
			if uerr := p.deps.Store.UpdateClaim(detached, claim); uerr != nil {
				p.log.Error("failed to persist ProcessingFailed", "claim_id", claim.ID, "error", uerr)
			}
		}
	}

	if p.deps.Alerts != nil {
		p.deps.Alerts.PipelineFailure(detached, claim.ID, stage, err)
	}

	p.log.Error("claim processing failed",
		"claim_id", claim.ID,
		"stage", stage,
		"error", err,
	)
	return result
}

// withTimeout bounds a provider call. A zero timeout means no bound.
func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(ctx)
}

func firstDocumentText(claim *domain.Claim) string {
	for _, doc := range claim.Documents {
		if doc.OCRStatus == domain.OCRCompleted {
			return doc.Text()
		}
	}
	return ""
}

func decisionReason(risk *domain.RiskVerdict) string {
	switch risk.Disposition {
	case domain.DispositionAutoApprove:
		return fmt.Sprintf("Automated approval: fraud risk %.2f, approval %.2f",
			risk.CombinedFraud, risk.StatisticalApproval)
	case domain.DispositionReject:
		return fmt.Sprintf("High fraud risk: combined fraud score %.2f", risk.CombinedFraud)
	default:
		return fmt.Sprintf("Manual review required: fraud risk %.2f (%s), approval %.2f",
			risk.CombinedFraud, risk.RiskLevel, risk.StatisticalApproval)
	}
}

func traceID(span trace.Span) string {
	if id := span.SpanContext().TraceID(); id.IsValid() {
		return id.String()
	}
	return uuid.New().String()
}
