package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/narrative"
)

// analyzeDocuments extracts and classifies every attached document. An
// individual extraction failure is recorded on the document and in its
// result; only a persistence failure aborts the stage. Results keep the
// claim's document order.
func (p *Pipeline) analyzeDocuments(ctx context.Context, claim *domain.Claim) ([]domain.DocumentResult, error) {
	ctx, span := tracer.Start(ctx, "pipeline.documents",
		trace.WithAttributes(attribute.Int("documents.count", len(claim.Documents))),
	)
	defer span.End()

	results := make([]domain.DocumentResult, len(claim.Documents))
	if len(claim.Documents) == 0 {
		return results, nil
	}

	if !p.cfg.ParallelDocuments {
		for i, doc := range claim.Documents {
			res, err := p.analyzeDocument(ctx, doc)
			results[i] = res
			if err != nil {
				span.RecordError(err)
				return results, err
			}
		}
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.MaxParallel)
	for i, doc := range claim.Documents {
		g.Go(func() error {
			res, err := p.analyzeDocument(gctx, doc)
			results[i] = res
			return err
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return results, err
	}
	return results, nil
}

func (p *Pipeline) analyzeDocument(ctx context.Context, doc *domain.Document) (domain.DocumentResult, error) {
	start := time.Now()
	res := domain.DocumentResult{DocumentID: doc.ID}

	doc.BeginAnalysis()

	extraction, label, err := p.extract(ctx, doc.Locator)
	if err != nil {
		doc.FailOCR()
		res.Error = err.Error()
		p.log.Warn("document analysis failed",
			"claim_id", doc.ClaimID,
			"document_id", doc.ID,
			"error", err,
		)
	} else {
		doc.CompleteOCR(extraction.Text, extraction.Confidence)
		if p.deps.Classifier != nil {
			label = p.classify(ctx, doc)
		}
		doc.Classify(label)

		res.Success = true
		res.ExtractedText = doc.Text()
		res.Confidence = *doc.OCRConfidence
		if doc.ClassifiedType != nil {
			res.ClassifiedType = *doc.ClassifiedType
		}
		res.ContentValid = narrative.ContentValid(doc)
	}
	res.ProcessMs = time.Since(start).Milliseconds()

	if err := p.deps.Store.UpdateDocument(ctx, doc); err != nil {
		return res, fmt.Errorf("failed to persist document %s: %w", doc.ID, err)
	}
	return res, nil
}

// extract runs the analyzer. When no classifier is configured and the
// analyzer returns structured output, its label is used.
func (p *Pipeline) extract(ctx context.Context, locator string) (*domain.Extraction, string, error) {
	if sa, ok := p.deps.Analyzer.(domain.StructuredAnalyzer); ok && p.deps.Classifier == nil {
		out, err := withTimeout(ctx, p.cfg.ProviderTimeout, func(ctx context.Context) (*domain.StructuredExtraction, error) {
			return sa.AnalyzeStructured(ctx, locator)
		})
		if err != nil {
			return nil, "", err
		}
		return &out.Extraction, out.ClassifiedType, nil
	}

	out, err := withTimeout(ctx, p.cfg.ProviderTimeout, func(ctx context.Context) (*domain.Extraction, error) {
		return p.deps.Analyzer.Analyze(ctx, locator)
	})
	return out, "", err
}

func (p *Pipeline) classify(ctx context.Context, doc *domain.Document) string {
	label, err := withTimeout(ctx, p.cfg.ProviderTimeout, func(ctx context.Context) (string, error) {
		return p.deps.Classifier.Classify(ctx, doc.Text())
	})
	if err != nil {
		p.log.Warn("document classification failed",
			"claim_id", doc.ClaimID,
			"document_id", doc.ID,
			"error", err,
		)
		return ""
	}
	return label
}
