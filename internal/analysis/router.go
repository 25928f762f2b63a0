package analysis

import (
	"context"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Router dispatches each locator to the analyzer registered for its scheme.
type Router struct {
	routes   map[string]domain.DocumentAnalyzer
	fallback domain.DocumentAnalyzer
}

var _ domain.StructuredAnalyzer = (*Router)(nil)

// NewRouter creates a router. fallback may be nil.
func NewRouter(fallback domain.DocumentAnalyzer) *Router {
	return &Router{
		routes:   make(map[string]domain.DocumentAnalyzer),
		fallback: fallback,
	}
}

// Route registers an analyzer for a scheme.
func (r *Router) Route(scheme string, analyzer domain.DocumentAnalyzer) *Router {
	r.routes[scheme] = analyzer
	return r
}

// Analyze delegates to the analyzer for the locator's scheme.
func (r *Router) Analyze(ctx context.Context, locator string) (*domain.Extraction, error) {
	a, err := r.pick(locator)
	if err != nil {
		return nil, err
	}
	return a.Analyze(ctx, locator)
}

// AnalyzeStructured uses structured analysis when the chosen analyzer has it.
func (r *Router) AnalyzeStructured(ctx context.Context, locator string) (*domain.StructuredExtraction, error) {
	a, err := r.pick(locator)
	if err != nil {
		return nil, err
	}
	if sa, ok := a.(domain.StructuredAnalyzer); ok {
		return sa.AnalyzeStructured(ctx, locator)
	}

	ext, err := a.Analyze(ctx, locator)
	if err != nil {
		return nil, err
	}
	return &domain.StructuredExtraction{Extraction: *ext}, nil
}

func (r *Router) pick(locator string) (domain.DocumentAnalyzer, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	if a, ok := r.routes[loc.Scheme]; ok {
		return a, nil
	}
	if r.fallback != nil {
		return r.fallback, nil
	}
	return nil, fmt.Errorf("%w: no analyzer for %s", ErrUnsupportedLocator, loc.Scheme)
}
