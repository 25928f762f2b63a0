package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/opensource-finance/harrier/internal/domain"
)

// FileAnalyzer reads plain-text documents beneath a document root.
// Extracted text is exact, so confidence is always 1.
type FileAnalyzer struct {
	store *LocalStore
}

var _ domain.DocumentAnalyzer = (*FileAnalyzer)(nil)

// NewFileAnalyzer creates a local file analyzer over store.
func NewFileAnalyzer(store *LocalStore) *FileAnalyzer {
	return &FileAnalyzer{store: store}
}

// Analyze returns the file content as extracted text.
func (a *FileAnalyzer) Analyze(ctx context.Context, locator string) (*domain.Extraction, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	if loc.Scheme != SchemeFile {
		return nil, fmt.Errorf("%w: local analyzer cannot read %s", ErrUnsupportedLocator, loc.Scheme)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := readLocal(a.store, loc.Path)
	if err != nil {
		return nil, err
	}
	if !isText(data) {
		return nil, fmt.Errorf("document %s is not plain text", loc.Path)
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, ErrNoText
	}
	return &domain.Extraction{Text: text, Confidence: 1}, nil
}
