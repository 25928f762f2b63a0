package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/textract"
	"github.com/aws/aws-sdk-go/service/textract/textractiface"

	"github.com/opensource-finance/harrier/internal/domain"
)

// Textract analyzes documents with AWS Textract. S3 locators are passed by
// reference; local files are sent as bytes.
type Textract struct {
	client textractiface.TextractAPI
	local  *LocalStore
}

var _ domain.StructuredAnalyzer = (*Textract)(nil)

// NewTextract creates a Textract analyzer from an AWS session.
func NewTextract(sess *session.Session) *Textract {
	return &Textract{client: textract.New(sess)}
}

// WithLocal lets the analyzer send files beneath store as inline bytes.
// Without a store, file locators are refused.
func (t *Textract) WithLocal(store *LocalStore) *Textract {
	t.local = store
	return t
}

// NewTextractWithClient creates a Textract analyzer over an existing client.
func NewTextractWithClient(client textractiface.TextractAPI) *Textract {
	return &Textract{client: client}
}

// Analyze detects the text lines of a document.
func (t *Textract) Analyze(ctx context.Context, locator string) (*domain.Extraction, error) {
	doc, err := t.document(locator)
	if err != nil {
		return nil, err
	}

	out, err := t.client.DetectDocumentTextWithContext(ctx, &textract.DetectDocumentTextInput{Document: doc})
	if err != nil {
		return nil, fmt.Errorf("textract detect document text: %w", err)
	}

	ext := linesText(out.Blocks)
	if ext.Text == "" {
		return nil, ErrNoText
	}
	return &ext, nil
}

// AnalyzeStructured detects text lines, tables and key/value form fields.
func (t *Textract) AnalyzeStructured(ctx context.Context, locator string) (*domain.StructuredExtraction, error) {
	doc, err := t.document(locator)
	if err != nil {
		return nil, err
	}

	out, err := t.client.AnalyzeDocumentWithContext(ctx, &textract.AnalyzeDocumentInput{
		Document:     doc,
		FeatureTypes: aws.StringSlice([]string{textract.FeatureTypeTables, textract.FeatureTypeForms}),
	})
	if err != nil {
		return nil, fmt.Errorf("textract analyze document: %w", err)
	}

	ext := linesText(out.Blocks)
	if ext.Text == "" {
		return nil, ErrNoText
	}

	index := indexBlocks(out.Blocks)
	return &domain.StructuredExtraction{
		Extraction: ext,
		Tables:     tables(out.Blocks, index),
		FormFields: formFields(out.Blocks, index),
	}, nil
}

func (t *Textract) document(locator string) (*textract.Document, error) {
	loc, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}

	switch loc.Scheme {
	case SchemeS3:
		return &textract.Document{
			S3Object: &textract.S3Object{
				Bucket: aws.String(loc.Bucket),
				Name:   aws.String(loc.Key),
			},
		}, nil
	case SchemeFile:
		data, err := readLocal(t.local, loc.Path)
		if err != nil {
			return nil, err
		}
		return &textract.Document{Bytes: data}, nil
	default:
		return nil, fmt.Errorf("%w: textract cannot read %s", ErrUnsupportedLocator, loc.Scheme)
	}
}

// linesText joins LINE blocks and averages their confidence into [0,1].
func linesText(blocks []*textract.Block) domain.Extraction {
	var (
		lines []string
		total float64
	)
	for _, b := range blocks {
		if aws.StringValue(b.BlockType) != textract.BlockTypeLine {
			continue
		}
		text := strings.TrimSpace(aws.StringValue(b.Text))
		if text == "" {
			continue
		}
		lines = append(lines, text)
		total += aws.Float64Value(b.Confidence)
	}

	if len(lines) == 0 {
		return domain.Extraction{}
	}
	return domain.Extraction{
		Text:       strings.Join(lines, "\n"),
		Confidence: total / float64(len(lines)) / 100,
	}
}

func indexBlocks(blocks []*textract.Block) map[string]*textract.Block {
	index := make(map[string]*textract.Block, len(blocks))
	for _, b := range blocks {
		if id := aws.StringValue(b.Id); id != "" {
			index[id] = b
		}
	}
	return index
}

func related(b *textract.Block, relType string) []string {
	var ids []string
	for _, rel := range b.Relationships {
		if aws.StringValue(rel.Type) == relType {
			ids = append(ids, aws.StringValueSlice(rel.Ids)...)
		}
	}
	return ids
}

// childText joins the WORD children of a block. Selected checkboxes render as X.
func childText(b *textract.Block, index map[string]*textract.Block) string {
	var words []string
	for _, id := range related(b, textract.RelationshipTypeChild) {
		child, ok := index[id]
		if !ok {
			continue
		}
		switch aws.StringValue(child.BlockType) {
		case textract.BlockTypeWord:
			words = append(words, aws.StringValue(child.Text))
		case textract.BlockTypeSelectionElement:
			if aws.StringValue(child.SelectionStatus) == textract.SelectionStatusSelected {
				words = append(words, "X")
			}
		}
	}
	return strings.Join(words, " ")
}

func tables(blocks []*textract.Block, index map[string]*textract.Block) []domain.Table {
	var out []domain.Table
	for _, b := range blocks {
		if aws.StringValue(b.BlockType) != textract.BlockTypeTable {
			continue
		}

		var (
			cells         []*textract.Block
			rows, columns int
		)
		for _, id := range related(b, textract.RelationshipTypeChild) {
			cell, ok := index[id]
			if !ok || aws.StringValue(cell.BlockType) != textract.BlockTypeCell {
				continue
			}
			cells = append(cells, cell)
			rows = max(rows, int(aws.Int64Value(cell.RowIndex)))
			columns = max(columns, int(aws.Int64Value(cell.ColumnIndex)))
		}
		if rows == 0 || columns == 0 {
			continue
		}

		grid := make([][]string, rows)
		for i := range grid {
			grid[i] = make([]string, columns)
		}
		for _, cell := range cells {
			r, c := int(aws.Int64Value(cell.RowIndex)), int(aws.Int64Value(cell.ColumnIndex))
			if r < 1 || c < 1 {
				continue
			}
			grid[r-1][c-1] = childText(cell, index)
		}
		out = append(out, domain.Table{Rows: grid})
	}
	return out
}

func formFields(blocks []*textract.Block, index map[string]*textract.Block) map[string]string {
	fields := make(map[string]string)
	for _, b := range blocks {
		if aws.StringValue(b.BlockType) != textract.BlockTypeKeyValueSet || !isKey(b) {
			continue
		}

		key := strings.TrimRight(strings.TrimSpace(childText(b, index)), ":")
		if key == "" {
			continue
		}

		var values []string
		for _, id := range related(b, textract.RelationshipTypeValue) {
			if v, ok := index[id]; ok {
				if text := childText(v, index); text != "" {
					values = append(values, text)
				}
			}
		}
		fields[key] = strings.Join(values, " ")
	}

	if len(fields) == 0 {
		return nil
	}
	return fields
}

func isKey(b *textract.Block) bool {
	for _, et := range aws.StringValueSlice(b.EntityTypes) {
		if et == textract.EntityTypeKey {
			return true
		}
	}
	return false
}
