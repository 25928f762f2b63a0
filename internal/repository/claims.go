package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/opensource-finance/harrier/internal/domain"
)

var _ domain.Repository = (*SQLRepository)(nil)

const claimColumns = `id, policy_id, claimant_id, description, amount_cents, status,
	submitted_at, updated_at, fraud_score, approval_score, assigned_specialist_id`

const documentColumns = `id, claim_id, document_type, locator, uploaded_at, ocr_status,
	ocr_confidence, extracted_text, classified_type`

// CreateClaim inserts a claim together with its documents.
func (r *SQLRepository) CreateClaim(ctx context.Context, claim *domain.Claim) error {
	if claim.ID == "" {
		return fmt.Errorf("%w: claim id is required", ErrInvalidInput)
	}
	if claim.Amount < 0 {
		return fmt.Errorf("%w: amount must not be negative", ErrInvalidInput)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		query := `
			INSERT INTO claims (` + claimColumns + `)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, r.rebind(query),
			claim.ID, claim.PolicyID, claim.ClaimantID, claim.Description,
			claim.Amount.Cents(), string(claim.Status),
			claim.SubmittedAt.UTC(), claim.UpdatedAt.UTC(),
			nullFloat(claim.FraudScore), nullFloat(claim.ApprovalScore),
			nullString(claim.AssignedSpecialistID),
		)
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}

		for _, doc := range claim.Documents {
			if err := r.insertDocument(ctx, tx, doc); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetClaim retrieves a claim by ID with its documents.
func (r *SQLRepository) GetClaim(ctx context.Context, claimID string) (*domain.Claim, error) {
	query := `SELECT ` + claimColumns + ` FROM claims WHERE id = ?`

	claim, err := scanClaim(r.db.QueryRowContext(ctx, r.rebind(query), claimID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("claim %s: %w", claimID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	docs, err := r.listDocuments(ctx, claimID)
	if err != nil {
		return nil, err
	}
	claim.Documents = docs

	return claim, nil
}

// UpdateClaim writes the mutable claim fields.
func (r *SQLRepository) UpdateClaim(ctx context.Context, claim *domain.Claim) error {
	return r.updateClaim(ctx, r.db, claim)
}

func (r *SQLRepository) updateClaim(ctx context.Context, db dbtx, claim *domain.Claim) error {
	query := `
		UPDATE claims
		SET status = ?, updated_at = ?, fraud_score = ?, approval_score = ?, assigned_specialist_id = ?
		WHERE id = ?
	`

	result, err := db.ExecContext(ctx, r.rebind(query),
		string(claim.Status), claim.UpdatedAt.UTC(),
		nullFloat(claim.FraudScore), nullFloat(claim.ApprovalScore),
		nullString(claim.AssignedSpecialistID),
		claim.ID,
	)
	if err != nil {
		return fmt.Errorf("update claim: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("claim %s: %w", claim.ID, ErrNotFound)
	}
	return nil
}

// ListClaimsByClaimant returns the claimant's claims submitted at or after
// since, newest first. Documents are not loaded.
func (r *SQLRepository) ListClaimsByClaimant(ctx context.Context, claimantID string, since time.Time) ([]*domain.Claim, error) {
	query := `
		SELECT ` + claimColumns + `
		FROM claims
		WHERE claimant_id = ? AND submitted_at >= ?
		ORDER BY submitted_at DESC
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimantID, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var claims []*domain.Claim
	for rows.Next() {
		claim, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, claim)
	}

	return claims, rows.Err()
}

// AddDocument attaches a document to an existing claim.
func (r *SQLRepository) AddDocument(ctx context.Context, doc *domain.Document) error {
	return r.insertDocument(ctx, r.db, doc)
}

func (r *SQLRepository) insertDocument(ctx context.Context, db dbtx, doc *domain.Document) error {
	if doc.ID == "" || doc.ClaimID == "" {
		return fmt.Errorf("%w: document id and claim id are required", ErrInvalidInput)
	}

	query := `
		INSERT INTO documents (` + documentColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, r.rebind(query),
		doc.ID, doc.ClaimID, string(doc.Type), doc.Locator, doc.UploadedAt.UTC(),
		string(doc.OCRStatus), nullFloat(doc.OCRConfidence),
		nullString(doc.ExtractedText), nullString(doc.ClassifiedType),
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// UpdateDocument writes the analysis outcome of a document.
func (r *SQLRepository) UpdateDocument(ctx context.Context, doc *domain.Document) error {
	query := `
		UPDATE documents
		SET ocr_status = ?, ocr_confidence = ?, extracted_text = ?, classified_type = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, r.rebind(query),
		string(doc.OCRStatus), nullFloat(doc.OCRConfidence),
		nullString(doc.ExtractedText), nullString(doc.ClassifiedType),
		doc.ID,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("document %s: %w", doc.ID, ErrNotFound)
	}
	return nil
}

func (r *SQLRepository) listDocuments(ctx context.Context, claimID string) ([]*domain.Document, error) {
	query := `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE claim_id = ?
		ORDER BY uploaded_at, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []*domain.Document
	for rows.Next() {
		var doc domain.Document
		var docType, status string
		var confidence sql.NullFloat64
		var text, classified sql.NullString

		if err := rows.Scan(
			&doc.ID, &doc.ClaimID, &docType, &doc.Locator, &doc.UploadedAt,
			&status, &confidence, &text, &classified,
		); err != nil {
			return nil, err
		}

		doc.Type = domain.DocumentType(docType)
		doc.OCRStatus = domain.OCRStatus(status)
		doc.OCRConfidence = floatPtr(confidence)
		doc.ExtractedText = stringPtr(text)
		doc.ClassifiedType = stringPtr(classified)
		docs = append(docs, &doc)
	}

	return docs, rows.Err()
}

// RecordOutcome updates the claim and appends the decision in one transaction.
func (r *SQLRepository) RecordOutcome(ctx context.Context, claim *domain.Claim, decision *domain.Decision) error {
	if decision == nil || decision.ID == "" {
		return fmt.Errorf("%w: decision id is required", ErrInvalidInput)
	}
	if decision.ClaimID != claim.ID {
		return fmt.Errorf("%w: decision belongs to claim %s, not %s", ErrInvalidInput, decision.ClaimID, claim.ID)
	}

	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.updateClaim(ctx, tx, claim); err != nil {
			return err
		}

		query := `
			INSERT INTO decisions (
				id, claim_id, status, decided_at, reason, reviewer, fraud_score, approval_score
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`
		_, err := tx.ExecContext(ctx, r.rebind(query),
			decision.ID, decision.ClaimID, string(decision.Status), decision.DecidedAt.UTC(),
			decision.Reason, decision.Reviewer,
			nullFloat(decision.FraudScore), nullFloat(decision.ApprovalScore),
		)
		if err != nil {
			return fmt.Errorf("insert decision: %w", err)
		}
		return nil
	})
}

// ListDecisions returns the decision trail of a claim, oldest first.
func (r *SQLRepository) ListDecisions(ctx context.Context, claimID string) ([]*domain.Decision, error) {
	query := `
		SELECT id, claim_id, status, decided_at, reason, reviewer, fraud_score, approval_score
		FROM decisions
		WHERE claim_id = ?
		ORDER BY decided_at, id
	`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var decisions []*domain.Decision
	for rows.Next() {
		var d domain.Decision
		var status string
		var fraud, approval sql.NullFloat64

		if err := rows.Scan(
			&d.ID, &d.ClaimID, &status, &d.DecidedAt, &d.Reason, &d.Reviewer, &fraud, &approval,
		); err != nil {
			return nil, err
		}

		d.Status = domain.DecisionStatus(status)
		d.FraudScore = floatPtr(fraud)
		d.ApprovalScore = floatPtr(approval)
		decisions = append(decisions, &d)
	}

	return decisions, rows.Err()
}

func scanClaim(s scanner) (*domain.Claim, error) {
	var c domain.Claim
	var cents int64
	var status string
	var fraud, approval sql.NullFloat64
	var specialist sql.NullString

	if err := s.Scan(
		&c.ID, &c.PolicyID, &c.ClaimantID, &c.Description, &cents, &status,
		&c.SubmittedAt, &c.UpdatedAt, &fraud, &approval, &specialist,
	); err != nil {
		return nil, err
	}

	c.Amount = domain.Money(cents)
	c.Status = domain.ClaimStatus(status)
	c.SubmittedAt = c.SubmittedAt.UTC()
	c.UpdatedAt = c.UpdatedAt.UTC()
	c.FraudScore = floatPtr(fraud)
	c.ApprovalScore = floatPtr(approval)
	c.AssignedSpecialistID = stringPtr(specialist)
	return &c, nil
}
