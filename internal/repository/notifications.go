package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/opensource-finance/harrier/internal/domain"
)

const notificationColumns = `id, claim_id, recipient, kind, status, subject, body, created_at, sent_at, error`

// SaveNotification stores a new notification record.
func (r *SQLRepository) SaveNotification(ctx context.Context, n *domain.Notification) error {
	if n.ID == "" {
		return fmt.Errorf("%w: notification id is required", ErrInvalidInput)
	}

	query := `INSERT INTO notifications (` + notificationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	var sentAt sql.NullTime
	if n.SentAt != nil {
		sentAt = sql.NullTime{Time: n.SentAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		n.ID, n.ClaimID, n.Recipient, string(n.Kind), string(n.Status),
		n.Subject, n.Body, n.CreatedAt.UTC(), sentAt, n.Error,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// UpdateNotification records the delivery outcome.
func (r *SQLRepository) UpdateNotification(ctx context.Context, n *domain.Notification) error {
	query := `UPDATE notifications SET status = ?, sent_at = ?, error = ? WHERE id = ?`

	var sentAt sql.NullTime
	if n.SentAt != nil {
		sentAt = sql.NullTime{Time: n.SentAt.UTC(), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, r.rebind(query), string(n.Status), sentAt, n.Error, n.ID)
	if err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("notification %s: %w", n.ID, ErrNotFound)
	}
	return nil
}

// GetNotification retrieves a notification by ID.
func (r *SQLRepository) GetNotification(ctx context.Context, notificationID string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = ?`

	n, err := scanNotification(r.db.QueryRowContext(ctx, r.rebind(query), notificationID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("notification %s: %w", notificationID, ErrNotFound)
	}
	return n, err
}

// ListNotifications returns a claim's notifications, oldest first.
func (r *SQLRepository) ListNotifications(ctx context.Context, claimID string) ([]*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE claim_id = ? ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, r.rebind(query), claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func scanNotification(s scanner) (*domain.Notification, error) {
	var n domain.Notification
	var kind, status string
	var sentAt sql.NullTime

	if err := s.Scan(
		&n.ID, &n.ClaimID, &n.Recipient, &kind, &status,
		&n.Subject, &n.Body, &n.CreatedAt, &sentAt, &n.Error,
	); err != nil {
		return nil, err
	}

	n.Kind = domain.NotificationKind(kind)
	n.Status = domain.NotificationStatus(status)
	if sentAt.Valid {
		t := sentAt.Time.UTC()
		n.SentAt = &t
	}
	return &n, nil
}
