package postgres

import (
	"context"
	"fmt"

	"github.com/utafrali/storefront/internal/domain"
	"github.com/utafrali/storefront/pkg/database"
)

const insertAttemptSQL = `
		INSERT INTO checkout_attempts (
			id, session_id, user_id, buyer_email, item_count, subtotal,
			status, failure_kind, processor_session_id, created_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11
		)`

const listAttemptsBySessionSQL = `
		SELECT id, session_id, user_id, buyer_email, item_count, subtotal,
			status, failure_kind, processor_session_id, created_at, completed_at
		FROM checkout_attempts
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2`

// AttemptRepository implements repository.AttemptRepository using PostgreSQL.
type AttemptRepository struct {
	db database.DBTX
}

// NewAttemptRepository creates a new PostgreSQL-backed attempt repository.
func NewAttemptRepository(db database.DBTX) *AttemptRepository {
	return &AttemptRepository{db: db}
}

// Create inserts a finished checkout attempt.
func (r *AttemptRepository) Create(ctx context.Context, a *domain.CheckoutAttempt) (err error) {
	ctx, end := database.TraceQuery(ctx, "InsertCheckoutAttempt", insertAttemptSQL)
	defer func() { end(err) }()

	_, err = r.db.Exec(ctx, insertAttemptSQL,
		a.ID,
		a.SessionID,
		nullableString(a.UserID),
		a.BuyerEmail,
		a.ItemCount,
		a.Subtotal,
		string(a.Status),
		nullableString(a.FailureKind),
		nullableString(a.ProcessorSessionID),
		a.CreatedAt,
		a.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout attempt: %w", err)
	}
	return nil
}

// ListBySession returns up to limit attempts of a session, newest first.
func (r *AttemptRepository) ListBySession(ctx context.Context, sessionID string, limit int) (_ []domain.CheckoutAttempt, err error) {
	ctx, end := database.TraceQuery(ctx, "ListCheckoutAttempts", listAttemptsBySessionSQL)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, listAttemptsBySessionSQL, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list checkout attempts: %w", err)
	}
	defer rows.Close()

	attempts := []domain.CheckoutAttempt{}
	for rows.Next() {
		var (
			a                  domain.CheckoutAttempt
			status             string
			userID             *string
			failureKind        *string
			processorSessionID *string
		)
		if err := rows.Scan(
			&a.ID,
			&a.SessionID,
			&userID,
			&a.BuyerEmail,
			&a.ItemCount,
			&a.Subtotal,
			&status,
			&failureKind,
			&processorSessionID,
			&a.CreatedAt,
			&a.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan checkout attempt row: %w", err)
		}
		a.Status = domain.AttemptStatus(status)
		a.UserID = derefString(userID)
		a.FailureKind = derefString(failureKind)
		a.ProcessorSessionID = derefString(processorSessionID)
		attempts = append(attempts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate checkout attempt rows: %w", err)
	}

	return attempts, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
