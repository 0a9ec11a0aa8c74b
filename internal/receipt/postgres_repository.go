package receipt

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL receipt repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new receipt row.
func (r *PostgresRepository) Create(ctx context.Context, rec *Receipt) error {
	query := `
		INSERT INTO push_receipts (ticket_id, token_value, status, error, created_at, checked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		rec.TicketID,
		rec.TokenValue,
		rec.Status,
		rec.Error,
		rec.CreatedAt,
		rec.CheckedAt,
	)
	return err
}

// GetByTicketID retrieves one receipt by its gateway ticket id.
func (r *PostgresRepository) GetByTicketID(ctx context.Context, ticketID string) (*Receipt, error) {
	query := `
		SELECT ticket_id, token_value, status, error, created_at, checked_at
		FROM push_receipts
		WHERE ticket_id = $1
	`

	var rec Receipt
	err := r.pool.QueryRow(ctx, query, ticketID).Scan(
		&rec.TicketID,
		&rec.TokenValue,
		&rec.Status,
		&rec.Error,
		&rec.CreatedAt,
		&rec.CheckedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrReceiptNotFound
		}
		return nil, err
	}

	return &rec, nil
}

// ListPendingBefore retrieves up to limit pending receipts created before
// the cutoff, oldest first.
func (r *PostgresRepository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]*Receipt, error) {
	query := `
		SELECT ticket_id, token_value, status, error, created_at, checked_at
		FROM push_receipts
		WHERE status = $1 AND created_at < $2
		ORDER BY created_at ASC
		LIMIT $3
	`

	rows, err := r.pool.Query(ctx, query, StatusPending, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var receipts []*Receipt
	for rows.Next() {
		var rec Receipt
		err := rows.Scan(
			&rec.TicketID,
			&rec.TokenValue,
			&rec.Status,
			&rec.Error,
			&rec.CreatedAt,
			&rec.CheckedAt,
		)
		if err != nil {
			return nil, err
		}
		receipts = append(receipts, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return receipts, nil
}

// MarkOK transitions a receipt to its terminal ok state.
func (r *PostgresRepository) MarkOK(ctx context.Context, ticketID string, checkedAt time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE push_receipts SET status = $2, checked_at = $3 WHERE ticket_id = $1`,
		ticketID, StatusOK, checkedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// MarkError transitions a receipt to its terminal error state.
func (r *PostgresRepository) MarkError(ctx context.Context, ticketID, reason string, checkedAt time.Time) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE push_receipts SET status = $2, error = $3, checked_at = $4 WHERE ticket_id = $1`,
		ticketID, StatusError, reason, checkedAt,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return ErrReceiptNotFound
	}
	return nil
}

// DeleteCreatedBefore removes receipts created before the cutoff regardless of status.
func (r *PostgresRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM push_receipts WHERE created_at < $1`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
