package token

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

// NewPostgresRepository creates a new PostgreSQL token repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// GetByValue retrieves a token by its value.
func (r *PostgresRepository) GetByValue(ctx context.Context, value string) (*Token, error) {
	query := `
		SELECT id, user_id, value, platform, device_id, last_used, created_at
		FROM push_tokens
		WHERE value = $1
	`

	var t Token
	err := r.pool.QueryRow(ctx, query, value).Scan(
		&t.ID,
		&t.UserID,
		&t.Value,
		&t.Platform,
		&t.DeviceID,
		&t.LastUsed,
		&t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTokenNotFound
		}
		return nil, err
	}

	return &t, nil
}

// ListByUser retrieves all tokens for a user, oldest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]*Token, error) {
	query := `
		SELECT id, user_id, value, platform, device_id, last_used, created_at
		FROM push_tokens
		WHERE user_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []*Token
	for rows.Next() {
		var t Token
		err := rows.Scan(
			&t.ID,
			&t.UserID,
			&t.Value,
			&t.Platform,
			&t.DeviceID,
			&t.LastUsed,
			&t.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return tokens, nil
}

// CountByUser returns how many tokens a user currently holds.
func (r *PostgresRepository) CountByUser(ctx context.Context, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM push_tokens WHERE user_id = $1`, userID,
	).Scan(&count)
	return count, err
}

// Create inserts a new token row.
func (r *PostgresRepository) Create(ctx context.Context, t *Token) error {
	query := `
		INSERT INTO push_tokens (id, user_id, value, platform, device_id, last_used, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		t.ID,
		t.UserID,
		t.Value,
		t.Platform,
		t.DeviceID,
		t.LastUsed,
		t.CreatedAt,
	)
	return err
}

// Update patches an existing token row by ID.
func (r *PostgresRepository) Update(ctx context.Context, t *Token) error {
	query := `
		UPDATE push_tokens SET
			platform = $2,
			device_id = $3,
			last_used = $4
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, t.ID, t.Platform, t.DeviceID, t.LastUsed)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// Delete removes one token, ownership-checked.
func (r *PostgresRepository) Delete(ctx context.Context, userID, value string) error {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM push_tokens WHERE user_id = $1 AND value = $2`, userID, value,
	)
	if err != nil {
		return err
	}

	if result.RowsAffected() == 0 {
		return ErrTokenNotFound
	}

	return nil
}

// DeleteByValue removes a token regardless of owner.
func (r *PostgresRepository) DeleteByValue(ctx context.Context, value string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM push_tokens WHERE value = $1`, value)
	return err
}

// DeleteByUser removes all tokens for a user.
func (r *PostgresRepository) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM push_tokens WHERE user_id = $1`, userID)
	return err
}

// DeleteOldest removes the user's single oldest token by creation time.
func (r *PostgresRepository) DeleteOldest(ctx context.Context, userID string) error {
	query := `
		DELETE FROM push_tokens
		WHERE id = (
			SELECT id FROM push_tokens
			WHERE user_id = $1
			ORDER BY created_at ASC
			LIMIT 1
		)
	`

	_, err := r.pool.Exec(ctx, query, userID)
	return err
}

// DeleteLastUsedBefore removes every token last used before the cutoff.
func (r *PostgresRepository) DeleteLastUsedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.pool.Exec(ctx,
		`DELETE FROM push_tokens WHERE last_used < $1`, cutoff,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

// Ensure PostgresRepository implements Repository interface.
var _ Repository = (*PostgresRepository)(nil)
