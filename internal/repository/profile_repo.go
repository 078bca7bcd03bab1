package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepo struct {
	pool *pgxpool.Pool
}

func NewProfileRepo(pool *pgxpool.Pool) *ProfileRepo {
	return &ProfileRepo{pool: pool}
}

func (r *ProfileRepo) GetCredits(ctx context.Context, userID uuid.UUID) (int, error) {
	var credits int
	err := r.pool.QueryRow(ctx, "SELECT credit_count FROM profile WHERE id = $1", userID).Scan(&credits)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFound
	}
	return credits, err
}

// SetCredits overwrites the balance. Callers compute the new value from the
// balance the credit gate observed. Negative values are clamped to zero.
func (r *ProfileRepo) SetCredits(ctx context.Context, userID uuid.UUID, credits int) error {
	if credits < 0 {
		credits = 0
	}
	tag, err := r.pool.Exec(ctx,
		"UPDATE profile SET credit_count = $1, updated_at = NOW() WHERE id = $2",
		credits, userID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
