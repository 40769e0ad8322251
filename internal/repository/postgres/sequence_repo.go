package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// SequenceRepository implements domain.SequenceRepository using PostgreSQL
type SequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository creates a new SequenceRepository
func NewSequenceRepository(pool *pgxpool.Pool) *SequenceRepository {
	return &SequenceRepository{pool: pool}
}

// Next atomically increments and returns the counter for (name, year),
// starting at 1. The row lock is held until the enclosing transaction ends.
func (r *SequenceRepository) Next(ctx context.Context, name string, year int) (int64, error) {
	query := `
		INSERT INTO sequences (name, year, value)
		VALUES ($1, $2, 1)
		ON CONFLICT (name, year) DO UPDATE SET value = sequences.value + 1
		RETURNING value`

	var value int64
	if err := conn(ctx, r.pool).QueryRow(ctx, query, name, year).Scan(&value); err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s/%d: %w", name, year, err)
	}
	return value, nil
}
