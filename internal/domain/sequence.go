package domain

import (
	"context"
	"fmt"
)

// SequenceRepository hands out monotonically increasing counters per (name, year).
type SequenceRepository interface {
	Next(ctx context.Context, name string, year int) (int64, error)
}

// FormatSequenceNumber renders numbers like LN-2025-0001.
func FormatSequenceNumber(prefix string, year int, value int64) string {
	return fmt.Sprintf("%s-%d-%04d", prefix, year, value)
}

// Transactor runs fn inside a database transaction. Repositories called with the
// context passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
