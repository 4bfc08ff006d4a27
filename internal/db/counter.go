package db

import (
	"context"
	"fmt"
)

const publicIDWidth = 6

// NextSequence atomically increments the named counter and returns the new
// value. The upsert is a single statement, so concurrent callers never see
// the same value; inside a transaction the increment rolls back with it.
func NextSequence(ctx context.Context, q querier, name string) (int64, error) {
	var seq int64
	err := q.QueryRow(ctx, `
		INSERT INTO counters (name, seq)
		VALUES ($1, 1)
		ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
		RETURNING seq
	`, name).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// NextSequence on the pool, outside any transaction.
func (db *Postgres) NextSequence(ctx context.Context, name string) (int64, error) {
	return NextSequence(ctx, db.Pool, name)
}

// FormatPublicID left-pads seq with zeros to six digits.
func FormatPublicID(seq int64) string {
	return fmt.Sprintf("%0*d", publicIDWidth, seq)
}
