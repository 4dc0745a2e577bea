package sheets

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/procureflow/internal/platform/db"
)

// PostgresStore keeps every sheet row as a jsonb document in sheet_rows.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore constructs a PostgreSQL backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Fetch returns rows in insertion order.
func (s *PostgresStore) Fetch(ctx context.Context, sheet Sheet) ([]Row, error) {
	if !sheet.Valid() {
		return nil, ErrUnknownSheet
	}
	rows, err := s.pool.Query(ctx, `SELECT data FROM sheet_rows WHERE sheet = $1 ORDER BY id`, string(sheet))
	if err != nil {
		return nil, fmt.Errorf("sheets: query %s: %w", sheet, err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sheets: scan %s: %w", sheet, err)
		}
		row := Row{}
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("sheets: decode %s: %w", sheet, err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Post writes the whole batch in one transaction.
func (s *PostgresStore) Post(ctx context.Context, sheet Sheet, mode Mode, rows []Row) error {
	if err := checkPost(sheet, mode, rows); err != nil {
		return err
	}
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		for _, row := range rows {
			payload, err := json.Marshal(row)
			if err != nil {
				return fmt.Errorf("sheets: encode %s row: %w", sheet, err)
			}
			key := row.Key(sheet)
			if mode == ModeInsert {
				if _, err := tx.Exec(ctx, `INSERT INTO sheet_rows (sheet, row_key, data) VALUES ($1, $2, $3)`, string(sheet), key, payload); err != nil {
					return fmt.Errorf("sheets: insert %s: %w", sheet, err)
				}
				continue
			}
			tag, err := tx.Exec(ctx, `UPDATE sheet_rows SET data = data || $3::jsonb, updated_at = NOW() WHERE sheet = $1 AND row_key = $2`, string(sheet), key, payload)
			if err != nil {
				return fmt.Errorf("sheets: update %s: %w", sheet, err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("%w: %s %s", ErrRowNotFound, sheet, key)
			}
		}
		return nil
	})
}
