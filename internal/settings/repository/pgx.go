package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgxRepository stores settings in the app_configs table.
// Rows flipped to enabled=false read as absent so operators can park a
// value without deleting it.
type PgxRepository struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *PgxRepository { return &PgxRepository{pool: pool} }

func (r *PgxRepository) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := r.pool.QueryRow(ctx,
		`SELECT value FROM app_configs WHERE key = $1 AND enabled`, key,
	).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (r *PgxRepository) Upsert(ctx context.Context, key, value string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO app_configs (key, value, enabled, updated_at)
		 VALUES ($1, $2, TRUE, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, enabled = TRUE, updated_at = now()`,
		key, value)
	return err
}

func (r *PgxRepository) Delete(ctx context.Context, key string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM app_configs WHERE key = $1`, key)
	return err
}

func (r *PgxRepository) List(ctx context.Context) (map[string]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT key, value FROM app_configs WHERE enabled`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]string{}
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, rows.Err()
}
