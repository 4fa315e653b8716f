package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/errolitolopez/user-access-manager/internal/users/domain"
)

type PgxRepository struct{ pool *pgxpool.Pool }

func New(pool *pgxpool.Pool) *PgxRepository { return &PgxRepository{pool: pool} }

const userColumns = `id, username, email, password_hash, enabled,
	failed_login_attempts, last_failed_login_time, account_locked,
	account_expired, credentials_expired, account_expiration_date,
	password_last_updated, created_at, updated_at`

func (r *PgxRepository) FindByUsername(ctx context.Context, username string) (domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

func (r *PgxRepository) FindByID(ctx context.Context, id uuid.UUID) (domain.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PgxRepository) Create(ctx context.Context, u domain.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, email, password_hash, enabled,
			failed_login_attempts, last_failed_login_time, account_locked,
			account_expired, credentials_expired, account_expiration_date,
			password_last_updated, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, now(), now())`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.Enabled,
		u.FailedLoginAttempts, u.LastFailedLoginTime, u.AccountLocked,
		u.AccountExpired, u.CredentialsExpired, u.AccountExpirationDate,
		u.PasswordLastUpdated)
	return err
}

func (r *PgxRepository) Save(ctx context.Context, u domain.User) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE users SET
			email = $2, password_hash = $3, enabled = $4,
			failed_login_attempts = $5, last_failed_login_time = $6,
			account_locked = $7, account_expired = $8,
			credentials_expired = $9, account_expiration_date = $10,
			password_last_updated = $11, updated_at = now()
		 WHERE id = $1`,
		u.ID, u.Email, u.PasswordHash, u.Enabled,
		u.FailedLoginAttempts, u.LastFailedLoginTime,
		u.AccountLocked, u.AccountExpired,
		u.CredentialsExpired, u.AccountExpirationDate,
		u.PasswordLastUpdated)
	return err
}

// SaveAll persists a batch in a single transaction so a reconciliation
// run is atomic at the storage layer.
func (r *PgxRepository) SaveAll(ctx context.Context, us []domain.User) error {
	if len(us) == 0 {
		return nil
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	for _, u := range us {
		b.Queue(
			`UPDATE users SET
				failed_login_attempts = $2, last_failed_login_time = $3,
				account_locked = $4, account_expired = $5,
				credentials_expired = $6, updated_at = now()
			 WHERE id = $1`,
			u.ID, u.FailedLoginAttempts, u.LastFailedLoginTime,
			u.AccountLocked, u.AccountExpired, u.CredentialsExpired)
	}
	if err := tx.SendBatch(ctx, b).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *PgxRepository) FindLockedBefore(ctx context.Context, t time.Time) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE account_locked AND last_failed_login_time < $1`, t)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func (r *PgxRepository) FindExpiringBefore(ctx context.Context, t time.Time) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE NOT account_expired AND account_expiration_date < $1`, t)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func (r *PgxRepository) FindCredentialsStaleBefore(ctx context.Context, t time.Time) ([]domain.User, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE NOT credentials_expired AND password_last_updated < $1`, t)
	if err != nil {
		return nil, err
	}
	return scanUsers(rows)
}

func scanUser(row pgx.Row) (domain.User, error) {
	var u domain.User
	err := row.Scan(
		&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Enabled,
		&u.FailedLoginAttempts, &u.LastFailedLoginTime, &u.AccountLocked,
		&u.AccountExpired, &u.CredentialsExpired, &u.AccountExpirationDate,
		&u.PasswordLastUpdated, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.User{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.User{}, err
	}
	return u, nil
}

func scanUsers(rows pgx.Rows) ([]domain.User, error) {
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
