package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/storage"
)

// CreateUser inserts a user. Returns storage.ErrDuplicate if the email is taken.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`INSERT INTO users (email, password_hash) VALUES ($1, $2)
		 RETURNING id, email, password_hash, created_at`,
		email, passwordHash,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, fmt.Errorf("storage: create user %s: %w", email, storage.ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("storage: create user: %w", err)
	}
	return u, nil
}

// GetUserByEmail looks a user up by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	var u model.User
	err := db.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.User{}, storage.ErrNotFound
		}
		return model.User{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.pool.Query(ctx, `SELECT id, email, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	defer rows.Close()

	var out []model.User
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("storage: list users: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser removes a user and their stress history in one transaction.
// Retries on serialization failures.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	return withRetry(ctx, 3, 20*time.Millisecond, func() error {
		tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("storage: begin delete user tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var email string
		err = tx.QueryRow(ctx, `DELETE FROM users WHERE id = $1 RETURNING email`, id).Scan(&email)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return storage.ErrNotFound
			}
			return fmt.Errorf("storage: delete user: %w", err)
		}

		tag, err := tx.Exec(ctx, `DELETE FROM stress_results WHERE user_email = $1`, email)
		if err != nil {
			return fmt.Errorf("storage: delete user history: %w", err)
		}
		db.logger.Info("storage: deleted user", "user_id", id, "stress_records", tag.RowsAffected())

		return tx.Commit(ctx)
	})
}

const adminColumns = `id, username, email, password_hash, is_active, created_at`

func scanAdmin(row pgx.Row) (model.Admin, error) {
	var a model.Admin
	err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Active, &a.CreatedAt)
	return a, err
}

// CreateAdmin inserts an admin. Returns storage.ErrDuplicate if the username or email is taken.
func (db *DB) CreateAdmin(ctx context.Context, a model.Admin) (model.Admin, error) {
	out, err := scanAdmin(db.pool.QueryRow(ctx,
		`INSERT INTO admins (username, email, password_hash, is_active) VALUES ($1, $2, $3, $4)
		 RETURNING `+adminColumns,
		a.Username, a.Email, a.PasswordHash, a.Active,
	))
	if err != nil {
		if isDuplicateKey(err) {
			return model.Admin{}, fmt.Errorf("storage: create admin %s: %w", a.Email, storage.ErrDuplicate)
		}
		return model.Admin{}, fmt.Errorf("storage: create admin: %w", err)
	}
	return out, nil
}

// GetAdminByLogin finds an active admin whose email or username equals login.
func (db *DB) GetAdminByLogin(ctx context.Context, login string) (model.Admin, error) {
	a, err := scanAdmin(db.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins
		 WHERE (email = $1 OR username = $1) AND is_active
		 ORDER BY id LIMIT 1`, login))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Admin{}, storage.ErrNotFound
		}
		return model.Admin{}, fmt.Errorf("storage: get admin by login: %w", err)
	}
	return a, nil
}

// GetActiveAdmin returns the admin with id if it is still active.
func (db *DB) GetActiveAdmin(ctx context.Context, id int64) (model.Admin, error) {
	a, err := scanAdmin(db.pool.QueryRow(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = $1 AND is_active`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Admin{}, storage.ErrNotFound
		}
		return model.Admin{}, fmt.Errorf("storage: get admin: %w", err)
	}
	return a, nil
}

// DeleteAdminByEmail removes an admin account.
func (db *DB) DeleteAdminByEmail(ctx context.Context, email string) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM admins WHERE email = $1`, email)
	if err != nil {
		return fmt.Errorf("storage: delete admin: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
