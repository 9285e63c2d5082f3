package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/storage"
)

// CreateUser inserts a user. Returns storage.ErrDuplicate if the email is taken.
func (db *DB) CreateUser(ctx context.Context, email, passwordHash string) (model.User, error) {
	now := db.now().UTC()
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO users (email, password_hash, created_at) VALUES (?, ?, ?)`,
		email, passwordHash, formatTime(now))
	if err != nil {
		if isDuplicateKey(err) {
			return model.User{}, fmt.Errorf("storage: create user %s: %w", email, storage.ErrDuplicate)
		}
		return model.User{}, fmt.Errorf("storage: create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.User{}, fmt.Errorf("storage: create user: last insert id: %w", err)
	}
	return model.User{ID: id, Email: email, PasswordHash: passwordHash, CreatedAt: now}, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (model.User, error) {
	var (
		u       model.User
		created string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &created); err != nil {
		return model.User{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return model.User{}, fmt.Errorf("parse created_at: %w", err)
	}
	u.CreatedAt = t
	return u, nil
}

// GetUserByEmail looks a user up by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (model.User, error) {
	u, err := scanUser(db.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = ?`, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, storage.ErrNotFound
		}
		return model.User{}, fmt.Errorf("storage: get user: %w", err)
	}
	return u, nil
}

// ListUsers returns all users ordered by id.
func (db *DB) ListUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.db.QueryContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("storage: list users: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: list users: scan: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser removes a user and their stress history in one transaction.
func (db *DB) DeleteUser(ctx context.Context, id int64) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage: begin delete user tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var email string
	if err := tx.QueryRowContext(ctx, `SELECT email FROM users WHERE id = ?`, id).Scan(&email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("storage: delete user: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id); err != nil {
		return fmt.Errorf("storage: delete user: %w", err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM stress_results WHERE user_email = ?`, email)
	if err != nil {
		return fmt.Errorf("storage: delete user history: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage: commit delete user: %w", err)
	}

	n, _ := res.RowsAffected()
	db.logger.Info("storage: deleted user", "user_id", id, "stress_records", n)
	return nil
}

const adminColumns = `id, username, email, password_hash, is_active, created_at`

func scanAdmin(row rowScanner) (model.Admin, error) {
	var (
		a       model.Admin
		created string
	)
	if err := row.Scan(&a.ID, &a.Username, &a.Email, &a.PasswordHash, &a.Active, &created); err != nil {
		return model.Admin{}, err
	}
	t, err := parseTime(created)
	if err != nil {
		return model.Admin{}, fmt.Errorf("parse created_at: %w", err)
	}
	a.CreatedAt = t
	return a, nil
}

// CreateAdmin inserts an admin. Returns storage.ErrDuplicate if the username or email is taken.
func (db *DB) CreateAdmin(ctx context.Context, a model.Admin) (model.Admin, error) {
	a.CreatedAt = db.now().UTC()
	res, err := db.db.ExecContext(ctx,
		`INSERT INTO admins (username, email, password_hash, is_active, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.Username, a.Email, a.PasswordHash, a.Active, formatTime(a.CreatedAt))
	if err != nil {
		if isDuplicateKey(err) {
			return model.Admin{}, fmt.Errorf("storage: create admin %s: %w", a.Email, storage.ErrDuplicate)
		}
		return model.Admin{}, fmt.Errorf("storage: create admin: %w", err)
	}
	if a.ID, err = res.LastInsertId(); err != nil {
		return model.Admin{}, fmt.Errorf("storage: create admin: last insert id: %w", err)
	}
	return a, nil
}

// GetAdminByLogin finds an active admin whose email or username equals login.
func (db *DB) GetAdminByLogin(ctx context.Context, login string) (model.Admin, error) {
	a, err := scanAdmin(db.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins
		 WHERE (email = ? OR username = ?) AND is_active = 1
		 ORDER BY id LIMIT 1`, login, login))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Admin{}, storage.ErrNotFound
		}
		return model.Admin{}, fmt.Errorf("storage: get admin by login: %w", err)
	}
	return a, nil
}

// GetActiveAdmin returns the admin with id if it is still active.
func (db *DB) GetActiveAdmin(ctx context.Context, id int64) (model.Admin, error) {
	a, err := scanAdmin(db.db.QueryRowContext(ctx,
		`SELECT `+adminColumns+` FROM admins WHERE id = ? AND is_active = 1`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Admin{}, storage.ErrNotFound
		}
		return model.Admin{}, fmt.Errorf("storage: get admin: %w", err)
	}
	return a, nil
}

// DeleteAdminByEmail removes an admin account.
func (db *DB) DeleteAdminByEmail(ctx context.Context, email string) error {
	res, err := db.db.ExecContext(ctx, `DELETE FROM admins WHERE email = ?`, email)
	if err != nil {
		return fmt.Errorf("storage: delete admin: %w", err)
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("storage: rows affected: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}
