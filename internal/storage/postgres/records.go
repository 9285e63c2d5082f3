package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/storage"
)

// CreateFeedback inserts a feedback entry.
func (db *DB) CreateFeedback(ctx context.Context, f model.Feedback) (model.Feedback, error) {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO feedback (name, country, message, rating) VALUES ($1, $2, $3, $4) RETURNING id`,
		f.Name, f.Country, f.Message, f.Rating,
	).Scan(&f.ID)
	if err != nil {
		return model.Feedback{}, fmt.Errorf("storage: create feedback: %w", err)
	}
	return f, nil
}

// ListFeedback returns all feedback, newest first.
func (db *DB) ListFeedback(ctx context.Context) ([]model.Feedback, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, name, country, message, rating FROM feedback ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list feedback: %w", err)
	}
	defer rows.Close()

	var out []model.Feedback
	for rows.Next() {
		var f model.Feedback
		if err := rows.Scan(&f.ID, &f.Name, &f.Country, &f.Message, &f.Rating); err != nil {
			return nil, fmt.Errorf("storage: list feedback: scan: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// DeleteFeedback removes a feedback entry.
func (db *DB) DeleteFeedback(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "feedback", id)
}

const stressColumns = `id, user_email, sleep, bp, resp, heart, stress_level, score, bp_stage, advice, created_at`

// CreateStressRecord persists an assessment. The caller sets Timestamp.
func (db *DB) CreateStressRecord(ctx context.Context, r model.StressRecord) (model.StressRecord, error) {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO stress_results
		   (user_email, sleep, bp, resp, heart, stress_level, score, bp_stage, advice, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id`,
		r.User, r.Sleep, r.BP, r.Resp, r.Heart, r.StressLevel, r.Score, r.BPStage, r.Advice, r.Timestamp,
	).Scan(&r.ID)
	if err != nil {
		return model.StressRecord{}, fmt.Errorf("storage: create stress record: %w", err)
	}
	return r, nil
}

// ListStressRecords returns a subject's records, newest first.
func (db *DB) ListStressRecords(ctx context.Context, user string) ([]model.StressRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+stressColumns+` FROM stress_results
		 WHERE user_email = $1
		 ORDER BY created_at DESC, id DESC`, user)
	if err != nil {
		return nil, fmt.Errorf("storage: list stress records: %w", err)
	}
	return scanStressRecords(rows)
}

// ListAllStressRecords returns every record, newest first.
func (db *DB) ListAllStressRecords(ctx context.Context) ([]model.StressRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+stressColumns+` FROM stress_results ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list all stress records: %w", err)
	}
	return scanStressRecords(rows)
}

func scanStressRecords(rows pgx.Rows) ([]model.StressRecord, error) {
	defer rows.Close()
	var out []model.StressRecord
	for rows.Next() {
		var r model.StressRecord
		if err := rows.Scan(&r.ID, &r.User, &r.Sleep, &r.BP, &r.Resp, &r.Heart,
			&r.StressLevel, &r.Score, &r.BPStage, &r.Advice, &r.Timestamp); err != nil {
			return nil, fmt.Errorf("storage: scan stress record: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// DeleteStressRecord removes one record by id.
func (db *DB) DeleteStressRecord(ctx context.Context, id int64) error {
	return db.deleteByID(ctx, "stress_results", id)
}

// CreateContent inserts an entry into the library named by c.Kind.
func (db *DB) CreateContent(ctx context.Context, c model.Content) (model.Content, error) {
	table, col, err := storage.ContentTable(c.Kind)
	if err != nil {
		return model.Content{}, err
	}
	err = db.pool.QueryRow(ctx,
		fmt.Sprintf(`INSERT INTO %s (title, %s) VALUES ($1, $2) RETURNING id`, table, col),
		c.Title, c.Body,
	).Scan(&c.ID)
	if err != nil {
		return model.Content{}, fmt.Errorf("storage: create %s: %w", table, err)
	}
	return c, nil
}

// ListContent returns a library's entries ordered by id.
func (db *DB) ListContent(ctx context.Context, kind model.ContentKind) ([]model.Content, error) {
	table, col, err := storage.ContentTable(kind)
	if err != nil {
		return nil, err
	}
	rows, err := db.pool.Query(ctx, fmt.Sprintf(`SELECT id, title, %s FROM %s ORDER BY id`, col, table))
	if err != nil {
		return nil, fmt.Errorf("storage: list %s: %w", table, err)
	}
	defer rows.Close()

	var out []model.Content
	for rows.Next() {
		c := model.Content{Kind: kind}
		if err := rows.Scan(&c.ID, &c.Title, &c.Body); err != nil {
			return nil, fmt.Errorf("storage: list %s: scan: %w", table, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteContent removes an entry from a library.
func (db *DB) DeleteContent(ctx context.Context, kind model.ContentKind, id int64) error {
	table, _, err := storage.ContentTable(kind)
	if err != nil {
		return err
	}
	return db.deleteByID(ctx, table, id)
}

// Analytics counts users, feedback, and stress records.
func (db *DB) Analytics(ctx context.Context) (model.Analytics, error) {
	var a model.Analytics
	err := db.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM feedback),
			(SELECT COUNT(*) FROM stress_results)`,
	).Scan(&a.Users, &a.Feedbacks, &a.StressEntries)
	if err != nil {
		return model.Analytics{}, fmt.Errorf("storage: analytics: %w", err)
	}
	return a, nil
}

// deleteByID deletes one row. table must be a trusted constant.
func (db *DB) deleteByID(ctx context.Context, table string, id int64) error {
	tag, err := db.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("storage: delete from %s: %w", table, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}
