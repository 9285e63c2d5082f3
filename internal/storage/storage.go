// Package storage defines the persistence contract for MindMate.
//
// Two implementations exist: storage/postgres (pgx, for deployments) and
// storage/sqlite (modernc.org/sqlite, the default for single-node installs
// and tests). Both satisfy Store and share the sentinel errors below.
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/mindmate-health/mindmate/internal/model"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("storage: not found")

// ErrDuplicate is returned when a unique constraint (e.g. email) is violated.
var ErrDuplicate = errors.New("storage: duplicate")

// Store is the full persistence surface used by services and handlers.
// Implementations must be safe for concurrent use.
type Store interface {
	Driver() string
	Ping(ctx context.Context) error
	Close() error
	ListTables(ctx context.Context) ([]string, error)

	CreateUser(ctx context.Context, email, passwordHash string) (model.User, error)
	GetUserByEmail(ctx context.Context, email string) (model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	// DeleteUser removes the user and every stress record filed under their email.
	DeleteUser(ctx context.Context, id int64) error

	CreateAdmin(ctx context.Context, a model.Admin) (model.Admin, error)
	// GetAdminByLogin matches login against email or username, active admins only.
	GetAdminByLogin(ctx context.Context, login string) (model.Admin, error)
	GetActiveAdmin(ctx context.Context, id int64) (model.Admin, error)
	DeleteAdminByEmail(ctx context.Context, email string) error

	CreateFeedback(ctx context.Context, f model.Feedback) (model.Feedback, error)
	ListFeedback(ctx context.Context) ([]model.Feedback, error)
	DeleteFeedback(ctx context.Context, id int64) error

	CreateStressRecord(ctx context.Context, r model.StressRecord) (model.StressRecord, error)
	// ListStressRecords returns a subject's records, newest first.
	ListStressRecords(ctx context.Context, user string) ([]model.StressRecord, error)
	ListAllStressRecords(ctx context.Context) ([]model.StressRecord, error)
	DeleteStressRecord(ctx context.Context, id int64) error

	CreateContent(ctx context.Context, c model.Content) (model.Content, error)
	ListContent(ctx context.Context, kind model.ContentKind) ([]model.Content, error)
	DeleteContent(ctx context.Context, kind model.ContentKind, id int64) error

	Analytics(ctx context.Context) (model.Analytics, error)
}

// ContentTable returns the table and body column backing a content library.
// The names come from a fixed set, so callers may interpolate them into SQL.
func ContentTable(kind model.ContentKind) (table, bodyColumn string, err error) {
	switch kind {
	case model.ContentExercise:
		return "exercises", "description", nil
	case model.ContentDiet:
		return "diets", "description", nil
	case model.ContentVideo:
		return "videos", "link", nil
	default:
		return "", "", fmt.Errorf("storage: unknown content kind %q", kind)
	}
}
