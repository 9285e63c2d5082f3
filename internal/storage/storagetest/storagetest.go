// Package storagetest holds behavioural tests shared by every storage.Store
// implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/storage"
)

// Run exercises s. newStore must return an empty, migrated store per call.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	t.Run("Users", func(t *testing.T) { testUsers(t, newStore(t)) })
	t.Run("Admins", func(t *testing.T) { testAdmins(t, newStore(t)) })
	t.Run("Feedback", func(t *testing.T) { testFeedback(t, newStore(t)) })
	t.Run("StressRecords", func(t *testing.T) { testStressRecords(t, newStore(t)) })
	t.Run("DeleteUserPurgesHistory", func(t *testing.T) { testDeleteUserPurgesHistory(t, newStore(t)) })
	t.Run("Content", func(t *testing.T) { testContent(t, newStore(t)) })
	t.Run("TablesAndAnalytics", func(t *testing.T) { testTablesAndAnalytics(t, newStore(t)) })
}

func testUsers(t *testing.T, s storage.Store) {
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "ana@gmail.com", "hash")
	require.NoError(t, err)
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	_, err = s.CreateUser(ctx, "ana@gmail.com", "other")
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	got, err := s.GetUserByEmail(ctx, "ana@gmail.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.GetUserByEmail(ctx, "nobody@gmail.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, err = s.CreateUser(ctx, "bo@gmail.com", "hash")
	require.NoError(t, err)
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ana@gmail.com", users[0].Email)

	assert.ErrorIs(t, s.DeleteUser(ctx, 9999), storage.ErrNotFound)
}

func testAdmins(t *testing.T, s storage.Store) {
	ctx := context.Background()

	a, err := s.CreateAdmin(ctx, model.Admin{Username: "root", Email: "root@mindmate.app", PasswordHash: "h", Active: true})
	require.NoError(t, err)
	assert.NotZero(t, a.ID)

	_, err = s.CreateAdmin(ctx, model.Admin{Username: "root", Email: "other@mindmate.app", PasswordHash: "h", Active: true})
	assert.ErrorIs(t, err, storage.ErrDuplicate)

	byEmail, err := s.GetAdminByLogin(ctx, "root@mindmate.app")
	require.NoError(t, err)
	byName, err := s.GetAdminByLogin(ctx, "root")
	require.NoError(t, err)
	assert.Equal(t, byEmail.ID, byName.ID)

	inactive, err := s.CreateAdmin(ctx, model.Admin{Username: "old", Email: "old@mindmate.app", PasswordHash: "h", Active: false})
	require.NoError(t, err)
	_, err = s.GetAdminByLogin(ctx, "old")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = s.GetActiveAdmin(ctx, inactive.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	active, err := s.GetActiveAdmin(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "root", active.Username)

	require.NoError(t, s.DeleteAdminByEmail(ctx, "root@mindmate.app"))
	assert.ErrorIs(t, s.DeleteAdminByEmail(ctx, "root@mindmate.app"), storage.ErrNotFound)
}

func testFeedback(t *testing.T, s storage.Store) {
	ctx := context.Background()

	first, err := s.CreateFeedback(ctx, model.Feedback{Name: "Ana", Country: "PT", Message: "calm", Rating: 5})
	require.NoError(t, err)
	second, err := s.CreateFeedback(ctx, model.Feedback{Name: "Bo", Country: "SE", Message: "ok", Rating: 3})
	require.NoError(t, err)

	list, err := s.ListFeedback(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID, "newest first")

	require.NoError(t, s.DeleteFeedback(ctx, first.ID))
	assert.ErrorIs(t, s.DeleteFeedback(ctx, first.ID), storage.ErrNotFound)
}

func record(user string, ts time.Time) model.StressRecord {
	return model.StressRecord{
		User: user, Sleep: 7, BP: "120/80", Resp: 16, Heart: 72,
		StressLevel: "LOW", Score: 1, BPStage: "Elevated", Advice: "advice", Timestamp: ts,
	}
}

func testStressRecords(t *testing.T, s storage.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	older, err := s.CreateStressRecord(ctx, record("ana@gmail.com", base))
	require.NoError(t, err)
	newer, err := s.CreateStressRecord(ctx, record("ana@gmail.com", base.Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.CreateStressRecord(ctx, record("bo@gmail.com", base))
	require.NoError(t, err)

	list, err := s.ListStressRecords(ctx, "ana@gmail.com")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID)
	assert.Equal(t, older.ID, list[1].ID)
	assert.True(t, list[0].Timestamp.Equal(base.Add(time.Hour)))
	assert.Equal(t, "120/80", list[0].BP)
	assert.InDelta(t, 72.0, list[0].Heart, 1e-9)

	all, err := s.ListAllStressRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	empty, err := s.ListStressRecords(ctx, "nobody@gmail.com")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, s.DeleteStressRecord(ctx, older.ID))
	assert.ErrorIs(t, s.DeleteStressRecord(ctx, older.ID), storage.ErrNotFound)
}

func testDeleteUserPurgesHistory(t *testing.T, s storage.Store) {
	ctx := context.Background()
	u, err := s.CreateUser(ctx, "ana@gmail.com", "hash")
	require.NoError(t, err)
	_, err = s.CreateStressRecord(ctx, record("ana@gmail.com", time.Now().UTC()))
	require.NoError(t, err)
	_, err = s.CreateStressRecord(ctx, record("bo@gmail.com", time.Now().UTC()))
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	_, err = s.GetUserByEmail(ctx, "ana@gmail.com")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	history, err := s.ListStressRecords(ctx, "ana@gmail.com")
	require.NoError(t, err)
	assert.Empty(t, history)
	others, err := s.ListStressRecords(ctx, "bo@gmail.com")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

func testContent(t *testing.T, s storage.Store) {
	ctx := context.Background()
	for _, kind := range model.ContentKinds {
		c, err := s.CreateContent(ctx, model.Content{Kind: kind, Title: "t-" + string(kind), Body: "b"})
		require.NoError(t, err, kind)

		list, err := s.ListContent(ctx, kind)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "t-"+string(kind), list[0].Title)
		assert.Equal(t, kind, list[0].Kind)

		require.NoError(t, s.DeleteContent(ctx, kind, c.ID))
		assert.ErrorIs(t, s.DeleteContent(ctx, kind, c.ID), storage.ErrNotFound)
	}

	_, err := s.ListContent(ctx, model.ContentKind("recipes"))
	assert.Error(t, err)
}

func testTablesAndAnalytics(t *testing.T, s storage.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	tables, err := s.ListTables(ctx)
	require.NoError(t, err)
	for _, want := range []string{"admins", "diets", "exercises", "feedback", "stress_results", "users", "videos"} {
		assert.Contains(t, tables, want)
	}

	_, err = s.CreateUser(ctx, "ana@gmail.com", "hash")
	require.NoError(t, err)
	_, err = s.CreateFeedback(ctx, model.Feedback{Name: "Ana", Country: "PT", Message: "m", Rating: 4})
	require.NoError(t, err)
	for range 3 {
		_, err = s.CreateStressRecord(ctx, record("ana@gmail.com", time.Now().UTC()))
		require.NoError(t, err)
	}

	a, err := s.Analytics(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.Analytics{Users: 1, Feedbacks: 1, StressEntries: 3}, a)
}
