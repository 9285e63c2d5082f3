// Package auth handles password hashing and opaque session tokens for users
// and admins.
//
// Tokens are 32 hex characters of crypto/rand output. They carry no claims;
// the SessionStore maps each one to the Session it was issued for, so logout
// revokes a token immediately.
package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrSessionNotFound is returned for unknown, expired, or revoked tokens.
var ErrSessionNotFound = errors.New("auth: session not found")

// SessionKind distinguishes end-user sessions from admin sessions.
type SessionKind string

const (
	KindUser  SessionKind = "user"
	KindAdmin SessionKind = "admin"
)

// Session is what a token resolves to. Subject is the user's email or the
// admin's username. AdminID is set only for admin sessions.
type Session struct {
	Kind      SessionKind `json:"kind"`
	Subject   string      `json:"subject"`
	AdminID   int64       `json:"admin_id,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// SessionStore persists sessions by token. Implementations must be safe for
// concurrent use.
type SessionStore interface {
	Put(ctx context.Context, token string, s Session) error
	Get(ctx context.Context, token string) (Session, error)
	Delete(ctx context.Context, token string) error
}

const tokenBytes = 16

// NewToken returns a fresh random session token.
func NewToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// TokensEqual compares two tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

type memoryEntry struct {
	session Session
	expires time.Time
}

// MemorySessionStore keeps sessions in process memory. Sessions are lost on
// restart and are not shared between replicas.
type MemorySessionStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemorySessionStore creates a store. ttl <= 0 means sessions never expire.
func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	return &MemorySessionStore{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Put stores s under token.
func (m *MemorySessionStore) Put(_ context.Context, token string, s Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := memoryEntry{session: s}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.entries[token] = e
	return nil
}

// Get resolves token. Expired entries are removed lazily.
func (m *MemorySessionStore) Get(_ context.Context, token string) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[token]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.entries, token)
		return Session{}, ErrSessionNotFound
	}
	return e.session, nil
}

// Delete revokes token. Deleting an unknown token is not an error.
func (m *MemorySessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, token)
	return nil
}

// Sweep drops expired sessions and returns how many were removed.
func (m *MemorySessionStore) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ttl <= 0 {
		return 0
	}
	now := m.now()
	removed := 0
	for tok, e := range m.entries {
		if !now.Before(e.expires) {
			delete(m.entries, tok)
			removed++
		}
	}
	return removed
}
