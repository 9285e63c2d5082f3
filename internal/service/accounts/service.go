// Package accounts implements registration, login, and session resolution
// for end users and admins.
package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mindmate-health/mindmate/internal/auth"
	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/storage"
)

var (
	// ErrInvalidCredentials is returned for a wrong email, username, or password.
	ErrInvalidCredentials = errors.New("accounts: invalid credentials")
	// ErrUnauthorized is returned when a token does not resolve to a usable session.
	ErrUnauthorized = errors.New("accounts: unauthorized")
	// ErrExists is returned when registering an email that is already taken.
	ErrExists = errors.New("accounts: already exists")
)

// ValidationError reports a rejected registration or provisioning request.
type ValidationError struct{ msg string }

func (e *ValidationError) Error() string { return e.msg }

// BypassAdminID and BypassAdminName identify sessions created by the bypass token.
const (
	BypassAdminID   int64 = 1
	BypassAdminName       = "admin"
)

// Service manages accounts and sessions.
type Service struct {
	store       storage.Store
	sessions    auth.SessionStore
	bypassToken string
	logger      *slog.Logger
	now         func() time.Time
}

// New creates a Service. An empty bypassToken disables the bypass.
func New(store storage.Store, sessions auth.SessionStore, bypassToken string, logger *slog.Logger) *Service {
	if bypassToken != "" {
		logger.Warn("accounts: admin bypass token is enabled; any client presenting it gets admin access",
			"env", "MINDMATE_ADMIN_BYPASS_TOKEN")
	}
	return &Service{
		store:       store,
		sessions:    sessions,
		bypassToken: bypassToken,
		logger:      logger,
		now:         time.Now,
	}
}

// Register creates a user and logs them in.
func (s *Service) Register(ctx context.Context, email, password string) (string, model.User, error) {
	if err := model.ValidateRegistration(email, password); err != nil {
		return "", model.User{}, &ValidationError{msg: err.Error()}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return "", model.User{}, err
	}
	u, err := s.store.CreateUser(ctx, email, hash)
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return "", model.User{}, ErrExists
		}
		return "", model.User{}, fmt.Errorf("accounts: register: %w", err)
	}
	token, err := s.issue(ctx, auth.Session{Kind: auth.KindUser, Subject: u.Email})
	if err != nil {
		return "", model.User{}, err
	}
	s.logger.Info("accounts: user registered", "user_id", u.ID)
	return token, u, nil
}

// Login verifies a user's password and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (string, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			auth.DummyVerify()
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("accounts: login: %w", err)
	}
	if err := checkPassword(password, u.PasswordHash); err != nil {
		return "", err
	}
	return s.issue(ctx, auth.Session{Kind: auth.KindUser, Subject: u.Email})
}

// AdminLogin verifies an active admin by email or username and issues an
// admin session token.
func (s *Service) AdminLogin(ctx context.Context, login, password string) (string, model.Admin, error) {
	a, err := s.store.GetAdminByLogin(ctx, login)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			auth.DummyVerify()
			return "", model.Admin{}, ErrInvalidCredentials
		}
		return "", model.Admin{}, fmt.Errorf("accounts: admin login: %w", err)
	}
	if err := checkPassword(password, a.PasswordHash); err != nil {
		return "", model.Admin{}, err
	}
	token, err := s.issue(ctx, auth.Session{Kind: auth.KindAdmin, Subject: a.Username, AdminID: a.ID})
	if err != nil {
		return "", model.Admin{}, err
	}
	s.logger.Info("accounts: admin logged in", "admin_id", a.ID)
	return token, a, nil
}

// Logout revokes token. Unknown tokens are ignored.
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, token); err != nil {
		return fmt.Errorf("accounts: logout: %w", err)
	}
	return nil
}

// Authenticate resolves token to a session. Admin sessions are rechecked
// against storage so deactivated admins lose access immediately.
func (s *Service) Authenticate(ctx context.Context, token string) (auth.Session, error) {
	if token == "" {
		return auth.Session{}, ErrUnauthorized
	}
	if s.bypassToken != "" && auth.TokensEqual(token, s.bypassToken) {
		return auth.Session{Kind: auth.KindAdmin, Subject: BypassAdminName, AdminID: BypassAdminID}, nil
	}

	sess, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, auth.ErrSessionNotFound) {
			return auth.Session{}, ErrUnauthorized
		}
		return auth.Session{}, fmt.Errorf("accounts: resolve session: %w", err)
	}

	if sess.Kind == auth.KindAdmin {
		if _, err := s.store.GetActiveAdmin(ctx, sess.AdminID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				_ = s.sessions.Delete(ctx, token)
				return auth.Session{}, ErrUnauthorized
			}
			return auth.Session{}, fmt.Errorf("accounts: check admin: %w", err)
		}
	}
	return sess, nil
}

// CreateAdmin provisions an active admin. The username is the local part of
// the email.
func (s *Service) CreateAdmin(ctx context.Context, email, password string) (model.Admin, error) {
	username, _, ok := strings.Cut(email, "@")
	if !ok || username == "" {
		return model.Admin{}, &ValidationError{msg: "email must contain @"}
	}
	if len(password) < model.MinPasswordLen {
		return model.Admin{}, &ValidationError{msg: fmt.Sprintf("password must be at least %d characters", model.MinPasswordLen)}
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return model.Admin{}, err
	}
	a, err := s.store.CreateAdmin(ctx, model.Admin{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Active:       true,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return model.Admin{}, ErrExists
		}
		return model.Admin{}, fmt.Errorf("accounts: create admin: %w", err)
	}
	return a, nil
}

// DeleteAdmin removes an admin by email. Returns storage.ErrNotFound if absent.
func (s *Service) DeleteAdmin(ctx context.Context, email string) error {
	return s.store.DeleteAdminByEmail(ctx, email)
}

func (s *Service) issue(ctx context.Context, sess auth.Session) (string, error) {
	token, err := auth.NewToken()
	if err != nil {
		return "", err
	}
	sess.CreatedAt = s.now().UTC()
	if err := s.sessions.Put(ctx, token, sess); err != nil {
		return "", fmt.Errorf("accounts: store session: %w", err)
	}
	return token, nil
}

func checkPassword(password, hash string) error {
	ok, err := auth.VerifyPassword(password, hash)
	if err != nil {
		return fmt.Errorf("accounts: verify password: %w", err)
	}
	if !ok {
		return ErrInvalidCredentials
	}
	return nil
}
