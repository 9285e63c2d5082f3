package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmate-health/mindmate/internal/auth"
	"github.com/mindmate-health/mindmate/internal/service/accounts"
	"github.com/mindmate-health/mindmate/internal/testutil"
)

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name   string
		header map[string]string
		want   string
	}{
		{"bearer", map[string]string{"Authorization": "Bearer abc"}, "abc"},
		{"bearer lowercase scheme", map[string]string{"Authorization": "bearer abc"}, "abc"},
		{"legacy header", map[string]string{"token": "xyz"}, "xyz"},
		{"bearer wins", map[string]string{"Authorization": "Bearer abc", "token": "xyz"}, "abc"},
		{"other scheme falls back", map[string]string{"Authorization": "Basic Zm9v", "token": "xyz"}, "xyz"},
		{"none", nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range tt.header {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, bearerToken(r))
		})
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "client-id", seen)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(testutil.TestLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "INTERNAL_ERROR")

	abort := recoveryMiddleware(testutil.TestLogger(), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic(http.ErrAbortHandler)
	}))
	assert.PanicsWithValue(t, http.ErrAbortHandler, func() {
		abort.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

type stubAuthenticator struct {
	sess auth.Session
	err  error
}

func (s stubAuthenticator) Authenticate(context.Context, string) (auth.Session, error) {
	return s.sess, s.err
}

func TestSessionMiddleware(t *testing.T) {
	var got *auth.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	serve := func(a authenticator, token string) *httptest.ResponseRecorder {
		got = nil
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		sessionMiddleware(a, testutil.TestLogger(), next).ServeHTTP(rec, req)
		return rec
	}

	rec := serve(stubAuthenticator{sess: auth.Session{Kind: auth.KindUser, Subject: "ana@gmail.com"}}, "tok")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, got)
	assert.Equal(t, "ana@gmail.com", got.Subject)

	rec = serve(stubAuthenticator{err: accounts.ErrUnauthorized}, "tok")
	assert.Equal(t, http.StatusNoContent, rec.Code, "unknown tokens pass through anonymously")
	assert.Nil(t, got)

	rec = serve(stubAuthenticator{err: errors.New("redis down")}, "tok")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = serve(stubAuthenticator{err: errors.New("unused")}, "")
	assert.Equal(t, http.StatusNoContent, rec.Code, "no token skips lookup")
}

func TestRequireAdmin(t *testing.T) {
	h := requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	serve := func(sess *auth.Session) int {
		req := httptest.NewRequest(http.MethodGet, "/admin/users", nil)
		if sess != nil {
			req = req.WithContext(context.WithValue(req.Context(), contextKeySession, sess))
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, serve(nil))
	assert.Equal(t, http.StatusForbidden, serve(&auth.Session{Kind: auth.KindUser}))
	assert.Equal(t, http.StatusNoContent, serve(&auth.Session{Kind: auth.KindAdmin}))
}
