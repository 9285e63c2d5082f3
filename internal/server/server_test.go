package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmate-health/mindmate/internal/auth"
	"github.com/mindmate-health/mindmate/internal/export"
	"github.com/mindmate-health/mindmate/internal/model"
	"github.com/mindmate-health/mindmate/internal/ratelimit"
	"github.com/mindmate-health/mindmate/internal/server"
	"github.com/mindmate-health/mindmate/internal/service/accounts"
	"github.com/mindmate-health/mindmate/internal/service/stress"
	"github.com/mindmate-health/mindmate/internal/storage"
	"github.com/mindmate-health/mindmate/internal/testutil"
)

const bypassToken = "test-bypass-token"

type testEnv struct {
	srv      *httptest.Server
	store    storage.Store
	accounts *accounts.Service
}

type envOption func(*server.ServerConfig)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	logger := testutil.TestLogger()
	db := testutil.NewSQLite(t)
	acct := accounts.New(db, auth.NewMemorySessionStore(time.Hour), bypassToken, logger)

	cfg := server.ServerConfig{
		Store:               db,
		Accounts:            acct,
		Stress:              stress.New(db, nil, logger),
		Logger:              logger,
		Version:             "test",
		MaxRequestBodyBytes: 1 << 20,
	}
	for _, o := range opts {
		o(&cfg)
	}

	srv := httptest.NewServer(server.New(cfg).Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, store: db, accounts: acct}
}

// apiBody holds the raw response body. Error responses are also decoded into
// the error fields.
type apiBody struct {
	Data   json.RawMessage    `json:"-"`
	Detail string             `json:"detail"`
	Error  model.ErrorDetail  `json:"error"`
	Meta   model.ResponseMeta `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body io.Reader, contentType string) (*http.Response, apiBody) {
	t.Helper()
	req, err := http.NewRequest(method, e.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var env apiBody
	if resp.StatusCode >= http.StatusBadRequest && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	env.Data = raw
	return resp, env
}

func (e *testEnv) postForm(t *testing.T, path, token string, vals url.Values) (*http.Response, apiBody) {
	t.Helper()
	return e.do(t, http.MethodPost, path, token, strings.NewReader(vals.Encode()), "application/x-www-form-urlencoded")
}

func (e *testEnv) postJSON(t *testing.T, path string, v any) (*http.Response, apiBody) {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return e.do(t, http.MethodPost, path, "", bytes.NewReader(b), "application/json")
}

func (e *testEnv) get(t *testing.T, path, token string) (*http.Response, apiBody) {
	t.Helper()
	return e.do(t, http.MethodGet, path, token, nil, "")
}

func (e *testEnv) del(t *testing.T, path, token string) (*http.Response, apiBody) {
	t.Helper()
	return e.do(t, http.MethodDelete, path, token, nil, "")
}

func decodeData[T any](t *testing.T, env apiBody) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(env.Data, &v), string(env.Data))
	return v
}

func TestRootAndHealth(t *testing.T) {
	e := newTestEnv(t)

	resp, env := e.get(t, "/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "MindMate backend is running", decodeData[model.MessageResponse](t, env).Message)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))

	resp, env = e.get(t, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	health := decodeData[model.HealthResponse](t, env)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "sqlite:connected", health.Database)
	assert.Equal(t, "test", health.Version)

	resp, env = e.get(t, "/tables", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, decodeData[model.TablesResponse](t, env).Tables, "stress_results")

	resp, _ = e.get(t, "/no-such-route", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRegisterLoginLogout(t *testing.T) {
	e := newTestEnv(t)
	creds := url.Values{"email": {"ana@gmail.com"}, "password": {"secret1"}}

	resp, env := e.postForm(t, "/register", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	reg := decodeData[model.TokenResponse](t, env)
	assert.Equal(t, "User ana@gmail.com registered", reg.Message)
	assert.Len(t, reg.Token, 32)

	resp, env = e.postForm(t, "/register", "", creds)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, model.ErrCodeConflict, env.Error.Code)

	resp, env = e.postForm(t, "/register", "", url.Values{"email": {"ana@yahoo.com"}, "password": {"secret1"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "email must be @gmail.com", env.Error.Message)

	resp, env = e.postForm(t, "/register", "", url.Values{"email": {"bo@gmail.com"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "password is required", env.Error.Message)

	resp, env = e.postForm(t, "/login", "", creds)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	token := decodeData[model.TokenResponse](t, env).Token
	assert.NotEqual(t, reg.Token, token)

	resp, env = e.postForm(t, "/login", "", url.Values{"email": {"ana@gmail.com"}, "password": {"wrong!!"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, model.ErrCodeUnauthorized, env.Error.Code)

	// A user token cannot reach the admin surface.
	resp, _ = e.get(t, "/admin/users", token)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, env = e.postForm(t, "/logout", token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "User logged out", decodeData[model.MessageResponse](t, env).Message)

	// The revoked token no longer resolves.
	resp, env = e.get(t, "/admin/users", token)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized admin", env.Error.Message)

	// Logout without a token is a no-op.
	resp, _ = e.postForm(t, "/logout", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLegacyTokenHeader(t *testing.T) {
	e := newTestEnv(t)

	req, err := http.NewRequest(http.MethodGet, e.srv.URL+"/admin/analytics/users", nil)
	require.NoError(t, err)
	req.Header.Set("token", bypassToken)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAdminLogin(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()
	admin, err := e.accounts.CreateAdmin(ctx, "boss@gmail.com", "secret1")
	require.NoError(t, err)

	for _, login := range []string{"boss", "boss@gmail.com"} {
		resp, env := e.postForm(t, "/admin/login", "", url.Values{"username": {login}, "password": {"secret1"}})
		require.Equal(t, http.StatusOK, resp.StatusCode, login)
		tok := decodeData[model.TokenResponse](t, env)
		assert.Equal(t, admin.ID, tok.AdminID)
		assert.Equal(t, "boss@gmail.com", tok.Username)

		resp, _ = e.get(t, "/admin/users", tok.Token)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, _ := e.postForm(t, "/admin/login", "", url.Values{"username": {"boss"}, "password": {"nope123"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Removing the admin revokes outstanding sessions.
	_, env := e.postForm(t, "/admin/login", "", url.Values{"username": {"boss"}, "password": {"secret1"}})
	tok := decodeData[model.TokenResponse](t, env).Token
	require.NoError(t, e.accounts.DeleteAdmin(ctx, "boss@gmail.com"))
	resp, _ = e.get(t, "/admin/users", tok)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env = e.postForm(t, "/admin/logout", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Admin logged out", decodeData[model.MessageResponse](t, env).Message)
}

func TestStressFlow(t *testing.T) {
	e := newTestEnv(t)

	resp, env := e.postJSON(t, "/stress", model.StressRequest{User: "ana@gmail.com", BP: "115/75", Sleep: 8, Resp: 15, Heart: 70})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	out := decodeData[model.StressResponse](t, env)
	require.NotNil(t, out.ID)
	assert.Equal(t, "OPTIMAL", out.StressLevel)
	assert.Equal(t, "Normal", out.BPStage)
	require.NotNil(t, out.Systolic)
	assert.Equal(t, 115, *out.Systolic)
	assert.NotNil(t, out.Timestamp)

	resp, env = e.get(t, "/stress/history?user=ana@gmail.com", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeData[[]model.StressRecord](t, env)
	require.Len(t, history, 1)
	assert.Equal(t, *out.ID, history[0].ID)
	assert.Equal(t, "115/75", history[0].BP)

	resp, env = e.get(t, "/stress/history?user=undefined", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, "[]", string(env.Data))

	resp, _ = e.del(t, "/stress/history/delete/"+itoa(*out.ID), "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env = e.del(t, "/stress/history/delete/"+itoa(*out.ID), "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "Stress history record not found", env.Error.Message)

	resp, _ = e.del(t, "/stress/history/delete/abc", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStressInvalidVitals(t *testing.T) {
	e := newTestEnv(t)

	resp, env := e.postJSON(t, "/stress", model.StressRequest{User: "ana@gmail.com", BP: "120/80", Sleep: 8, Resp: 15, Heart: 400})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, model.ErrCodeInvalidVitals, env.Error.Code)
	details, ok := env.Error.Details.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "heart", details["field"])

	resp, env = e.do(t, http.MethodPost, "/stress", "", strings.NewReader("{not json"), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Error.Code)

	all, err := e.store.ListAllStressRecords(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStressLegacyErrors(t *testing.T) {
	e := newTestEnv(t, func(c *server.ServerConfig) { c.LegacyStressErrors = true })

	resp, env := e.postJSON(t, "/stress", model.StressRequest{BP: "120/80", Sleep: 0, Resp: 15, Heart: 70})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"stress_level":"MEDIUM","advice":"Error: Invalid numeric input","timestamp":null}`, string(env.Data))

	resp, env = e.postJSON(t, "/stress", model.StressRequest{BP: "99999999999999999999/80", Sleep: 7, Resp: 15, Heart: 70})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "Error: Invalid blood pressure range", decodeData[model.StressResponse](t, env).Advice)
}

func TestResponseBodiesAreBare(t *testing.T) {
	e := newTestEnv(t)

	topLevel := func(t *testing.T, raw []byte) map[string]json.RawMessage {
		t.Helper()
		var m map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &m), string(raw))
		return m
	}

	_, env := e.postForm(t, "/register", "", url.Values{"email": {"ana@gmail.com"}, "password": {"secret1"}})
	body := topLevel(t, env.Data)
	assert.Contains(t, body, "token")
	assert.NotContains(t, body, "data")

	resp, env := e.postJSON(t, "/stress", model.StressRequest{User: "ana@gmail.com", BP: "150/95", Sleep: 6, Resp: 15, Heart: 70})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	keys := make([]string, 0, 7)
	for k := range topLevel(t, env.Data) {
		keys = append(keys, k)
	}
	assert.ElementsMatch(t, []string{"id", "stress_level", "advice", "timestamp", "bp_stage", "systolic", "diastolic"}, keys)

	for _, path := range []string{"/stress/history?user=ana@gmail.com", "/feedback", "/videos"} {
		_, env = e.get(t, path, "")
		assert.True(t, bytes.HasPrefix(bytes.TrimSpace(env.Data), []byte("[")), "%s: %s", path, env.Data)
	}

	// Errors keep the envelope and repeat the message as detail.
	resp, env = e.get(t, "/admin/users", "")
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Unauthorized admin", env.Detail)
	assert.Equal(t, env.Error.Message, env.Detail)
	assert.Equal(t, resp.Header.Get("X-Request-ID"), env.Meta.RequestID)
}

func TestFeedback(t *testing.T) {
	e := newTestEnv(t)

	resp, env := e.postForm(t, "/feedback", "", url.Values{
		"name": {"Ana"}, "country": {"PT"}, "message": {"helpful"}, "rating": {"5"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	created := decodeData[model.MessageResponse](t, env)
	require.NotNil(t, created.ID)

	for _, rating := range []string{"0", "6", "x"} {
		resp, env = e.postForm(t, "/feedback", "", url.Values{
			"name": {"Ana"}, "country": {"PT"}, "message": {"helpful"}, "rating": {rating},
		})
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, rating)
		assert.Equal(t, "rating must be 1-5", env.Error.Message)
	}

	resp, env = e.get(t, "/feedback", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := decodeData[[]model.Feedback](t, env)
	require.Len(t, list, 1)
	assert.Equal(t, 5, list[0].Rating)

	resp, _ = e.get(t, "/admin/feedbacks", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp, _ = e.get(t, "/admin/feedbacks", bypassToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = e.del(t, "/admin/feedbacks/"+itoa(*created.ID), bypassToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.del(t, "/admin/feedbacks/"+itoa(*created.ID), bypassToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestContentLibraries(t *testing.T) {
	e := newTestEnv(t)

	for _, kind := range model.ContentKinds {
		resp, env := e.get(t, "/"+string(kind), "")
		require.Equal(t, http.StatusOK, resp.StatusCode, kind)
		assert.JSONEq(t, "[]", string(env.Data), kind)
	}

	resp, env := e.postForm(t, "/admin/videos", bypassToken, url.Values{"title": {"Breathing"}, "link": {"https://example.com/v"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	video := decodeData[model.Content](t, env)
	assert.Equal(t, "https://example.com/v", video.Body)

	resp, _ = e.postForm(t, "/admin/exercises", bypassToken, url.Values{"title": {"Walk"}, "description": {"20 minutes outside"}})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, env = e.postForm(t, "/admin/diets", bypassToken, url.Values{"title": {"Oats"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, model.ErrCodeInvalidInput, env.Error.Code)

	resp, _ = e.postForm(t, "/admin/recipes", bypassToken, url.Values{"title": {"x"}, "description": {"y"}})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = e.postForm(t, "/admin/videos", "", url.Values{"title": {"x"}, "link": {"y"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, env = e.get(t, "/videos", "")
	videos := decodeData[[]model.Content](t, env)
	require.Len(t, videos, 1)
	assert.Equal(t, "Breathing", videos[0].Title)

	resp, _ = e.del(t, "/admin/videos/"+itoa(video.ID), bypassToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = e.del(t, "/admin/videos/"+itoa(video.ID), bypassToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminUsersAndAnalytics(t *testing.T) {
	e := newTestEnv(t)

	_, env := e.postForm(t, "/register", "", url.Values{"email": {"ana@gmail.com"}, "password": {"secret1"}})
	require.NotEmpty(t, decodeData[model.TokenResponse](t, env).Token)
	_, _ = e.postJSON(t, "/stress", model.StressRequest{User: "ana@gmail.com", BP: "120/80", Sleep: 7, Resp: 14, Heart: 72})
	_, _ = e.postJSON(t, "/stress", model.StressRequest{User: "other@gmail.com", BP: "120/80", Sleep: 7, Resp: 14, Heart: 72})

	resp, env := e.get(t, "/admin/analytics/users", bypassToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, model.Analytics{Users: 1, Feedbacks: 0, StressEntries: 2}, decodeData[model.Analytics](t, env))

	resp, env = e.get(t, "/admin/users", bypassToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	users := decodeData[[]model.User](t, env)
	require.Len(t, users, 1)
	assert.Equal(t, "ana@gmail.com", users[0].Email)

	resp, _ = e.del(t, "/admin/users/"+itoa(users[0].ID), bypassToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, env = e.del(t, "/admin/users/"+itoa(users[0].ID), bypassToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "User not found", env.Error.Message)

	// The deleted user's history went with the account.
	_, env = e.get(t, "/admin/analytics/users", bypassToken)
	assert.Equal(t, model.Analytics{Users: 0, Feedbacks: 0, StressEntries: 1}, decodeData[model.Analytics](t, env))
}

func TestAdminExportStress(t *testing.T) {
	e := newTestEnv(t)
	_, _ = e.postJSON(t, "/stress", model.StressRequest{User: "ana@gmail.com", BP: "150/95", Sleep: 4, Resp: 22, Heart: 110})

	resp, _ := e.get(t, "/admin/export/stress", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, env := e.get(t, "/admin/export/stress", bypassToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, export.ContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "attachment;")
	assert.True(t, bytes.HasPrefix(env.Data, []byte("PK")), "xlsx is a zip archive")
}

func TestAuthRateLimit(t *testing.T) {
	limiter := ratelimit.NewMemoryLimiter(0.001, 2)
	t.Cleanup(func() { _ = limiter.Close() })
	e := newTestEnv(t, func(c *server.ServerConfig) { c.AuthLimiter = limiter })

	creds := url.Values{"email": {"ana@gmail.com"}, "password": {"wrong!!"}}
	for i := range 2 {
		resp, _ := e.postForm(t, "/login", "", creds)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}
	resp, env := e.postForm(t, "/login", "", creds)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, model.ErrCodeRateLimited, env.Error.Code)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	// Other routes are not throttled.
	resp, _ = e.get(t, "/feedback", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
