package mindmate

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindmate-health/mindmate/internal/testutil"
)

func newTestApp(t *testing.T, opts ...Option) *App {
	t.Helper()
	t.Setenv("MINDMATE_SESSION_BACKEND", "memory")
	t.Setenv("MQTT_BROKER", "")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	opts = append([]Option{
		WithSQLite(filepath.Join(t.TempDir(), "mindmate.db")),
		WithLogger(testutil.TestLogger()),
		WithVersion("test"),
	}, opts...)
	app, err := New(context.Background(), opts...)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app
}

func TestNewServesHealth(t *testing.T) {
	app := newTestApp(t)

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"database":"sqlite:connected"`)
	assert.Contains(t, rec.Body.String(), `"version":"test"`)
}

func TestNewRejectsBadConfig(t *testing.T) {
	t.Setenv("MINDMATE_SESSION_BACKEND", "carrier-pigeon")
	_, err := New(context.Background(),
		WithSQLite(filepath.Join(t.TempDir(), "mindmate.db")),
		WithLogger(testutil.TestLogger()),
	)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MINDMATE_SESSION_BACKEND")
}

func TestAdminProvisioningThroughApp(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()

	admin, err := app.Accounts().CreateAdmin(ctx, "ops@gmail.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "ops", admin.Username)
	require.NoError(t, app.Accounts().DeleteAdmin(ctx, "ops@gmail.com"))
}

func TestRunStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())

	app := newTestApp(t, WithPort(port))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
