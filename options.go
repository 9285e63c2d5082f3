package mindmate

import "log/slog"

// Option configures an App.
type Option func(*resolvedOptions)

// resolvedOptions holds overrides applied on top of the environment config.
type resolvedOptions struct {
	port        int
	dbDriver    string
	sqlitePath  string
	databaseURL string
	logger      *slog.Logger
	version     string
}

// WithPort overrides the TCP port from config (MINDMATE_PORT env var).
func WithPort(port int) Option {
	return func(o *resolvedOptions) { o.port = port }
}

// WithSQLite selects the SQLite backend at path, overriding MINDMATE_DB_DRIVER
// and MINDMATE_SQLITE_PATH.
func WithSQLite(path string) Option {
	return func(o *resolvedOptions) {
		o.dbDriver = "sqlite"
		o.sqlitePath = path
	}
}

// WithDatabaseURL selects the Postgres backend, overriding MINDMATE_DB_DRIVER
// and DATABASE_URL.
func WithDatabaseURL(url string) Option {
	return func(o *resolvedOptions) {
		o.dbDriver = "postgres"
		o.databaseURL = url
	}
}

// WithLogger sets the structured logger for the App.
// If not set, a JSON logger at MINDMATE_LOG_LEVEL writes to stdout.
func WithLogger(logger *slog.Logger) Option {
	return func(o *resolvedOptions) { o.logger = logger }
}

// WithVersion sets the version string reported in the health endpoint and logs.
func WithVersion(version string) Option {
	return func(o *resolvedOptions) { o.version = version }
}
