package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Dialect selects driver-specific SQL.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// ParseDialect maps a configured driver name to a dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "", "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d Dialect) driverName() string {
	if d == DialectPostgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) placeholder() sq.PlaceholderFormat {
	if d == DialectPostgres {
		return sq.Dollar
	}
	return sq.Question
}

// Open connects to the database behind dsn.
func Open(ctx context.Context, dialect Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// modernc sqlite serializes writers; one connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		brand_voice TEXT NOT NULL DEFAULT '',
		hashtags TEXT NOT NULL DEFAULT '[]',
		feeds TEXT NOT NULL DEFAULT '[]',
		scoring TEXT NOT NULL DEFAULT '{}',
		templates TEXT NOT NULL DEFAULT '{}',
		schedule TEXT NOT NULL DEFAULT '[]',
		platform_linkedin INTEGER NOT NULL DEFAULT 1,
		platform_twitter INTEGER NOT NULL DEFAULT 1,
		platform_telegram INTEGER NOT NULL DEFAULT 0,
		quality_threshold REAL NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL REFERENCES projects(id),
		platform TEXT NOT NULL,
		account_type TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL DEFAULT '',
		platform_user_id TEXT NOT NULL DEFAULT '',
		active INTEGER NOT NULL DEFAULT 1
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		url TEXT NOT NULL,
		original_url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		source_feed TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		published_at TEXT,
		relevance_score REAL NOT NULL DEFAULT 0,
		selected INTEGER NOT NULL DEFAULT 0,
		content_text TEXT NOT NULL DEFAULT '',
		fetch_run_id INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		UNIQUE (project_id, url)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		project_id TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		completed_at TEXT,
		articles_fetched INTEGER NOT NULL DEFAULT 0,
		articles_new INTEGER NOT NULL DEFAULT 0,
		selected_article_id INTEGER,
		model_used TEXT NOT NULL DEFAULT '',
		used_fallback INTEGER NOT NULL DEFAULT 0,
		error_message TEXT NOT NULL DEFAULT '',
		log_details TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_project_status ON pipeline_runs (project_id, status)`,
	`CREATE TABLE IF NOT EXISTS generated_posts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL,
		project_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		content TEXT NOT NULL,
		article_url TEXT NOT NULL DEFAULT '',
		article_title TEXT NOT NULL DEFAULT '',
		is_fallback INTEGER NOT NULL DEFAULT 0,
		quality_score REAL NOT NULL DEFAULT 0,
		validation_notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS publish_results (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		post_id INTEGER NOT NULL,
		profile_id INTEGER NOT NULL,
		platform TEXT NOT NULL,
		account_type TEXT NOT NULL,
		status TEXT NOT NULL,
		platform_post_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		posted_at TEXT
	)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		display_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		brand_voice TEXT NOT NULL DEFAULT '',
		hashtags TEXT NOT NULL DEFAULT '[]',
		feeds TEXT NOT NULL DEFAULT '[]',
		scoring TEXT NOT NULL DEFAULT '{}',
		templates TEXT NOT NULL DEFAULT '{}',
		schedule TEXT NOT NULL DEFAULT '[]',
		platform_linkedin BOOLEAN NOT NULL DEFAULT TRUE,
		platform_twitter BOOLEAN NOT NULL DEFAULT TRUE,
		platform_telegram BOOLEAN NOT NULL DEFAULT FALSE,
		quality_threshold DOUBLE PRECISION NOT NULL DEFAULT 0,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		id BIGSERIAL PRIMARY KEY,
		project_id TEXT NOT NULL REFERENCES projects(id),
		platform TEXT NOT NULL,
		account_type TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		access_token TEXT NOT NULL DEFAULT '',
		platform_user_id TEXT NOT NULL DEFAULT '',
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS articles (
		id BIGSERIAL PRIMARY KEY,
		project_id TEXT NOT NULL,
		url TEXT NOT NULL,
		original_url TEXT NOT NULL DEFAULT '',
		title TEXT NOT NULL DEFAULT '',
		source_feed TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		published_at TIMESTAMPTZ,
		relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		selected BOOLEAN NOT NULL DEFAULT FALSE,
		content_text TEXT NOT NULL DEFAULT '',
		fetch_run_id BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL,
		UNIQUE (project_id, url)
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_runs (
		id BIGSERIAL PRIMARY KEY,
		project_id TEXT NOT NULL,
		trigger_type TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TIMESTAMPTZ NOT NULL,
		completed_at TIMESTAMPTZ,
		articles_fetched INTEGER NOT NULL DEFAULT 0,
		articles_new INTEGER NOT NULL DEFAULT 0,
		selected_article_id BIGINT,
		model_used TEXT NOT NULL DEFAULT '',
		used_fallback BOOLEAN NOT NULL DEFAULT FALSE,
		error_message TEXT NOT NULL DEFAULT '',
		log_details TEXT NOT NULL DEFAULT '[]'
	)`,
	`CREATE INDEX IF NOT EXISTS idx_pipeline_runs_project_status ON pipeline_runs (project_id, status)`,
	`CREATE TABLE IF NOT EXISTS generated_posts (
		id BIGSERIAL PRIMARY KEY,
		run_id BIGINT NOT NULL,
		project_id TEXT NOT NULL,
		platform TEXT NOT NULL,
		content TEXT NOT NULL,
		article_url TEXT NOT NULL DEFAULT '',
		article_title TEXT NOT NULL DEFAULT '',
		is_fallback BOOLEAN NOT NULL DEFAULT FALSE,
		quality_score DOUBLE PRECISION NOT NULL DEFAULT 0,
		validation_notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS publish_results (
		id BIGSERIAL PRIMARY KEY,
		post_id BIGINT NOT NULL,
		profile_id BIGINT NOT NULL,
		platform TEXT NOT NULL,
		account_type TEXT NOT NULL,
		status TEXT NOT NULL,
		platform_post_id TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		posted_at TIMESTAMPTZ
	)`,
}

// Migrate creates missing tables and indexes.
func (r *SQLRepository) Migrate(ctx context.Context) error {
	statements := sqliteSchema
	if r.dialect == DialectPostgres {
		statements = postgresSchema
	}
	for i, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i+1, err)
		}
	}
	return nil
}
