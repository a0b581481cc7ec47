package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"SocialPoster/internal/domain"
	"SocialPoster/internal/ports"
)

// sqliteTimeLayout is fixed width so TEXT columns sort chronologically.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLRepository persists every pipeline record through database/sql.
type SQLRepository struct {
	db      *sql.DB
	dialect Dialect
	sb      sq.StatementBuilderType
	now     func() time.Time
}

var _ ports.Repository = (*SQLRepository)(nil)

// NewSQLRepository wires a sql.DB opened for dialect.
func NewSQLRepository(db *sql.DB, dialect Dialect) *SQLRepository {
	return &SQLRepository{
		db:      db,
		dialect: dialect,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholder()),
		now:     time.Now,
	}
}

// Close releases the database handle.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *SQLRepository) timeArg(t time.Time) any {
	t = t.UTC()
	if r.dialect == DialectSQLite {
		return t.Format(sqliteTimeLayout)
	}
	return t
}

func (r *SQLRepository) nullTimeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return r.timeArg(*t)
}

// dbTime scans TIMESTAMPTZ values as well as the TEXT encoding used on SQLite.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (d *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = dbTime{}
		return nil
	case time.Time:
		d.Time, d.Valid = v.UTC(), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("unsupported time value %T", src)
	}
}

func (d *dbTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time, d.Valid = t.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("parse time %q", s)
}

func (d dbTime) ptr() *time.Time {
	if !d.Valid {
		return nil
	}
	t := d.Time
	return &t
}

func toJSON(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func fromJSON(raw string, v any) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), v)
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf(format+": %w", append(args, ports.ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

var projectColumns = []string{
	"id", "display_name", "description", "brand_voice", "hashtags", "feeds", "scoring",
	"templates", "schedule", "platform_linkedin", "platform_twitter", "platform_telegram",
	"quality_threshold", "active", "created_at", "updated_at",
}

func scanProject(row rowScanner) (domain.Project, error) {
	var (
		p                                             domain.Project
		hashtags, feeds, scoring, templates, schedule string
		created, updated                              dbTime
	)
	err := row.Scan(
		&p.ID, &p.DisplayName, &p.Description, &p.BrandVoice,
		&hashtags, &feeds, &scoring, &templates, &schedule,
		&p.Platforms.LinkedIn, &p.Platforms.Twitter, &p.Platforms.Telegram,
		&p.QualityThreshold, &p.Active, &created, &updated,
	)
	if err != nil {
		return domain.Project{}, err
	}
	for _, field := range []struct {
		raw string
		dst any
	}{
		{hashtags, &p.Hashtags},
		{feeds, &p.Feeds},
		{scoring, &p.Scoring},
		{templates, &p.Templates},
		{schedule, &p.Schedule},
	} {
		if err := fromJSON(field.raw, field.dst); err != nil {
			return domain.Project{}, fmt.Errorf("decode project %s: %w", p.ID, err)
		}
	}
	p.CreatedAt, p.UpdatedAt = created.Time, updated.Time
	return p, nil
}

// GetProject loads one project by id.
func (r *SQLRepository) GetProject(ctx context.Context, id string) (domain.Project, error) {
	query, args, err := r.sb.Select(projectColumns...).From("projects").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Project{}, fmt.Errorf("build project query: %w", err)
	}
	p, err := scanProject(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		return domain.Project{}, notFound(err, "get project %s", id)
	}
	return p, nil
}

// ListProjects returns projects ordered by id.
func (r *SQLRepository) ListProjects(ctx context.Context, activeOnly bool) ([]domain.Project, error) {
	q := r.sb.Select(projectColumns...).From("projects").OrderBy("id")
	if activeOnly {
		q = q.Where(sq.Eq{"active": true})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build projects query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var out []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// InsertProjectIfAbsent stores the project unless its id already exists.
func (r *SQLRepository) InsertProjectIfAbsent(ctx context.Context, p domain.Project) (bool, error) {
	encoded := make([]string, 0, 5)
	for _, v := range []any{p.Hashtags, p.Feeds, p.Scoring, p.Templates, p.Schedule} {
		s, err := toJSON(v)
		if err != nil {
			return false, fmt.Errorf("encode project %s: %w", p.ID, err)
		}
		encoded = append(encoded, s)
	}
	now := r.now()
	query, args, err := r.sb.Insert("projects").Columns(projectColumns...).Values(
		p.ID, p.DisplayName, p.Description, p.BrandVoice,
		encoded[0], encoded[1], encoded[2], encoded[3], encoded[4],
		p.Platforms.LinkedIn, p.Platforms.Twitter, p.Platforms.Telegram,
		p.QualityThreshold, p.Active, r.timeArg(now), r.timeArg(now),
	).Suffix("ON CONFLICT (id) DO NOTHING").ToSql()
	if err != nil {
		return false, fmt.Errorf("build project insert: %w", err)
	}
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert project %s: %w", p.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

var profileColumns = []string{
	"id", "project_id", "platform", "account_type", "display_name", "access_token", "platform_user_id", "active",
}

// ListProfiles returns the publish targets of a project.
func (r *SQLRepository) ListProfiles(ctx context.Context, projectID string, activeOnly bool) ([]domain.Profile, error) {
	q := r.sb.Select(profileColumns...).From("profiles").Where(sq.Eq{"project_id": projectID}).OrderBy("id")
	if activeOnly {
		q = q.Where(sq.Eq{"active": true})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build profiles query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query profiles: %w", err)
	}
	defer rows.Close()

	var out []domain.Profile
	for rows.Next() {
		var p domain.Profile
		if err := rows.Scan(&p.ID, &p.ProjectID, &p.Platform, &p.AccountType, &p.DisplayName, &p.AccessToken, &p.PlatformUserID, &p.Active); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return out, nil
}

// InsertProfile stores a publish target.
func (r *SQLRepository) InsertProfile(ctx context.Context, p domain.Profile) (int64, error) {
	query, args, err := r.sb.Insert("profiles").
		Columns(profileColumns[1:]...).
		Values(p.ProjectID, string(p.Platform), string(p.AccountType), p.DisplayName, p.AccessToken, p.PlatformUserID, p.Active).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build profile insert: %w", err)
	}
	var id int64
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert profile: %w", err)
	}
	return id, nil
}
