package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"regexp"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/kakmul/ufcserver/internal/domain"
	"github.com/kakmul/ufcserver/internal/ports"
)

// DefaultTable is the table holding accepted video records.
const DefaultTable = "video_details"

//go:embed migrations/001_create_video_details.up.sql
var schemaSQL string

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// PostgresRepository is the identity store backed by Postgres. Unique indexes
// on title and video_embed keep concurrent inserts from duplicating either key.
type PostgresRepository struct {
	db    *sqlx.DB
	table string
	sql   sq.StatementBuilderType
}

var _ ports.IdentityStore = (*PostgresRepository)(nil)

// OpenPostgres connects with the lib/pq driver and pings the server.
func OpenPostgres(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return db, nil
}

// NewPostgresRepository wires a sqlx.DB; an empty table selects DefaultTable.
func NewPostgresRepository(db *sqlx.DB, table string) (*PostgresRepository, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if table == "" {
		table = DefaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &PostgresRepository{
		db:    db,
		table: table,
		sql:   sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}, nil
}

// EnsureSchema creates the table and its unique indexes when missing.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	ddl := strings.ReplaceAll(schemaSQL, DefaultTable, r.table)
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("%w: apply schema: %w", domain.ErrStorage, err)
	}
	return nil
}

// ExistsByTitle reports whether a record with this exact title was accepted.
func (r *PostgresRepository) ExistsByTitle(ctx context.Context, title string) (bool, error) {
	return r.exists(ctx, "title", title)
}

// ExistsByEmbedReference reports whether a record with this embed source was accepted.
func (r *PostgresRepository) ExistsByEmbedReference(ctx context.Context, ref string) (bool, error) {
	return r.exists(ctx, "video_embed", ref)
}

func (r *PostgresRepository) exists(ctx context.Context, column, value string) (bool, error) {
	query, args, err := r.sql.Select("id").
		From(r.table).
		Where(sq.Eq{column: value}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build lookup by %s: %w", column, err)
	}

	var id string
	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("%w: lookup by %s: %w", domain.ErrStorage, column, err)
	}
	return true, nil
}

// Insert appends the record. A row suppressed by a unique index yields
// domain.ErrAlreadyExists.
func (r *PostgresRepository) Insert(ctx context.Context, record domain.DetailRecord) (domain.StoredRecord, error) {
	query, args, err := r.sql.Insert(r.table).
		Columns("url", "title", "thumbnail", "video_embed", "categories", "fighters", "description").
		Values(
			record.URL,
			record.Title,
			record.Thumbnail,
			record.EmbedReference,
			pq.Array(nonNil(record.Categories)),
			pq.Array(nonNil(record.Fighters)),
			record.Description,
		).
		Suffix("ON CONFLICT DO NOTHING RETURNING id, created_at").
		ToSql()
	if err != nil {
		return domain.StoredRecord{}, fmt.Errorf("build insert: %w", err)
	}

	stored := domain.StoredRecord{DetailRecord: record}
	err = r.db.QueryRowxContext(ctx, query, args...).Scan(&stored.ID, &stored.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return domain.StoredRecord{}, fmt.Errorf("%w: %q", domain.ErrAlreadyExists, record.Title)
	case err != nil:
		return domain.StoredRecord{}, fmt.Errorf("%w: insert %q: %w", domain.ErrStorage, record.Title, err)
	}
	return stored, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
