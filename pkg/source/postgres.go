package source

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"

	"video-filter/pkg/config"
	"video-filter/pkg/domain"
)

// PostgresSource streams rows from a Postgres table or query.
// Rows arrive through the driver's cursor, so the table is never
// materialized on our side.
type PostgresSource struct {
	dsn string
	cfg config.PostgresConfig
}

// NewPostgresSource creates a source over a postgres:// DSN.
func NewPostgresSource(dsn string, cfg config.PostgresConfig) *PostgresSource {
	return &PostgresSource{dsn: dsn, cfg: cfg}
}

// Open connects, verifies connectivity, and starts the row stream.
func (s *PostgresSource) Open(ctx context.Context) (Iterator, error) {
	db, err := sql.Open("pgx", s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w: %w", ErrSourceUnavailable, err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w: %w", ErrSourceUnavailable, err)
	}

	query := s.cfg.Query
	if query == "" {
		query = fmt.Sprintf("SELECT * FROM %s", pgx.Identifier{s.cfg.Table}.Sanitize())
	}

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("query postgres: %w: %w", ErrSourceUnavailable, err)
	}

	cols, err := rows.Columns()
	if err != nil {
		_ = rows.Close()
		_ = db.Close()
		return nil, fmt.Errorf("read postgres columns: %w", err)
	}

	return &postgresIterator{
		db:   db,
		rows: rows,
		cols: cols,
	}, nil
}

type postgresIterator struct {
	db   *sql.DB
	rows *sql.Rows
	cols []string
	n    int64
}

func (it *postgresIterator) Next(ctx context.Context) (domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	it.n++

	values := make([]any, len(it.cols))
	ptrs := make([]any, len(it.cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	if err := it.rows.Scan(ptrs...); err != nil {
		return nil, &ParseError{Record: it.n, Err: err}
	}

	rec := make(domain.Record, len(it.cols))
	for i, col := range it.cols {
		rec[col] = normalizeSQLValue(values[i])
	}
	return rec, nil
}

func (it *postgresIterator) Close() error {
	rowsErr := it.rows.Close()
	dbErr := it.db.Close()
	if rowsErr != nil {
		return rowsErr
	}
	return dbErr
}

// normalizeSQLValue maps driver values onto the types the rest of the
// job understands. []byte is text in disguise for our datasets.
func normalizeSQLValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val
	default:
		return v
	}
}
