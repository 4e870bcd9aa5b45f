package infra

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLExecutor is the subset of pgx used by repositories. Tests substitute
// in-memory implementations.
type SQLExecutor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
}

var markerRegexp = regexp.MustCompile(`^--sql [0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// ErrMissingMarker is returned for queries without a leading `--sql <uuid>` line.
var ErrMissingMarker = errors.New("sql marker missing or invalid")

// SQLRunner executes marker-tagged statements against a pool and logs each
// call under its marker.
type SQLRunner struct {
	Pool   *pgxpool.Pool
	Logger *Logger
}

func NewSQLRunner(pool *pgxpool.Pool, logger *Logger) *SQLRunner {
	return &SQLRunner{Pool: pool, Logger: Component(logger, "sql")}
}

func (r *SQLRunner) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	marker, trimmed, err := SplitMarker(query)
	if err != nil {
		return pgconn.CommandTag{}, err
	}
	tag, err := r.Pool.Exec(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Str("marker", marker).Msg("sql: exec failed")
		return tag, err
	}
	r.Logger.Debug().Str("marker", marker).Int64("rows", tag.RowsAffected()).Msg("sql: exec")
	return tag, nil
}

func (r *SQLRunner) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	marker, trimmed, err := SplitMarker(query)
	if err != nil {
		return errorRow{err: err}
	}
	r.Logger.Debug().Str("marker", marker).Msg("sql: query_row")
	return loggingRow{row: r.Pool.QueryRow(ctx, trimmed, args...), logger: r.Logger, marker: marker}
}

func (r *SQLRunner) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	marker, trimmed, err := SplitMarker(query)
	if err != nil {
		return nil, err
	}
	rows, err := r.Pool.Query(ctx, trimmed, args...)
	if err != nil {
		r.Logger.Error().Err(err).Str("marker", marker).Msg("sql: query failed")
		return nil, err
	}
	r.Logger.Debug().Str("marker", marker).Msg("sql: query")
	return rows, nil
}

// IsNoRows reports whether err signals an empty result set.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type loggingRow struct {
	row    pgx.Row
	logger *Logger
	marker string
}

func (l loggingRow) Scan(dest ...any) error {
	err := l.row.Scan(dest...)
	if err != nil && !IsNoRows(err) {
		l.logger.Error().Err(err).Str("marker", l.marker).Msg("sql: scan failed")
	}
	return err
}

type errorRow struct {
	err error
}

func (e errorRow) Scan(dest ...any) error {
	return e.err
}

// SplitMarker separates the `--sql <uuid>` marker line from the statement.
func SplitMarker(query string) (string, string, error) {
	trimmed := strings.TrimSpace(query)
	markerLine, rest, _ := strings.Cut(trimmed, "\n")
	markerLine = strings.TrimSpace(markerLine)
	if !markerRegexp.MatchString(markerLine) {
		return "", "", ErrMissingMarker
	}
	return strings.TrimPrefix(markerLine, "--sql "), strings.TrimSpace(rest), nil
}

var _ SQLExecutor = (*SQLRunner)(nil)
