package inquiry

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	listRecentQuery = `
		SELECT id::text, created_at, name, COALESCE(email, ''), COALESCE(phone, ''), start, "end"
		FROM inquiries
		ORDER BY created_at DESC
		LIMIT $1
	`
	insertQuery = `
		INSERT INTO inquiries (name, email, phone, start, "end")
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id::text, created_at, name, COALESCE(email, ''), COALESCE(phone, ''), start, "end"
	`
)

// DB is the subset of pgxpool.Pool the repository needs.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores inquiries in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgxpool.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	if pool == nil {
		panic("inquiry: pgx pool required")
	}
	return &PostgresRepository{db: pool}
}

// NewPostgresRepositoryWithDB allows injecting mocks for tests.
func NewPostgresRepositoryWithDB(db DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// ListRecent returns up to limit rows, newest first. There is no date window.
func (r *PostgresRepository) ListRecent(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.db.Query(ctx, listRecentQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("inquiry: select failed: %w", err)
	}
	defer rows.Close()

	var result []Row
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("inquiry: scan failed: %w", err)
		}
		result = append(result, *row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("inquiry: select failed: %w", err)
	}
	return result, nil
}

// Insert writes the row and reads it back in one round trip.
func (r *PostgresRepository) Insert(ctx context.Context, in NewRow) (*Row, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	row, err := scanRow(r.db.QueryRow(ctx, insertQuery,
		in.Name,
		nullableText(in.Email),
		nullableText(in.Phone),
		in.Start,
		in.End,
	))
	if err != nil {
		return nil, fmt.Errorf("inquiry: insert failed: %w", err)
	}
	return row, nil
}

func scanRow(s pgx.Row) (*Row, error) {
	var (
		row   Row
		start time.Time
		end   *time.Time
	)
	if err := s.Scan(&row.ID, &row.CreatedAt, &row.Name, &row.Email, &row.Phone, &start, &end); err != nil {
		return nil, err
	}
	row.Start, row.End = formatTimes(start, end)
	return &row, nil
}

func nullableText(s string) any {
	if s == "" {
		return nil
	}
	return s
}
