package admin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"phi-gateway/pkg/platform/sentinel"
)

// PostgresDirectory resolves emails from the users table.
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

func (d *PostgresDirectory) EmailByUserID(ctx context.Context, userID string) (string, error) {
	var email string
	err := d.pool.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, userID).Scan(&email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", sentinel.ErrNotFound
		}
		return "", fmt.Errorf("querying user email: %w", err)
	}
	return email, nil
}

// PostgresReporting reads users and aggregates the usage_log table.
type PostgresReporting struct {
	pool *pgxpool.Pool
}

func NewPostgresReporting(pool *pgxpool.Pool) *PostgresReporting {
	return &PostgresReporting{pool: pool}
}

func (r *PostgresReporting) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, email, COALESCE(name, ''), created_at
		FROM users
		ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating users: %w", err)
	}
	return users, nil
}

func (r *PostgresReporting) UsageSince(ctx context.Context, since time.Time) ([]UsageSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT user_id, COUNT(*), COALESCE(SUM(tokens), 0)
		FROM usage_log
		WHERE occurred_at >= $1
		GROUP BY user_id
		ORDER BY user_id`, since)
	if err != nil {
		return nil, fmt.Errorf("summarizing usage: %w", err)
	}
	defer rows.Close()

	var summaries []UsageSummary
	for rows.Next() {
		var s UsageSummary
		if err := rows.Scan(&s.UserID, &s.Requests, &s.TotalTokens); err != nil {
			return nil, fmt.Errorf("scanning usage summary: %w", err)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating usage summaries: %w", err)
	}
	return summaries, nil
}

func (r *PostgresReporting) InsertUsage(ctx context.Context, entry UsageEntry) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO usage_log (user_id, model, request_type, tokens, occurred_at)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID, entry.Model, entry.RequestType, entry.Tokens, entry.Timestamp)
	if err != nil {
		return fmt.Errorf("inserting usage entry: %w", err)
	}
	return nil
}
