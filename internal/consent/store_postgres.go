package consent

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists acceptance records in the baa_acceptances table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Insert(ctx context.Context, record *Record) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO baa_acceptances (user_id, baa_version, accepted_at, ip_address, user_agent)
		 VALUES ($1, $2, $3, $4, $5)`,
		record.UserID, record.Version, record.AcceptedAt, record.IPAddress, record.UserAgent,
	)
	if err != nil {
		return fmt.Errorf("insert baa acceptance: %w", err)
	}
	return nil
}

func (s *PostgresStore) Exists(ctx context.Context, userID, version string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(
			SELECT 1 FROM baa_acceptances WHERE user_id = $1 AND baa_version = $2
		)`,
		userID, version,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query baa acceptance: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	query := `SELECT user_id, baa_version, accepted_at, COALESCE(ip_address, ''), COALESCE(user_agent, '')
		FROM baa_acceptances`
	var conditions []string
	var args []any

	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, "accepted_at >= $"+strconv.Itoa(len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, "user_id = $"+strconv.Itoa(len(args)))
	}
	for i, cond := range conditions {
		if i == 0 {
			query += " WHERE " + cond
		} else {
			query += " AND " + cond
		}
	}
	query += " ORDER BY accepted_at DESC"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query baa acceptances: %w", err)
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.UserID, &r.Version, &r.AcceptedAt, &r.IPAddress, &r.UserAgent); err != nil {
			return nil, fmt.Errorf("scan baa acceptance: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate baa acceptances: %w", err)
	}
	return records, nil
}
