package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists audit records in the request_audit_log and
// phi_access_log tables.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) AppendRequest(ctx context.Context, record RequestRecord) error {
	query := `
		INSERT INTO request_audit_log (occurred_at, user_id, method, path, status, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := s.pool.Exec(ctx, query,
		record.Timestamp,
		record.UserID,
		record.Method,
		record.Path,
		record.Status,
		record.DurationMS,
	)
	if err != nil {
		return fmt.Errorf("inserting request audit record: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendPHI(ctx context.Context, record PHIRecord) error {
	query := `
		INSERT INTO phi_access_log (occurred_at, user_id, action, resource_type, resource_id, ip_address, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		record.Timestamp,
		record.UserID,
		record.Action,
		record.ResourceType,
		nullable(record.ResourceID),
		nullable(record.IPAddress),
		nullable(record.UserAgent),
	)
	if err != nil {
		return fmt.Errorf("inserting phi access record: %w", err)
	}
	return nil
}

// ListPHI returns matching PHI records, newest first, plus the total match
// count before pagination.
func (s *PostgresStore) ListPHI(ctx context.Context, filter PHIFilter) ([]PHIRecord, int, error) {
	var conditions []string
	var args []any

	if filter.Since != nil {
		args = append(args, *filter.Since)
		conditions = append(conditions, fmt.Sprintf("occurred_at >= $%d", len(args)))
	}
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Action != "" {
		args = append(args, filter.Action)
		conditions = append(conditions, fmt.Sprintf("action = $%d", len(args)))
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM phi_access_log" + where
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting phi access records: %w", err)
	}

	query := `
		SELECT occurred_at, user_id, action, resource_type, resource_id, ip_address, user_agent
		FROM phi_access_log` + where + " ORDER BY occurred_at DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing phi access records: %w", err)
	}
	defer rows.Close()

	var records []PHIRecord
	for rows.Next() {
		var r PHIRecord
		var resourceID, ipAddress, userAgent *string
		var occurredAt time.Time
		if err := rows.Scan(&occurredAt, &r.UserID, &r.Action, &r.ResourceType, &resourceID, &ipAddress, &userAgent); err != nil {
			return nil, 0, fmt.Errorf("scanning phi access record: %w", err)
		}
		r.Timestamp = occurredAt
		r.ResourceID = deref(resourceID)
		r.IPAddress = deref(ipAddress)
		r.UserAgent = deref(userAgent)
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating phi access records: %w", err)
	}
	return records, total, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
