// Package audit implements the persistence logger: an append-only record
// of every channel send attempt, via database/sql + lib/pq parameterized
// queries and row scans.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/notifybridge/pipeline/internal/apperrors"
	"github.com/notifybridge/pipeline/internal/notifypipe"
	"github.com/notifybridge/pipeline/internal/telemetry"
)

// Repository is the append-only audit capability. A failure here must
// never fail the calling worker; callers are expected to log and
// continue on error, which is why Record never panics and every error it
// returns is an *apperrors.AppError of KindAuditWriteError.
type Repository interface {
	Record(ctx context.Context, attempt notifypipe.DeliveryAttempt) error
	FindStaleSubmissions(ctx context.Context, staleAfterHours int) ([]string, error)
}

// PostgresRepository is the Repository backed by PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository wraps an existing *sql.DB.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Open opens a PostgreSQL connection pool from a DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	return db, nil
}

const insertAttemptQuery = `
INSERT INTO delivery_attempts (
	submission_id, recipient_id, channel, status,
	provider_message_id, provider_status_code, retry_count, error, attempt_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

// Record appends one DeliveryAttempt row. Errors are wrapped as
// KindAuditWriteError so callers can log-and-continue uniformly.
func (r *PostgresRepository) Record(ctx context.Context, attempt notifypipe.DeliveryAttempt) error {
	if attempt.AttemptAt.IsZero() {
		attempt.AttemptAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, insertAttemptQuery,
		attempt.SubmissionID,
		attempt.RecipientID,
		string(attempt.Channel),
		string(attempt.Status),
		nullableString(attempt.ProviderMessageID),
		nullableInt(attempt.ProviderStatusCode),
		attempt.RetryCount,
		nullableString(attempt.Error),
		attempt.AttemptAt,
	)
	if err != nil {
		telemetry.LogFromContext(ctx).
			WithField("submission_id", attempt.SubmissionID).
			Warnf("audit write failed: %v", err)
		return apperrors.NewAuditWriteError("record_attempt", err)
	}
	return nil
}

const staleSubmissionsQuery = `
SELECT DISTINCT submission_id
FROM delivery_attempts a
WHERE a.attempt_at < now() - ($1 || ' hours')::interval
  AND NOT EXISTS (
	SELECT 1 FROM delivery_attempts b
	WHERE b.submission_id = a.submission_id
	  AND (b.status = 'sent' OR b.attempt_at >= now() - ($1 || ' hours')::interval)
  )
`

// FindStaleSubmissions returns submission ids whose most recent activity
// is older than staleAfterHours with no recorded "sent" attempt.
func (r *PostgresRepository) FindStaleSubmissions(ctx context.Context, staleAfterHours int) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, staleSubmissionsQuery, staleAfterHours)
	if err != nil {
		return nil, apperrors.NewAuditWriteError("find_stale_submissions", err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewAuditWriteError("scan_stale_submission", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullableInt(n int) interface{} {
	if n == 0 {
		return nil
	}
	return n
}
