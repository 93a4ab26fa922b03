// Package storage persists verification results and job progress to
// PostgreSQL via database/sql, using
// database/sql + lib/pq usage rather than an ORM.
package storage

import (
	"context"
	"database/sql"

	_ "github.com/lib/pq"

	"github.com/devyanshu/mailcheck/internal/model"
)

// Store wraps a *sql.DB with the verification-domain queries.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL at dsn and verifies the connection.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the tables this store needs if they do not already
// exist. Idempotent, safe to call on every startup.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS verification_jobs (
	job_id     TEXT PRIMARY KEY,
	owner_id   TEXT,
	total      INTEGER NOT NULL,
	processed  INTEGER NOT NULL DEFAULT 0,
	status     TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS verification_results (
	id         BIGSERIAL PRIMARY KEY,
	job_id     TEXT NOT NULL REFERENCES verification_jobs(job_id),
	email      TEXT NOT NULL,
	domain     TEXT NOT NULL,
	status     TEXT NOT NULL,
	score      INTEGER NOT NULL,
	reason     TEXT NOT NULL,
	checked_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (job_id, email)
);
`)
	return err
}

// CreateJob registers a new job with the given total address count.
func (s *Store) CreateJob(ctx context.Context, jobID, ownerID string, total int) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO verification_jobs (job_id, owner_id, total, processed, status)
VALUES ($1, $2, $3, 0, $4)
ON CONFLICT (job_id) DO NOTHING
`, jobID, ownerID, total, model.JobQueued)
	return err
}

// InsertResult upserts a single address's verdict. The unique constraint on
// (job_id, email) makes this idempotent under at-least-once queue delivery.
func (s *Store) InsertResult(ctx context.Context, jobID string, res model.VerificationResult) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO verification_results (job_id, email, domain, status, score, reason)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (job_id, email) DO UPDATE
SET status = EXCLUDED.status, score = EXCLUDED.score, reason = EXCLUDED.reason, checked_at = now()
`, jobID, res.Email, res.Domain, string(res.Status), res.Score, res.Reason)
	return err
}

// AdvanceJob increments processed by one and flips status to done once
// processed reaches total.
func (s *Store) AdvanceJob(ctx context.Context, jobID string) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE verification_jobs
SET processed = processed + 1,
    status = CASE WHEN processed + 1 >= total THEN $2 ELSE $3 END
WHERE job_id = $1
`, jobID, model.JobDone, model.JobRunning)
	return err
}

// Progress fetches the current processed/total/status for a job.
func (s *Store) Progress(ctx context.Context, jobID string) (model.JobProgress, error) {
	var p model.JobProgress
	p.JobID = jobID
	var status string
	err := s.db.QueryRowContext(ctx, `
SELECT total, processed, status FROM verification_jobs WHERE job_id = $1
`, jobID).Scan(&p.Total, &p.Processed, &status)
	p.Status = model.JobStatus(status)
	return p, err
}
