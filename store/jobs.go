package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Job statuses.
const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

// Job is a queued re-extraction of one field.
type Job struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Target     string    `json:"target"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// Submit queues a re-extraction of target and returns the job id (UUIDv7,
// so ids sort by submission time).
func (s *Store) Submit(ctx context.Context, documentID, target string) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("submit job: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, document_id, target, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		id.String(), documentID, target, JobQueued, s.timestamp()); err != nil {
		return "", fmt.Errorf("submit job for %s: %w", documentID, err)
	}
	s.log.Info("job queued", zap.String("job", id.String()), zap.String("document", documentID), zap.String("target", target))
	return id.String(), nil
}

// PendingJobs lists queued jobs, oldest first.
func (s *Store) PendingJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, document_id, target, status, created_at FROM jobs WHERE status = ? ORDER BY created_at, id`, JobQueued)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()
	var out []Job
	for rows.Next() {
		var (
			j       Job
			created string
		)
		if err := rows.Scan(&j.ID, &j.DocumentID, &j.Target, &j.Status, &created); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, j)
	}
	return out, rows.Err()
}

// SetJobStatus records the progress of a job.
func (s *Store) SetJobStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("update job %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return nil
}
