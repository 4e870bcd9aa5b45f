package domain

import "context"

// JobHistoryRepository persists finished jobs.
type JobHistoryRepository interface {
	Save(ctx context.Context, job *Job) error
	GetByID(ctx context.Context, jobID string) (*Job, error)
	ListRecent(ctx context.Context, limit int) ([]Job, error)
}
