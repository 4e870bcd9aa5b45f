package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
	"novelstudio/internal/sqlinline"
)

const maxHistoryLimit = 200

// JobHistoryRepositoryPG implements domain.JobHistoryRepository on top of
// marker-tagged statements.
type JobHistoryRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewJobHistoryRepository creates a history repository.
func NewJobHistoryRepository(sql infra.SQLExecutor) *JobHistoryRepositoryPG {
	return &JobHistoryRepositoryPG{sql: sql}
}

// EnsureSchema creates the history table if needed.
func (r *JobHistoryRepositoryPG) EnsureSchema(ctx context.Context) error {
	_, err := r.sql.Exec(ctx, sqlinline.QJobHistorySchema)
	return err
}

// Save upserts job keyed by its id. A nil result keeps the stored one.
func (r *JobHistoryRepositoryPG) Save(ctx context.Context, job *domain.Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("repo: job id is required")
	}
	var resultJSON []byte
	if !job.Result.Empty() {
		encoded, err := json.Marshal(job.Result)
		if err != nil {
			return fmt.Errorf("repo: encode result: %w", err)
		}
		resultJSON = encoded
	}
	_, err := r.sql.Exec(ctx, sqlinline.QJobHistoryUpsert,
		job.ID,
		job.Prompt,
		string(job.State),
		string(job.Status),
		job.Progress,
		job.Error,
		resultJSON,
		job.SubmittedAt,
		nullableTime(job.FinishedAt),
	)
	return err
}

// GetByID fetches one job.
func (r *JobHistoryRepositoryPG) GetByID(ctx context.Context, id string) (*domain.Job, error) {
	job, err := scanJob(r.sql.QueryRow(ctx, sqlinline.QJobHistoryGetByID, id))
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListRecent returns the newest jobs first.
func (r *JobHistoryRepositoryPG) ListRecent(ctx context.Context, limit int) ([]domain.Job, error) {
	if limit <= 0 || limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	rows, err := r.sql.Query(ctx, sqlinline.QJobHistoryListRecent, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *job)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func scanJob(row pgx.Row) (*domain.Job, error) {
	var (
		job        domain.Job
		state      string
		status     string
		resultJSON []byte
		finishedAt *time.Time
	)
	if err := row.Scan(
		&job.ID,
		&job.Prompt,
		&state,
		&status,
		&job.Progress,
		&job.Error,
		&resultJSON,
		&job.SubmittedAt,
		&finishedAt,
	); err != nil {
		return nil, err
	}
	job.State = domain.JobState(state)
	job.Status = domain.RemoteStatus(status)
	if finishedAt != nil {
		job.FinishedAt = *finishedAt
	}
	if len(resultJSON) > 0 {
		var payload domain.ResultPayload
		if err := json.Unmarshal(resultJSON, &payload); err == nil {
			job.Result = &payload
		}
	}
	return &job, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

var _ domain.JobHistoryRepository = (*JobHistoryRepositoryPG)(nil)
