package repo

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
	"novelstudio/internal/sqlinline"
)

type storedJob struct {
	id, prompt, state, status, errMsg string
	progress                          int
	result                            []byte
	submittedAt                       time.Time
	finishedAt                        *time.Time
}

func (s storedJob) scanInto(dest ...any) error {
	*dest[0].(*string) = s.id
	*dest[1].(*string) = s.prompt
	*dest[2].(*string) = s.state
	*dest[3].(*string) = s.status
	*dest[4].(*int) = s.progress
	*dest[5].(*string) = s.errMsg
	*dest[6].(*[]byte) = s.result
	*dest[7].(*time.Time) = s.submittedAt
	*dest[8].(**time.Time) = s.finishedAt
	return nil
}

// historySQL keeps novel_jobs rows in memory and checks that every statement
// carries its marker.
type historySQL struct {
	rows    map[string]storedJob
	queries []string
	execErr error
}

func newHistorySQL() *historySQL {
	return &historySQL{rows: map[string]storedJob{}}
}

func (h *historySQL) Exec(_ context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if _, _, err := infra.SplitMarker(query); err != nil {
		return pgconn.CommandTag{}, err
	}
	h.queries = append(h.queries, query)
	if h.execErr != nil {
		return pgconn.CommandTag{}, h.execErr
	}
	if query != sqlinline.QJobHistoryUpsert {
		return pgconn.CommandTag{}, nil
	}
	row := storedJob{
		id:          args[0].(string),
		prompt:      args[1].(string),
		state:       args[2].(string),
		status:      args[3].(string),
		progress:    args[4].(int),
		errMsg:      args[5].(string),
		submittedAt: args[7].(time.Time),
		finishedAt:  args[8].(*time.Time),
	}
	result, _ := args[6].([]byte)
	if prev, ok := h.rows[row.id]; ok && result == nil {
		result = prev.result
	}
	row.result = result
	h.rows[row.id] = row
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (h *historySQL) QueryRow(_ context.Context, query string, args ...any) pgx.Row {
	h.queries = append(h.queries, query)
	row, ok := h.rows[args[0].(string)]
	if !ok {
		return simpleRow{}
	}
	return simpleRow{scan: row.scanInto}
}

func (h *historySQL) Query(_ context.Context, query string, args ...any) (pgx.Rows, error) {
	h.queries = append(h.queries, query)
	items := make([]storedJob, 0, len(h.rows))
	for _, row := range h.rows {
		items = append(items, row)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].submittedAt.After(items[j].submittedAt) })
	if limit := args[0].(int); len(items) > limit {
		items = items[:limit]
	}
	return &historyRows{items: items, idx: -1}, nil
}

type historyRows struct {
	testRowsBase
	items []storedJob
	idx   int
}

func (r *historyRows) Close()     {}
func (r *historyRows) Err() error { return nil }
func (r *historyRows) Next() bool {
	r.idx++
	return r.idx < len(r.items)
}
func (r *historyRows) Scan(dest ...any) error { return r.items[r.idx].scanInto(dest...) }

func TestJobHistorySaveAndGet(t *testing.T) {
	sql := newHistorySQL()
	repo := NewJobHistoryRepository(sql)
	ctx := context.Background()
	submitted := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	job := &domain.Job{
		ID:          "job-1",
		Prompt:      "Once upon a time",
		State:       domain.JobStatePolling,
		Status:      domain.RemoteStatusProcessing,
		Progress:    40,
		SubmittedAt: submitted,
	}
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("Save: %v", err)
	}

	job.State = domain.JobStateCompleted
	job.Status = domain.RemoteStatusCompleted
	job.Progress = 100
	job.Result = &domain.ResultPayload{Panels: []string{"scene"}, URL: "https://cdn/v.mp4"}
	job.FinishedAt = submitted.Add(time.Minute)
	if err := repo.Save(ctx, job); err != nil {
		t.Fatalf("Save completed: %v", err)
	}

	got, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.State != domain.JobStateCompleted || got.Progress != 100 || got.Status != domain.RemoteStatusCompleted {
		t.Fatalf("unexpected job: %#v", got)
	}
	if got.Result == nil || got.Result.URL != "https://cdn/v.mp4" || len(got.Result.Panels) != 1 {
		t.Fatalf("unexpected result: %#v", got.Result)
	}
	if !got.FinishedAt.Equal(submitted.Add(time.Minute)) {
		t.Fatalf("finished_at = %s", got.FinishedAt)
	}
	for _, q := range sql.queries {
		if !strings.HasPrefix(q, "--sql ") {
			t.Fatalf("query without marker: %q", q)
		}
	}
}

func TestJobHistorySaveKeepsStoredResultWhenNil(t *testing.T) {
	sql := newHistorySQL()
	repo := NewJobHistoryRepository(sql)
	ctx := context.Background()

	job := &domain.Job{ID: "job-1", State: domain.JobStateCompleted, Result: &domain.ResultPayload{URL: "u"}}
	_ = repo.Save(ctx, job)
	job.Result = nil
	_ = repo.Save(ctx, job)

	got, err := repo.GetByID(ctx, "job-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Result == nil || got.Result.URL != "u" {
		t.Fatalf("result lost: %#v", got.Result)
	}
	if !got.FinishedAt.IsZero() {
		t.Fatalf("finished_at should stay zero")
	}
}

func TestJobHistoryGetByIDNotFound(t *testing.T) {
	repo := NewJobHistoryRepository(newHistorySQL())
	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestJobHistoryListRecent(t *testing.T) {
	sql := newHistorySQL()
	repo := NewJobHistoryRepository(sql)
	ctx := context.Background()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		_ = repo.Save(ctx, &domain.Job{ID: id, State: domain.JobStateFailed, SubmittedAt: base.Add(time.Duration(i) * time.Hour)})
	}

	items, err := repo.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(items) != 2 || items[0].ID != "c" || items[1].ID != "b" {
		t.Fatalf("items = %#v", items)
	}
}

func TestJobHistorySaveValidatesAndPropagatesErrors(t *testing.T) {
	sql := newHistorySQL()
	repo := NewJobHistoryRepository(sql)
	if err := repo.Save(context.Background(), &domain.Job{}); err == nil {
		t.Fatalf("expected error for missing id")
	}
	sql.execErr = errors.New("db down")
	if err := repo.Save(context.Background(), &domain.Job{ID: "x"}); err == nil || err.Error() != "db down" {
		t.Fatalf("err = %v", err)
	}
	if err := repo.EnsureSchema(context.Background()); err == nil {
		t.Fatalf("expected schema error")
	}
}
