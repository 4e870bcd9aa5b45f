package domain

import "time"

// JobState enumerates the client-side lifecycle of a generation job.
type JobState string

const (
	JobStateIdle       JobState = "idle"
	JobStateSubmitting JobState = "submitting"
	JobStatePolling    JobState = "polling"
	JobStateCompleted  JobState = "completed"
	JobStateFailed     JobState = "failed"
)

// RemoteStatus enumerates the status strings reported by the generation backend.
type RemoteStatus string

const (
	RemoteStatusPending    RemoteStatus = "pending"
	RemoteStatusProcessing RemoteStatus = "processing"
	RemoteStatusCompleted  RemoteStatus = "completed"
	RemoteStatusFailed     RemoteStatus = "failed"
)

// Terminal reports whether the backend will not change the status again.
func (s RemoteStatus) Terminal() bool {
	return s == RemoteStatusCompleted || s == RemoteStatusFailed
}

// Job is one server-side novel-to-video pipeline run as seen by a controller.
type Job struct {
	ID          string         `json:"id"`
	Prompt      string         `json:"prompt"`
	State       JobState       `json:"state"`
	Progress    int            `json:"progress"`
	Status      RemoteStatus   `json:"status,omitempty"`
	Error       string         `json:"error,omitempty"`
	Result      *ResultPayload `json:"result,omitempty"`
	SubmittedAt time.Time      `json:"submitted_at"`
	FinishedAt  time.Time      `json:"finished_at,omitzero"`
}

// Clone returns a deep copy so snapshots never alias controller state.
func (j *Job) Clone() *Job {
	if j == nil {
		return nil
	}
	out := *j
	if j.Result != nil {
		out.Result = j.Result.Clone()
	}
	return &out
}

// ResultPayload holds the artifacts of a completed job. Missing fields mean
// the artifact was not produced.
type ResultPayload struct {
	Images []string `json:"images,omitempty"`
	Panels []string `json:"panels,omitempty"`
	URL    string   `json:"url,omitempty"`
}

// Clone returns a deep copy of the payload.
func (p *ResultPayload) Clone() *ResultPayload {
	if p == nil {
		return nil
	}
	return &ResultPayload{
		Images: append([]string(nil), p.Images...),
		Panels: append([]string(nil), p.Panels...),
		URL:    p.URL,
	}
}

// Empty reports whether the payload carries no artifact at all.
func (p *ResultPayload) Empty() bool {
	return p == nil || (len(p.Images) == 0 && len(p.Panels) == 0 && p.URL == "")
}

// ClampProgress bounds a backend-reported progress value to 0..100.
func ClampProgress(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
