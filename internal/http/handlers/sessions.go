package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"novelstudio/internal/domain"
	"novelstudio/internal/jobclient"
	"novelstudio/internal/middleware"
	"novelstudio/internal/session"
	"novelstudio/internal/storage"
)

const maxPromptBytes = 1 << 20

type sessionResponse struct {
	SessionID string             `json:"session_id"`
	Snapshot  jobclient.Snapshot `json:"snapshot"`
}

type submitJobRequest struct {
	NovelPrompt string `json:"novel_prompt"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	entry, err := a.Sessions.Create(middleware.LocaleFromContext(r.Context()))
	if err != nil {
		if errors.Is(err, session.ErrRegistryClosed) {
			a.error(w, http.StatusServiceUnavailable, "unavailable", "gateway is shutting down")
			return
		}
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("gateway: create session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}
	a.json(w, http.StatusCreated, sessionResponse{SessionID: entry.ID, Snapshot: entry.Controller.Snapshot()})
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	entry, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, sessionResponse{SessionID: entry.ID, Snapshot: entry.Controller.Snapshot()})
}

func (a *App) SubmitJob(w http.ResponseWriter, r *http.Request) {
	entry, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	var req submitJobRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxPromptBytes)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
		return
	}

	ctrl := entry.Controller
	ctrl.SetLocale(middleware.LocaleFromContext(r.Context()))
	jobID, err := ctrl.Submit(r.Context(), req.NovelPrompt)
	snap := ctrl.Snapshot()
	switch {
	case err == nil:
		middleware.LoggerFromContext(r.Context()).Info().
			Str("session_id", entry.ID).
			Str("job_id", jobID).
			Msg("gateway: job submitted")
		a.json(w, http.StatusAccepted, sessionResponse{SessionID: entry.ID, Snapshot: snap})
	case errors.Is(err, domain.ErrEmptyInput):
		a.errorWithSnapshot(w, http.StatusBadRequest, "empty_input", "novel text is required", snap)
	case errors.Is(err, domain.ErrSubmissionInFlight):
		a.errorWithSnapshot(w, http.StatusConflict, "submission_in_flight", "a submission is already in progress", snap)
	case errors.Is(err, jobclient.ErrDiscarded):
		a.errorWithSnapshot(w, http.StatusConflict, "discarded", "submission was canceled", snap)
	case errors.Is(err, domain.ErrControllerClosed):
		a.error(w, http.StatusGone, "session_closed", "session was disposed")
	case errors.Is(err, domain.ErrSubmissionFailed):
		middleware.LoggerFromContext(r.Context()).Warn().Err(err).Str("session_id", entry.ID).Msg("gateway: submission failed")
		a.errorWithSnapshot(w, http.StatusBadGateway, "submission_failed", "generation backend rejected the job", snap)
	default:
		a.errorWithSnapshot(w, http.StatusInternalServerError, "internal", "failed to submit job", snap)
	}
}

func (a *App) CancelJob(w http.ResponseWriter, r *http.Request) {
	entry, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	entry.Controller.Cancel()
	a.json(w, http.StatusOK, sessionResponse{SessionID: entry.ID, Snapshot: entry.Controller.Snapshot()})
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := a.Sessions.Remove(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) SessionArtifacts(w http.ResponseWriter, r *http.Request) {
	entry, ok := a.loadSession(w, r)
	if !ok {
		return
	}
	snap := entry.Controller.Snapshot()
	if snap.State != domain.JobStateCompleted || snap.Job == nil || snap.Job.Result.Empty() {
		a.error(w, http.StatusNotFound, "not_found", "no completed job")
		return
	}
	archive, err := storage.Bundle(snap.Job.Result)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to bundle artifacts")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=job-%s.zip", snap.Job.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) loadSession(w http.ResponseWriter, r *http.Request) (*session.Entry, bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		a.error(w, http.StatusBadRequest, "bad_request", "session id required")
		return nil, false
	}
	entry, err := a.Sessions.Get(id)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	return entry, true
}
