package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"novelstudio/internal/domain"
	"novelstudio/internal/middleware"
)

const defaultHistoryLimit = 20

func (a *App) ListHistory(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.error(w, http.StatusNotFound, "history_disabled", "job history is not configured")
		return
	}
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			a.error(w, http.StatusBadRequest, "bad_request", "limit must be a positive integer")
			return
		}
		limit = v
	}
	items, err := a.History.ListRecent(r.Context(), limit)
	if err != nil {
		middleware.LoggerFromContext(r.Context()).Error().Err(err).Msg("gateway: list history failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to load history")
		return
	}
	if items == nil {
		items = []domain.Job{}
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

func (a *App) GetHistoryJob(w http.ResponseWriter, r *http.Request) {
	if a.History == nil {
		a.error(w, http.StatusNotFound, "history_disabled", "job history is not configured")
		return
	}
	job, err := a.History.GetByID(r.Context(), chi.URLParam(r, "job_id"))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "not_found", "job not found")
			return
		}
		a.error(w, http.StatusInternalServerError, "internal", "failed to load job")
		return
	}
	a.json(w, http.StatusOK, job)
}
