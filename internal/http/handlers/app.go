package handlers

import (
	"encoding/json"
	"net/http"

	"novelstudio/internal/domain"
	"novelstudio/internal/infra"
	"novelstudio/internal/jobclient"
	"novelstudio/internal/session"
)

// App carries the dependencies of the gateway handlers. History is nil
// when no database is configured.
type App struct {
	Config   *infra.Config
	Sessions *session.Registry
	History  domain.JobHistoryRepository
	Logger   *infra.Logger
}

func NewApp(cfg *infra.Config, sessions *session.Registry, history domain.JobHistoryRepository, logger *infra.Logger) *App {
	return &App{
		Config:   cfg,
		Sessions: sessions,
		History:  history,
		Logger:   infra.Component(logger, "gateway"),
	}
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error    errorBody           `json:"error"`
	Snapshot *jobclient.Snapshot `json:"snapshot,omitempty"`
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, errCode, message string) {
	a.json(w, code, errorResponse{Error: errorBody{Code: errCode, Message: message}})
}

// errorWithSnapshot reports a failure together with the controller state,
// so the client can show the notice the failure produced.
func (a *App) errorWithSnapshot(w http.ResponseWriter, code int, errCode, message string, snap jobclient.Snapshot) {
	a.json(w, code, errorResponse{Error: errorBody{Code: errCode, Message: message}, Snapshot: &snap})
}
