package handlers

import (
	"net/http"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	sessions := 0
	if a.Sessions != nil {
		sessions = a.Sessions.Len()
	}
	a.json(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": sessions,
		"history":  a.History != nil,
	})
}
