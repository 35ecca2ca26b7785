package server

import (
	"net/http"

	"github.com/julianstephens/daystreak/internal/auth"
	"github.com/julianstephens/daystreak/internal/logger"
	"github.com/julianstephens/daystreak/internal/models"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) handleLoadData(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	snap, err := a.Data.Load(r.Context(), userID)
	if err != nil {
		logger.Error("Failed to load user data", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load data")
		return
	}
	snap.Normalize()
	writeJSON(w, http.StatusOK, snap)
}

func (a *API) handleSaveData(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
		return
	}
	var snap models.Snapshot
	if !decodeJSON(w, r, &snap) {
		return
	}
	if snap.CurrentStreak < 0 {
		snap.CurrentStreak = 0
	}
	if err := a.Data.Save(r.Context(), userID, snap); err != nil {
		logger.Error("Failed to save user data", "user", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to save data")
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
