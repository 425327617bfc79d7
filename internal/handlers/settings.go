package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GetSettings returns the user preferences.
func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.stores.Settings.Get())
}

// ToggleSetting flips one preference flag, named as in its JSON form.
func (h *Handlers) ToggleSetting(w http.ResponseWriter, r *http.Request) {
	settings := h.stores.Settings

	switch flag := chi.URLParam(r, "flag"); flag {
	case "showCompleted":
		settings.ToggleShowCompleted()
	case "skipDeleteConfirmation":
		settings.ToggleSkipDeleteConfirmation()
	case "hidePageTitle":
		settings.ToggleHidePageTitle()
	default:
		respondError(w, http.StatusNotFound, "unknown setting")
		return
	}

	respondJSON(w, http.StatusOK, settings.Get())
}
