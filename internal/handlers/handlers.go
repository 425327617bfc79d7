package handlers

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"touche/internal/store"
)

// Handlers holds the HTTP handlers and their dependencies.
type Handlers struct {
	stores *store.Stores
}

// New creates a new Handlers instance.
func New(s *store.Stores) *Handlers {
	return &Handlers{stores: s}
}

// Routes registers the JSON API on r.
func (h *Handlers) Routes(r chi.Router) {
	r.Get("/api/overview", h.Home)

	// Board routes
	r.Get("/api/boards", h.ListBoards)
	r.Post("/api/boards", h.CreateBoard)
	r.Put("/api/boards/{id}", h.UpdateBoard)
	r.Delete("/api/boards/{id}", h.DeleteBoard)

	// Task routes
	r.Get("/api/tasks", h.ListTasks)
	r.Post("/api/tasks", h.CreateTask)
	r.Post("/api/tasks/clear-completed", h.ClearCompleted)
	r.Put("/api/tasks/{id}", h.UpdateTask)
	r.Post("/api/tasks/{id}/toggle", h.ToggleTask)
	r.Put("/api/tasks/{id}/status", h.SetTaskStatus)
	r.Delete("/api/tasks/{id}", h.DeleteTask)

	// Settings routes
	r.Get("/api/settings", h.GetSettings)
	r.Post("/api/settings/{flag}/toggle", h.ToggleSetting)

	r.Get("/api/stream/{collection}", h.Stream)
}

// parseID extracts a non-blank entity id from URL parameters.
func parseID(r *http.Request, param string) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, param))
	if id == "" {
		return "", errors.New("missing id")
	}
	return id, nil
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		return err
	}
	return sonic.ConfigStd.Unmarshal(body, v)
}

// respondJSON writes v as a JSON document.
func respondJSON(w http.ResponseWriter, code int, v any) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		respondServerError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(data)
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, code int, message string) {
	w.WriteHeader(code)
	w.Write([]byte(message))
}

func respondServerError(w http.ResponseWriter, err error) {
	log.WithError(err).Error("internal server error")
	respondError(w, http.StatusInternalServerError, "internal server error")
}
