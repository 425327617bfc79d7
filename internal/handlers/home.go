package handlers

import (
	"net/http"

	"touche/internal/models"
)

// BoardView is one board with its tasks split into status columns.
type BoardView struct {
	models.Board
	Active     []models.Task `json:"active"`
	InProgress []models.Task `json:"inProgress"`
	Done       []models.Task `json:"done"`
}

// HomeData is the overview document.
type HomeData struct {
	Tab      string          `json:"tab"` // "active", "completed" or "all"
	Settings models.Settings `json:"settings"`
	Boards   []BoardView     `json:"boards"`
	// Unassigned holds tasks whose board no longer exists.
	Unassigned []models.Task `json:"unassigned"`
}

// Home returns every board with its tasks filtered by tab. Without a tab
// query parameter the showCompleted preference decides whether done tasks
// are included.
func (h *Handlers) Home(w http.ResponseWriter, r *http.Request) {
	settings := h.stores.Settings.Get()

	tab := r.URL.Query().Get("tab")
	switch tab {
	case "active", "completed", "all":
	case "":
		tab = "active"
		if settings.ShowCompleted {
			tab = "all"
		}
	default:
		respondError(w, http.StatusBadRequest, "tab must be active, completed or all")
		return
	}

	boards := h.stores.Boards.Get()
	views := make([]BoardView, len(boards))
	index := make(map[string]int, len(boards))
	for i, board := range boards {
		views[i] = BoardView{
			Board:      board,
			Active:     []models.Task{},
			InProgress: []models.Task{},
			Done:       []models.Task{},
		}
		index[board.ID] = i
	}

	unassigned := []models.Task{}
	for _, task := range h.stores.Tasks.Get() {
		if !includeTask(tab, task) {
			continue
		}
		i, ok := index[task.BoardID]
		if !ok {
			unassigned = append(unassigned, task)
			continue
		}
		switch task.Status {
		case models.StatusInProgress:
			views[i].InProgress = append(views[i].InProgress, task)
		case models.StatusDone:
			views[i].Done = append(views[i].Done, task)
		default:
			views[i].Active = append(views[i].Active, task)
		}
	}

	respondJSON(w, http.StatusOK, HomeData{
		Tab:        tab,
		Settings:   settings,
		Boards:     views,
		Unassigned: unassigned,
	})
}

func includeTask(tab string, task models.Task) bool {
	switch tab {
	case "active":
		return !task.IsDone()
	case "completed":
		return task.IsDone()
	default:
		return true
	}
}
