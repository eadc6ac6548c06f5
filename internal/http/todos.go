package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/pocketlist/pocketlist/internal/domain"
	"github.com/pocketlist/pocketlist/internal/service"
	"github.com/pocketlist/pocketlist/pkg/httpx"
	"github.com/pocketlist/pocketlist/pkg/idx"
)

// TodosHandler serves the per-user todo CRUD surface.
type TodosHandler struct {
	Todos *service.TodoService
}

type todoRequest struct {
	Title string `json:"title"`
	Notes string `json:"notes"`
	Done  bool   `json:"done"`
}

type todoResponse struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Notes     string    `json:"notes,omitempty"`
	Done      bool      `json:"done"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func mapTodoResponse(t domain.Todo) todoResponse {
	return todoResponse{
		ID:        t.ID.String(),
		Title:     t.Title,
		Notes:     t.Notes,
		Done:      t.Done,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// callerID extracts the authenticated user's id placed by AuthnMiddleware.
func callerID(w http.ResponseWriter, r *http.Request) (idx.ID, bool) {
	userID, err := idx.Parse(httpx.UserIDFromCtx(r.Context()))
	if err != nil {
		writeUnauthorized(w)
		return idx.Zero, false
	}
	return userID, true
}

func (h *TodosHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	items, err := h.Todos.List(r.Context(), userID)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	out := make([]todoResponse, 0, len(items))
	for _, item := range items {
		out = append(out, mapTodoResponse(item))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *TodosHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	var req todoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "malformed JSON body"})
		return
	}

	item, err := h.Todos.Create(r.Context(), userID, req.Title, req.Notes)
	if err != nil {
		if errors.Is(err, service.ErrEmptyTitle) {
			httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "title is required"})
			return
		}
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, mapTodoResponse(item))
}

func (h *TodosHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		writeTodoNotFound(w)
		return
	}

	item, err := h.Todos.Get(r.Context(), userID, id)
	if err != nil {
		if errors.Is(err, service.ErrTodoNotFound) {
			writeTodoNotFound(w)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mapTodoResponse(item))
}

func (h *TodosHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		writeTodoNotFound(w)
		return
	}

	var req todoRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "malformed JSON body"})
		return
	}

	item, err := h.Todos.Update(r.Context(), userID, id, req.Title, req.Notes, req.Done)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyTitle):
			httpx.WriteJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid_request", Description: "title is required"})
		case errors.Is(err, service.ErrTodoNotFound):
			writeTodoNotFound(w)
		default:
			writeInternalError(w, r, err)
		}
		return
	}

	httpx.WriteJSON(w, http.StatusOK, mapTodoResponse(item))
}

func (h *TodosHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, ok := callerID(w, r)
	if !ok {
		return
	}

	id, err := idx.Parse(r.PathValue("id"))
	if err != nil {
		writeTodoNotFound(w)
		return
	}

	if err := h.Todos.Delete(r.Context(), userID, id); err != nil {
		if errors.Is(err, service.ErrTodoNotFound) {
			writeTodoNotFound(w)
			return
		}
		writeInternalError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeTodoNotFound(w http.ResponseWriter) {
	httpx.WriteJSON(w, http.StatusNotFound, errorResponse{Error: "not_found", Description: "todo not found"})
}
