package http

import (
	"net/http"

	"github.com/pocketlist/pocketlist/internal/service"
	"github.com/pocketlist/pocketlist/pkg/httpx"
)

// AdminHandler serves the admin-only account listing. Role enforcement
// happens in the middleware chain.
type AdminHandler struct {
	Users *service.UserService
}

func (h *AdminHandler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Users.List(r.Context())
	if err != nil {
		writeInternalError(w, r, err)
		return
	}

	out := make([]userResponse, 0, len(users))
	for _, u := range users {
		out = append(out, mapUserResponse(u))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}
