package api

import (
	"net/http"

	"github.com/promptguild/promptguild/internal/api/respond"
	"github.com/promptguild/promptguild/internal/auth"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/services"
	"github.com/promptguild/promptguild/internal/validate"
)

type UserHandler struct {
	guilds *services.GuildService
}

func NewUserHandler(guilds *services.GuildService) *UserHandler { return &UserHandler{guilds: guilds} }

// Me GET /api/me
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := auth.CallerFrom(r.Context())
	if id == nil {
		respond.WriteDomainError(w, model.Unauthenticated("sign in required"))
		return
	}
	respond.WriteJSON(w, http.StatusOK, id)
}

// LookupUser GET /api/users/lookup?email=
func (h *UserHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	if auth.CallerID(r.Context()) == "" {
		respond.WriteDomainError(w, model.Unauthenticated("sign in required"))
		return
	}
	email := r.URL.Query().Get("email")
	if err := validate.Email(email); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	u, err := h.guilds.ResolveUserByEmail(r.Context(), email)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if u == nil {
		respond.WriteDomainError(w, model.NotFound("no user is registered with that email"))
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{
		"userId":      u.UserID,
		"email":       u.Email,
		"displayName": u.DisplayName,
	})
}
