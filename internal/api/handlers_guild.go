package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/promptguild/promptguild/internal/api/respond"
	"github.com/promptguild/promptguild/internal/auth"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/services"
)

type GuildHandler struct {
	svc *services.GuildService
}

func NewGuildHandler(svc *services.GuildService) *GuildHandler { return &GuildHandler{svc: svc} }

// CreateGuild POST /api/guilds
func (h *GuildHandler) CreateGuild(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	g, err := h.svc.Create(r.Context(), req.Name, auth.CallerID(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, g)
}

// ListGuilds GET /api/guilds
func (h *GuildHandler) ListGuilds(w http.ResponseWriter, r *http.Request) {
	gs, err := h.svc.List(r.Context(), auth.CallerID(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, listResponse("guilds", gs))
}

// GetGuild GET /api/guilds/{guildId}
func (h *GuildHandler) GetGuild(w http.ResponseWriter, r *http.Request) {
	g, err := h.svc.Get(r.Context(), mux.Vars(r)["guildId"], auth.CallerID(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, g)
}

// DeleteGuild DELETE /api/guilds/{guildId}
func (h *GuildHandler) DeleteGuild(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.Delete(r.Context(), mux.Vars(r)["guildId"], auth.CallerID(r.Context()))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]int{"deletedPrompts": n})
}

// UpdateMembers PUT /api/guilds/{guildId}/members
func (h *GuildHandler) UpdateMembers(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Members   map[string]model.Role `json:"members"`
		MemberIDs []string              `json:"memberIds"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	g, err := h.svc.UpdateMembers(r.Context(), mux.Vars(r)["guildId"], auth.CallerID(r.Context()), req.Members, req.MemberIDs)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, g)
}

// InviteMember POST /api/guilds/{guildId}/invitations
func (h *GuildHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string     `json:"email"`
		Role  model.Role `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if req.Role == "" {
		req.Role = model.RoleViewer
	}
	g, err := h.svc.InviteByEmail(r.Context(), mux.Vars(r)["guildId"], auth.CallerID(r.Context()), req.Email, req.Role)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, g)
}

// ChangeRole PATCH /api/guilds/{guildId}/members/{userId}
func (h *GuildHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Role model.Role `json:"role"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	vars := mux.Vars(r)
	g, err := h.svc.ChangeRole(r.Context(), vars["guildId"], auth.CallerID(r.Context()), vars["userId"], req.Role)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, g)
}

// RemoveMember DELETE /api/guilds/{guildId}/members/{userId}
func (h *GuildHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	g, err := h.svc.RemoveMember(r.Context(), vars["guildId"], auth.CallerID(r.Context()), vars["userId"])
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, g)
}
