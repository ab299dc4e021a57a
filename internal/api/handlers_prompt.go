package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/promptguild/promptguild/internal/api/respond"
	"github.com/promptguild/promptguild/internal/auth"
	"github.com/promptguild/promptguild/internal/model"
	"github.com/promptguild/promptguild/internal/services"
)

// PromptHandler serves both personal prompts (/api/prompts) and guild prompts
// (/api/guilds/{guildId}/prompts); the route decides the scope.
type PromptHandler struct {
	svc *services.PromptService
}

func NewPromptHandler(svc *services.PromptService) *PromptHandler { return &PromptHandler{svc: svc} }

func scopeOf(r *http.Request) model.Scope {
	caller := auth.CallerID(r.Context())
	if guildID, ok := mux.Vars(r)["guildId"]; ok {
		return model.Shared(guildID, caller)
	}
	return model.Personal(caller)
}

// CreatePrompt POST /api/prompts
func (h *PromptHandler) CreatePrompt(w http.ResponseWriter, r *http.Request) {
	var in model.PromptInput
	if err := decodeJSON(w, r, &in); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	p, err := h.svc.Create(r.Context(), scopeOf(r), in)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, p)
}

// ListPrompts GET /api/prompts
func (h *PromptHandler) ListPrompts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.List(r.Context(), scopeOf(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, listResponse("prompts", ps))
}

// GetPrompt GET /api/prompts/{promptId}
func (h *PromptHandler) GetPrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Get(r.Context(), mux.Vars(r)["promptId"], scopeOf(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// UpdatePrompt PATCH /api/prompts/{promptId}
func (h *PromptHandler) UpdatePrompt(w http.ResponseWriter, r *http.Request) {
	var patch model.PromptPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	p, err := h.svc.Update(r.Context(), mux.Vars(r)["promptId"], scopeOf(r), patch)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// DeletePrompt DELETE /api/prompts/{promptId}
func (h *PromptHandler) DeletePrompt(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["promptId"], scopeOf(r)); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UsePrompt POST /api/prompts/{promptId}/use
func (h *PromptHandler) UsePrompt(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.IncrementUseCount(r.Context(), mux.Vars(r)["promptId"], scopeOf(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// RatePrompt PUT /api/prompts/{promptId}/rating
func (h *PromptHandler) RatePrompt(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Rating *int `json:"rating"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	if req.Rating == nil {
		respond.WriteDomainError(w, model.InvalidArgument("rating", "is required"))
		return
	}
	p, err := h.svc.Rate(r.Context(), mux.Vars(r)["promptId"], scopeOf(r), *req.Rating)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, p)
}

// ListVersions GET /api/prompts/{promptId}/versions
func (h *PromptHandler) ListVersions(w http.ResponseWriter, r *http.Request) {
	vs, err := h.svc.ListVersions(r.Context(), mux.Vars(r)["promptId"], scopeOf(r))
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, listResponse("versions", vs))
}
