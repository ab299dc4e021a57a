package api

import (
	"encoding/json"
	"net/http"

	"github.com/promptguild/promptguild/internal/ai"
	"github.com/promptguild/promptguild/internal/api/respond"
	"github.com/promptguild/promptguild/internal/auth"
	"github.com/promptguild/promptguild/internal/model"
)

type AIHandler struct {
	svc *ai.Service
}

func NewAIHandler(svc *ai.Service) *AIHandler { return &AIHandler{svc: svc} }

// Suggest POST /api/ai/suggestion
func (h *AIHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	caller := auth.CallerID(r.Context())
	if caller == "" {
		respond.WriteDomainError(w, model.Unauthenticated("sign in required"))
		return
	}
	var req struct {
		Prompt json.RawMessage `json:"prompt"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	var raw string
	if len(req.Prompt) == 0 || json.Unmarshal(req.Prompt, &raw) != nil {
		respond.WriteDomainError(w, model.InvalidArgument("prompt", "must be a non-empty string"))
		return
	}
	out, err := h.svc.RequestRewrite(r.Context(), caller, raw)
	if err != nil {
		respond.WriteDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]string{"suggestion": out})
}
